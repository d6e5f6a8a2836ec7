package parser

import "regexp"

// modelPatterns maps manufacturers to their model number patterns.
// Order matters: the first pattern that matches decides both the model
// number and the manufacturer, so more specific vendors come first.
var modelPatterns = []struct {
	Manufacturer string
	Patterns     []*regexp.Regexp
}{
	{"Corsair", compileAll(`\bCMK\w+`, `\bCMT\w+`, `\bCMH\w+`, `\bCMR\w+`, `\bCMW\w+`)},
	{"G.Skill", compileAll(`\bF5-\d+\w+`, `\bF5\w+`, `\bF4-\d+\w+`)},
	{"Kingston", compileAll(`\bKF\w+`, `\bKVR\w+`)},
	{"Crucial", compileAll(`\bCT\d\w+`, `\bBL\w+`)},
	{"TeamGroup", compileAll(`\bTF\d+D\w+`, `\bTF\w+`)},
	{"Patriot", compileAll(`\bPVB\w+`, `\bPV\w+`)},
	{"ADATA", compileAll(`\bAX5U\w+`, `\bAD5U\w+`)},
}

// manufacturerKeywords is the fallback when no model number matched.
var manufacturerKeywords = []struct {
	Manufacturer string
	Keywords     []string
}{
	{"Corsair", []string{"corsair"}},
	{"G.Skill", []string{"g.skill", "gskill", "g skill"}},
	{"Kingston", []string{"kingston"}},
	{"Crucial", []string{"crucial"}},
	{"TeamGroup", []string{"teamgroup", "team group"}},
	{"Patriot", []string{"patriot"}},
	{"ADATA", []string{"adata"}},
	{"Samsung", []string{"samsung"}},
	{"SK Hynix", []string{"sk hynix", "hynix"}},
	{"Micron", []string{"micron"}},
}

var colorKeywords = []struct {
	Color    string
	Keywords []string
}{
	{"Schwarz", []string{"schwarz", "black"}},
	{"Weiß", []string{"weiß", "weiss", "white"}},
	{"RGB", []string{"rgb", "led"}},
	{"Silber", []string{"silber", "silver"}},
	{"Grau", []string{"grau", "grey", "gray"}},
}

var (
	ovpKeywords     = []string{"ovp", "originalverpackung", "original verpackt", "versiegelt", "unverschweißt"}
	invoiceKeywords = []string{"rechnung", "kassenbon", "beleg", "garantie", "kaufbeleg"}

	// A pickup-only disclaimer overrides any positive shipping mention.
	shippingKeywords   = []string{"versand möglich", "versandkosten", "dhl", "porto", "versand"}
	noShippingKeywords = []string{"nur abholung", "kein versand", "abholung nur"}

	defectKeywords = []string{"defekt", "kaputt", "beschädigt", "schaden"}
)

var (
	ddr5Re     = regexp.MustCompile(`(?i)ddr[\s-]*5|d5`)
	capacityRe = regexp.MustCompile(`(?i)(\d+(?:x\d+)?)\s*GB`)
	speedRe    = regexp.MustCompile(`(?i)(\d{4,5})\s*(MHz|MT/s)`)
	latencyRe  = regexp.MustCompile(`(?i)CL\s*(\d{2,3})`)
	latencyCRe = regexp.MustCompile(`C(\d{2,3})`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}
