package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var relativeUnits = []struct {
	re   *regexp.Regexp
	unit time.Duration
}{
	{regexp.MustCompile(`vor\s+(\d+)\s+minuten?`), time.Minute},
	{regexp.MustCompile(`vor\s+(\d+)\s+stunden?`), time.Hour},
	{regexp.MustCompile(`vor\s+(\d+)\s+tag(?:en)?`), 24 * time.Hour},
	{regexp.MustCompile(`vor\s+(\d+)\s+wochen?`), 7 * 24 * time.Hour},
	{regexp.MustCompile(`vor\s+(\d+)\s+monat(?:en)?`), 30 * 24 * time.Hour},
	{regexp.MustCompile(`vor\s+(\d+)\s+jahr(?:en)?`), 365 * 24 * time.Hour},
}

// ParseRelativeTime converts a German relative date string like
// "vor 2 Stunden" into an absolute timestamp relative to now.
// Unrecognized formats fall back to now; posted time is advisory only.
func ParseRelativeTime(text string, now time.Time) time.Time {
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, p := range relativeUnits {
		m := p.re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return now.Add(-time.Duration(n) * p.unit)
	}

	return now
}
