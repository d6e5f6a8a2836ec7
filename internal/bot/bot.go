package bot

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kleinanzeigen-hunter/internal/cache"
	"kleinanzeigen-hunter/internal/database"
	"kleinanzeigen-hunter/internal/kafka"
	"kleinanzeigen-hunter/internal/parser"
	"kleinanzeigen-hunter/internal/scraper"
)

type Bot struct {
	api             *tgbotapi.BotAPI
	db              *database.DB
	cache           *cache.RedisCache
	producer        *kafka.Producer
	fetcher         scraper.Fetcher
	defaultCategory string
}

// SearchCreationState tracks one user's stepwise /create conversation.
type SearchCreationState struct {
	Step int
	Data map[string]string
}

var creationStates = make(map[int64]*SearchCreationState)

func NewBot(token string, db *database.DB, redisCache *cache.RedisCache,
	producer *kafka.Producer, fetcher scraper.Fetcher, defaultCategory string) (*Bot, error) {

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	api.Debug = false

	if err := redisCache.Ping(); err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
		log.Printf("Bot will work without caching!")
	} else {
		log.Printf("Redis connected successfully")
	}

	log.Printf("Bot is authorized as: @%s", api.Self.UserName)

	return &Bot{
		api:             api,
		db:              db,
		cache:           redisCache,
		producer:        producer,
		fetcher:         fetcher,
		defaultCategory: defaultCategory,
	}, nil
}

func (b *Bot) Start() {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("Bot is started! Waiting for messages...")

	for update := range updates {
		if update.Message != nil {
			b.handleMessage(update.Message)
		}
	}
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	user, err := b.db.CreateOrUpdateUser(
		message.From.ID,
		message.From.UserName,
		message.From.FirstName,
	)
	if err != nil {
		log.Printf("Error creating user: %v", err)
		b.sendMessage(message.Chat.ID, "Serverfehler. Versuch es später nochmal.")
		return
	}

	if !user.Allowed {
		b.sendMessage(message.Chat.ID, "⛔ Du bist für diesen Bot nicht freigeschaltet.")
		return
	}

	log.Printf("Message from: %s (@%s) - %s", user.FirstName, user.Username, message.Text)

	if message.IsCommand() {
		delete(creationStates, message.From.ID)

		switch message.Command() {
		case "start":
			b.handleStart(message)
		case "help":
			b.handleHelp(message)
		case "list":
			b.handleList(message)
		case "create":
			b.handleCreate(message)
		case "pause":
			b.handlePause(message)
		case "resume":
			b.handleResume(message)
		case "delete":
			b.handleDelete(message)
		case "last":
			b.handleHistory(message, false)
		case "newest":
			b.handleHistory(message, true)
		case "stats":
			b.handleStats(message)
		case "find":
			b.handleFind(message)
		case "test":
			b.handleTest(message)
		default:
			b.handleUnknown(message)
		}
	} else {
		b.handleText(message)
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcomeText := `👋 Hi! Ich überwache Kleinanzeigen für dich!

🔍 Was ich kann:
• Suchaufträge anlegen und regelmäßig prüfen
• RAM-Angebote automatisch bewerten (Modell, OVP, Rechnung, Versand)
• Dich sofort über neue Treffer benachrichtigen

📝 Befehle:
/help - alle Befehle anzeigen
/create - neuen Suchauftrag anlegen
/list - meine Suchaufträge

Los geht's! 🚀`

	b.sendMessage(message.Chat.ID, welcomeText)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	helpText := `📚 Verfügbare Befehle:

🏠 Allgemein:
/start - Bot starten
/help - diese Hilfe anzeigen
/stats - Statistik über gesehene Anzeigen

🔍 Suchaufträge:
/list - meine Suchaufträge anzeigen
/create - neuen Suchauftrag anlegen (Schritt für Schritt)
/pause [Nr] - Suchauftrag pausieren
/resume [Nr] - Suchauftrag fortsetzen
/delete [Nr] - Suchauftrag löschen (inkl. Verlauf)

📦 Anzeigen:
/find [Nr] - sofort nach einem Suchauftrag suchen
/last [Anzahl] - älteste gesehene Anzeigen
/newest [Anzahl] - neueste gesehene Anzeigen
/test - Testbenachrichtigung senden

💡 Tipp: bei /create kannst du optionale Felder mit "-" überspringen`

	b.sendMessage(message.Chat.ID, helpText)
}

func (b *Bot) handleUnknown(message *tgbotapi.Message) {
	text := `❓ Unbekannter Befehl: ` + message.Command() + `

Nutze /help um alle Befehle zu sehen.`

	b.sendMessage(message.Chat.ID, text)
}

func (b *Bot) handleCreate(message *tgbotapi.Message) {
	creationStates[message.From.ID] = &SearchCreationState{
		Step: 1,
		Data: make(map[string]string),
	}
	b.sendMessage(message.Chat.ID, "🔍 Wonach soll ich suchen? (z.B. DDR5 RAM 32GB):")
}

func (b *Bot) handleText(message *tgbotapi.Message) {
	state, exists := creationStates[message.From.ID]
	if !exists {
		text := `💬 Ich habe deine Nachricht erhalten: "` + message.Text + `"

Ich verstehe aber nur Befehle. Probier /help! 🤖`

		b.sendMessage(message.Chat.ID, text)
		return
	}

	input := strings.TrimSpace(message.Text)

	switch state.Step {
	case 1:
		if input == "" || input == "-" {
			b.sendMessage(message.Chat.ID, "❌ Der Suchbegriff darf nicht leer sein. Nochmal:")
			return
		}
		state.Data["keyword"] = input
		state.Step++
		b.sendMessage(message.Chat.ID, "💰 Mindestpreis in € (oder - zum Überspringen):")
	case 2:
		state.Data["price_min"] = input
		state.Step++
		b.sendMessage(message.Chat.ID, "💰 Maximalpreis in € (oder - zum Überspringen):")
	case 3:
		state.Data["price_max"] = input
		state.Step++
		b.sendMessage(message.Chat.ID, "⏱ Prüfintervall in Sekunden (oder - für 300):")
	case 4:
		state.Data["interval"] = input
		state.Step++
		b.sendMessage(message.Chat.ID, "🚚 Versandart: versand, abholung oder beides (- für beides):")
	case 5:
		state.Data["shipping"] = input
		state.Step++
		b.sendMessage(message.Chat.ID, "🚫 Ausschluss-Stichwörter, kommagetrennt (oder - für keine):")
	case 6:
		state.Data["excludes"] = input
		b.finishCreate(message, state)
		delete(creationStates, message.From.ID)
	}
}

func (b *Bot) finishCreate(message *tgbotapi.Message, state *SearchCreationState) {
	priceMin, ok := parseOptionalPrice(state.Data["price_min"])
	if !ok {
		b.sendMessage(message.Chat.ID, "❌ Der Mindestpreis muss eine Zahl sein!")
		return
	}
	priceMax, ok := parseOptionalPrice(state.Data["price_max"])
	if !ok {
		b.sendMessage(message.Chat.ID, "❌ Der Maximalpreis muss eine Zahl sein!")
		return
	}
	if priceMin != nil && *priceMin < 0 || priceMax != nil && *priceMax < 0 {
		b.sendMessage(message.Chat.ID, "❌ Preise dürfen nicht negativ sein!")
		return
	}

	interval := 300
	if s := state.Data["interval"]; s != "" && s != "-" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 60 {
			b.sendMessage(message.Chat.ID, "❌ Das Intervall muss eine Zahl ≥ 60 sein!")
			return
		}
		interval = v
	}

	shipping := "both"
	switch strings.ToLower(state.Data["shipping"]) {
	case "versand", "shipping":
		shipping = "shipping"
	case "abholung", "pickup":
		shipping = "pickup"
	case "", "-", "beides", "both":
		shipping = "both"
	default:
		b.sendMessage(message.Chat.ID, "❌ Versandart muss versand, abholung oder beides sein!")
		return
	}

	var excludes []string
	if s := state.Data["excludes"]; s != "" && s != "-" {
		for _, kw := range strings.Split(s, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				excludes = append(excludes, kw)
			}
		}
	}

	user, err := b.db.GetUserByTelegramID(message.From.ID)
	if err != nil || user == nil {
		b.sendMessage(message.Chat.ID, "❌ Fehler beim Laden deiner Nutzerdaten")
		return
	}

	search, err := b.db.AddSearch(user.ID, state.Data["keyword"], b.defaultCategory,
		priceMin, priceMax, interval, shipping, excludes)
	if err != nil {
		log.Printf("Error creating search: %v", err)
		b.sendMessage(message.Chat.ID, "❌ Fehler beim Anlegen. Versuch es nochmal.")
		return
	}

	if b.producer != nil {
		err := b.producer.PublishSearchCreated(kafka.SearchCreatedEvent{
			SearchID:  search.ID,
			UserID:    user.ID,
			ChatID:    message.Chat.ID,
			Keyword:   search.Keyword,
			CreatedAt: time.Now(),
		})
		if err != nil {
			log.Printf("Error publishing search_created: %v", err)
		}
	}

	successText := fmt.Sprintf(`✅ Suchauftrag angelegt!

%s
🟢 Aktiv - die erste Suche startet gleich!`, formatSearch(1, search))

	b.sendMessage(message.Chat.ID, successText)
}

func parseOptionalPrice(s string) (*float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "0" {
		return nil, true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func (b *Bot) userSearches(message *tgbotapi.Message) ([]*database.Search, bool) {
	user, err := b.db.GetUserByTelegramID(message.From.ID)
	if err != nil || user == nil {
		b.sendMessage(message.Chat.ID, "❌ Fehler beim Laden deiner Nutzerdaten")
		return nil, false
	}

	searches, err := b.db.GetUserSearches(user.ID)
	if err != nil {
		log.Printf("Error getting user searches: %v", err)
		b.sendMessage(message.Chat.ID, "❌ Fehler beim Laden der Suchaufträge")
		return nil, false
	}
	return searches, true
}

func (b *Bot) handleList(message *tgbotapi.Message) {
	searches, ok := b.userSearches(message)
	if !ok {
		return
	}

	if len(searches) == 0 {
		b.sendMessage(message.Chat.ID, "📝 Du hast noch keine Suchaufträge. Leg einen mit /create an!")
		return
	}

	text := fmt.Sprintf("📋 Deine Suchaufträge (%d):\n\n", len(searches))
	for i, search := range searches {
		text += formatSearch(i+1, search) + "\n"
	}
	text += "🟢 aktiv | 🔴 pausiert"

	b.sendMessage(message.Chat.ID, text)
}

// resolveSearchArg maps a 1-based list position from a command argument
// onto the user's searches.
func (b *Bot) resolveSearchArg(message *tgbotapi.Message, usage string) (*database.User, *database.Search, bool) {
	user, err := b.db.GetUserByTelegramID(message.From.ID)
	if err != nil || user == nil {
		b.sendMessage(message.Chat.ID, "❌ Fehler beim Laden deiner Nutzerdaten")
		return nil, nil, false
	}

	searches, err := b.db.GetUserSearches(user.ID)
	if err != nil {
		b.sendMessage(message.Chat.ID, "❌ Fehler beim Laden der Suchaufträge")
		return nil, nil, false
	}
	if len(searches) == 0 {
		b.sendMessage(message.Chat.ID, "❌ Du hast keine Suchaufträge. Leg einen mit /create an!")
		return nil, nil, false
	}

	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("📝 Nutzung: `%s` (Nummer aus /list)", usage))
		return nil, nil, false
	}

	num, err := strconv.Atoi(args[0])
	if err != nil || num < 1 || num > len(searches) {
		b.sendMessage(message.Chat.ID, fmt.Sprintf("❌ Ungültige Nummer. Nutze 1 bis %d", len(searches)))
		return nil, nil, false
	}

	return user, searches[num-1], true
}

func (b *Bot) handlePause(message *tgbotapi.Message) {
	user, search, ok := b.resolveSearchArg(message, "/pause 1")
	if !ok {
		return
	}

	paused, err := b.db.PauseSearch(search.ID, user.ID)
	if err != nil || !paused {
		b.sendMessage(message.Chat.ID, "❌ Pausieren fehlgeschlagen")
		return
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("⏸ Suchauftrag '%s' pausiert", search.Keyword))
}

func (b *Bot) handleResume(message *tgbotapi.Message) {
	user, search, ok := b.resolveSearchArg(message, "/resume 1")
	if !ok {
		return
	}

	resumed, err := b.db.ResumeSearch(search.ID, user.ID)
	if err != nil || !resumed {
		b.sendMessage(message.Chat.ID, "❌ Fortsetzen fehlgeschlagen")
		return
	}
	b.sendMessage(message.Chat.ID, fmt.Sprintf("▶️ Suchauftrag '%s' läuft wieder", search.Keyword))
}

func (b *Bot) handleDelete(message *tgbotapi.Message) {
	user, search, ok := b.resolveSearchArg(message, "/delete 1")
	if !ok {
		return
	}

	deleted, err := b.db.DeleteSearch(search.ID, user.ID)
	if err != nil || !deleted {
		b.sendMessage(message.Chat.ID, "❌ Löschen fehlgeschlagen")
		return
	}
	b.sendMessage(message.Chat.ID,
		fmt.Sprintf("🗑 Suchauftrag '%s' samt Verlauf gelöscht", search.Keyword))
}

func (b *Bot) handleHistory(message *tgbotapi.Message, newest bool) {
	user, err := b.db.GetUserByTelegramID(message.From.ID)
	if err != nil || user == nil {
		b.sendMessage(message.Chat.ID, "❌ Fehler beim Laden deiner Nutzerdaten")
		return
	}

	limit := 5
	if args := strings.Fields(message.CommandArguments()); len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			limit = v
		}
	}

	// History is scoped to the caller's own searches.
	var ads []*database.SeenAd
	if newest {
		ads, err = b.db.GetNewestAdsForUser(user.ID, limit)
	} else {
		ads, err = b.db.GetLastAdsForUser(user.ID, limit)
	}
	if err != nil {
		log.Printf("Error loading seen ads: %v", err)
		b.sendMessage(message.Chat.ID, "❌ Fehler beim Laden des Verlaufs")
		return
	}

	if len(ads) == 0 {
		b.sendMessage(message.Chat.ID, "😔 Noch keine Anzeigen im Verlauf")
		return
	}

	header := "📜 Älteste gesehene Anzeigen:\n\n"
	if newest {
		header = "🆕 Neueste gesehene Anzeigen:\n\n"
	}

	text := header
	for _, ad := range ads {
		text += formatSeenAd(ad) + "\n\n"
	}
	b.sendMessage(message.Chat.ID, text)
}

func (b *Bot) handleStats(message *tgbotapi.Message) {
	stats, err := b.db.GetStats(7)
	if err != nil {
		log.Printf("Error loading stats: %v", err)
		b.sendMessage(message.Chat.ID, "❌ Fehler beim Laden der Statistik")
		return
	}

	text := fmt.Sprintf(`📊 Statistik:

📦 Gesehene Anzeigen gesamt: %d
🗓 Davon in den letzten 7 Tagen: %d`, stats.Total, stats.Recent)

	b.sendMessage(message.Chat.ID, text)
}

func (b *Bot) handleFind(message *tgbotapi.Message) {
	_, search, ok := b.resolveSearchArg(message, "/find 1")
	if !ok {
		return
	}

	if !search.Active {
		b.sendMessage(message.Chat.ID, "❌ Dieser Suchauftrag ist pausiert")
		return
	}

	cacheKey := fmt.Sprintf("%s:%s", search.Keyword, search.Category)

	if cached, found := b.cache.GetCachedResults(cacheKey); found {
		b.sendMessage(message.Chat.ID, "⚡ Ergebnisse aus dem Cache:")
		b.sendSearchResults(message.Chat.ID, search.Keyword, cached)
		return
	}

	if !b.cache.CanScrapeQuery(search.Keyword) {
		b.sendMessage(message.Chat.ID, "⏰ Warte kurz vor der nächsten Suche (Schutz vor Sperrung)")
		return
	}

	b.sendMessage(message.Chat.ID, "🔍 Suche läuft...")

	listings, err := b.fetcher.FetchListings(search.Keyword, search.Category)
	if err != nil {
		log.Printf("Error scraping for search %d: %v", search.ID, err)
		b.sendMessage(message.Chat.ID, "❌ Fehler bei der Suche")
		return
	}

	scored := scoreForDisplay(listings)
	if err := b.cache.CacheSearchResults(cacheKey, scored); err != nil {
		log.Printf("Error caching results: %v", err)
	}

	b.sendSearchResults(message.Chat.ID, search.Keyword, scored)
}

// scoreForDisplay parses attributes for ad-hoc results without any
// filtering or dedup; /find shows everything currently listed.
func scoreForDisplay(listings []scraper.Listing) []kafka.ScoredListing {
	now := time.Now()
	scored := make([]kafka.ScoredListing, 0, len(listings))
	for _, listing := range listings {
		attrs, _ := parser.Parse(listing.Title, listing.Description, listing.PostedTime, now)
		scored = append(scored, kafka.ScoredListing{Listing: listing, Attributes: *attrs})
	}
	return scored
}

func (b *Bot) sendSearchResults(chatID int64, keyword string, listings []kafka.ScoredListing) {
	if len(listings) == 0 {
		b.sendMessage(chatID, "😔 Keine Anzeigen gefunden")
		return
	}

	text := fmt.Sprintf("📋 *%s* - %d gefunden:\n\n", keyword, len(listings))

	for i, listing := range listings {
		if i >= 5 {
			break
		}
		text += formatListing(listing) + "\n\n"
	}

	if len(listings) > 5 {
		text += fmt.Sprintf("... und %d weitere Anzeigen\n", len(listings)-5)
	}

	b.sendMessage(chatID, text)
}

func (b *Bot) handleTest(message *tgbotapi.Message) {
	price := 189.0
	sample := kafka.ScoredListing{
		Listing: scraper.Listing{
			ID:       "0000000000",
			Title:    "DDR5 RAM Corsair CMK32GX5M2B5200C40 NEU OVP",
			Price:    &price,
			Location: "10115 Berlin",
			Link:     "https://www.kleinanzeigen.de/s-anzeige/test/0000000000",
		},
	}
	attrs, _ := parser.Parse(sample.Title, sample.Description, sample.PostedTime, time.Now())
	sample.Attributes = *attrs

	b.sendMessage(message.Chat.ID, "🧪 So sieht eine Benachrichtigung aus:\n\n"+formatListing(sample))
}

// HandleNewListings delivers scraper findings to the owning chat.
func (b *Bot) HandleNewListings(event kafka.NewListingsEvent) error {
	if event.ChatID == 0 {
		log.Printf("new_listings event for search %d without chat id, dropping", event.SearchID)
		return nil
	}

	text := fmt.Sprintf("🔔 *%s* - %d neue Treffer:\n\n", event.Keyword, len(event.Listings))
	for _, listing := range event.Listings {
		text += formatListing(listing) + "\n\n"
	}

	b.sendMessage(event.ChatID, text)
	return nil
}

// HandleSearchCreated is consumed by the scraper service, not the bot.
func (b *Bot) HandleSearchCreated(event kafka.SearchCreatedEvent) error {
	return nil
}

// HandleScrapeRequest is consumed by the scraper service, not the bot.
func (b *Bot) HandleScrapeRequest(event kafka.ScrapeRequestEvent) error {
	return nil
}
