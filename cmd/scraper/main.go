package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"kleinanzeigen-hunter/internal/config"
	"kleinanzeigen-hunter/internal/database"
	"kleinanzeigen-hunter/internal/hunter"
	"kleinanzeigen-hunter/internal/kafka"
	"kleinanzeigen-hunter/internal/pricecheck"
	"kleinanzeigen-hunter/internal/scraper"
)

// cycleInterval is how often due searches are re-evaluated. Each search
// still honors its own interval; this is only the polling resolution.
const cycleInterval = 30 * time.Second

type ScraperService struct {
	cfg      *config.Config
	db       *database.DB
	consumer *kafka.Consumer
	producer *kafka.Producer
	hunter   *hunter.Hunter
}

func NewScraperService() (*ScraperService, error) {
	log.Println("Initializing Scraper Service components...")

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		return nil, err
	}
	log.Println("Database connected")

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "scraper-service")
	log.Println("Kafka consumer created")

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	log.Println("Kafka producer created")

	fetcher := scraper.NewKleinanzeigenScraper(cfg.BaseURL, cfg.RequestTimeout, cfg.MaxRetries)
	log.Println("Kleinanzeigen scraper created")

	comparer := pricecheck.NewClient(cfg.RequestTimeout)

	h := hunter.New(db, fetcher, producer, comparer, cfg.MaxNotifyPerRun)

	return &ScraperService{
		cfg:      cfg,
		db:       db,
		consumer: consumer,
		producer: producer,
		hunter:   h,
	}, nil
}

func main() {
	log.Println("Starting Kleinanzeigen Hunter Scraper Service...")

	service, err := NewScraperService()
	if err != nil {
		log.Fatalf("Failed to create scraper service: %v", err)
	}

	defer service.cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		log.Println("Starting Kafka consumer...")
		if err := service.consumer.ProcessEvents(ctx, service); err != nil {
			log.Printf("Consumer error: %v", err)
		}
		log.Println("Kafka consumer stopped")
	}()

	go func() {
		log.Println("Starting periodic hunter...")
		service.runPeriodicCycles(ctx)
		log.Println("Periodic hunter stopped")
	}()

	scheduler := cron.New()
	retention := service.cfg.RetentionDays
	scheduler.AddFunc("@daily", func() {
		if _, err := service.db.CleanupOldEntries(retention); err != nil {
			log.Printf("Error pruning seen ads: %v", err)
		}
	})
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("✅ Scraper Service is running!")
	log.Println("📡 Listening for Kafka events...")
	log.Printf("⏰ Checking due searches every %v", cycleInterval)
	log.Println("Press Ctrl+C to stop...")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutdown signal received, stopping Scraper Service")

	cancel()

	time.Sleep(2 * time.Second)
	log.Println("Scraper Service stopped gracefully")
}

func (s *ScraperService) cleanup() {
	log.Println("Cleaning up resources...")

	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			log.Printf("Error closing consumer: %v", err)
		} else {
			log.Println("Kafka consumer closed")
		}
	}

	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			log.Printf("Error closing producer: %v", err)
		} else {
			log.Println("Kafka producer closed")
		}
	}

	log.Println("Cleanup completed")
}

func (s *ScraperService) runPeriodicCycles(ctx context.Context) {
	ticker := time.NewTicker(cycleInterval)
	defer ticker.Stop()

	log.Println("Starting initial cycle...")
	if err := s.hunter.RunCycle(ctx); err != nil {
		log.Printf("Cycle error: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping periodic hunter due to shutdown signal...")
			return
		case <-ticker.C:
			if err := s.hunter.RunCycle(ctx); err != nil {
				log.Printf("Cycle error: %v", err)
			}
		}
	}
}

// HandleSearchCreated triggers an immediate first run for a new search
// instead of waiting for its interval.
func (s *ScraperService) HandleSearchCreated(event kafka.SearchCreatedEvent) error {
	log.Printf("🆕 Received search_created event: search_id=%d, keyword='%s'",
		event.SearchID, event.Keyword)

	go func() {
		var search database.Search
		err := s.db.Preload("User").First(&search, event.SearchID).Error
		if err != nil {
			log.Printf("Error loading new search %d: %v", event.SearchID, err)
			return
		}

		if err := s.hunter.ExecuteSearch(&search); err != nil {
			log.Printf("Error in immediate run of search %d: %v", search.ID, err)
		} else {
			log.Printf("Immediate run completed for search %d", search.ID)
		}
	}()

	return nil
}

func (s *ScraperService) HandleScrapeRequest(event kafka.ScrapeRequestEvent) error {
	log.Printf("Received scrape_request event - triggering full cycle")

	go func() {
		if err := s.hunter.RunCycle(context.Background()); err != nil {
			log.Printf("Manual cycle error: %v", err)
		}
	}()

	return nil
}

func (s *ScraperService) HandleNewListings(event kafka.NewListingsEvent) error {
	log.Printf("Received new_listings event (search_id=%d) - ignoring (for bot service)",
		event.SearchID)
	return nil
}
