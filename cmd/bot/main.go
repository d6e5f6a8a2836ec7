package main

import (
	"context"
	"log"

	"kleinanzeigen-hunter/internal/bot"
	"kleinanzeigen-hunter/internal/cache"
	"kleinanzeigen-hunter/internal/config"
	"kleinanzeigen-hunter/internal/database"
	"kleinanzeigen-hunter/internal/kafka"
	"kleinanzeigen-hunter/internal/scraper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config:", err)
	}

	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN is not set")
	}

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("Error connecting to db:", err)
	}

	redisCache := cache.NewRedisCache(cfg.RedisAddr)
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	fetcher := scraper.NewKleinanzeigenScraper(cfg.BaseURL, cfg.RequestTimeout, cfg.MaxRetries)

	telegramBot, err := bot.NewBot(cfg.BotToken, db, redisCache, producer, fetcher, cfg.DefaultCategory)
	if err != nil {
		log.Fatal("Error creating bot:", err)
	}

	go func() {
		log.Println("🔔 Starting Bot Kafka consumer for notifications...")

		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "bot-notification-service")
		ctx := context.Background()

		if err := consumer.ProcessEvents(ctx, telegramBot); err != nil {
			log.Printf("❌ Bot Kafka consumer error: %v", err)
		}
	}()

	log.Println("🤖 Starting Telegram Bot...")
	telegramBot.Start()
}
