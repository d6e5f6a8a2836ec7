package kafka

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     strings.Split(brokers, ","),
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    10e3,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
	})

	return &Consumer{reader: reader}
}

// EventHandler receives decoded events from ProcessEvents. Handlers that
// do not care about an event type just return nil.
type EventHandler interface {
	HandleSearchCreated(event SearchCreatedEvent) error
	HandleScrapeRequest(event ScrapeRequestEvent) error
	HandleNewListings(event NewListingsEvent) error
}

func (c *Consumer) ProcessEvents(ctx context.Context, handler EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			log.Println("Consumer stopping...")
			return ctx.Err()
		default:
			message, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("Error reading message: %v", err)
				continue
			}

			if err := c.handleMessage(message, handler); err != nil {
				log.Printf("Error handling message: %v", err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handleMessage(message kafka.Message, handler EventHandler) error {
	var envelope struct {
		EventType string `json:"event_type"`
	}

	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return err
	}

	switch envelope.EventType {
	case EventSearchCreated:
		var event SearchCreatedEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			return err
		}
		return handler.HandleSearchCreated(event)

	case EventScrapeRequest:
		var event ScrapeRequestEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			return err
		}
		return handler.HandleScrapeRequest(event)

	case EventNewListings:
		var event NewListingsEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			return err
		}
		return handler.HandleNewListings(event)

	default:
		log.Printf("Unknown event type: %s", envelope.EventType)
		return nil
	}
}
