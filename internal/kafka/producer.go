package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(brokers, ",")...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Producer{writer: writer}
}

func (p *Producer) PublishSearchCreated(event SearchCreatedEvent) error {
	event.EventType = EventSearchCreated

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal search_created event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(fmt.Sprintf("search_%d", event.SearchID)),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(context.Background(), message); err != nil {
		return fmt.Errorf("failed to write search_created message: %w", err)
	}

	log.Printf("Published search_created event: search_id=%d, keyword='%s'", event.SearchID, event.Keyword)
	return nil
}

func (p *Producer) PublishScrapeRequest() error {
	event := ScrapeRequestEvent{
		EventType: EventScrapeRequest,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal scrape_request event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte("scrape_request"),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(context.Background(), message); err != nil {
		return fmt.Errorf("failed to write scrape_request message: %w", err)
	}

	log.Printf("Published scrape_request event")
	return nil
}

func (p *Producer) PublishNewListings(event NewListingsEvent) error {
	event.EventType = EventNewListings

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal new_listings event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(fmt.Sprintf("listings_search_%d", event.SearchID)),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(context.Background(), message); err != nil {
		return fmt.Errorf("failed to write new_listings message: %w", err)
	}

	log.Printf("Published new_listings event: search_id=%d, count=%d", event.SearchID, len(event.Listings))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
