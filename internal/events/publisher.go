// Package events publishes purchase and issuance notifications to Kafka,
// Redis streams and webhooks. Publishing is best effort: a purchase never
// fails because a notification could not be delivered.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event types
const (
	TypeAssetIssued       = "asset.issued"
	TypePurchaseCompleted = "purchase.completed"
	TypePurchasePartial   = "purchase.partial"
	TypeHoldingsRepaired  = "holdings.repaired"
	TypeResaleListed      = "resale.listed"
)

// Topic is the default topic or stream name for ledger events.
const Topic = "greenestate.ledger.events"

// Deduction is the units taken from one seller by a purchase.
type Deduction struct {
	HolderID string `json:"holder_id"`
	Units    int64  `json:"units"`
}

// LedgerEvent describes one change to an asset ledger.
type LedgerEvent struct {
	ID          uuid.UUID         `json:"id"`
	Type        string            `json:"type"`
	AssetID     string            `json:"asset_id"`
	UserID      string            `json:"user_id,omitempty"`
	PurchaseID  string            `json:"purchase_id,omitempty"`
	Units       int64             `json:"units,omitempty"`
	UnitsFilled int64             `json:"units_filled,omitempty"`
	BuyerTotal  int64             `json:"buyer_total,omitempty"`
	Status      string            `json:"status,omitempty"`
	Deductions  []Deduction       `json:"deductions,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Publisher delivers one event to one destination.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, event interface{}) error
}

// EventPublisher fans ledger events out to every configured publisher.
type EventPublisher struct {
	publishers []Publisher
	topic      string
	log        *zap.Logger
}

// NewEventPublisher creates a fan-out publisher. With no publishers every
// call is a no-op.
func NewEventPublisher(publishers []Publisher, topic string, log *zap.Logger) *EventPublisher {
	if topic == "" {
		topic = Topic
	}
	return &EventPublisher{publishers: publishers, topic: topic, log: log}
}

// Publish sends event to all publishers. It fails only when every
// publisher failed.
func (p *EventPublisher) Publish(ctx context.Context, event *LedgerEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if len(p.publishers) == 0 {
		return nil
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var lastErr error
	successCount := 0
	for i, publisher := range p.publishers {
		if err := publisher.PublishEvent(ctx, p.topic, event); err != nil {
			p.log.Error("failed to publish event",
				zap.Int("publisher_index", i),
				zap.String("event_type", event.Type),
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			lastErr = err
		} else {
			successCount++
		}
	}

	p.log.Debug("published ledger event",
		zap.String("event_type", event.Type),
		zap.String("asset_id", event.AssetID),
		zap.String("purchase_id", event.PurchaseID),
		zap.Int("publishers_success", successCount),
		zap.Int("publishers_total", len(p.publishers)),
	)

	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("all publishers failed, last error: %w", lastErr)
	}
	return nil
}

// KafkaPublisher implements Publisher for Apache Kafka
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher creates a Kafka publisher. The topic is chosen per
// message, so one writer serves every topic.
func NewKafkaPublisher(brokers []string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
		},
		log: log,
	}
}

// PublishEvent publishes an event to Kafka keyed by asset id so events of
// one asset stay ordered within a partition.
func (k *KafkaPublisher) PublishEvent(ctx context.Context, topic string, event interface{}) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := topic
	eventType := topic
	if le, ok := event.(*LedgerEvent); ok {
		key = le.AssetID
		eventType = le.Type
	}

	k.log.Debug("publishing event to kafka",
		zap.String("topic", topic),
		zap.Int("event_size", len(eventData)),
	)

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: eventData,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "timestamp", Value: []byte(time.Now().Format(time.RFC3339))},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

// Close flushes and closes the Kafka writer
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// RedisPublisher implements Publisher for Redis Streams
type RedisPublisher struct {
	client redis.UniversalClient
	maxLen int64
	log    *zap.Logger
}

// NewRedisPublisher creates a Redis stream publisher. maxLen caps each
// stream approximately; zero leaves it unbounded.
func NewRedisPublisher(client redis.UniversalClient, maxLen int64, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, maxLen: maxLen, log: log}
}

// PublishEvent publishes an event to Redis Streams
func (r *RedisPublisher) PublishEvent(ctx context.Context, topic string, event interface{}) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	eventType := topic
	if le, ok := event.(*LedgerEvent); ok {
		eventType = le.Type
	}

	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"event_type": eventType,
			"data":       string(eventData),
			"timestamp":  time.Now().Format(time.RFC3339),
			"source":     "greenestate",
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	id, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		r.log.Error("failed to publish event to redis stream",
			zap.String("stream", topic),
			zap.Error(err))
		return fmt.Errorf("failed to publish to redis stream: %w", err)
	}

	r.log.Debug("successfully published event to redis stream",
		zap.String("stream", topic),
		zap.String("message_id", id))
	return nil
}

// WebhookPublisher implements Publisher for HTTP webhooks
type WebhookPublisher struct {
	webhookURL string
	client     *http.Client
	log        *zap.Logger
}

// NewWebhookPublisher creates a webhook publisher
func NewWebhookPublisher(webhookURL string, timeout time.Duration, log *zap.Logger) *WebhookPublisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookPublisher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		log:        log,
	}
}

// PublishEvent posts the event as JSON to the webhook URL
func (w *WebhookPublisher) PublishEvent(ctx context.Context, topic string, event interface{}) error {
	payloadData, err := json.Marshal(map[string]interface{}{
		"topic":     topic,
		"event":     event,
		"timestamp": time.Now().Format(time.RFC3339),
		"source":    "greenestate",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(payloadData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Topic", topic)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.log.Error("webhook returned error status",
			zap.String("url", w.webhookURL),
			zap.Int("status_code", resp.StatusCode))
		return fmt.Errorf("webhook returned status code: %d", resp.StatusCode)
	}
	return nil
}
