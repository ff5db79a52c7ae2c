// Package events publishes payment and wallet lifecycle events to Kafka so
// that downstream consumers (notifications, analytics) can react without
// polling the database. Publishing is best effort and happens after the
// database transaction that produced the event has committed.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/pix-panel/internal/config"
)

// Event types.
const (
	PaymentCreated      = "payment.created"
	PaymentStatus       = "payment.status"
	PaymentsExpired     = "payments.expired"
	PhotoPurchased      = "photo.purchased"
	WithdrawalRequested = "withdrawal.requested"
	WithdrawalStatus    = "withdrawal.status"
	WalletAdjusted      = "wallet.adjusted"
)

// Event is the message body written to the broker.
type Event struct {
	Type        string    `json:"type"`
	Key         string    `json:"key"`
	UserID      string    `json:"user_id,omitempty"`
	PaymentID   string    `json:"payment_id,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	Status      string    `json:"status,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Count       int64     `json:"count,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// KafkaPublisher writes events with a synchronous sarama producer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	prefix   string
}

// NewSaramaConfig returns the producer settings used by the panel.
func NewSaramaConfig() *sarama.Config {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Idempotent = false
	sc.ClientID = "pix-panel"
	return sc
}

// NewKafkaPublisher connects to cfg.Brokers.
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	p, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig())
	if err != nil {
		return nil, err
	}
	return NewKafkaPublisherWithProducer(p, cfg.TopicPrefix), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(p sarama.SyncProducer, prefix string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, prefix: prefix}
}

// Topic returns the topic an event type is written to.
func (k *KafkaPublisher) Topic(eventType string) string {
	if k.prefix == "" {
		return eventType
	}
	return k.prefix + "." + eventType
}

// Publish sends ev keyed by ev.Key so events for one entity stay ordered.
func (k *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: k.Topic(ev.Type),
		Key:   sarama.StringEncoder(ev.Key),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic).Msg("event publish failed")
		return err
	}
	log.Debug().Str("topic", msg.Topic).Int32("partition", partition).Int64("offset", offset).Msg("event published")
	return nil
}

// Close flushes and closes the producer.
func (k *KafkaPublisher) Close() error { return k.producer.Close() }

// New returns a Kafka publisher when brokers are configured, else Nop.
func New(cfg config.KafkaConfig) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return Nop{}, nil
	}
	return NewKafkaPublisher(cfg)
}
