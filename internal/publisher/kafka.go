// Package publisher emits checkout events to Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"

	"github.com/fjod/storefront/internal/domain"
)

const (
	DefaultTopic = "checkout-sessions"

	EventTypeCheckoutSessionCreated = "CheckoutSessionCreated"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

// PublishCheckoutSessionCreated writes the event keyed by session id so all
// events of one session land on the same partition.
func (p *KafkaPublisher) PublishCheckoutSessionCreated(ctx context.Context, event domain.CheckoutSessionCreated) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal checkout event")
	}

	msg := kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCheckoutSessionCreated)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "write checkout event")
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
