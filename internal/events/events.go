// Package events publishes domain events to Kafka for downstream consumers
// (analytics, mail digests). Publication is best effort: a failure is logged
// by the caller and never undoes the write that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sakif/codeshare/internal/model"
)

// TypeNotificationCreated tags a newly stored notification.
const TypeNotificationCreated = "notification.created"

const publishTimeout = 5 * time.Second

// Publisher emits notification events.
type Publisher interface {
	PublishNotification(ctx context.Context, n *model.Notification) error
	Close() error
}

// Envelope is the JSON value of every message on the topic.
type Envelope struct {
	Type       string              `json:"type"`
	OccurredAt time.Time           `json:"occurredAt"`
	Data       *model.Notification `json:"data"`
}

// KafkaPublisher writes to one topic. Messages are keyed by recipient ID so
// one user's notifications stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           10 * time.Second,
			MaxAttempts:            3,
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}
}

func (p *KafkaPublisher) PublishNotification(ctx context.Context, n *model.Notification) error {
	msg, err := notificationMessage(n, p.now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: publishing notification %s: %w", n.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func notificationMessage(n *model.Notification, now time.Time) (kafka.Message, error) {
	value, err := json.Marshal(Envelope{
		Type:       TypeNotificationCreated,
		OccurredAt: now.UTC(),
		Data:       n,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("events: encoding notification %s: %w", n.ID, err)
	}
	return kafka.Message{
		Key:   []byte(n.RecipientID),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TypeNotificationCreated)},
		},
	}, nil
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) PublishNotification(context.Context, *model.Notification) error { return nil }
func (Nop) Close() error                                                   { return nil }
