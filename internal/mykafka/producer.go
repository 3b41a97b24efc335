package mykafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Publisher is what handlers depend on; tests swap in a stub so no broker is
// needed to exercise the reset flow.
type Publisher interface {
	PublishEvent(ctx context.Context, key string, event any) error
}

// ResetEmailEvent is the message handed to the mail worker. The confirmation
// URL is assembled on the consumer side from its configured base URL.
type ResetEmailEvent struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	UID   string `json:"uid"`
	Token string `json:"token"`
}

const EventPasswordReset = "password_reset"

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Producer) PublishEvent(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
