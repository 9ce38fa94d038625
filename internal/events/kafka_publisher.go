package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/models"
)

const TopicPaymentChanged = "order.payment.changed"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per committed transition, keyed by order
// id so a consumer sees an order's transitions in order.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	if topic == "" {
		topic = TopicPaymentChanged
	}
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(brokers, ",")...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}}
}

func (p *KafkaPublisher) PublishTransition(ctx context.Context, event models.PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode transition event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: payload,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
