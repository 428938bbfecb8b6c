package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaRelay writes events to a topic keyed by ticket id, so one ticket's
// events land on one partition in order.
type KafkaRelay struct {
	writer *kafka.Writer
}

// NewKafkaRelay returns nil when brokers or topic are empty.
func NewKafkaRelay(brokers []string, topic string) *KafkaRelay {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaRelay{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Handle writes one message per event.
func (k *KafkaRelay) Handle(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka relay: marshal: %w", err)
	}
	key := event.TicketID
	if key == "" {
		key = event.UserID
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.Timestamp,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka relay: write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaRelay) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// ParseBrokers splits "host1:9092,host2:9092" into a slice.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
