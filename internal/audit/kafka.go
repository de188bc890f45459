package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes entries as JSON, keyed by record id so every entry of
// a record lands on the same partition.
type KafkaSink struct {
	writer MessageWriter
}

// NewKafkaSink creates a sink over writer.
func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

// NewKafkaWriter creates a synchronous writer for a comma-separated broker
// list.
func NewKafkaWriter(brokers, topic string) *kafka.Writer {
	addrs := strings.Split(brokers, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func (s *KafkaSink) Record(ctx context.Context, e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.RecordID),
		Value: value,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(e.Outcome)},
			{Key: "run_id", Value: []byte(e.RunID)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish audit entry %s: %w", e.RecordID, err)
	}
	return nil
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
