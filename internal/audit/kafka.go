package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// kafkaPayload is the JSON structure published to the audit topic. Field
// names are part of the consumer contract; change them with the consumers.
type kafkaPayload struct {
	ID        string `json:"ID"`
	Timestamp string `json:"Timestamp"`
	Account   string `json:"Account,omitempty"`
	Action    string `json:"Action"`
	Subject   string `json:"Subject,omitempty"`
	Outcome   string `json:"Outcome,omitempty"`
	Detail    string `json:"Detail,omitempty"`
	RequestID string `json:"RequestID,omitempty"`
}

// KafkaSink publishes audit events to a Kafka topic, keyed by account so one
// account's events stay ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka audit sink: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(kafkaPayload{
		ID:        event.ID.String(),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Account:   event.Account.String(),
		Action:    event.Action,
		Subject:   event.Subject,
		Outcome:   event.Outcome,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Account.String()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
