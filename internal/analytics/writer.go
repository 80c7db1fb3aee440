// Package analytics publishes search activity to Kafka for downstream
// consumers. Publishing is best effort and never blocks a search response.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// SearchEvent describes one nearby-shop search and its outcome.
type SearchEvent struct {
	Query      string    `json:"query,omitempty"`
	Longitude  float64   `json:"longitude"`
	Latitude   float64   `json:"latitude"`
	Radius     int       `json:"radius"`
	ShopCount  int       `json:"shopCount"`
	Degraded   bool      `json:"degraded"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Writer produces search events to a Kafka topic.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the analytics topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and sends one search event. Failures are logged and
// swallowed so that analytics outages never surface to callers.
func (w *Writer) Publish(ctx context.Context, event SearchEvent) {
	msg, err := serializeToMessage(event)
	if err != nil {
		w.logger.Warn("serialize search event", "error", err)
		return
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		w.logger.Warn("publish search event", "error", err)
	}
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a SearchEvent into a Kafka message keyed by
// coordinates so events for the same area land on the same partition.
func serializeToMessage(event SearchEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize search event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(fmt.Sprintf("%.4f,%.4f", event.Longitude, event.Latitude)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
