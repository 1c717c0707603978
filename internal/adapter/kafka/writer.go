package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/config"
	"github.com/couchcryptid/fire-detection-service/internal/job"
	kafkago "github.com/segmentio/kafka-go"
)

// RequestWriter produces detection requests to the request topic.
// It implements job.Enqueuer.
type RequestWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewRequestWriter creates a Kafka producer for the configured request topic.
func NewRequestWriter(cfg *config.Config, logger *slog.Logger) *RequestWriter {
	return &RequestWriter{writer: newWriter(cfg.KafkaBrokers, cfg.KafkaRequestTopic), logger: logger}
}

// Enqueue publishes req keyed by its request ID.
func (w *RequestWriter) Enqueue(ctx context.Context, req job.Request) error {
	msg, err := serializeRequest(req)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write request %s: %w", req.ID, err)
	}
	w.logger.Debug("request enqueued", "request_id", req.ID, "topic", w.writer.Topic)
	return nil
}

func (w *RequestWriter) Close() error {
	return w.writer.Close()
}

// ResultWriter produces finished jobs to the result topic.
// It implements pipeline.ResultPublisher.
type ResultWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewResultWriter creates a Kafka producer for the configured result topic.
func NewResultWriter(cfg *config.Config, logger *slog.Logger) *ResultWriter {
	return &ResultWriter{writer: newWriter(cfg.KafkaBrokers, cfg.KafkaResultTopic), logger: logger}
}

// PublishResult publishes the terminal state of j.
func (w *ResultWriter) PublishResult(ctx context.Context, j job.Job) error {
	msg, err := serializeJob(j)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write result %s: %w", j.ID, err)
	}
	return nil
}

func (w *ResultWriter) Close() error {
	return w.writer.Close()
}

func newWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
}

// serializeRequest marshals a Request into a Kafka message.
func serializeRequest(req job.Request) (kafkago.Message, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize request: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(req.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "satellite", Value: []byte(req.Params.Satellite)},
			{Key: "submitted_at", Value: []byte(req.SubmittedAt.Format(time.RFC3339))},
		},
	}, nil
}

// serializeJob marshals a finished Job into a Kafka message.
func serializeJob(j job.Job) (kafkago.Message, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize job: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(j.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "status", Value: []byte(j.Status)},
			{Key: "updated_at", Value: []byte(j.UpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}
