package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/fire-detection-service/internal/config"
	"github.com/couchcryptid/fire-detection-service/internal/job"
	kafkago "github.com/segmentio/kafka-go"
)

// batchWait bounds how long ExtractBatch waits for messages after the first.
const batchWait = 100 * time.Millisecond

// Reader consumes detection requests from the request topic.
// It implements pipeline.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured request topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaRequestTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch blocks for the first message, then collects up to batchSize
// messages that arrive within batchWait. Messages that do not decode are
// committed and dropped. Each delivery's Ack commits its offset.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]job.Delivery, error) {
	batch := make([]job.Delivery, 0, batchSize)

	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch request: %w", err)
	}
	r.collect(ctx, msg, &batch)

	waitCtx, cancel := context.WithTimeout(ctx, batchWait)
	defer cancel()
	for len(batch) < batchSize {
		msg, err := r.reader.FetchMessage(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				// Batch window elapsed or ctx was cancelled; the caller
				// sees cancellation on its next step.
				break
			}
			return batch, fmt.Errorf("fetch request: %w", err)
		}
		r.collect(ctx, msg, &batch)
	}
	return batch, nil
}

func (r *Reader) collect(ctx context.Context, msg kafkago.Message, batch *[]job.Delivery) {
	req, err := mapMessageToRequest(msg)
	if err != nil {
		r.logger.Warn("dropping undecodable request",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		if cerr := r.reader.CommitMessages(ctx, msg); cerr != nil {
			r.logger.Warn("commit offset failed", "error", cerr, "offset", msg.Offset)
		}
		return
	}
	*batch = append(*batch, job.Delivery{
		Request: req,
		Ack: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	})
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToRequest decodes a request message. The message key is used
// when the payload omits the request ID.
func mapMessageToRequest(msg kafkago.Message) (job.Request, error) {
	var req job.Request
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return job.Request{}, fmt.Errorf("decode request: %w", err)
	}
	if req.ID == "" {
		req.ID = string(msg.Key)
	}
	if req.ID == "" {
		return job.Request{}, errors.New("decode request: missing request_id")
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = msg.Time
	}
	return req, nil
}
