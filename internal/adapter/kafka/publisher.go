package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

const maxPublishRetries = 5

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces joined measurements to the sink topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer    messageWriter
	batchSize int
	newPolicy func() backoff.BackOff
	logger    *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured sink topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSinkTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, cfg.BatchSize, logger)
}

func newPublisher(w messageWriter, batchSize int, logger *slog.Logger) *Publisher {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Publisher{
		writer:    w,
		batchSize: batchSize,
		newPolicy: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxInterval = 5 * time.Second
			return backoff.WithMaxRetries(bo, maxPublishRetries)
		},
		logger: logger,
	}
}

// Publish writes rows in batches of the configured size. Each batch is
// retried with exponential backoff; the first batch that still fails aborts
// the publish.
func (p *Publisher) Publish(ctx context.Context, rows []domain.Measurement) error {
	for start := 0; start < len(rows); start += p.batchSize {
		end := min(start+p.batchSize, len(rows))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(rows[i])
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}

		attempt := 0
		op := func() error {
			attempt++
			err := p.writer.WriteMessages(ctx, msgs...)
			if err != nil && ctx.Err() == nil {
				p.logger.Warn("write batch failed, retrying", "error", err, "attempt", attempt, "batch_size", len(msgs))
			}
			return err
		}
		if err := backoff.Retry(op, backoff.WithContext(p.newPolicy(), ctx)); err != nil {
			return fmt.Errorf("publish batch at offset %d: %w", start, err)
		}
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// messageKey identifies one observation: station|pollutant|timestamp.
func messageKey(m domain.Measurement) string {
	return m.StationID + "|" + m.PollutantType + "|" + m.Timestamp.UTC().Format(time.RFC3339)
}

// serializeToMessage marshals a Measurement into a Kafka message.
func serializeToMessage(m domain.Measurement) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize measurement %d: %w", m.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(messageKey(m)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "pollutant_type", Value: []byte(m.PollutantType)},
			{Key: "station_id", Value: []byte(m.StationID)},
			{Key: "missing", Value: []byte(strconv.FormatBool(!m.Value.Valid))},
		},
	}, nil
}
