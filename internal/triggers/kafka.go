package triggers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

const (
	defaultRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

// messageReader is the part of *kafka.Reader the source uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource consumes changes published by a KafkaRelay. Offsets are
// committed after delivery, so a crash redelivers the in-flight change. A
// failed delivery is retried in place with backoff: committing a later
// offset would acknowledge the failed one too.
type KafkaSource struct {
	reader       messageReader
	logger       *zap.SugaredLogger
	retryBackoff time.Duration
}

func NewKafkaSource(cfg KafkaConfig, logger *zap.SugaredLogger) *KafkaSource {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return &KafkaSource{
		reader:       r,
		logger:       logger.With("component", "kafka-source", "topic", cfg.Topic),
		retryBackoff: defaultRetryBackoff,
	}
}

func (s *KafkaSource) Run(ctx context.Context, deliver Deliver) error {
	defer s.reader.Close()
	s.logger.Infow("kafka change source started")

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Infow("kafka change source stopping", "reason", ctx.Err())
				return nil
			}
			s.logger.Errorw("failed to fetch message", "error", err)
			if !sleepCtx(ctx, s.retryBackoff) {
				return nil
			}
			continue
		}

		var c Change
		if err := json.Unmarshal(msg.Value, &c); err != nil {
			// a change that cannot be decoded would block the partition forever
			s.logger.Errorw("dropping undecodable change",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		} else if !s.deliverWithRetry(ctx, deliver, c.Event(), msg) {
			s.logger.Infow("kafka change source stopping", "reason", ctx.Err())
			return nil
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			s.logger.Errorw("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// deliverWithRetry delivers ev until it succeeds. It reports false when ctx
// ended first, in which case msg must not be committed.
func (s *KafkaSource) deliverWithRetry(ctx context.Context, deliver Deliver, ev Event, msg kafka.Message) bool {
	backoff := s.retryBackoff
	for attempt := 1; ; attempt++ {
		err := deliver(ctx, ev)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		s.logger.Errorw("failed to deliver change, retrying",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"attempt", attempt,
			"in", backoff,
			"error", err,
		)
		if !sleepCtx(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// KafkaRelay forwards outbox changes to a Kafka topic, keyed by document so
// changes to one document keep their order.
type KafkaRelay struct {
	writer *kafka.Writer
}

func NewKafkaRelay(cfg KafkaConfig) *KafkaRelay {
	return &KafkaRelay{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// Deliver publishes ev and returns once the brokers acknowledged it.
func (r *KafkaRelay) Deliver(ctx context.Context, ev Event) error {
	c, err := ChangeFromEvent(ev)
	if err != nil {
		return err
	}
	value, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change %s: %w", ev.ID, err)
	}
	return r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(c.Collection + "/" + c.DocumentID),
		Value: value,
	})
}

func (r *KafkaRelay) Close() error {
	return r.writer.Close()
}
