package triggers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreka/internal/docstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 5 * time.Second
	defaultBatchSize    = 100
)

// outboxDB is what draining and pruning need; listen holds a dedicated
// connection from pool instead.
type outboxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSource drains the document_changes outbox. It wakes on
// pg_notify and also polls, so a missed notification only delays delivery.
// A change is marked dispatched in the same transaction that locked it, so
// a crash before commit redelivers it.
type PostgresSource struct {
	pool         *pgxpool.Pool
	db           outboxDB
	logger       *zap.SugaredLogger
	pollInterval time.Duration
	batchSize    int
}

func NewPostgresSource(pool *pgxpool.Pool, logger *zap.SugaredLogger, pollInterval time.Duration) *PostgresSource {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &PostgresSource{
		pool:         pool,
		db:           pool,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    defaultBatchSize,
	}
}

func (s *PostgresSource) Run(ctx context.Context, deliver Deliver) error {
	s.logger.Infow("postgres change source started", "channel", docstore.ChangesChannel, "poll", s.pollInterval)
	for {
		err := s.listen(ctx, deliver)
		if ctx.Err() != nil {
			s.logger.Infow("postgres change source stopping", "reason", ctx.Err())
			return nil
		}
		s.logger.Errorw("change listener failed, reconnecting", "error", err, "in", s.pollInterval)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.pollInterval):
		}
	}
}

func (s *PostgresSource) listen(ctx context.Context, deliver Deliver) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+docstore.ChangesChannel); err != nil {
		return fmt.Errorf("listen %s: %w", docstore.ChangesChannel, err)
	}

	for {
		if err := s.Drain(ctx, deliver); err != nil && ctx.Err() == nil {
			s.logger.Errorw("draining change outbox", "error", err)
		}

		waitCtx, cancel := context.WithTimeout(ctx, s.pollInterval)
		_, err := conn.Conn().WaitForNotification(waitCtx)
		cancel()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("wait for notification: %w", err)
		}
	}
}

// Drain delivers undispatched changes in sequence order until the outbox is
// empty or deliver fails.
func (s *PostgresSource) Drain(ctx context.Context, deliver Deliver) error {
	for {
		n, err := s.drainBatch(ctx, deliver)
		if err != nil {
			return err
		}
		if n < s.batchSize {
			return nil
		}
	}
}

func (s *PostgresSource) drainBatch(ctx context.Context, deliver Deliver) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin drain: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const q = `
		SELECT seq, collection, document_id, op, before_data, after_data, created_at
		FROM document_changes
		WHERE dispatched_at IS NULL
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Query(ctx, q, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select changes: %w", err)
	}
	changes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Change, error) {
		var (
			c             Change
			op            string
			before, after []byte
		)
		err := row.Scan(&c.Seq, &c.Collection, &c.DocumentID, &op, &before, &after, &c.CreatedAt)
		c.Op, c.Before, c.After = Kind(op), before, after
		return c, err
	})
	if err != nil {
		return 0, fmt.Errorf("scan changes: %w", err)
	}
	if len(changes) == 0 {
		return 0, nil
	}

	done := make([]int64, 0, len(changes))
	var deliverErr error
	for _, c := range changes {
		if err := deliver(ctx, c.Event()); err != nil {
			deliverErr = fmt.Errorf("deliver change %d: %w", c.Seq, err)
			break
		}
		done = append(done, c.Seq)
	}

	if len(done) > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE document_changes SET dispatched_at = NOW() WHERE seq = ANY($1)`, done,
		); err != nil {
			return 0, fmt.Errorf("mark changes dispatched: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit drain: %w", err)
	}
	if deliverErr != nil {
		return len(done), deliverErr
	}
	return len(changes), nil
}

// PruneDispatched deletes changes dispatched more than olderThan ago.
func (s *PostgresSource) PruneDispatched(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, docstore.QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`DELETE FROM document_changes WHERE dispatched_at < NOW() - make_interval(secs => $1)`,
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune dispatched changes: %w", err)
	}
	return tag.RowsAffected(), nil
}
