package triggers

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var changeColumns = []string{"seq", "collection", "document_id", "op", "before_data", "after_data", "created_at"}

const (
	selectChanges = "FOR UPDATE SKIP LOCKED"
	markChanges   = "UPDATE document_changes SET dispatched_at = NOW() WHERE seq = ANY($1)"
)

func newMockSource(t *testing.T, batchSize int) (*PostgresSource, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresSource{
		db:           mock,
		logger:       zap.NewNop().Sugar(),
		pollInterval: time.Second,
		batchSize:    batchSize,
	}, mock
}

func changeRows(seqs ...int64) *pgxmock.Rows {
	rows := pgxmock.NewRows(changeColumns)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, seq := range seqs {
		rows.AddRow(seq, "ratings", "r1", "create", nil, []byte(`{"venueId":"v1"}`), at)
	}
	return rows
}

// recorder collects delivered event ids and fails on the ids in failOn.
type recorder struct {
	delivered []string
	failOn    map[string]bool
}

func (r *recorder) deliver(_ context.Context, ev Event) error {
	if r.failOn[ev.ID] {
		return errors.New("handler unavailable")
	}
	r.delivered = append(r.delivered, ev.ID)
	return nil
}

func TestPostgresSource_DrainBatch(t *testing.T) {
	t.Run("marks every delivered change", func(t *testing.T) {
		src, mock := newMockSource(t, 10)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectChanges)).WithArgs(10).WillReturnRows(changeRows(1, 2))
		mock.ExpectExec(regexp.QuoteMeta(markChanges)).
			WithArgs([]int64{1, 2}).
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))
		mock.ExpectCommit()

		rec := &recorder{}
		n, err := src.drainBatch(context.Background(), rec.deliver)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"1", "2"}, rec.delivered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops at the first failed delivery", func(t *testing.T) {
		src, mock := newMockSource(t, 10)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectChanges)).WithArgs(10).WillReturnRows(changeRows(1, 2, 3))
		mock.ExpectExec(regexp.QuoteMeta(markChanges)).
			WithArgs([]int64{1}).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		rec := &recorder{failOn: map[string]bool{"2": true}}
		n, err := src.drainBatch(context.Background(), rec.deliver)
		assert.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []string{"1"}, rec.delivered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("first change failing marks nothing", func(t *testing.T) {
		src, mock := newMockSource(t, 10)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectChanges)).WithArgs(10).WillReturnRows(changeRows(1, 2))
		mock.ExpectCommit()

		rec := &recorder{failOn: map[string]bool{"1": true}}
		n, err := src.drainBatch(context.Background(), rec.deliver)
		assert.Error(t, err)
		assert.Zero(t, n)
		assert.Empty(t, rec.delivered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a rolled back batch is delivered again", func(t *testing.T) {
		src, mock := newMockSource(t, 10)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectChanges)).WithArgs(10).WillReturnRows(changeRows(1, 2))
		mock.ExpectExec(regexp.QuoteMeta(markChanges)).
			WithArgs([]int64{1, 2}).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectChanges)).WithArgs(10).WillReturnRows(changeRows(1, 2))
		mock.ExpectExec(regexp.QuoteMeta(markChanges)).
			WithArgs([]int64{1, 2}).
			WillReturnResult(pgxmock.NewResult("UPDATE", 2))
		mock.ExpectCommit()

		rec := &recorder{}
		_, err := src.drainBatch(context.Background(), rec.deliver)
		assert.Error(t, err)
		n, err := src.drainBatch(context.Background(), rec.deliver)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, []string{"1", "2", "1", "2"}, rec.delivered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty outbox", func(t *testing.T) {
		src, mock := newMockSource(t, 10)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(selectChanges)).WithArgs(10).WillReturnRows(changeRows())
		mock.ExpectRollback()

		n, err := src.drainBatch(context.Background(), (&recorder{}).deliver)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresSource_DrainUntilShortBatch(t *testing.T) {
	src, mock := newMockSource(t, 2)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectChanges)).WithArgs(2).WillReturnRows(changeRows(1, 2))
	mock.ExpectExec(regexp.QuoteMeta(markChanges)).WithArgs([]int64{1, 2}).WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(selectChanges)).WithArgs(2).WillReturnRows(changeRows(3))
	mock.ExpectExec(regexp.QuoteMeta(markChanges)).WithArgs([]int64{3}).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	rec := &recorder{}
	require.NoError(t, src.Drain(context.Background(), rec.deliver))
	assert.Equal(t, []string{"1", "2", "3"}, rec.delivered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSource_PruneDispatched(t *testing.T) {
	src, mock := newMockSource(t, 10)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM document_changes WHERE dispatched_at < NOW() - make_interval(secs => $1)")).
		WithArgs(float64(86400)).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := src.PruneDispatched(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
