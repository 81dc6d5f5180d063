package docstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// DB is the part of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

var _ DB = (*pgxpool.Pool)(nil)

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table, the change outbox and the row
// trigger that feeds it. It is safe to run on every start.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply docstore schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

const selectSnapshot = `
	SELECT id, collection, data, created_at, updated_at
	FROM documents
	WHERE collection = $1 AND id = $2
`

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	snap, err := scanSnapshot(s.db.QueryRow(ctx, selectSnapshot, collection, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return snap, nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error) {
	q, args, err := buildQuery(collection, filters, nil)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()
	return s.list(ctx, collection, q, args)
}

func (s *PostgresStore) QueryPage(ctx context.Context, collection string, page Page, filters ...Filter) ([]Snapshot, int, error) {
	q, args, err := buildQuery(collection, filters, &page)
	if err != nil {
		return nil, 0, err
	}
	countQ, countArgs, err := buildCount(collection, filters)
	if err != nil {
		return nil, 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var total int
	if err := s.db.QueryRow(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", collection, err)
	}
	if total == 0 {
		return []Snapshot{}, 0, nil
	}

	out, err := s.list(ctx, collection, q, args)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *PostgresStore) list(ctx context.Context, collection, q string, args []any) ([]Snapshot, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	out := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Collection, &snap.Data, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows %s: %w", collection, err)
	}
	return out, nil
}

func (s *PostgresStore) Average(ctx context.Context, collection string, fields []string, filters ...Filter) (Averages, error) {
	q, args, err := buildAverage(collection, fields, filters)
	if err != nil {
		return Averages{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var count int64
	means := make([]*float64, len(fields))
	dest := []any{&count}
	for i := range means {
		dest = append(dest, &means[i])
	}
	if err := s.db.QueryRow(ctx, q, args...).Scan(dest...); err != nil {
		return Averages{}, fmt.Errorf("average %s: %w", collection, err)
	}

	out := Averages{Count: int(count), Means: make(map[string]*float64, len(fields))}
	for i, field := range fields {
		out.Means[field] = means[i]
	}
	return out, nil
}

// Create inserts a new document. An empty id gets a store-assigned UUID.
func (s *PostgresStore) Create(ctx context.Context, collection, id string, data any) (*Snapshot, error) {
	if id == "" {
		id = uuid.NewString()
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s document: %w", collection, err)
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	const q = `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING created_at, updated_at
	`

	snap := &Snapshot{ID: id, Collection: collection, Data: body}
	if err := s.db.QueryRow(ctx, q, collection, id, string(body)).Scan(&snap.CreatedAt, &snap.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	return snap, nil
}

// buildUpdate merges $3 into the top level of the body; $1 and $2 are the
// collection and id. Preconditions follow as containment clauses and their
// args are returned.
func buildUpdate(where []Filter) (string, []any, error) {
	clauses, args, err := appendFilters([]string{"collection = $1", "id = $2"}, make([]any, 3), where)
	if err != nil {
		return "", nil, err
	}
	q := fmt.Sprintf(`
		UPDATE documents
		SET data = data || $3::jsonb,
		    updated_at = NOW()
		WHERE %s
		RETURNING id, collection, data, created_at, updated_at
	`, strings.Join(clauses, " AND "))
	return q, args[3:], nil
}

func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any, where ...Filter) (*Snapshot, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s update: %w", collection, err)
	}
	q, conds, err := buildUpdate(where)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	args := append([]any{collection, id, string(body)}, conds...)
	snap, err := scanSnapshot(s.db.QueryRow(ctx, q, args...))
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if len(where) == 0 {
		return nil, ErrNotFound
	}

	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`, collection, id,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrPrecondition
}

// Modify runs fn on the current document while holding its row lock, so
// read-modify-write cycles on the same document do not lose updates.
func (s *PostgresStore) Modify(ctx context.Context, collection, id string, fn ModifyFunc) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin modify %s/%s: %w", collection, id, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	current, err := scanSnapshot(tx.QueryRow(ctx, selectSnapshot+" FOR UPDATE", collection, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock %s/%s: %w", collection, id, err)
	}

	fields, err := fn(current)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit modify %s/%s: %w", collection, id, err)
		}
		return current, nil
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s update: %w", collection, err)
	}
	q, _, _ := buildUpdate(nil)
	updated, err := scanSnapshot(tx.QueryRow(ctx, q, collection, id, string(body)))
	if err != nil {
		return nil, fmt.Errorf("modify %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit modify %s/%s: %w", collection, id, err)
	}
	return updated, nil
}

// Append adds value to the end of the array stored under field, creating
// the array when the field is absent.
func (s *PostgresStore) Append(ctx context.Context, collection, id, field string, value any) (*Snapshot, error) {
	if field == "" {
		return nil, errEmptyField
	}
	body, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s.%s element: %w", collection, field, err)
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	const q = `
		UPDATE documents
		SET data = jsonb_set(
		        data,
		        ARRAY[$3::text],
		        COALESCE(data -> $3::text, '[]'::jsonb) || jsonb_build_array($4::jsonb),
		        true
		    ),
		    updated_at = NOW()
		WHERE collection = $1 AND id = $2
		RETURNING id, collection, data, created_at, updated_at
	`
	snap, err := scanSnapshot(s.db.QueryRow(ctx, q, collection, id, field, string(body)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("append %s/%s.%s: %w", collection, id, field, err)
	}
	return snap, nil
}

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var snap Snapshot
	if err := row.Scan(&snap.ID, &snap.Collection, &snap.Data, &snap.CreatedAt, &snap.UpdatedAt); err != nil {
		return nil, err
	}
	return &snap, nil
}
