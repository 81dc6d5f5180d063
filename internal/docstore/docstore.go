// Package docstore is a schemaless, multi-collection document store kept in
// a single PostgreSQL table with a JSONB body. Every insert and every update
// that changes a body is recorded in the document_changes outbox, which the
// trigger sources drain.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrConflict          = errors.New("document already exists")
	ErrPrecondition      = errors.New("document does not match the update precondition")
	QueryTimeoutDuration = time.Second * 5
)

// ChangesChannel is the LISTEN/NOTIFY channel the store trigger publishes on.
const ChangesChannel = "document_changes"

// Snapshot is a document as read at one point in time.
type Snapshot struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Decode unmarshals the document body into v. Fields missing from the body
// keep their zero value. A nil or empty snapshot leaves v untouched.
func (s *Snapshot) Decode(v any) error {
	if s == nil || len(s.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(s.Data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", s.Collection, s.ID, err)
	}
	return nil
}

// Page selects a window of a query result in insertion order. A zero Limit
// returns everything from Offset on.
type Page struct {
	Limit       int
	Offset      int
	NewestFirst bool
}

// Averages holds the number of matching documents and, per requested field,
// the mean over the documents where that field is a number. A field no
// document carries has a nil mean.
type Averages struct {
	Count int
	Means map[string]*float64
}

// ModifyFunc receives the locked current document and returns the top-level
// fields to merge into it. Returning no fields leaves the document as is;
// returning an error aborts without writing.
type ModifyFunc func(current *Snapshot) (map[string]any, error)

type Store interface {
	Get(ctx context.Context, collection, id string) (*Snapshot, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Snapshot, error)
	// QueryPage returns one page of matches and the total number of matches.
	QueryPage(ctx context.Context, collection string, page Page, filters ...Filter) ([]Snapshot, int, error)
	Average(ctx context.Context, collection string, fields []string, filters ...Filter) (Averages, error)
	Create(ctx context.Context, collection, id string, data any) (*Snapshot, error)
	// Update merges fields into the document. With where filters the update
	// only applies when the current body matches them all, otherwise it
	// fails with ErrPrecondition.
	Update(ctx context.Context, collection, id string, fields map[string]any, where ...Filter) (*Snapshot, error)
	Modify(ctx context.Context, collection, id string, fn ModifyFunc) (*Snapshot, error)
	Append(ctx context.Context, collection, id, field string, value any) (*Snapshot, error)
	Ping(ctx context.Context) error
}
