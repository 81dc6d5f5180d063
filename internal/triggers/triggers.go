// Package triggers turns document changes into events and invokes the
// handlers registered for them. Delivery is at-least-once: a handler may see
// the same change twice.
package triggers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"dreka/internal/docstore"
)

type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
)

func (k Kind) Valid() bool {
	return k == KindCreate || k == KindUpdate
}

// EventSpec selects the changes a handler is interested in.
type EventSpec struct {
	Collection string `yaml:"collection" json:"collection"`
	Kind       Kind   `yaml:"kind" json:"kind"`
}

func (s EventSpec) String() string {
	return s.Collection + ":" + string(s.Kind)
}

// Event is one document change. Before is nil for creates.
type Event struct {
	ID         string
	Collection string
	Kind       Kind
	DocumentID string
	Before     *docstore.Snapshot
	After      *docstore.Snapshot
	OccurredAt time.Time
}

func (e Event) Spec() EventSpec {
	return EventSpec{Collection: e.Collection, Kind: e.Kind}
}

// HandlerFunc reacts to one event. It reports nothing back: failures are the
// handler's to log.
type HandlerFunc func(ctx context.Context, ev Event)

type Registrar interface {
	RegisterHandler(spec EventSpec, name string, fn HandlerFunc)
}

// Deliver hands an event to its consumer. A source never acknowledges a
// change whose delivery failed: the outbox leaves it for the next drain and
// the Kafka source retries it before moving on.
type Deliver func(ctx context.Context, ev Event) error

// Source produces events until ctx is done.
type Source interface {
	Run(ctx context.Context, deliver Deliver) error
}

// Change is the wire form of an event, as stored in the outbox and as
// carried on the Kafka topic.
type Change struct {
	Seq        int64           `json:"seq"`
	Collection string          `json:"collection"`
	DocumentID string          `json:"document_id"`
	Op         Kind            `json:"op"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (c Change) Event() Event {
	ev := Event{
		ID:         strconv.FormatInt(c.Seq, 10),
		Collection: c.Collection,
		Kind:       c.Op,
		DocumentID: c.DocumentID,
		OccurredAt: c.CreatedAt,
		After:      c.snapshot(c.After),
	}
	if c.Op == KindUpdate {
		ev.Before = c.snapshot(c.Before)
	}
	return ev
}

func (c Change) snapshot(data json.RawMessage) *docstore.Snapshot {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return &docstore.Snapshot{
		ID:         c.DocumentID,
		Collection: c.Collection,
		Data:       data,
		UpdatedAt:  c.CreatedAt,
	}
}

// ChangeFromEvent is the inverse of Change.Event.
func ChangeFromEvent(ev Event) (Change, error) {
	seq, err := strconv.ParseInt(ev.ID, 10, 64)
	if err != nil {
		return Change{}, fmt.Errorf("event id %q is not a change sequence: %w", ev.ID, err)
	}
	c := Change{
		Seq:        seq,
		Collection: ev.Collection,
		DocumentID: ev.DocumentID,
		Op:         ev.Kind,
		CreatedAt:  ev.OccurredAt,
	}
	if ev.Before != nil {
		c.Before = ev.Before.Data
	}
	if ev.After != nil {
		c.After = ev.After.Data
	}
	return c, nil
}
