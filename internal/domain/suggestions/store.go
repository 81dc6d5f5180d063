package suggestions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreka/internal/docstore"

	"github.com/google/uuid"
)

type Repository struct {
	docs docstore.Store
}

func NewRepository(docs docstore.Store) Store {
	return &Repository{docs: docs}
}

// Create stores a new suggestion in the pending state.
func (r *Repository) Create(ctx context.Context, s *VenueSuggestion) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	s.Status = StatusPending

	if _, err := r.docs.Create(ctx, Collection, s.ID, s); err != nil {
		return fmt.Errorf("create venue suggestion: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*VenueSuggestion, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	snap, err := r.docs.Get(ctx, Collection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var s VenueSuggestion
	if err := snap.Decode(&s); err != nil {
		return nil, err
	}
	s.ID = snap.ID
	return &s, nil
}

// ListByStatus returns one page of the suggestions in the given state,
// oldest first, and how many there are in total.
func (r *Repository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]VenueSuggestion, int, error) {
	page := docstore.Page{Limit: limit, Offset: offset}
	snaps, total, err := r.docs.QueryPage(ctx, Collection, page, docstore.Equal("status", status))
	if err != nil {
		return nil, 0, err
	}

	out := make([]VenueSuggestion, 0, len(snaps))
	for i := range snaps {
		var s VenueSuggestion
		if err := snaps[i].Decode(&s); err != nil {
			continue
		}
		s.ID = snaps[i].ID
		out = append(out, s)
	}
	return out, total, nil
}

// UpdateStatus moves the suggestion from one status to another. It fails
// with ErrStatusChanged when the stored status is no longer from, so two
// admins acting on the same suggestion cannot both win. Moving pending to
// approved is what fires the approval notification.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	_, err := r.docs.Update(ctx, Collection, id, map[string]any{"status": to}, docstore.Equal("status", from))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, docstore.ErrPrecondition):
		return ErrStatusChanged
	default:
		return fmt.Errorf("update suggestion %s status: %w", id, err)
	}
}
