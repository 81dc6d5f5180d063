package venues

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"dreka/internal/docstore"

	"github.com/google/uuid"
)

type Repository struct {
	docs docstore.Store
}

func NewRepository(docs docstore.Store) Store {
	return &Repository{docs: docs}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Venue, error) {
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
	return decode(snap), nil
}

// List returns one page of venues in creation order and the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Venue, int, error) {
	snaps, total, err := r.docs.QueryPage(ctx, Collection, docstore.Page{Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, err
	}
	out := make([]Venue, 0, len(snaps))
	for i := range snaps {
		out = append(out, *decode(&snaps[i]))
	}
	return out, total, nil
}

// Create stores v and sets v.ID to the assigned document id.
func (r *Repository) Create(ctx context.Context, v *Venue) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Menu == nil {
		v.Menu = []MenuItem{}
	}
	if v.MenuRequests == nil {
		v.MenuRequests = []MenuItemRequest{}
	}

	snap, err := r.docs.Create(ctx, Collection, v.ID, v)
	if err != nil {
		if errors.Is(err, docstore.ErrConflict) {
			return ErrExists
		}
		return fmt.Errorf("create venue %q: %w", v.Name, err)
	}
	v.ID = snap.ID
	return nil
}

func (r *Repository) AddMenuRequest(ctx context.Context, venueID string, req *MenuItemRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if _, err := r.docs.Append(ctx, Collection, venueID, "menuRequests", req); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("add menu request to venue %s: %w", venueID, err)
	}
	return nil
}

// UpdateMenuItem replaces the menu item with item.ID.
func (r *Repository) UpdateMenuItem(ctx context.Context, venueID string, item MenuItem) error {
	return r.modify(ctx, venueID, func(v *Venue) (map[string]any, error) {
		i := slices.IndexFunc(v.Menu, func(m MenuItem) bool { return m.ID == item.ID })
		if i < 0 {
			return nil, ErrMenuItemNotFound
		}
		v.Menu[i] = item
		return map[string]any{"menu": v.Menu}, nil
	})
}

func (r *Repository) DeleteMenuItem(ctx context.Context, venueID, itemID string) error {
	return r.modify(ctx, venueID, func(v *Venue) (map[string]any, error) {
		i := slices.IndexFunc(v.Menu, func(m MenuItem) bool { return m.ID == itemID })
		if i < 0 {
			return nil, ErrMenuItemNotFound
		}
		return map[string]any{"menu": slices.Delete(v.Menu, i, i+1)}, nil
	})
}

// ResolveMenuRequest removes a pending menu request. An approved request
// joins the menu under the request's id; a rejected one is dropped. The
// returned item is nil on rejection.
func (r *Repository) ResolveMenuRequest(ctx context.Context, venueID, requestID string, approve bool) (*MenuItem, error) {
	var added *MenuItem
	err := r.modify(ctx, venueID, func(v *Venue) (map[string]any, error) {
		i := slices.IndexFunc(v.MenuRequests, func(m MenuItemRequest) bool { return m.ID == requestID })
		if i < 0 {
			return nil, ErrMenuRequestNotFound
		}
		req := v.MenuRequests[i]
		fields := map[string]any{"menuRequests": slices.Delete(v.MenuRequests, i, i+1)}
		if approve {
			added = &MenuItem{ID: req.ID, Name: req.Name, Type: req.Type, Price: req.Price}
			fields["menu"] = append(v.Menu, *added)
		}
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// modify runs fn on the venue under its row lock and writes back the fields
// fn returns.
func (r *Repository) modify(ctx context.Context, venueID string, fn func(v *Venue) (map[string]any, error)) error {
	if venueID == "" {
		return ErrNotFound
	}
	_, err := r.docs.Modify(ctx, Collection, venueID, func(snap *docstore.Snapshot) (map[string]any, error) {
		return fn(decode(snap))
	})
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		if errors.Is(err, ErrMenuItemNotFound) || errors.Is(err, ErrMenuRequestNotFound) {
			return err
		}
		return fmt.Errorf("modify venue %s: %w", venueID, err)
	}
	return nil
}

// decode is lenient: a body with a malformed field still yields the fields
// that did decode.
func decode(snap *docstore.Snapshot) *Venue {
	var v Venue
	_ = snap.Decode(&v)
	v.ID = snap.ID
	if v.Menu == nil {
		v.Menu = []MenuItem{}
	}
	if v.MenuRequests == nil {
		v.MenuRequests = []MenuItemRequest{}
	}
	return &v
}
