package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreka/internal/docstore"
)

type Repository struct {
	docs docstore.Store
}

func NewRepository(docs docstore.Store) Store {
	return &Repository{docs: docs}
}

func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
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
	return decode(snap)
}

// GetOrCreate returns the user document for an authenticated subject,
// creating it on first sign-in.
func (r *Repository) GetOrCreate(ctx context.Context, id, email, name string) (*User, error) {
	u, err := r.GetByID(ctx, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if name == "" {
		name = "User"
	}
	u = &User{
		ID:               id,
		Email:            email,
		Name:             name,
		CreatedAt:        time.Now().UTC(),
		FavoriteVenueIDs: []string{},
	}
	if _, err := r.docs.Create(ctx, Collection, id, u); err != nil {
		// another request created it first
		if errors.Is(err, docstore.ErrConflict) {
			return r.GetByID(ctx, id)
		}
		return nil, fmt.Errorf("create user %s: %w", id, err)
	}
	return u, nil
}

// ListByFavorite returns the users whose favourites include venueID.
func (r *Repository) ListByFavorite(ctx context.Context, venueID string) ([]User, error) {
	snaps, err := r.docs.Query(ctx, Collection, docstore.ArrayContains("favoriteVenueIDs", venueID))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps)
}

func (r *Repository) ListAdmins(ctx context.Context) ([]User, error) {
	snaps, err := r.docs.Query(ctx, Collection, docstore.Equal("isAdmin", true))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps)
}

func (r *Repository) SetPushToken(ctx context.Context, id, token string) error {
	return r.update(ctx, id, map[string]any{"fcmToken": token})
}

func (r *Repository) SetFavorites(ctx context.Context, id string, venueIDs []string) error {
	if venueIDs == nil {
		venueIDs = []string{}
	}
	return r.update(ctx, id, map[string]any{"favoriteVenueIDs": venueIDs})
}

// UpdateProfile changes the name and email fields that are non-nil and
// returns the stored user.
func (r *Repository) UpdateProfile(ctx context.Context, id string, name, email *string) (*User, error) {
	fields := map[string]any{}
	if name != nil {
		fields["name"] = *name
	}
	if email != nil {
		fields["email"] = *email
	}
	if len(fields) == 0 {
		return r.GetByID(ctx, id)
	}

	snap, err := r.docs.Update(ctx, Collection, id, fields)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update profile of user %s: %w", id, err)
	}
	return decode(snap)
}

func (r *Repository) update(ctx context.Context, id string, fields map[string]any) error {
	if _, err := r.docs.Update(ctx, Collection, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func decode(snap *docstore.Snapshot) (*User, error) {
	var u User
	if err := snap.Decode(&u); err != nil {
		return nil, err
	}
	u.ID = snap.ID
	return &u, nil
}

// decodeAll is lenient: a field of the wrong type in one document leaves
// that field at its zero value instead of failing the whole query.
func decodeAll(snaps []docstore.Snapshot) ([]User, error) {
	out := make([]User, 0, len(snaps))
	for i := range snaps {
		var u User
		_ = snaps[i].Decode(&u)
		u.ID = snaps[i].ID
		out = append(out, u)
	}
	return out, nil
}
