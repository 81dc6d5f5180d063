package users

import (
	"context"
	"errors"
	"slices"
	"time"
)

const Collection = "users"

var (
	ErrNotFound = errors.New("user not found")
)

// User is keyed by the identity provider's subject id.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	IsAdmin          bool      `json:"isAdmin"`
	CreatedAt        time.Time `json:"createdAt"`
	FavoriteVenueIDs []string  `json:"favoriteVenueIDs"`
	FCMToken         string    `json:"fcmToken,omitempty"`
}

// HasToken reports whether the user registered a push delivery token.
func (u *User) HasToken() bool {
	return u != nil && u.FCMToken != ""
}

func (u *User) IsFavorite(venueID string) bool {
	return u != nil && slices.Contains(u.FavoriteVenueIDs, venueID)
}

type Store interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetOrCreate(ctx context.Context, id, email, name string) (*User, error)
	ListByFavorite(ctx context.Context, venueID string) ([]User, error)
	ListAdmins(ctx context.Context) ([]User, error)
	SetPushToken(ctx context.Context, id, token string) error
	SetFavorites(ctx context.Context, id string, venueIDs []string) error
	UpdateProfile(ctx context.Context, id string, name, email *string) (*User, error)
}
