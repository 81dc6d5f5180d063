package suggestions

import (
	"context"
	"errors"
	"time"

	"dreka/internal/domain/venues"
)

// Collection is where clients write venue suggestions and where admins flip
// their status.
const Collection = "venueSuggestions"

var (
	ErrNotFound      = errors.New("venue suggestion not found")
	ErrStatusChanged = errors.New("venue suggestion status changed")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// VenueSuggestion is a user-proposed venue that is not a real venue yet.
type VenueSuggestion struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        venues.VenueType `json:"type"`
	Address     string           `json:"address"`
	Latitude    float64          `json:"latitude"`
	Longitude   float64          `json:"longitude"`
	Description *string          `json:"description,omitempty"`
	SubmittedBy string           `json:"submittedBy"`
	CreatedAt   time.Time        `json:"createdAt"`
	Status      Status           `json:"status"`
}

// Venue builds the venue an approved suggestion turns into. The venue takes
// the suggestion's id, so approving twice cannot create two venues.
func (s *VenueSuggestion) Venue() *venues.Venue {
	return &venues.Venue{
		ID:          s.ID,
		Name:        s.Name,
		Type:        s.Type,
		Address:     s.Address,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		Description: s.Description,
	}
}

type Store interface {
	Create(ctx context.Context, s *VenueSuggestion) error
	GetByID(ctx context.Context, id string) (*VenueSuggestion, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]VenueSuggestion, int, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
