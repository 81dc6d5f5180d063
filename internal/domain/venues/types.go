package venues

import (
	"context"
	"errors"
)

const Collection = "venues"

var (
	ErrNotFound            = errors.New("venue not found")
	ErrExists              = errors.New("venue already exists")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuRequestNotFound = errors.New("menu request not found")
)

type VenueType string

const (
	TypeBar        VenueType = "Bar"
	TypeNightClub  VenueType = "Night Club"
	TypeRestaurant VenueType = "Restaurant"
)

func (t VenueType) Valid() bool {
	switch t {
	case TypeBar, TypeNightClub, TypeRestaurant:
		return true
	}
	return false
}

type MenuItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Type  string  `json:"type"` // food or drink
	Price float64 `json:"price"`
}

// MenuItemRequest is a menu item proposed by a user, pending admin review.
type MenuItemRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Price       float64 `json:"price"`
	SubmittedBy string  `json:"submittedBy"`
}

type Venue struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         VenueType         `json:"type"`
	Address      string            `json:"address"`
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	Description  *string           `json:"description,omitempty"`
	YelpRating   *float64          `json:"yelpRating,omitempty"`
	Menu         []MenuItem        `json:"menu"`
	MenuRequests []MenuItemRequest `json:"menuRequests"`
}

type Store interface {
	GetByID(ctx context.Context, id string) (*Venue, error)
	List(ctx context.Context, limit, offset int) ([]Venue, int, error)
	Create(ctx context.Context, v *Venue) error
	AddMenuRequest(ctx context.Context, venueID string, req *MenuItemRequest) error
	ResolveMenuRequest(ctx context.Context, venueID, requestID string, approve bool) (*MenuItem, error)
	UpdateMenuItem(ctx context.Context, venueID string, item MenuItem) error
	DeleteMenuItem(ctx context.Context, venueID, itemID string) error
}
