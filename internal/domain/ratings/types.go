package ratings

import (
	"context"
	"time"
)

const Collection = "ratings"

// CooldownPeriod is how long a user must wait before rating the same venue
// again.
const CooldownPeriod = 30 * time.Minute

// Rating is immutable once written. Each score is optional.
type Rating struct {
	ID             string    `json:"id"`
	VenueID        string    `json:"venueId"`
	UserID         string    `json:"userId"`
	LineRating     *int      `json:"lineRating,omitempty"`     // 1 no line .. 5 extremely long
	CoverRating    *float64  `json:"coverRating,omitempty"`    // cover charge amount
	BathroomRating *int      `json:"bathroomRating,omitempty"` // 1..5
	Timestamp      time.Time `json:"timestamp"`
}

// HasScore reports whether at least one score is present.
func (r *Rating) HasScore() bool {
	return r.LineRating != nil || r.CoverRating != nil || r.BathroomRating != nil
}

// Averages holds the per-venue mean of each score. A nil field means no
// rating carried that score.
type Averages struct {
	Count    int      `json:"count"`
	Line     *float64 `json:"line"`
	Cover    *float64 `json:"cover"`
	Bathroom *float64 `json:"bathroom"`
}

type Store interface {
	Create(ctx context.Context, r *Rating) error
	ListByVenue(ctx context.Context, venueID string, limit, offset int) ([]Rating, int, error)
	LatestByUser(ctx context.Context, venueID, userID string) (*Rating, error)
	Averages(ctx context.Context, venueID string) (*Averages, error)
}
