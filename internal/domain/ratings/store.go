package ratings

import (
	"context"
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

func (r *Repository) Create(ctx context.Context, rating *Rating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	if rating.Timestamp.IsZero() {
		rating.Timestamp = time.Now().UTC()
	}
	if _, err := r.docs.Create(ctx, Collection, rating.ID, rating); err != nil {
		return fmt.Errorf("create rating for venue %s: %w", rating.VenueID, err)
	}
	return nil
}

// ListByVenue returns one page of the venue's ratings, newest first, and the
// venue's total rating count.
func (r *Repository) ListByVenue(ctx context.Context, venueID string, limit, offset int) ([]Rating, int, error) {
	page := docstore.Page{Limit: limit, Offset: offset, NewestFirst: true}
	return r.page(ctx, page, docstore.Equal("venueId", venueID))
}

// LatestByUser returns the user's most recent rating of the venue, or nil
// when they have never rated it.
func (r *Repository) LatestByUser(ctx context.Context, venueID, userID string) (*Rating, error) {
	page := docstore.Page{Limit: 1, NewestFirst: true}
	list, _, err := r.page(ctx, page, docstore.Equal("venueId", venueID), docstore.Equal("userId", userID))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

var scoreFields = []string{"lineRating", "coverRating", "bathroomRating"}

// Averages computes each score's mean in the database, over the ratings that
// carry that score.
func (r *Repository) Averages(ctx context.Context, venueID string) (*Averages, error) {
	avg, err := r.docs.Average(ctx, Collection, scoreFields, docstore.Equal("venueId", venueID))
	if err != nil {
		return nil, fmt.Errorf("average ratings of venue %s: %w", venueID, err)
	}
	return &Averages{
		Count:    avg.Count,
		Line:     avg.Means["lineRating"],
		Cover:    avg.Means["coverRating"],
		Bathroom: avg.Means["bathroomRating"],
	}, nil
}

func (r *Repository) page(ctx context.Context, page docstore.Page, filters ...docstore.Filter) ([]Rating, int, error) {
	snaps, total, err := r.docs.QueryPage(ctx, Collection, page, filters...)
	if err != nil {
		return nil, 0, err
	}

	out := make([]Rating, 0, len(snaps))
	for i := range snaps {
		var rating Rating
		_ = snaps[i].Decode(&rating)
		rating.ID = snaps[i].ID
		out = append(out, rating)
	}
	return out, total, nil
}

// HasRecent reports whether latest falls inside the cooldown window ending
// at now.
func HasRecent(latest *Rating, now time.Time) bool {
	if latest == nil {
		return false
	}
	return now.Sub(latest.Timestamp) < CooldownPeriod
}
