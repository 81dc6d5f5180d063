// Package fanout turns document changes into push notifications. Each
// handler resolves its audience from the store, sends at most one gateway
// call and returns. Failures are logged and absorbed: nothing is reported
// back to the change source, so a failed send is never retried.
package fanout

import (
	"context"

	"dreka/internal/domain/users"
	"dreka/internal/domain/venues"
	"dreka/internal/metrics"
	"dreka/internal/notifications"

	"go.uber.org/zap"
)

// Outcome is how a handler invocation ended.
type Outcome string

const (
	OutcomeSent         Outcome = "sent"
	OutcomeVenueMissing Outcome = "venue_missing"
	OutcomeUserMissing  Outcome = "user_missing"
	OutcomeNoAudience   Outcome = "no_audience"
	OutcomeNoToken      Outcome = "no_token"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeLookupFailed Outcome = "lookup_failed"
	OutcomeSendFailed   Outcome = "send_failed"
)

type UserFinder interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
	ListByFavorite(ctx context.Context, venueID string) ([]users.User, error)
	ListAdmins(ctx context.Context) ([]users.User, error)
}

type VenueFinder interface {
	GetByID(ctx context.Context, id string) (*venues.Venue, error)
}

type Notifier struct {
	users   UserFinder
	venues  VenueFinder
	gateway notifications.Gateway
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewNotifier(u UserFinder, v VenueFinder, gw notifications.Gateway, logger *zap.SugaredLogger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		users:   u,
		venues:  v,
		gateway: gw,
		logger:  logger,
		metrics: m,
	}
}

// ResolveTokens maps users to their push tokens, skipping users without one.
// Order is preserved and duplicates are dropped.
func ResolveTokens(list []users.User) []string {
	seen := make(map[string]struct{}, len(list))
	tokens := make([]string, 0, len(list))
	for i := range list {
		if !list[i].HasToken() {
			continue
		}
		t := list[i].FCMToken
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	return tokens
}
