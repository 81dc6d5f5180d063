package fanout

import (
	"context"
	"fmt"
	"time"

	"dreka/internal/domain/ratings"
	"dreka/internal/domain/suggestions"
	"dreka/internal/triggers"
)

const (
	HandlerRatingSubmitted     = "ratingSubmitted"
	HandlerSuggestionSubmitted = "suggestionSubmitted"
	HandlerSuggestionApproved  = "suggestionApproved"
)

// DefaultBindings binds both suggestion handlers to the collection the API
// writes suggestions to.
func DefaultBindings() triggers.Bindings {
	return triggers.Bindings{
		HandlerRatingSubmitted:     {Collection: ratings.Collection, Kind: triggers.KindCreate},
		HandlerSuggestionSubmitted: {Collection: suggestions.Collection, Kind: triggers.KindCreate},
		HandlerSuggestionApproved:  {Collection: suggestions.Collection, Kind: triggers.KindUpdate},
	}
}

// Register binds each handler named in b to the dispatcher.
func (n *Notifier) Register(reg triggers.Registrar, b triggers.Bindings) error {
	for _, name := range b.Names() {
		fn, err := n.handler(name)
		if err != nil {
			return err
		}
		reg.RegisterHandler(b[name], name, n.observed(name, fn))
	}
	return nil
}

func (n *Notifier) handler(name string) (func(context.Context, triggers.Event) Outcome, error) {
	switch name {
	case HandlerRatingSubmitted:
		return n.RatingSubmitted, nil
	case HandlerSuggestionSubmitted:
		return n.SuggestionSubmitted, nil
	case HandlerSuggestionApproved:
		return n.SuggestionApproved, nil
	}
	return nil, fmt.Errorf("no fan-out handler named %q", name)
}

func (n *Notifier) observed(name string, fn func(context.Context, triggers.Event) Outcome) triggers.HandlerFunc {
	return func(ctx context.Context, ev triggers.Event) {
		start := time.Now()
		outcome := fn(ctx, ev)
		n.metrics.ObserveOutcome(name, string(outcome))
		n.logger.Debugw("fan-out finished",
			"handler", name,
			"event", ev.ID,
			"outcome", outcome,
			"took", time.Since(start),
		)
	}
}
