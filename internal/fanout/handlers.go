package fanout

import (
	"context"
	"errors"

	"dreka/internal/docstore"
	"dreka/internal/domain/suggestions"
	"dreka/internal/domain/users"
	"dreka/internal/domain/venues"
	"dreka/internal/topics"
	"dreka/internal/triggers"
)

// Only the fields the handlers read. Absent or mistyped fields stay empty.
type ratingPayload struct {
	VenueID string `json:"venueId"`
}

type suggestionPayload struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	SubmittedBy string             `json:"submittedBy"`
	Status      suggestions.Status `json:"status"`
}

// RatingSubmitted notifies the followers of the rated venue through the
// venue topic.
func (n *Notifier) RatingSubmitted(ctx context.Context, ev triggers.Event) Outcome {
	var rating ratingPayload
	n.decode(ev, ev.After, &rating)
	log := n.logger.With("handler", HandlerRatingSubmitted, "rating", ev.DocumentID, "venue", rating.VenueID)

	venue, err := n.venues.GetByID(ctx, rating.VenueID)
	if err != nil {
		if errors.Is(err, venues.ErrNotFound) {
			log.Infow("venue not found")
			return OutcomeVenueMissing
		}
		log.Errorw("venue lookup failed", "error", err)
		return OutcomeLookupFailed
	}

	followers, err := n.users.ListByFavorite(ctx, rating.VenueID)
	if err != nil {
		log.Errorw("follower lookup failed", "error", err)
		return OutcomeLookupFailed
	}
	if len(followers) == 0 {
		log.Infow("no users have this venue as favorite")
		return OutcomeNoAudience
	}

	tokens := ResolveTokens(followers)
	if len(tokens) == 0 {
		log.Infow("no follower has a push token", "followers", len(followers))
		return OutcomeNoToken
	}

	topic := topics.ForVenue(rating.VenueID)
	receipt, err := n.gateway.SendToTopic(ctx, topic, ratingMessage(rating.VenueID, venue.Name))
	if err != nil {
		log.Errorw("error sending rating notification", "topic", topic, "error", err)
		return OutcomeSendFailed
	}
	log.Infow("rating notification sent", "topic", topic, "tokens", len(tokens), "delivered", receipt.SuccessCount, "failed", receipt.FailureCount)
	return OutcomeSent
}

// SuggestionSubmitted tells every admin with a push token about a new venue
// suggestion, in one multicast.
func (n *Notifier) SuggestionSubmitted(ctx context.Context, ev triggers.Event) Outcome {
	var s suggestionPayload
	n.decode(ev, ev.After, &s)
	id := ev.DocumentID
	if id == "" {
		id = s.ID
	}
	log := n.logger.With("handler", HandlerSuggestionSubmitted, "suggestion", id)

	admins, err := n.users.ListAdmins(ctx)
	if err != nil {
		log.Errorw("admin lookup failed", "error", err)
		return OutcomeLookupFailed
	}
	if len(admins) == 0 {
		log.Infow("no admin users found")
		return OutcomeNoAudience
	}

	tokens := ResolveTokens(admins)
	if len(tokens) == 0 {
		log.Infow("no admin has a push token", "admins", len(admins))
		return OutcomeNoToken
	}

	batch, err := n.gateway.SendMulticast(ctx, tokens, suggestionSubmittedMessage(id))
	if err != nil {
		log.Errorw("error sending suggestion notification", "tokens", len(tokens), "error", err)
		return OutcomeSendFailed
	}
	if batch != nil && batch.FailureCount > 0 {
		log.Warnw("some admin notifications failed",
			"success", batch.SuccessCount,
			"failure", batch.FailureCount,
		)
	}
	log.Infow("suggestion notification sent", "tokens", len(tokens))
	return OutcomeSent
}

// SuggestionApproved tells the submitter their suggestion went live. Only
// the pending to approved transition counts.
func (n *Notifier) SuggestionApproved(ctx context.Context, ev triggers.Event) Outcome {
	var before, after suggestionPayload
	n.decode(ev, ev.Before, &before)
	n.decode(ev, ev.After, &after)

	if before.Status != suggestions.StatusPending || after.Status != suggestions.StatusApproved {
		return OutcomeIgnored
	}
	log := n.logger.With("handler", HandlerSuggestionApproved, "suggestion", ev.DocumentID, "user", after.SubmittedBy)

	user, err := n.users.GetByID(ctx, after.SubmittedBy)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			log.Infow("user not found")
			return OutcomeUserMissing
		}
		log.Errorw("user lookup failed", "error", err)
		return OutcomeLookupFailed
	}
	if !user.HasToken() {
		return OutcomeNoToken
	}

	receipt, err := n.gateway.SendToToken(ctx, user.FCMToken, suggestionApprovedMessage(after.Name))
	if err != nil {
		log.Errorw("error sending approval notification", "error", err)
		return OutcomeSendFailed
	}
	log.Infow("approval notification sent", "message", receipt.MessageID)
	return OutcomeSent
}

func (n *Notifier) decode(ev triggers.Event, snap *docstore.Snapshot, v any) {
	if err := snap.Decode(v); err != nil {
		n.logger.Warnw("partially malformed document", "event", ev.ID, "collection", ev.Collection, "error", err)
	}
}
