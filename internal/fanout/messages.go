package fanout

import "dreka/internal/notifications"

const (
	TypeVenueRating        = "venue_rating"
	TypeVenueSuggestion    = "venue_suggestion"
	TypeSuggestionApproved = "suggestion_approved"
)

func ratingMessage(venueID, venueName string) notifications.Message {
	return notifications.Message{
		Title: "New Rating at " + venueName,
		Body:  "Someone just rated " + venueName,
		Data: map[string]string{
			"type":     TypeVenueRating,
			"venue_id": venueID,
		},
	}
}

func suggestionSubmittedMessage(suggestionID string) notifications.Message {
	return notifications.Message{
		Title: "New Venue Suggestion",
		Body:  "A new venue suggestion has been submitted",
		Data: map[string]string{
			"type":          TypeVenueSuggestion,
			"suggestion_id": suggestionID,
		},
	}
}

func suggestionApprovedMessage(venueName string) notifications.Message {
	return notifications.Message{
		Title: "Venue Suggestion Approved!",
		Body:  "Your suggestion for " + venueName + " has been approved and added to the app.",
		Data: map[string]string{
			"type":       TypeSuggestionApproved,
			"venue_name": venueName,
		},
	}
}
