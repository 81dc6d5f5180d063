package main

import (
	"errors"
	"fmt"
	"net/http"

	"dreka/internal/domain/suggestions"
	"dreka/internal/domain/venues"
	"dreka/internal/params"

	"github.com/go-chi/chi/v5"
)

type CreateSuggestionPayload struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Type        string  `json:"type" validate:"required,venuetype"`
	Address     string  `json:"address" validate:"required,max=255"`
	Latitude    float64 `json:"latitude" validate:"latitude"`
	Longitude   float64 `json:"longitude" validate:"longitude"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// CreateSuggestion godoc
//
//	@Summary		Suggest a new venue
//	@Description	Stores a pending venue suggestion. Admins are notified.
//	@Tags			Suggestions
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateSuggestionPayload	true	"Proposed venue"
//	@Success		201		{object}	suggestions.VenueSuggestion
//	@Failure		400		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/suggestions [post]
func (app *application) createSuggestionHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("unauthenticated request"))
		return
	}

	var payload CreateSuggestionPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	s := &suggestions.VenueSuggestion{
		Name:        payload.Name,
		Type:        venues.VenueType(payload.Type),
		Address:     payload.Address,
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
		Description: payload.Description,
		SubmittedBy: user.ID,
	}
	if err := app.store.Suggestions.Create(r.Context(), s); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusCreated, s)
}

// ListSuggestions godoc
//
//	@Summary		List venue suggestions
//	@Tags			Admin
//	@Produce		json
//	@Param			status	query		string	false	"pending (default), approved or rejected"
//	@Param			page	query		int		false	"Page number"
//	@Param			limit	query		int		false	"Items per page"
//	@Success		200		{object}	page[suggestions.VenueSuggestion]
//	@Failure		403		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/suggestions [get]
func (app *application) listSuggestionsHandler(w http.ResponseWriter, r *http.Request) {
	status := suggestions.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = suggestions.StatusPending
	}
	switch status {
	case suggestions.StatusPending, suggestions.StatusApproved, suggestions.StatusRejected:
	default:
		app.badRequestResponse(w, r, fmt.Errorf("unknown status %q", status))
		return
	}

	p := params.ParsePagination(r.URL.Query())
	list, total, err := app.store.Suggestions.ListByStatus(r.Context(), status, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, newPage(list, p, total))
}

// ApproveSuggestion godoc
//
//	@Summary		Approve a venue suggestion
//	@Description	Marks the suggestion approved, which notifies the submitter, then creates the venue under the suggestion's id.
//	@Tags			Admin
//	@Produce		json
//	@Param			suggestionID	path		string	true	"Suggestion ID"
//	@Success		200				{object}	venues.Venue
//	@Failure		404				{object}	error
//	@Failure		409				{object}	error	"Suggestion is not pending"
//	@Security		ApiKeyAuth
//	@Router			/admin/suggestions/{suggestionID}/approve [post]
func (app *application) approveSuggestionHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.loadPendingSuggestion(w, r)
	if !ok {
		return
	}
	if !app.transitionSuggestion(w, r, s.ID, suggestions.StatusApproved) {
		return
	}

	venue := s.Venue()
	if err := app.store.Venues.Create(r.Context(), venue); err != nil && !errors.Is(err, venues.ErrExists) {
		// put the suggestion back so the approval can be retried
		if rerr := app.store.Suggestions.UpdateStatus(r.Context(), s.ID, suggestions.StatusApproved, suggestions.StatusPending); rerr != nil {
			app.logger.Errorw("reverting suggestion after failed venue create", "suggestion", s.ID, "error", rerr)
		}
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("venue suggestion approved", "suggestion", s.ID, "venue", venue.ID, "admin", getUserFromContext(r).ID)
	app.jsonResponse(w, http.StatusOK, venue)
}

// RejectSuggestion godoc
//
//	@Summary		Reject a venue suggestion
//	@Description	Marks a pending suggestion rejected. Nobody is notified.
//	@Tags			Admin
//	@Produce		json
//	@Param			suggestionID	path		string	true	"Suggestion ID"
//	@Success		200				{object}	suggestions.VenueSuggestion
//	@Failure		404				{object}	error
//	@Failure		409				{object}	error	"Suggestion is not pending"
//	@Security		ApiKeyAuth
//	@Router			/admin/suggestions/{suggestionID}/reject [post]
func (app *application) rejectSuggestionHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := app.loadPendingSuggestion(w, r)
	if !ok {
		return
	}
	if !app.transitionSuggestion(w, r, s.ID, suggestions.StatusRejected) {
		return
	}
	s.Status = suggestions.StatusRejected
	app.jsonResponse(w, http.StatusOK, s)
}

// transitionSuggestion moves a pending suggestion to status, writing the
// error response when another request resolved it first.
func (app *application) transitionSuggestion(w http.ResponseWriter, r *http.Request, id string, status suggestions.Status) bool {
	err := app.store.Suggestions.UpdateStatus(r.Context(), id, suggestions.StatusPending, status)
	switch {
	case err == nil:
		return true
	case errors.Is(err, suggestions.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, suggestions.ErrStatusChanged):
		app.conflictResponse(w, r, errors.New("suggestion is no longer pending"))
	default:
		app.internalServerError(w, r, err)
	}
	return false
}

func (app *application) loadPendingSuggestion(w http.ResponseWriter, r *http.Request) (*suggestions.VenueSuggestion, bool) {
	s, err := app.store.Suggestions.GetByID(r.Context(), chi.URLParam(r, "suggestionID"))
	if err != nil {
		if errors.Is(err, suggestions.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return nil, false
		}
		app.internalServerError(w, r, err)
		return nil, false
	}
	if s.Status != suggestions.StatusPending {
		app.conflictResponse(w, r, fmt.Errorf("suggestion is %s, not pending", s.Status))
		return nil, false
	}
	return s, true
}
