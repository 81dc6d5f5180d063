package main

import (
	"errors"
	"net/http"

	"dreka/internal/domain/ratings"
	"dreka/internal/domain/venues"

	"github.com/go-chi/chi/v5"
)

type venueResponse struct {
	*venues.Venue
	Ratings *ratings.Averages `json:"ratings"`
}

// GetVenue godoc
//
//	@Summary		Fetch a venue
//	@Description	Returns the venue with the mean of each rating score.
//	@Tags			Venues
//	@Produce		json
//	@Param			venueID	path		string	true	"Venue ID"
//	@Success		200		{object}	venueResponse
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/venues/{venueID} [get]
func (app *application) getVenueHandler(w http.ResponseWriter, r *http.Request) {
	venue, ok := app.loadVenue(w, r)
	if !ok {
		return
	}

	avg, err := app.store.Ratings.Averages(r.Context(), venue.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, venueResponse{Venue: venue, Ratings: avg})
}

type CreateMenuRequestPayload struct {
	Name  string  `json:"name" validate:"required,max=120"`
	Type  string  `json:"type" validate:"required,menuitemtype"`
	Price float64 `json:"price" validate:"gte=0"`
}

// createMenuRequestHandler records a user's proposal for a menu item.
func (app *application) createMenuRequestHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("unauthenticated request"))
		return
	}

	var payload CreateMenuRequestPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	req := &venues.MenuItemRequest{
		Name:        payload.Name,
		Type:        payload.Type,
		Price:       payload.Price,
		SubmittedBy: user.ID,
	}
	if err := app.store.Venues.AddMenuRequest(r.Context(), chi.URLParam(r, "venueID"), req); err != nil {
		if errors.Is(err, venues.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusCreated, req)
}

// loadVenue resolves the venueID path parameter, writing the error response
// itself when it cannot.
func (app *application) loadVenue(w http.ResponseWriter, r *http.Request) (*venues.Venue, bool) {
	venue, err := app.store.Venues.GetByID(r.Context(), chi.URLParam(r, "venueID"))
	if err != nil {
		if errors.Is(err, venues.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return nil, false
		}
		app.internalServerError(w, r, err)
		return nil, false
	}
	return venue, true
}
