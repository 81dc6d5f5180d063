package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"dreka/internal/domain/ratings"
	"dreka/internal/params"

	"github.com/go-chi/chi/v5"
)

type CreateRatingPayload struct {
	LineRating     *int     `json:"lineRating" validate:"omitnil,min=1,max=5"`
	CoverRating    *float64 `json:"coverRating" validate:"omitnil,gte=0"`
	BathroomRating *int     `json:"bathroomRating" validate:"omitnil,min=1,max=5"`
}

// CreateRating godoc
//
//	@Summary		Rate a venue
//	@Description	Records line, cover and bathroom scores for a venue. Each user may rate a venue once per 30 minutes. Followers of the venue are notified.
//	@Tags			Ratings
//	@Accept			json
//	@Produce		json
//	@Param			venueID	path		string				true	"Venue ID"
//	@Param			payload	body		CreateRatingPayload	true	"Scores, at least one"
//	@Success		201		{object}	ratings.Rating
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		429		{object}	error	"Rated this venue too recently"
//	@Security		ApiKeyAuth
//	@Router			/venues/{venueID}/ratings [post]
func (app *application) createRatingHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("unauthenticated request"))
		return
	}

	var payload CreateRatingPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	rating := &ratings.Rating{
		UserID:         user.ID,
		LineRating:     payload.LineRating,
		CoverRating:    payload.CoverRating,
		BathroomRating: payload.BathroomRating,
	}
	if !rating.HasScore() {
		app.badRequestResponse(w, r, errors.New("at least one score is required"))
		return
	}

	venue, ok := app.loadVenue(w, r)
	if !ok {
		return
	}
	rating.VenueID = venue.ID

	latest, err := app.store.Ratings.LatestByUser(r.Context(), venue.ID, user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	now := time.Now().UTC()
	if ratings.HasRecent(latest, now) {
		wait := latest.Timestamp.Add(ratings.CooldownPeriod).Sub(now)
		app.tooManyRequestsResponse(w, r, wait,
			fmt.Sprintf("you can rate this venue again in %d minutes", int(wait.Minutes())+1))
		return
	}

	rating.Timestamp = now
	if err := app.store.Ratings.Create(r.Context(), rating); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusCreated, rating)
}

// listRatingsHandler returns the venue's ratings, newest first.
func (app *application) listRatingsHandler(w http.ResponseWriter, r *http.Request) {
	p := params.ParsePagination(r.URL.Query())
	list, total, err := app.store.Ratings.ListByVenue(r.Context(), chi.URLParam(r, "venueID"), p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, newPage(list, p, total))
}
