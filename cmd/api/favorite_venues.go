package main

import (
	"errors"
	"net/http"
	"slices"

	"dreka/internal/domain/venues"

	"github.com/go-chi/chi/v5"
)

type favoritesResponse struct {
	FavoriteVenueIDs []string `json:"favoriteVenueIDs"`
}

// AddFavoriteVenue godoc
//
//	@Summary		Add a venue to favorites
//	@Description	Adds the venue to the caller's favorites and subscribes their device to the venue topic.
//	@Tags			Favorite_Venues
//	@Produce		json
//	@Param			venueID	path		string	true	"Venue ID"
//	@Success		200		{object}	favoritesResponse
//	@Failure		404		{object}	error	"Venue not found"
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/me/favorites/{venueID} [put]
func (app *application) addFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("unauthenticated request"))
		return
	}
	venueID := chi.URLParam(r, "venueID")

	if _, err := app.store.Venues.GetByID(r.Context(), venueID); err != nil {
		if errors.Is(err, venues.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if !user.IsFavorite(venueID) {
		favorites := append(slices.Clone(user.FavoriteVenueIDs), venueID)
		if err := app.store.Users.SetFavorites(r.Context(), user.ID, favorites); err != nil {
			app.internalServerError(w, r, err)
			return
		}
		user.FavoriteVenueIDs = favorites
	}
	app.syncVenueTopics(r, user)

	app.jsonResponse(w, http.StatusOK, favoritesResponse{FavoriteVenueIDs: user.FavoriteVenueIDs})
}

// RemoveFavoriteVenue godoc
//
//	@Summary		Remove a venue from favorites
//	@Description	Removes the venue and unsubscribes the caller's device from its topic.
//	@Tags			Favorite_Venues
//	@Produce		json
//	@Param			venueID	path		string	true	"Venue ID"
//	@Success		200		{object}	favoritesResponse
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/me/favorites/{venueID} [delete]
func (app *application) removeFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("unauthenticated request"))
		return
	}
	venueID := chi.URLParam(r, "venueID")

	if user.IsFavorite(venueID) {
		favorites := slices.DeleteFunc(slices.Clone(user.FavoriteVenueIDs), func(id string) bool { return id == venueID })
		if err := app.store.Users.SetFavorites(r.Context(), user.ID, favorites); err != nil {
			app.internalServerError(w, r, err)
			return
		}
		user.FavoriteVenueIDs = favorites
	}
	app.syncVenueTopics(r, user)

	app.jsonResponse(w, http.StatusOK, favoritesResponse{FavoriteVenueIDs: user.FavoriteVenueIDs})
}
