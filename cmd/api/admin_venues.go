package main

import (
	"errors"
	"net/http"

	"dreka/internal/domain/venues"
	"dreka/internal/params"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type MenuItemPayload struct {
	Name  string  `json:"name" validate:"required,max=120"`
	Type  string  `json:"type" validate:"required,menuitemtype"`
	Price float64 `json:"price" validate:"gte=0"`
}

type CreateVenuePayload struct {
	Name        string            `json:"name" validate:"required,max=120"`
	Type        string            `json:"type" validate:"required,venuetype"`
	Address     string            `json:"address" validate:"required,max=255"`
	Latitude    float64           `json:"latitude" validate:"latitude"`
	Longitude   float64           `json:"longitude" validate:"longitude"`
	Description *string           `json:"description" validate:"omitempty,max=1000"`
	YelpRating  *float64          `json:"yelpRating" validate:"omitnil,gte=0,lte=5"`
	Menu        []MenuItemPayload `json:"menu" validate:"omitempty,max=200,dive"`
}

// ListVenues godoc
//
//	@Summary		List venues
//	@Tags			Venues
//	@Produce		json
//	@Param			page	query		int	false	"Page number"
//	@Param			limit	query		int	false	"Items per page"
//	@Success		200		{object}	page[venues.Venue]
//	@Security		ApiKeyAuth
//	@Router			/venues [get]
func (app *application) listVenuesHandler(w http.ResponseWriter, r *http.Request) {
	p := params.ParsePagination(r.URL.Query())
	list, total, err := app.store.Venues.List(r.Context(), p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, newPage(list, p, total))
}

// CreateVenue godoc
//
//	@Summary		Add a venue
//	@Description	Admin entry of a venue that did not come from a suggestion.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateVenuePayload	true	"Venue"
//	@Success		201		{object}	venues.Venue
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/venues [post]
func (app *application) createVenueHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateVenuePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	venue := &venues.Venue{
		Name:        payload.Name,
		Type:        venues.VenueType(payload.Type),
		Address:     payload.Address,
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
		Description: payload.Description,
		YelpRating:  payload.YelpRating,
		Menu:        make([]venues.MenuItem, 0, len(payload.Menu)),
	}
	for _, item := range payload.Menu {
		venue.Menu = append(venue.Menu, menuItem(uuid.NewString(), item))
	}

	if err := app.store.Venues.Create(r.Context(), venue); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("venue created", "venue", venue.ID, "admin", getUserFromContext(r).ID)
	app.jsonResponse(w, http.StatusCreated, venue)
}

// ApproveMenuRequest godoc
//
//	@Summary		Approve a menu request
//	@Description	Moves the requested item into the venue's menu.
//	@Tags			Admin
//	@Produce		json
//	@Param			venueID		path		string	true	"Venue ID"
//	@Param			requestID	path		string	true	"Menu request ID"
//	@Success		200			{object}	venues.MenuItem
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/venues/{venueID}/menu-requests/{requestID}/approve [post]
func (app *application) approveMenuRequestHandler(w http.ResponseWriter, r *http.Request) {
	item, ok := app.resolveMenuRequest(w, r, true)
	if !ok {
		return
	}
	app.jsonResponse(w, http.StatusOK, item)
}

// RejectMenuRequest godoc
//
//	@Summary		Reject a menu request
//	@Tags			Admin
//	@Param			venueID		path	string	true	"Venue ID"
//	@Param			requestID	path	string	true	"Menu request ID"
//	@Success		204
//	@Failure		404	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/venues/{venueID}/menu-requests/{requestID}/reject [post]
func (app *application) rejectMenuRequestHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.resolveMenuRequest(w, r, false); !ok {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) resolveMenuRequest(w http.ResponseWriter, r *http.Request, approve bool) (*venues.MenuItem, bool) {
	venueID, requestID := chi.URLParam(r, "venueID"), chi.URLParam(r, "requestID")
	item, err := app.store.Venues.ResolveMenuRequest(r.Context(), venueID, requestID, approve)
	if err != nil {
		app.venueWriteError(w, r, err)
		return nil, false
	}
	app.logger.Infow("menu request resolved", "venue", venueID, "request", requestID, "approved", approve)
	return item, true
}

// UpdateMenuItem godoc
//
//	@Summary		Edit a menu item
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			venueID	path		string			true	"Venue ID"
//	@Param			itemID	path		string			true	"Menu item ID"
//	@Param			payload	body		MenuItemPayload	true	"Menu item"
//	@Success		200		{object}	venues.MenuItem
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/venues/{venueID}/menu/{itemID} [put]
func (app *application) updateMenuItemHandler(w http.ResponseWriter, r *http.Request) {
	var payload MenuItemPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	item := menuItem(chi.URLParam(r, "itemID"), payload)
	if err := app.store.Venues.UpdateMenuItem(r.Context(), chi.URLParam(r, "venueID"), item); err != nil {
		app.venueWriteError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, item)
}

// DeleteMenuItem godoc
//
//	@Summary		Remove a menu item
//	@Tags			Admin
//	@Param			venueID	path	string	true	"Venue ID"
//	@Param			itemID	path	string	true	"Menu item ID"
//	@Success		204
//	@Failure		404	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/venues/{venueID}/menu/{itemID} [delete]
func (app *application) deleteMenuItemHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.store.Venues.DeleteMenuItem(r.Context(), chi.URLParam(r, "venueID"), chi.URLParam(r, "itemID")); err != nil {
		app.venueWriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *application) venueWriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, venues.ErrNotFound),
		errors.Is(err, venues.ErrMenuItemNotFound),
		errors.Is(err, venues.ErrMenuRequestNotFound):
		app.notFoundResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

func menuItem(id string, p MenuItemPayload) venues.MenuItem {
	return venues.MenuItem{ID: id, Name: p.Name, Type: p.Type, Price: p.Price}
}
