package main

import (
	"errors"
	"net/http"

	"dreka/internal/domain/users"
	"dreka/internal/topics"
)

type userKey string

const userCtx userKey = "user"

func getUserFromContext(r *http.Request) *users.User {
	if user, ok := r.Context().Value(userCtx).(*users.User); ok {
		return user
	}
	return nil
}

// GetCurrentUser godoc
//
//	@Summary		Get the signed-in user
//	@Tags			Users
//	@Produce		json
//	@Success		200	{object}	users.User
//	@Failure		401	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/me [get]
func (app *application) getCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("unauthenticated request"))
		return
	}
	app.jsonResponse(w, http.StatusOK, user)
}

type UpdateProfilePayload struct {
	Name  *string `json:"name" validate:"omitnil,min=1,max=120"`
	Email *string `json:"email" validate:"omitnil,email,max=255"`
}

// UpdateCurrentUser godoc
//
//	@Summary		Update the signed-in user's profile
//	@Description	Changes the name, the email or both. Absent fields are left as they are.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		UpdateProfilePayload	true	"Profile fields"
//	@Success		200		{object}	users.User
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/me [patch]
func (app *application) updateCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("unauthenticated request"))
		return
	}

	var payload UpdateProfilePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	updated, err := app.store.Users.UpdateProfile(r.Context(), user.ID, payload.Name, payload.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, updated)
}

// syncVenueTopics aligns the user's device subscriptions with their
// favourites. A failure is logged and does not fail the request; the next
// favourites change or token save retries it.
func (app *application) syncVenueTopics(r *http.Request, user *users.User) {
	if !user.HasToken() || app.subscriptions == nil {
		return
	}
	want := make([]string, 0, len(user.FavoriteVenueIDs))
	for _, id := range user.FavoriteVenueIDs {
		want = append(want, topics.ForVenue(id))
	}
	if err := app.subscriptions.Sync(r.Context(), user.FCMToken, want); err != nil {
		app.logger.Errorw("syncing venue topics", "user", user.ID, "error", err)
	}
}
