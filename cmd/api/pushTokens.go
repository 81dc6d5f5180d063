package main

import (
	"errors"
	"net/http"
)

type SavePushTokenRequest struct {
	Token string `json:"token" validate:"required,max=512"`
}

// SavePushToken godoc
//
//	@Summary		Save or replace the device push token
//	@Description	Stores the caller's Expo push token and moves its venue topic subscriptions over from the previous token.
//	@Tags			Notifications
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	SavePushTokenRequest	true	"Push token"
//	@Success		204
//	@Failure		400	{object}	error	"Bad Request"
//	@Failure		401	{object}	error	"Unauthorized"
//	@Failure		500	{object}	error	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/users/me/push-token [put]
func (app *application) savePushTokenHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("unauthorized request"))
		return
	}

	var payload SavePushTokenRequest
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Users.SetPushToken(r.Context(), user.ID, payload.Token); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	old := user.FCMToken
	user.FCMToken = payload.Token
	if app.subscriptions != nil && old != "" && old != payload.Token {
		if err := app.subscriptions.Move(r.Context(), old, payload.Token); err != nil {
			app.logger.Errorw("moving topic subscriptions", "user", user.ID, "error", err)
		}
	}
	app.syncVenueTopics(r, user)

	w.WriteHeader(http.StatusNoContent)
}
