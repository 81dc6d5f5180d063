package main

import (
	"encoding/json"
	"net/http"

	"dreka/internal/domain/venues"
	"dreka/internal/params"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	Validate.RegisterValidation("venuetype", func(fl validator.FieldLevel) bool {
		return venues.VenueType(fl.Field().String()).Valid()
	})
	Validate.RegisterValidation("menuitemtype", func(fl validator.FieldLevel) bool {
		t := fl.Field().String()
		return t == "food" || t == "drink"
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// readJSON decodes a body of at most 1MB into data, rejecting unknown fields.
func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	maxBytes := 1_048_578
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) error {
	type envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	}

	return writeJSON(w, status, &envelope{
		Success: false,
		Message: message,
		Status:  status,
	})
}

func (app *application) jsonResponse(w http.ResponseWriter, status int, data any) error {
	type envelope struct {
		Data any `json:"data"`
	}
	return writeJSON(w, status, &envelope{Data: data})
}

type page[T any] struct {
	Items      []T               `json:"items"`
	Pagination params.Pagination `json:"pagination"`
}

// newPage wraps one page of items with the metadata for total matches.
func newPage[T any](items []T, p params.Pagination, total int) page[T] {
	p.ComputeMeta(total)
	return page[T]{Items: items, Pagination: p}
}
