package auth

import (
	"errors"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is who a verified bearer token speaks for. Subject is the user
// document id.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

type Authenticator interface {
	GenerateToken(id Identity, ttl time.Duration) (string, error)
	ValidateToken(token string) (*Identity, error)
}
