package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthenticator_RoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("s3cret", "dreka-app", "dreka-auth")

	token, err := a.GenerateToken(Identity{Subject: "u1", Email: "u1@example.com", Name: "Uma"}, time.Hour)
	require.NoError(t, err)

	id, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, &Identity{Subject: "u1", Email: "u1@example.com", Name: "Uma"}, id)
}

func TestJWTAuthenticator_Rejects(t *testing.T) {
	a := NewJWTAuthenticator("s3cret", "dreka-app", "dreka-auth")

	expired, err := a.GenerateToken(Identity{Subject: "u1"}, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewJWTAuthenticator("other", "dreka-app", "dreka-auth").GenerateToken(Identity{Subject: "u1"}, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewJWTAuthenticator("s3cret", "dreka-app", "someone-else").GenerateToken(Identity{Subject: "u1"}, time.Hour)
	require.NoError(t, err)

	noSubject, err := a.GenerateToken(Identity{}, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"no subject":   noSubject,
		"alg none":     none,
		"garbage":      "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
