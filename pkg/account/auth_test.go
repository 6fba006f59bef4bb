package account

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/prodflow/pkg/apierr"
)

func TestStaticAuthenticator_AlwaysReturnsConfiguredUser(t *testing.T) {
	auth := StaticAuthenticator{User: User{ID: "u1", Login: "octocat"}}

	got, err := auth.Authenticate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "octocat", got.Login)

	got, err = auth.Authenticate(context.Background(), "Bearer garbage")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
}

func TestJWTAuthenticator_ValidTokenResolvesUser(t *testing.T) {
	auth := JWTAuthenticator{SecretKey: []byte("secret"), Issuer: "prodflow", Audience: "prodflow-api"}
	token := signTestToken(t, auth, jwtClaims{
		UserID: "u1",
		Login:  "octocat",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "prodflow",
			Audience:  jwt.ClaimStrings{"prodflow-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	got, err := auth.Authenticate(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "octocat", got.Login)
}

func TestJWTAuthenticator_MissingHeaderIsAccessDenied(t *testing.T) {
	auth := JWTAuthenticator{SecretKey: []byte("secret"), Issuer: "prodflow", Audience: "prodflow-api"}

	_, err := auth.Authenticate(context.Background(), "")
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindAccessDenied, apiErr.Kind)
}

func TestJWTAuthenticator_WrongAudienceIsRejected(t *testing.T) {
	auth := JWTAuthenticator{SecretKey: []byte("secret"), Issuer: "prodflow", Audience: "prodflow-api"}
	token := signTestToken(t, auth, jwtClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "prodflow",
			Audience:  jwt.ClaimStrings{"someone-else"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := auth.Authenticate(context.Background(), "Bearer "+token)
	require.Error(t, err)
}

func TestJWTAuthenticator_ExpiredTokenIsRejected(t *testing.T) {
	auth := JWTAuthenticator{SecretKey: []byte("secret"), Issuer: "prodflow", Audience: "prodflow-api"}
	token := signTestToken(t, auth, jwtClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "prodflow",
			Audience:  jwt.ClaimStrings{"prodflow-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := auth.Authenticate(context.Background(), "Bearer "+token)
	require.Error(t, err)
}

func signTestToken(t *testing.T, auth JWTAuthenticator, claims jwtClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(auth.SecretKey)
	require.NoError(t, err)
	return signed
}
