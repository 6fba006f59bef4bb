package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/catherinevee/prodflow/pkg/apierr"
)

// User identifies the caller behind an authenticated request.
type User struct {
	ID    string
	Login string
	Email string
}

// Authenticator resolves the bearer token on an inbound request to a User.
// The HTTP surface itself is out of scope here (the heater runs as a batch
// job), so this stays a pluggable seam: a StaticAuthenticator satisfies it
// for tests and the CLI, and a JWTAuthenticator is available wherever a
// future HTTP front end wants real token verification.
type Authenticator interface {
	Authenticate(ctx context.Context, authHeader string) (User, error)
}

// StaticAuthenticator always returns the same User, regardless of the
// Authorization header's contents. Grounded on the original Python
// implementation's own "short circuit" of its auth middleware
// (server/athenian/api/auth.py's _set_user, which likewise always resolves
// to one hardcoded user ahead of its never-reached JWT verification path).
type StaticAuthenticator struct {
	User User
}

func (a StaticAuthenticator) Authenticate(ctx context.Context, authHeader string) (User, error) {
	return a.User, nil
}

// JWTAuthenticator verifies an HS256-signed bearer token against a shared
// secret, issuer, and audience. Grounded on the teacher's
// internal/auth/jwt.go JWTService: ExtractTokenFromHeader's "Bearer "
// prefix check followed by ValidateToken's issuer/audience comparison,
// narrowed here to verification only since nothing in this tree issues
// tokens.
type JWTAuthenticator struct {
	SecretKey []byte
	Issuer    string
	Audience  string
}

type jwtClaims struct {
	UserID string `json:"user_id"`
	Login  string `json:"login"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (a JWTAuthenticator) Authenticate(ctx context.Context, authHeader string) (User, error) {
	token, err := extractBearerToken(authHeader)
	if err != nil {
		return User{}, err
	}

	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.SecretKey, nil
	}, jwt.WithIssuer(a.Issuer), jwt.WithAudience(a.Audience))
	if err != nil || !parsed.Valid {
		return User{}, apierr.AccessDenied("invalid, expired, or wrong issuer/audience token")
	}

	return User{ID: claims.UserID, Login: claims.Login, Email: claims.Email}, nil
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", apierr.AccessDenied("authorization header is required")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", apierr.AccessDenied("authorization header must start with 'Bearer '")
	}
	token := strings.TrimPrefix(authHeader, prefix)
	if token == "" {
		return "", apierr.AccessDenied("token is required")
	}
	return token, nil
}
