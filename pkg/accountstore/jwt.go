package accountstore

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// installationJWTTTL is GitHub App auth's maximum allowed JWT lifetime.
const installationJWTTTL = 10 * time.Minute

// IssueInstallationJWT mints the short-lived, RS256-signed JWT a GitHub
// App presents when exchanging its identity for an installation access
// token: `iss` is the app id, `iat` is backdated one minute to tolerate
// clock skew between this process and GitHub's, and `exp` is ten minutes
// after now, per GitHub App auth's documented convention.
func IssueInstallationJWT(secrets Secrets, now time.Time) (string, error) {
	if len(secrets.GitHubPrivateKeyPEM) == 0 {
		return "", fmt.Errorf("accountstore: no github private key configured")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(secrets.GitHubPrivateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("accountstore: parse github app private key: %w", err)
	}

	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(installationJWTTTL)),
		Issuer:    fmt.Sprintf("%d", secrets.GitHubAppID),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

// VerifyInstallationJWT parses and validates a JWT minted by
// IssueInstallationJWT, returning the app id it was issued for. Used by
// tests and by any future collaborator that needs to confirm a token it
// was handed is genuinely ours and still live.
func VerifyInstallationJWT(tokenString string, publicKeyPEM []byte) (appID string, err error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return "", fmt.Errorf("accountstore: parse github app public key: %w", err)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Name}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("accountstore: installation jwt failed validation")
	}
	return claims.Issuer, nil
}
