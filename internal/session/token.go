package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims GoTrue issues.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier inspects access tokens restored from storage. With a secret
// the HS256 signature is checked; without one the claims are only decoded.
// Expiry is not enforced here: an expired token is refreshed, not rejected.
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// Verify returns the token's claims or an error when it is malformed or,
// with a secret configured, incorrectly signed.
func (v *TokenVerifier) Verify(token string) (*Claims, error) {
	var claims Claims
	if len(v.secret) == 0 {
		if _, _, err := v.parser.ParseUnverified(token, &claims); err != nil {
			return nil, fmt.Errorf("decode access token: %w", err)
		}
	} else {
		_, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
			return v.secret, nil
		})
		if err != nil {
			return nil, fmt.Errorf("verify access token: %w", err)
		}
	}
	if claims.Subject == "" {
		return nil, errors.New("access token has no subject")
	}
	return &claims, nil
}
