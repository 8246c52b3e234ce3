package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"todoapp/internal/domain"
)

func signToken(t *testing.T, secret, subject string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestTokenVerifierWithSecret(t *testing.T) {
	verifier := NewTokenVerifier("s3cret")

	claims, err := verifier.Verify(signToken(t, "s3cret", "user-1", time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "a@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := verifier.Verify(signToken(t, "other", "user-1", time.Now().Add(time.Hour))); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestTokenVerifierAcceptsExpiredTokens(t *testing.T) {
	verifier := NewTokenVerifier("s3cret")
	if _, err := verifier.Verify(signToken(t, "s3cret", "user-1", time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("expired token should still decode: %v", err)
	}
}

func TestTokenVerifierWithoutSecretDecodes(t *testing.T) {
	verifier := NewTokenVerifier("")
	claims, err := verifier.Verify(signToken(t, "anything", "user-2", time.Now()))
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "user-2" {
		t.Fatalf("Subject = %q", claims.Subject)
	}
	if _, err := verifier.Verify("not-a-jwt"); err == nil {
		t.Fatalf("expected malformed token error")
	}
}

func TestStoreDiscardsStoredSessionWithForeignToken(t *testing.T) {
	persist := newMemoryPersistence()
	persist.rows["c1"] = domain.StoredSession{
		ClientID:     "c1",
		UserID:       "user-1",
		AccessToken:  signToken(t, "s3cret", "someone-else", time.Now().Add(time.Hour)),
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	store := NewStore("c1", &fakeAuth{}, Options{Persistence: persist, Verifier: NewTokenVerifier("s3cret")})

	sess, err := store.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if sess != nil {
		t.Fatalf("session with mismatched subject must be discarded")
	}
}
