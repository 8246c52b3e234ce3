package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"todoapp/internal/domain"
	"todoapp/internal/sqlinline"
)

func TestSessionLoadMissing(t *testing.T) {
	_, err := NewSessionRepository(&stubDB{}).Load(context.Background(), "c1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Load error = %v, want ErrNotFound", err)
	}
}

func TestSessionSaveAndLoad(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC()
	db := &stubDB{
		queryRow: func(query string, args ...any) pgx.Row {
			if query != sqlinline.QSelectClientSession {
				t.Fatalf("unexpected query %s", query)
			}
			return simpleRow{scan: func(dest ...any) error {
				*dest[0].(*string) = "c1"
				*dest[1].(*string) = testUser
				*dest[2].(*string) = "a@example.com"
				*dest[3].(*string) = "access"
				*dest[4].(*string) = "refresh"
				*dest[5].(*time.Time) = expires
				return nil
			}}
		},
	}
	repo := NewSessionRepository(db)
	if err := repo.Save(context.Background(), domain.StoredSession{ClientID: "c1", UserID: testUser, AccessToken: "access"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if db.calls[0].query != sqlinline.QUpsertClientSession {
		t.Fatalf("Save used wrong statement")
	}
	s, err := repo.Load(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if s.RefreshToken != "refresh" || !s.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected session: %+v", s)
	}
}
