package infra

import (
	"context"
	"errors"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		marker  string
		body    string
		wantErr bool
	}{
		{
			name:   "valid",
			query:  "--sql 0f6c2f4e-5b8a-4d0e-9a41-3c7e1f2d9b10\nselect 1;\n",
			marker: "0f6c2f4e-5b8a-4d0e-9a41-3c7e1f2d9b10",
			body:   "select 1;",
		},
		{
			name:    "missing marker",
			query:   "select 1;",
			wantErr: true,
		},
		{
			name:    "uppercase uuid rejected",
			query:   "--sql 0F6C2F4E-5B8A-4D0E-9A41-3C7E1F2D9B10\nselect 1;",
			wantErr: true,
		},
		{
			name:    "empty",
			query:   "   ",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := extractMarker(tc.query)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.query)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if marker != tc.marker {
				t.Fatalf("marker = %q, want %q", marker, tc.marker)
			}
			if body != tc.body {
				t.Fatalf("body = %q, want %q", body, tc.body)
			}
		})
	}
}

func TestSQLRunnerRejectsUnmarkedQueries(t *testing.T) {
	runner := NewSQLRunner(nil, *DiscardLogger())

	if _, err := runner.Exec(context.Background(), "delete from todos"); !errors.Is(err, ErrMarker) {
		t.Fatalf("Exec error = %v, want ErrMarker", err)
	}
	if _, err := runner.Query(context.Background(), "select * from todos"); !errors.Is(err, ErrMarker) {
		t.Fatalf("Query error = %v, want ErrMarker", err)
	}
	var id string
	if err := runner.QueryRow(context.Background(), "select id from todos").Scan(&id); !errors.Is(err, ErrMarker) {
		t.Fatalf("QueryRow error = %v, want ErrMarker", err)
	}
}

func TestInUserScopeRequiresUser(t *testing.T) {
	runner := NewSQLRunner(nil, *DiscardLogger())
	called := false
	err := runner.InUserScope(context.Background(), " ", func(SQLExecutor) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatalf("expected error for empty user id")
	}
	if called {
		t.Fatalf("callback must not run without a user")
	}
}
