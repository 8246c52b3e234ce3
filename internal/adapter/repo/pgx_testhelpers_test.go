package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"todoapp/internal/domain"
	"todoapp/internal/infra"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type testRowsBase struct{}

func (testRowsBase) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (testRowsBase) Conn() *pgx.Conn { return nil }

func (testRowsBase) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (testRowsBase) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

func (testRowsBase) RawValues() [][]byte { return nil }

// todoRows iterates over a fixed slice of todos.
type todoRows struct {
	testRowsBase
	items []domain.Todo
	idx   int
}

func (r *todoRows) Next() bool {
	if r.idx >= len(r.items) {
		return false
	}
	r.idx++
	return true
}

func (r *todoRows) Scan(dest ...any) error { return scanTodoInto(r.items[r.idx-1], dest...) }
func (r *todoRows) Err() error             { return nil }
func (r *todoRows) Close()                 {}

func scanTodoInto(t domain.Todo, dest ...any) error {
	if len(dest) != 6 {
		return fmt.Errorf("unexpected scan arity %d", len(dest))
	}
	*dest[0].(*string) = t.ID
	*dest[1].(*string) = t.UserID
	*dest[2].(*string) = t.Title
	*dest[3].(*string) = t.Description
	*dest[4].(*bool) = t.IsComplete
	*dest[5].(*time.Time) = t.CreatedAt
	return nil
}

type call struct {
	query string
	args  []any
}

// stubDB records statements and answers them from the configured funcs.
type stubDB struct {
	calls    []call
	scopes   []string
	exec     func(query string, args ...any) (pgconn.CommandTag, error)
	queryRow func(query string, args ...any) pgx.Row
	query    func(query string, args ...any) (pgx.Rows, error)
}

func (s *stubDB) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	if s.exec == nil {
		return pgconn.NewCommandTag("OK 0"), nil
	}
	return s.exec(query, args...)
}

func (s *stubDB) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query: query, args: args})
	if s.queryRow == nil {
		return simpleRow{}
	}
	return s.queryRow(query, args...)
}

func (s *stubDB) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	if s.query == nil {
		return &todoRows{}, nil
	}
	return s.query(query, args...)
}

func (s *stubDB) InUserScope(_ context.Context, userID string, fn func(q infra.SQLExecutor) error) error {
	s.scopes = append(s.scopes, userID)
	return fn(s)
}

var (
	_ infra.SQLExecutor = (*stubDB)(nil)
	_ infra.UserScoper  = (*stubDB)(nil)
)
