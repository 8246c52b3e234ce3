package todos

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"todoapp/internal/domain"
)

type memoryRepo struct {
	todos   map[string][]domain.Todo
	seq     int
	fail    error
	queries int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{todos: make(map[string][]domain.Todo)}
}

func (r *memoryRepo) List(_ context.Context, userID string) ([]domain.Todo, error) {
	r.queries++
	if r.fail != nil {
		return nil, r.fail
	}
	return slices.Clone(r.todos[userID]), nil
}

func (r *memoryRepo) Create(_ context.Context, userID string, in domain.NewTodo) (*domain.Todo, error) {
	r.queries++
	if r.fail != nil {
		return nil, r.fail
	}
	r.seq++
	t := domain.Todo{
		ID:          fmt.Sprintf("todo-%d", r.seq),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		CreatedAt:   time.Unix(int64(r.seq), 0),
	}
	r.todos[userID] = slices.Insert(r.todos[userID], 0, t)
	return &t, nil
}

func (r *memoryRepo) Update(_ context.Context, userID, id string, patch domain.TodoPatch) (*domain.Todo, error) {
	r.queries++
	if r.fail != nil {
		return nil, r.fail
	}
	for i, t := range r.todos[userID] {
		if t.ID == id {
			updated := patch.Apply(t)
			r.todos[userID][i] = updated
			return &updated, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memoryRepo) Delete(_ context.Context, userID, id string) error {
	r.queries++
	if r.fail != nil {
		return r.fail
	}
	for i, t := range r.todos[userID] {
		if t.ID == id {
			r.todos[userID] = slices.Delete(r.todos[userID], i, i+1)
			return nil
		}
	}
	return domain.ErrNotFound
}

func TestAddRejectsEmptyTitleBeforeQuery(t *testing.T) {
	repo := newMemoryRepo()
	list := NewList(repo)
	if err := list.Sync(context.Background(), "u1"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	before := repo.queries

	_, err := list.Add(context.Background(), domain.NewTodo{Title: "   "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if repo.queries != before {
		t.Fatalf("no query expected, got %d", repo.queries-before)
	}
}

func TestAddPrependsIncomplete(t *testing.T) {
	repo := newMemoryRepo()
	list := NewList(repo)
	ctx := context.Background()
	if err := list.Sync(ctx, "u1"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, err := list.Add(ctx, domain.NewTodo{Title: "first"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	created, err := list.Add(ctx, domain.NewTodo{Title: "second"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	items := list.Items()
	if len(items) != 2 || items[0].ID != created.ID {
		t.Fatalf("new todo should head the list, got %+v", items)
	}
	if items[0].IsComplete {
		t.Fatalf("new todo should be incomplete")
	}
}

func TestToggleDecreasesIncompleteByOne(t *testing.T) {
	repo := newMemoryRepo()
	list := NewList(repo)
	ctx := context.Background()
	_ = list.Sync(ctx, "u1")
	a, _ := list.Add(ctx, domain.NewTodo{Title: "a"})
	_, _ = list.Add(ctx, domain.NewTodo{Title: "b"})

	total, incomplete := list.Counts()
	if total != 2 || incomplete != 2 {
		t.Fatalf("counts = %d/%d", total, incomplete)
	}
	toggled, err := list.Toggle(ctx, a.ID)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !toggled.IsComplete {
		t.Fatalf("toggled todo should be complete")
	}
	total, incomplete = list.Counts()
	if total != 2 || incomplete != 1 {
		t.Fatalf("counts after toggle = %d/%d", total, incomplete)
	}
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	repo := newMemoryRepo()
	list := NewList(repo)
	ctx := context.Background()
	_ = list.Sync(ctx, "u1")
	a, _ := list.Add(ctx, domain.NewTodo{Title: "a"})
	b, _ := list.Add(ctx, domain.NewTodo{Title: "b"})

	if err := list.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	items := list.Items()
	if len(items) != 1 || items[0].ID != b.ID {
		t.Fatalf("unexpected items after delete: %+v", items)
	}
	if err := list.Delete(ctx, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
	if len(list.Items()) != 1 {
		t.Fatalf("failed delete must leave the list unchanged")
	}
}

func TestFailureLeavesListUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	list := NewList(repo)
	ctx := context.Background()
	_ = list.Sync(ctx, "u1")
	a, _ := list.Add(ctx, domain.NewTodo{Title: "a"})

	repo.fail = errors.New("connection reset")
	if _, err := list.Add(ctx, domain.NewTodo{Title: "b"}); err == nil {
		t.Fatalf("expected Add to fail")
	}
	if _, err := list.Toggle(ctx, a.ID); err == nil {
		t.Fatalf("expected Toggle to fail")
	}
	if err := list.Load(ctx, "u1"); err == nil {
		t.Fatalf("expected Load to fail")
	}
	items := list.Items()
	if len(items) != 1 || items[0].ID != a.ID || items[0].IsComplete {
		t.Fatalf("list changed after failures: %+v", items)
	}
}

func TestSyncFollowsUser(t *testing.T) {
	repo := newMemoryRepo()
	repo.todos["u1"] = []domain.Todo{{ID: "t1", UserID: "u1", Title: "mine"}}
	list := NewList(repo)
	ctx := context.Background()

	if err := list.Sync(ctx, "u1"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := list.Sync(ctx, "u1"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if repo.queries != 1 {
		t.Fatalf("same user should not refetch, queries = %d", repo.queries)
	}

	if err := list.Sync(ctx, "u2"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(list.Items()) != 0 {
		t.Fatalf("other user's todos leaked: %+v", list.Items())
	}

	if err := list.Sync(ctx, ""); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if repo.queries != 2 {
		t.Fatalf("signed out sync should not query, queries = %d", repo.queries)
	}
	if _, err := list.Add(ctx, domain.NewTodo{Title: "x"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLoadFetchesRowsWrittenElsewhere(t *testing.T) {
	repo := newMemoryRepo()
	list := NewList(repo)
	ctx := context.Background()

	if err := list.Sync(ctx, "u1"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	repo.todos["u1"] = []domain.Todo{{ID: "t9", UserID: "u1", Title: "added in another tab"}}

	if err := list.Sync(ctx, "u1"); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := len(list.Items()); got != 0 {
		t.Fatalf("Sync should keep the held list, got %d items", got)
	}

	if err := list.Load(ctx, "u1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	items := list.Items()
	if len(items) != 1 || items[0].ID != "t9" {
		t.Fatalf("Load should show the new row, got %+v", items)
	}

	if err := list.Load(ctx, ""); err != nil {
		t.Fatalf("Load without user: %v", err)
	}
	if list.UserID() != "" || len(list.Items()) != 0 {
		t.Fatalf("Load without user should clear the list")
	}
}
