// Package todos keeps one client's in-memory todo list in step with the
// repository.
package todos

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"todoapp/internal/domain"
)

// List mirrors the signed-in user's todos. A failed operation leaves the
// list as it was.
type List struct {
	repo domain.TodoRepository

	mu     sync.Mutex
	userID string
	loaded bool
	items  []domain.Todo
}

func NewList(repo domain.TodoRepository) *List {
	return &List{repo: repo}
}

// Sync loads the list when the user differs from the last one synced. An
// empty user clears the list without a query.
func (l *List) Sync(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if userID == l.userID && (l.loaded || userID == "") {
		return nil
	}
	if userID != l.userID {
		l.userID = userID
		l.items = nil
		l.loaded = false
	}
	if userID == "" {
		return nil
	}
	return l.loadLocked(ctx)
}

// Load points the list at userID and fetches it regardless of what is
// already held. A page load goes through here so rows written elsewhere show
// up; mutations go through Sync.
func (l *List) Load(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if userID != l.userID {
		l.userID = userID
		l.items = nil
		l.loaded = false
	}
	if userID == "" {
		return nil
	}
	return l.loadLocked(ctx)
}

func (l *List) loadLocked(ctx context.Context) error {
	items, err := l.repo.List(ctx, l.userID)
	if err != nil {
		return err
	}
	l.items = items
	l.loaded = true
	return nil
}

// UserID is the user the list belongs to.
func (l *List) UserID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.userID
}

// Items returns a copy of the list, newest first.
func (l *List) Items() []domain.Todo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

// Counts returns the total and the number of incomplete todos.
func (l *List) Counts() (total, incomplete int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.items {
		if !t.IsComplete {
			incomplete++
		}
	}
	return len(l.items), incomplete
}

// Add creates a todo and puts it at the head of the list.
func (l *List) Add(ctx context.Context, in domain.NewTodo) (*domain.Todo, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.userID == "" {
		return nil, domain.ErrUnauthorized
	}
	created, err := l.repo.Create(ctx, l.userID, in)
	if err != nil {
		return nil, err
	}
	l.items = slices.Insert(l.items, 0, *created)
	return created, nil
}

// Update applies patch and replaces the item in place.
func (l *List) Update(ctx context.Context, id string, patch domain.TodoPatch) (*domain.Todo, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updateLocked(ctx, id, patch)
}

// Toggle flips the completion flag of a listed todo.
func (l *List) Toggle(ctx context.Context, id string) (*domain.Todo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: todo %s", domain.ErrNotFound, id)
	}
	next := !l.items[i].IsComplete
	return l.updateLocked(ctx, id, domain.TodoPatch{IsComplete: &next})
}

func (l *List) updateLocked(ctx context.Context, id string, patch domain.TodoPatch) (*domain.Todo, error) {
	if l.userID == "" {
		return nil, domain.ErrUnauthorized
	}
	updated, err := l.repo.Update(ctx, l.userID, id, patch)
	if err != nil {
		return nil, err
	}
	if i := l.indexLocked(id); i >= 0 {
		l.items[i] = *updated
	}
	return updated, nil
}

// Delete removes the todo from the repository and then from the list.
func (l *List) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.userID == "" {
		return domain.ErrUnauthorized
	}
	if err := l.repo.Delete(ctx, l.userID, id); err != nil {
		return err
	}
	if i := l.indexLocked(id); i >= 0 {
		l.items = slices.Delete(l.items, i, i+1)
	}
	return nil
}

func (l *List) indexLocked(id string) int {
	return slices.IndexFunc(l.items, func(t domain.Todo) bool { return t.ID == id })
}
