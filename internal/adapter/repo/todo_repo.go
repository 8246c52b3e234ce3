package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"todoapp/internal/domain"
	"todoapp/internal/infra"
	"todoapp/internal/sqlinline"
)

// TodoRepositoryPG implements domain.TodoRepository. Every call runs inside a
// user scope so row-level security applies on top of the explicit owner filter.
type TodoRepositoryPG struct {
	db infra.UserScoper
}

// NewTodoRepository creates a TodoRepositoryPG.
func NewTodoRepository(db infra.UserScoper) *TodoRepositoryPG {
	return &TodoRepositoryPG{db: db}
}

// List returns the user's todos, newest first. An empty user id yields an
// empty list without touching the database.
func (r *TodoRepositoryPG) List(ctx context.Context, userID string) ([]domain.Todo, error) {
	todos := []domain.Todo{}
	if userID == "" {
		return todos, nil
	}
	err := r.db.InUserScope(ctx, userID, func(q infra.SQLExecutor) error {
		rows, err := q.Query(ctx, sqlinline.QListTodos, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTodo(rows)
			if err != nil {
				return err
			}
			todos = append(todos, *t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// Create validates the input before any query and returns the stored row.
func (r *TodoRepositoryPG) Create(ctx context.Context, userID string, in domain.NewTodo) (*domain.Todo, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	var created *domain.Todo
	err := r.db.InUserScope(ctx, userID, func(q infra.SQLExecutor) error {
		t, err := scanTodo(q.QueryRow(ctx, sqlinline.QInsertTodo, userID, in.Title, in.Description))
		created = t
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return created, nil
}

// Update applies the provided fields only. Rows not visible to the user
// report domain.ErrNotFound.
func (r *TodoRepositoryPG) Update(ctx context.Context, userID, id string, patch domain.TodoPatch) (*domain.Todo, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	var updated *domain.Todo
	err := r.db.InUserScope(ctx, userID, func(q infra.SQLExecutor) error {
		row := q.QueryRow(ctx, sqlinline.QUpdateTodo, userID, id, patch.Title, patch.Description, patch.IsComplete)
		t, err := scanTodo(row)
		updated = t
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update todo: %w", err)
	}
	return updated, nil
}

// Delete removes exactly one row or reports domain.ErrNotFound.
func (r *TodoRepositoryPG) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	err := r.db.InUserScope(ctx, userID, func(q infra.SQLExecutor) error {
		tag, err := q.Exec(ctx, sqlinline.QDeleteTodo, userID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

func scanTodo(row pgx.Row) (*domain.Todo, error) {
	var t domain.Todo
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.IsComplete, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

var _ domain.TodoRepository = (*TodoRepositoryPG)(nil)
