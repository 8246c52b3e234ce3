package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"todoapp/internal/clients"
	"todoapp/internal/domain"
)

type todoListResponse struct {
	Todos      []domain.Todo `json:"todos"`
	Total      int           `json:"total"`
	Incomplete int           `json:"incomplete"`
}

// syncTodos points the client's list at the signed-in user. With fresh set
// the list is fetched again even when already loaded.
func syncTodos(r *http.Request, c *clients.Client, fresh bool) (*domain.User, error) {
	user := c.Auth.Snapshot().User()
	if user == nil {
		return nil, domain.ErrUnauthorized
	}
	load := c.Todos.Sync
	if fresh {
		load = c.Todos.Load
	}
	if err := load(r.Context(), user.ID); err != nil {
		return user, err
	}
	return user, nil
}

func (a *App) todosView(c *clients.Client, user *domain.User) viewData {
	total, incomplete := c.Todos.Counts()
	return viewData{
		Title:      "Todos",
		User:       user,
		Subscribed: true,
		Todos:      c.Todos.Items(),
		Total:      total,
		Incomplete: incomplete,
	}
}

// todoFailure answers a failed todo operation. HTML re-renders the list
// with the message; the list itself is left as it was.
func (a *App) todoFailure(w http.ResponseWriter, r *http.Request, c *clients.Client, user *domain.User, err error) {
	if isJSON(r) {
		a.fail(w, r, err)
		return
	}
	status, _ := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("client_id", c.ID).Msg("todo operation failed")
	}
	data := a.todosView(c, user)
	data.Error = userMessage(err)
	a.render(w, r, "todos", status, data)
}

func (a *App) ListTodos(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	user, err := syncTodos(r, c, true)
	if err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}
	if isJSON(r) {
		total, incomplete := c.Todos.Counts()
		a.json(w, http.StatusOK, todoListResponse{Todos: c.Todos.Items(), Total: total, Incomplete: incomplete})
		return
	}
	a.render(w, r, "todos", http.StatusOK, a.todosView(c, user))
}

func (a *App) CreateTodo(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	user, err := syncTodos(r, c, false)
	if err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}

	var in domain.NewTodo
	if jsonBody(r) {
		err = decodeJSON(w, r, &in)
	} else if err = r.ParseForm(); err == nil {
		in = domain.NewTodo{Title: r.PostFormValue("title"), Description: r.PostFormValue("description")}
	}
	var created *domain.Todo
	if err == nil {
		created, err = c.Todos.Add(r.Context(), in)
	}
	if err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}
	if isJSON(r) {
		a.json(w, http.StatusCreated, created)
		return
	}
	http.Redirect(w, r, homePath, http.StatusSeeOther)
}

// UpdateTodo applies a JSON patch.
func (a *App) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	user, err := syncTodos(r, c, false)
	if err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}
	var patch domain.TodoPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}
	updated, err := c.Todos.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}
	a.json(w, http.StatusOK, updated)
}

// EditTodo is the form variant of UpdateTodo.
func (a *App) EditTodo(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	user, err := syncTodos(r, c, false)
	if err == nil {
		err = r.ParseForm()
	}
	if err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}
	var patch domain.TodoPatch
	if _, ok := r.PostForm["title"]; ok {
		title := r.PostFormValue("title")
		patch.Title = &title
	}
	if _, ok := r.PostForm["description"]; ok {
		desc := r.PostFormValue("description")
		patch.Description = &desc
	}
	if _, err := c.Todos.Update(r.Context(), chi.URLParam(r, "id"), patch); err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}
	http.Redirect(w, r, homePath, http.StatusSeeOther)
}

func (a *App) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	user, err := syncTodos(r, c, false)
	if err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}
	toggled, err := c.Todos.Toggle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}
	if isJSON(r) {
		a.json(w, http.StatusOK, toggled)
		return
	}
	http.Redirect(w, r, homePath, http.StatusSeeOther)
}

func (a *App) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	c := a.client(w, r)
	if c == nil {
		return
	}
	user, err := syncTodos(r, c, false)
	if err != nil {
		a.todoFailure(w, r, c, user, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := c.Todos.Delete(r.Context(), id); err != nil {
		a.todoFailure(w, r, c, user, fmt.Errorf("delete %s: %w", id, err))
		return
	}
	if r.Method == http.MethodDelete || isJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, homePath, http.StatusSeeOther)
}
