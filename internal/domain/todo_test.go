package domain

import (
	"errors"
	"testing"
)

func TestNewTodoValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      NewTodo
		want    string
		wantErr bool
	}{
		{name: "trims title", in: NewTodo{Title: "  buy milk "}, want: "buy milk"},
		{name: "empty title", in: NewTodo{Title: ""}, wantErr: true},
		{name: "whitespace title", in: NewTodo{Title: " \t\n"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if tc.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
			if tc.in.Title != tc.want {
				t.Fatalf("Title = %q, want %q", tc.in.Title, tc.want)
			}
		})
	}
}

func TestTodoPatchValidate(t *testing.T) {
	blank := "   "
	title := " walk dog "
	done := true

	if err := (&TodoPatch{}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty patch error = %v, want ErrValidation", err)
	}
	if err := (&TodoPatch{Title: &blank}).Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank title error = %v, want ErrValidation", err)
	}

	p := TodoPatch{Title: &title, IsComplete: &done}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	got := p.Apply(Todo{ID: "1", Title: "old", Description: "keep"})
	if got.Title != "walk dog" || !got.IsComplete || got.Description != "keep" {
		t.Fatalf("Apply() = %+v", got)
	}
}
