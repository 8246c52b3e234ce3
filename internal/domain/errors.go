package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrAuth         = errors.New("authentication failed")
	ErrLookup       = errors.New("subscription lookup failed")
	ErrCatalog      = errors.New("plan catalog unavailable")
	ErrNetwork      = errors.New("network failure")
)
