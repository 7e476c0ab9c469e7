package llm

import (
	"errors"
	"fmt"
)

// ErrNoProvider is returned by the fallback chain when no provider is configured.
var ErrNoProvider = errors.New("no completion provider configured")

// ErrEmptyCompletion is returned when a provider answered with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// ServiceError is a non-success HTTP status from a completion or embedding API.
type ServiceError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s returned status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
