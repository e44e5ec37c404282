package graphql

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoData is returned when a response carries neither data nor errors.
var ErrNoData = errors.New("graphql: response has no data")

// Error is one entry of a response's errors array.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// ResponseError wraps the errors array of a response.
type ResponseError struct {
	Operation string
	Errors    []Error
}

func (e *ResponseError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Message)
	}
	return fmt.Sprintf("graphql %s: %s", e.Operation, strings.Join(msgs, "; "))
}
