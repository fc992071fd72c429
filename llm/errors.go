package llm

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyConversation = errors.New("llm: at least one message is required")
	ErrNoChoices         = errors.New("llm: provider returned no choices")
)

// APIError is an error reported by the provider in its response body. The
// message is surfaced as-is, since callers show it to the user.
type APIError struct {
	Company    string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Company, e.StatusCode)
	}
	return e.Message
}
