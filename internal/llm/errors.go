package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnavailable = errors.New("generator unavailable")
	ErrRateLimited = errors.New("generator rate limited")
	ErrBadResponse = errors.New("generator bad response")
)

// Error is a classified provider failure. It matches both its Kind sentinel
// and the underlying provider error.
type Error struct {
	Kind     error
	Provider string
	Status   int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func badResponse(provider, msg string) error {
	return &Error{Kind: ErrBadResponse, Provider: provider, Err: errors.New(msg)}
}

// classify converts a transport or API error into the taxonomy. status is the
// HTTP status the provider reported, or 0 when unknown.
func classify(provider string, status int, err error) error {
	kind := ErrUnavailable
	switch {
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status == 0 && looksRateLimited(err):
		kind = ErrRateLimited
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = ErrUnavailable
	}
	return &Error{Kind: kind, Provider: provider, Status: status, Err: err}
}

func looksRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "429")
}
