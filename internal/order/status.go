package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown order status")
)

type TransitionError struct {
	Reference string
	From      Status
	To        Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %s to %s", e.Reference, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

var forward = map[Status]Status{
	StatusAcknowledged: StatusInProgress,
	StatusInProgress:   StatusDelivering,
	StatusDelivering:   StatusCompleted,
}

// CanTransition reports whether staff may move an order from one status to
// another. The main line only advances one step at a time, completed is
// terminal, note is reachable from any open status, and a noted order can be
// resolved back to any non-note status. Resolving a note is a manual staff
// decision, so acknowledged -> note -> completed is allowed even though the
// direct skip is not.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	switch from {
	case StatusCompleted:
		return false
	case StatusNote:
		return true
	}
	if to == StatusNote {
		return true
	}
	return forward[from] == to
}

func (s Status) Valid() bool {
	switch s {
	case StatusAcknowledged, StatusInProgress, StatusDelivering, StatusCompleted, StatusNote:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// ParseStatus accepts the wire names plus "in-progress"/"inprogress".
func ParseStatus(raw string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	if key == "inprogress" {
		key = string(StatusInProgress)
	}
	s := Status(key)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}
