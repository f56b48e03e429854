package order

import (
	"errors"
	"testing"
)

func TestNoteResolutionMaySkipMainLine(t *testing.T) {
	if CanTransition(StatusAcknowledged, StatusCompleted) {
		t.Fatal("direct skip must be rejected")
	}
	path := []Status{StatusAcknowledged, StatusNote, StatusCompleted}
	for i := 1; i < len(path); i++ {
		if !CanTransition(path[i-1], path[i]) {
			t.Fatalf("expected manual resolution step %s -> %s to be allowed", path[i-1], path[i])
		}
	}
	if CanTransition(StatusCompleted, StatusNote) {
		t.Fatal("completed must stay terminal after a resolved note")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusAcknowledged, StatusInProgress, true},
		{StatusInProgress, StatusDelivering, true},
		{StatusDelivering, StatusCompleted, true},
		{StatusAcknowledged, StatusCompleted, false},
		{StatusAcknowledged, StatusDelivering, false},
		{StatusInProgress, StatusAcknowledged, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusNote, false},
		{StatusAcknowledged, StatusNote, true},
		{StatusDelivering, StatusNote, true},
		{StatusNote, StatusInProgress, true},
		{StatusNote, StatusCompleted, true},
		{StatusNote, StatusNote, false},
		{StatusInProgress, StatusInProgress, false},
		{StatusAcknowledged, Status("cancelled"), false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for raw, want := range map[string]Status{
		"acknowledged": StatusAcknowledged,
		"In-Progress":  StatusInProgress,
		"inprogress":   StatusInProgress,
		" delivering ": StatusDelivering,
		"NOTE":         StatusNote,
	} {
		got, err := ParseStatus(raw)
		if err != nil || got != want {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseStatus("cancelled"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestTransitionErrorMatchesSentinel(t *testing.T) {
	err := error(&TransitionError{Reference: "ORD-1", From: StatusCompleted, To: StatusInProgress})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatal("expected ErrInvalidTransition")
	}
}
