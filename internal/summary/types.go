package summary

import (
	"time"

	"github.com/sjawhar/roomline/internal/catalog"
)

// Source records which path produced a summary.
type Source string

const (
	SourceGenerative Source = "generative"
	SourceHeuristic  Source = "heuristic"
)

type CallSummary struct {
	CallID          string    `json:"call_id"`
	Text            string    `json:"text"`
	GeneratedBy     Source    `json:"generated_by"`
	Language        string    `json:"language"`
	RoomNumber      string    `json:"room_number,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

type Details struct {
	Date       string   `json:"date,omitempty"`
	Time       string   `json:"time,omitempty"`
	PartySize  *int     `json:"party_size,omitempty"`
	Location   string   `json:"location,omitempty"`
	Amount     *float64 `json:"amount,omitempty"`
	RoomNumber string   `json:"room_number,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// ServiceRequest is one structured ask extracted from a summary. Requests are
// never edited; a new extraction supersedes the previous set.
type ServiceRequest struct {
	Category catalog.Category `json:"category"`
	FreeText string           `json:"free_text"`
	Details  Details          `json:"details"`
}
