package call

import (
	"context"
	"errors"
	"time"

	"github.com/sjawhar/roomline/internal/storage"
	"github.com/sjawhar/roomline/internal/summary"
	"github.com/sjawhar/roomline/internal/transcript"
)

var (
	// ErrCallEnded is returned when appending to or starting a finished call.
	ErrCallEnded = errors.New("call already ended")
	// ErrNotActive is returned by End for a call that is not in progress.
	ErrNotActive = errors.New("call is not active")
)

type Store interface {
	CreateCall(id, language string, startedAt time.Time) error
	EndCall(id string, endedAt time.Time, audioPath string) error
	GetCall(id string) (storage.Call, error)
	AppendEntry(e transcript.Entry) error
	GetEntries(callID string) ([]transcript.Entry, error)
	SetSummaryStatus(callID, status string) error
	SaveSummary(cs summary.CallSummary) error
	SaveRequests(callID string, requests []summary.ServiceRequest) error
	ClaimPipelineRun(callID, transcriptHash string) (bool, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, in summary.Input) summary.CallSummary
}

type Extractor interface {
	Extract(ctx context.Context, summaryText string) []summary.ServiceRequest
}

type EventPublisher interface {
	PublishTranscript(e transcript.Entry)
	PublishCallStarted(callID string)
	PublishCallEnded(callID string, duration time.Duration)
	PublishSummaryReady(cs summary.CallSummary, requests []summary.ServiceRequest)
}

type Recorder interface {
	StartCall(callID string) error
	EndCall(callID string) (string, error)
}

type Archiver interface {
	ArchiveCall(callID string, entries []transcript.Entry, cs summary.CallSummary) error
}

// Result is the outcome of the summary pipeline for one call.
type Result struct {
	Summary  summary.CallSummary      `json:"summary"`
	Requests []summary.ServiceRequest `json:"requests"`
}
