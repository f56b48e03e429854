// Package server exposes calls, orders and the status bus over HTTP and
// websockets.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/sjawhar/roomline/internal/bus"
	"github.com/sjawhar/roomline/internal/call"
	"github.com/sjawhar/roomline/internal/order"
	"github.com/sjawhar/roomline/internal/storage"
	"github.com/sjawhar/roomline/internal/summary"
	"github.com/sjawhar/roomline/internal/transcript"
)

type Calls interface {
	Start(callID, language string) (storage.Call, error)
	Append(callID string, speaker transcript.Speaker, text string) (transcript.Entry, error)
	Entries(callID string) ([]transcript.Entry, error)
	End(ctx context.Context, callID string) (call.Result, error)
	ResummarizeAsync(callID string, forceHeuristic bool)
}

type CallStore interface {
	GetCall(id string) (storage.Call, error)
	ListCallsByDate(date string) ([]storage.Call, error)
	GetDates() ([]string, error)
	LatestSummary(callID string) (summary.CallSummary, error)
	SummaryHistory(callID string) ([]summary.CallSummary, error)
	GetRequests(callID string) ([]summary.ServiceRequest, error)
}

type Orders interface {
	Submit(ctx context.Context, d order.Draft) (order.Order, []order.Correction, error)
	Get(ref string) (order.Order, error)
	List(f order.Filter) ([]order.Order, error)
	Transition(ref string, to order.Status, changedBy string) (order.Order, error)
	History(ref string) ([]order.StatusChange, error)
}

// AudioStreams opens a live transcription stream for a call.
type AudioStreams interface {
	Enabled() bool
	Open(ctx context.Context, callID string) (io.WriteCloser, error)
}

// AudioTee copies a call's inbound audio to its recording.
type AudioTee interface {
	Writer(callID string, dst io.Writer) io.Writer
}

type Deps struct {
	Calls     Calls
	CallStore CallStore
	Orders    Orders
	Bus       *bus.Bus
	Audio     AudioStreams
	Recorder  AudioTee
	Staff     *StaffAuth
	Warnings  func() []string
	Logger    *slog.Logger
}

func Handler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Staff == nil {
		deps.Staff = NewStaffAuth(nil)
	}

	mux := http.NewServeMux()
	registerCallRoutes(mux, deps)
	registerOrderRoutes(mux, deps)
	registerWSRoutes(mux, deps)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		warnings := []string{}
		if deps.Warnings != nil {
			if ws := deps.Warnings(); ws != nil {
				warnings = ws
			}
		}
		connections := 0
		if deps.Bus != nil {
			connections = deps.Bus.Connections()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"warnings":        warnings,
			"connections":     connections,
			"live_transcribe": deps.Audio != nil && deps.Audio.Enabled(),
		})
	})

	return mux
}
