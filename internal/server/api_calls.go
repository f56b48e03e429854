package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sjawhar/roomline/internal/storage"
	"github.com/sjawhar/roomline/internal/summary"
	"github.com/sjawhar/roomline/internal/transcript"
)

type startCallRequest struct {
	CallID   string `json:"call_id"`
	Language string `json:"language"`
}

type appendRequest struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type summaryResponse struct {
	Call     storage.Call             `json:"call"`
	Summary  *summary.CallSummary     `json:"summary"`
	Requests []summary.ServiceRequest `json:"requests"`
}

func registerCallRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("POST /api/calls", func(w http.ResponseWriter, r *http.Request) {
		var req startCallRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		if req.CallID != "" && !validID(req.CallID) {
			writeJSONError(w, http.StatusBadRequest, "invalid call id")
			return
		}

		c, err := deps.Calls.Start(req.CallID, req.Language)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	})

	mux.HandleFunc("POST /api/calls/{id}/transcript", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validID(callID) {
			writeJSONError(w, http.StatusBadRequest, "invalid call id")
			return
		}

		var req appendRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		speaker, err := transcript.ParseSpeaker(req.Speaker)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		entry, err := deps.Calls.Append(callID, speaker, req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	})

	mux.HandleFunc("GET /api/calls/{id}/transcript", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validID(callID) {
			writeJSONError(w, http.StatusBadRequest, "invalid call id")
			return
		}
		entries, err := deps.Calls.Entries(callID)
		if err != nil {
			writeError(w, err)
			return
		}
		if entries == nil {
			entries = []transcript.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})

	mux.HandleFunc("POST /api/calls/{id}/end", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validID(callID) {
			writeJSONError(w, http.StatusBadRequest, "invalid call id")
			return
		}
		result, err := deps.Calls.End(r.Context(), callID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("GET /api/calls/{id}/summary", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validID(callID) {
			writeJSONError(w, http.StatusBadRequest, "invalid call id")
			return
		}

		c, err := deps.CallStore.GetCall(callID)
		if err != nil {
			writeError(w, err)
			return
		}
		resp := summaryResponse{Call: c, Requests: []summary.ServiceRequest{}}

		cs, err := deps.CallStore.LatestSummary(callID)
		switch {
		case err == nil:
			resp.Summary = &cs
		case !errors.Is(err, storage.ErrNotFound):
			writeError(w, err)
			return
		}

		requests, err := deps.CallStore.GetRequests(callID)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.Requests = requests
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /api/calls/{id}/summaries", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validID(callID) {
			writeJSONError(w, http.StatusBadRequest, "invalid call id")
			return
		}
		if _, err := deps.CallStore.GetCall(callID); err != nil {
			writeError(w, err)
			return
		}
		history, err := deps.CallStore.SummaryHistory(callID)
		if err != nil {
			writeError(w, err)
			return
		}
		if history == nil {
			history = []summary.CallSummary{}
		}
		writeJSON(w, http.StatusOK, history)
	})

	mux.HandleFunc("POST /api/calls/{id}/summarize", func(w http.ResponseWriter, r *http.Request) {
		callID := r.PathValue("id")
		if !validID(callID) {
			writeJSONError(w, http.StatusBadRequest, "invalid call id")
			return
		}
		if _, err := deps.CallStore.GetCall(callID); err != nil {
			writeError(w, err)
			return
		}
		force := r.URL.Query().Get("heuristic") == "true"
		deps.Calls.ResummarizeAsync(callID, force)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	mux.HandleFunc("GET /api/calls", deps.Staff.require(func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q", date))
			return
		}
		calls, err := deps.CallStore.ListCallsByDate(date)
		if err != nil {
			writeError(w, err)
			return
		}
		if calls == nil {
			calls = []storage.Call{}
		}
		writeJSON(w, http.StatusOK, calls)
	}))

	mux.HandleFunc("GET /api/dates", deps.Staff.require(func(w http.ResponseWriter, r *http.Request) {
		dates, err := deps.CallStore.GetDates()
		if err != nil {
			writeError(w, err)
			return
		}
		if dates == nil {
			dates = []string{}
		}
		writeJSON(w, http.StatusOK, dates)
	}))
}
