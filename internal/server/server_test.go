package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/roomline/internal/bus"
	"github.com/sjawhar/roomline/internal/call"
	"github.com/sjawhar/roomline/internal/order"
	"github.com/sjawhar/roomline/internal/storage"
	"github.com/sjawhar/roomline/internal/summary"
)

const staffToken = "s3cret"

type testEnv struct {
	handler http.Handler
	bus     *bus.Bus
	store   *storage.SQLiteStore
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestEnv(t *testing.T, strict bool) testEnv {
	t.Helper()
	logger := quietLogger()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "roomline.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	b := bus.New(bus.Config{Heartbeat: time.Hour, Logger: logger})
	manager := call.NewManager(call.Deps{
		Store:      store,
		Summarizer: summary.NewOrchestrator(nil, summary.OrchestratorConfig{Logger: logger}),
		Events:     b,
	}, call.Config{IdleTimeout: time.Hour, Logger: logger})
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	orders := order.NewService(store, b, nil, order.ServiceConfig{Strict: strict, Logger: logger})

	h := Handler(Deps{
		Calls:     manager,
		CallStore: store,
		Orders:    orders,
		Bus:       b,
		Staff:     NewStaffAuth([]string{"alice:" + staffToken}),
		Warnings:  func() []string { return []string{"Deepgram API key not configured"} },
		Logger:    logger,
	})
	return testEnv{handler: h, bus: b, store: store}
}

func (e testEnv) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

const burgerDraft = `{
	"call_id": "call-1",
	"room_number": "305",
	"items": [{"name": "Beef Burger", "quantity": 2, "unit_price": 12.5}],
	"delivery_timing": "30min"
}`

func (e testEnv) placeOrder(t *testing.T, draft string) order.Order {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/orders", draft, "")
	expectStatus(t, rr, http.StatusCreated)
	return decode[submitResponse](t, rr).Order
}

func TestCallLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPost, "/api/calls", `{"call_id": "call-1", "language": "en"}`, "")
	expectStatus(t, rr, http.StatusCreated)
	if c := decode[storage.Call](t, rr); c.ID != "call-1" || c.Status != storage.CallActive {
		t.Fatalf("unexpected call %+v", c)
	}

	rr = env.do(t, http.MethodPost, "/api/calls/call-1/transcript", `{"speaker": "guest", "text": "Room 305, two beef burgers please"}`, "")
	expectStatus(t, rr, http.StatusCreated)
	rr = env.do(t, http.MethodPost, "/api/calls/call-1/transcript", `{"speaker": "bot", "text": "Certainly, anything else?"}`, "")
	expectStatus(t, rr, http.StatusCreated)

	rr = env.do(t, http.MethodGet, "/api/calls/call-1/transcript", "", "")
	expectStatus(t, rr, http.StatusOK)
	if entries := decode[[]map[string]any](t, rr); len(entries) != 2 || entries[1]["speaker"] != "assistant" {
		t.Fatalf("unexpected transcript %v", entries)
	}

	rr = env.do(t, http.MethodPost, "/api/calls/call-1/end", "", "")
	expectStatus(t, rr, http.StatusOK)
	result := decode[call.Result](t, rr)
	if result.Summary.GeneratedBy != summary.SourceHeuristic || !strings.Contains(result.Summary.Text, "305") {
		t.Fatalf("unexpected summary %+v", result.Summary)
	}

	rr = env.do(t, http.MethodGet, "/api/calls/call-1/summary", "", "")
	expectStatus(t, rr, http.StatusOK)
	got := decode[summaryResponse](t, rr)
	if got.Summary == nil || got.Summary.RoomNumber != "305" || got.Call.Status != storage.CallEnded {
		t.Fatalf("unexpected summary response %+v", got)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/calls/call-1/end", "", ""), http.StatusConflict)
	expectStatus(t, env.do(t, http.MethodPost, "/api/calls/call-1/transcript", `{"speaker": "guest", "text": "hello?"}`, ""), http.StatusConflict)

	expectStatus(t, env.do(t, http.MethodPost, "/api/calls/call-1/summarize?heuristic=true", "", ""), http.StatusAccepted)
	expectStatus(t, env.do(t, http.MethodPost, "/api/calls/nope/summarize", "", ""), http.StatusNotFound)
	expectStatus(t, env.do(t, http.MethodGet, "/api/calls/nope/summary", "", ""), http.StatusNotFound)
}

func TestStartCallGeneratesID(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPost, "/api/calls", "", "")
	expectStatus(t, rr, http.StatusCreated)
	if c := decode[storage.Call](t, rr); !strings.HasPrefix(c.ID, "CALL-") {
		t.Fatalf("expected generated call id, got %q", c.ID)
	}
}

func TestAppendValidation(t *testing.T) {
	env := newTestEnv(t, false)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown speaker", "/api/calls/call-1/transcript", `{"speaker": "robot", "text": "hi"}`},
		{"empty text", "/api/calls/call-1/transcript", `{"speaker": "guest", "text": "   "}`},
		{"bad json", "/api/calls/call-1/transcript", `{"speaker":`},
		{"bad id", "/api/calls/bad%20id/transcript", `{"speaker": "guest", "text": "hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(t, http.MethodPost, tt.path, tt.body, ""), http.StatusBadRequest)
		})
	}
}

func TestSubmitOrderReportsCorrections(t *testing.T) {
	env := newTestEnv(t, false)

	rr := env.do(t, http.MethodPost, "/api/orders", `{
		"reference": "ORD-HIJACKED",
		"room_number": "penthouse",
		"items": [{"name": "Club Sandwich", "quantity": 1, "unit_price": 9}, {"name": "", "quantity": 1}],
		"delivery_timing": "whenever"
	}`, "")
	expectStatus(t, rr, http.StatusCreated)
	resp := decode[submitResponse](t, rr)

	if resp.Order.Reference == "ORD-HIJACKED" || !strings.HasPrefix(resp.Order.Reference, "ORD-") {
		t.Fatalf("expected server-assigned reference, got %q", resp.Order.Reference)
	}
	if resp.Order.RoomNumber != order.DefaultRoomNumber || resp.Order.DeliveryTiming != order.TimingASAP {
		t.Fatalf("unexpected normalized order %+v", resp.Order)
	}
	if resp.Order.TotalAmount != 9 || len(resp.Order.Items) != 1 {
		t.Fatalf("unexpected items/total %+v", resp.Order)
	}
	if len(resp.Corrections) != 3 {
		t.Fatalf("expected 3 corrections, got %+v", resp.Corrections)
	}

	rr = env.do(t, http.MethodGet, "/api/orders/"+resp.Order.Reference, "", "")
	expectStatus(t, rr, http.StatusOK)
	if o := decode[order.Order](t, rr); o.Status != order.StatusAcknowledged {
		t.Fatalf("expected acknowledged order, got %+v", o)
	}
	expectStatus(t, env.do(t, http.MethodGet, "/api/orders/ORD-MISSING1", "", ""), http.StatusNotFound)
}

func TestStrictModeRejectsDraft(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(t, http.MethodPost, "/api/orders", `{"room_number": "lobby", "items": []}`, "")
	expectStatus(t, rr, http.StatusUnprocessableEntity)
	body := decode[map[string]any](t, rr)
	if corrections, ok := body["corrections"].([]any); !ok || len(corrections) != 2 {
		t.Fatalf("expected corrections in body, got %v", body)
	}

	env.placeOrder(t, burgerDraft)
}

func TestStaffEndpointsRequireBearer(t *testing.T) {
	env := newTestEnv(t, false)
	o := env.placeOrder(t, burgerDraft)

	paths := []struct{ method, path, body string }{
		{http.MethodGet, "/api/orders", ""},
		{http.MethodPost, "/api/orders/" + o.Reference + "/status", `{"status": "in_progress"}`},
		{http.MethodGet, "/api/orders/" + o.Reference + "/history", ""},
		{http.MethodGet, "/api/calls", ""},
	}
	for _, p := range paths {
		rr := env.do(t, p.method, p.path, p.body, "")
		expectStatus(t, rr, http.StatusUnauthorized)
		if rr.Header().Get("WWW-Authenticate") == "" {
			t.Fatalf("expected WWW-Authenticate header on %s", p.path)
		}
		expectStatus(t, env.do(t, p.method, p.path, p.body, "wrong"), http.StatusUnauthorized)
	}

	rr := env.do(t, http.MethodGet, "/api/orders?room=305", "", staffToken)
	expectStatus(t, rr, http.StatusOK)
	if orders := decode[[]order.Order](t, rr); len(orders) != 1 || orders[0].Reference != o.Reference {
		t.Fatalf("unexpected orders %+v", orders)
	}
	expectStatus(t, env.do(t, http.MethodGet, "/api/orders?status=bogus", "", staffToken), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodGet, "/api/orders?date=yesterday", "", staffToken), http.StatusBadRequest)
}

func TestOrderStatusTransitions(t *testing.T) {
	env := newTestEnv(t, false)
	o := env.placeOrder(t, burgerDraft)
	statusPath := "/api/orders/" + o.Reference + "/status"

	rr := env.do(t, http.MethodPost, statusPath, `{"status": "in_progress"}`, staffToken)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[order.Order](t, rr); got.Status != order.StatusInProgress {
		t.Fatalf("expected in_progress, got %s", got.Status)
	}

	expectStatus(t, env.do(t, http.MethodPost, statusPath, `{"status": "completed"}`, staffToken), http.StatusConflict)
	expectStatus(t, env.do(t, http.MethodPost, statusPath, `{"status": "done"}`, staffToken), http.StatusBadRequest)
	expectStatus(t, env.do(t, http.MethodPost, "/api/orders/ORD-MISSING1/status", `{"status": "in_progress"}`, staffToken), http.StatusNotFound)

	rr = env.do(t, http.MethodGet, "/api/orders/"+o.Reference+"/history", "", staffToken)
	expectStatus(t, rr, http.StatusOK)
	history := decode[[]order.StatusChange](t, rr)
	if len(history) != 1 || history[0].ChangedBy != "alice" || history[0].To != order.StatusInProgress {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestStatusAndHealth(t *testing.T) {
	env := newTestEnv(t, false)

	expectStatus(t, env.do(t, http.MethodGet, "/healthz", "", ""), http.StatusOK)

	rr := env.do(t, http.MethodGet, "/api/status", "", "")
	expectStatus(t, rr, http.StatusOK)
	body := decode[map[string]any](t, rr)
	if warnings, ok := body["warnings"].([]any); !ok || len(warnings) != 1 {
		t.Fatalf("expected warnings, got %v", body)
	}
	if body["live_transcribe"] != false {
		t.Fatalf("expected live transcription disabled, got %v", body["live_transcribe"])
	}
}

func TestAudioRouteWithoutTranscription(t *testing.T) {
	env := newTestEnv(t, false)
	expectStatus(t, env.do(t, http.MethodGet, "/ws/calls/call-1/audio", "", ""), http.StatusServiceUnavailable)
}

func TestStatusForMapsErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{&order.TransitionError{Reference: "ORD-1", From: order.StatusCompleted, To: order.StatusNote}, http.StatusConflict},
		{call.ErrCallEnded, http.StatusConflict},
		{&order.ValidationError{}, http.StatusUnprocessableEntity},
		{order.ErrUnknownStatus, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestStaffAuthTokens(t *testing.T) {
	auth := NewStaffAuth([]string{"alice:tok-a", "tok-bare", " ", "bob:"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok-bare")
	if name, err := auth.Authenticate(req); err != nil || name != "staff" {
		t.Fatalf("expected bare token to map to staff, got %q %v", name, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws?token=tok-a", nil)
	if name, err := auth.Authenticate(req); err != nil || name != "alice" {
		t.Fatalf("expected query token for alice, got %q %v", name, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	if _, err := auth.Authenticate(req); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := auth.Authenticate(req); err != ErrMissingBearer {
		t.Fatalf("expected ErrMissingBearer, got %v", err)
	}
}

func TestDecodeJSONLimitsBody(t *testing.T) {
	env := newTestEnv(t, false)
	big := `{"room_number": "` + string(bytes.Repeat([]byte("1"), maxBodyBytes+1)) + `"}`
	expectStatus(t, env.do(t, http.MethodPost, "/api/orders", big, ""), http.StatusBadRequest)
}
