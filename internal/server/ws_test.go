package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/roomline/internal/bus"
	"github.com/sjawhar/roomline/internal/order"
)

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	readUntil(t, ws, bus.TypeConnection)
	return ws
}

// readUntil reads frames until one of the wanted type arrives.
func readUntil(t *testing.T, ws *websocket.Conn, eventType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = ws.SetReadDeadline(deadline)
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", eventType, err)
		}
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if payload["type"] == eventType {
			return payload
		}
	}
}

func sendWS(t *testing.T, ws *websocket.Conn, msg string) {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write %s: %v", msg, err)
	}
}

func TestWSOrderStatusReachesEveryKey(t *testing.T) {
	env := newTestEnv(t, false)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	o := env.placeOrder(t, burgerDraft)

	guest := dialWS(t, srv, "?key=call-1")
	readUntil(t, guest, bus.TypeSubscribed)

	tracker := dialWS(t, srv, "")
	sendWS(t, tracker, `{"type": "subscribe", "key": "`+o.Reference+`"}`)
	ack := readUntil(t, tracker, bus.TypeSubscribed)
	if ack["key"] != o.Reference {
		t.Fatalf("expected ack for %s, got %v", o.Reference, ack)
	}

	staff := dialWS(t, srv, "?token="+staffToken)
	sendWS(t, staff, `{"type": "subscribe", "key": "staff"}`)
	readUntil(t, staff, bus.TypeSubscribed)

	rr := env.do(t, http.MethodPost, "/api/orders/"+o.Reference+"/status", `{"status": "in_progress"}`, staffToken)
	expectStatus(t, rr, http.StatusOK)

	for name, ws := range map[string]*websocket.Conn{"guest": guest, "tracker": tracker, "staff": staff} {
		ev := readUntil(t, ws, bus.TypeOrderStatus)
		if ev["order_ref"] != o.Reference || ev["status"] != string(order.StatusInProgress) || ev["previous_status"] != string(order.StatusAcknowledged) {
			t.Fatalf("%s: unexpected event %v", name, ev)
		}
		if ev["version"] == nil || ev["timestamp"] == nil {
			t.Fatalf("%s: expected version and timestamp, got %v", name, ev)
		}
	}
}

func TestWSTranscriptEvents(t *testing.T) {
	env := newTestEnv(t, false)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	guest := dialWS(t, srv, "?key=call-7")
	readUntil(t, guest, bus.TypeSubscribed)

	rr := env.do(t, http.MethodPost, "/api/calls/call-7/transcript", `{"speaker": "guest", "text": "Extra towels please"}`, "")
	expectStatus(t, rr, http.StatusCreated)

	readUntil(t, guest, bus.TypeCallStarted)
	ev := readUntil(t, guest, bus.TypeTranscript)
	entry, ok := ev["entry"].(map[string]any)
	if !ok || entry["text"] != "Extra towels please" || entry["seq"] != float64(1) {
		t.Fatalf("unexpected transcript event %v", ev)
	}

	expectStatus(t, env.do(t, http.MethodPost, "/api/calls/call-7/end", "", ""), http.StatusOK)
	summary := readUntil(t, guest, bus.TypeSummaryReady)
	if summary["generated_by"] != "heuristic" {
		t.Fatalf("unexpected summary event %v", summary)
	}
}

func TestWSStaffKeyRequiresCredential(t *testing.T) {
	env := newTestEnv(t, false)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ws := dialWS(t, srv, "")
	sendWS(t, ws, `{"type": "subscribe", "key": "staff"}`)
	ev := readUntil(t, ws, bus.TypeError)
	if ev["error"] != "staff credential required" {
		t.Fatalf("unexpected error event %v", ev)
	}
	if env.bus.Subscribers(bus.StaffKey) != 0 {
		t.Fatal("expected no staff subscribers")
	}

	sendWS(t, ws, `{"type": "subscribe", "key": ""}`)
	readUntil(t, ws, bus.TypeError)
	sendWS(t, ws, `{"type": "dance"}`)
	readUntil(t, ws, bus.TypeError)
	sendWS(t, ws, `not json`)
	readUntil(t, ws, bus.TypeError)
}

func TestWSUnsubscribeStopsDelivery(t *testing.T) {
	env := newTestEnv(t, false)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ws := dialWS(t, srv, "?key=call-1")
	readUntil(t, ws, bus.TypeSubscribed)
	sendWS(t, ws, `{"type": "unsubscribe", "key": "call-1"}`)
	readUntil(t, ws, bus.TypeUnsubscribed)

	if n := env.bus.Subscribers("call-1"); n != 0 {
		t.Fatalf("expected no subscribers after unsubscribe, got %d", n)
	}
}

func TestWSHeartbeat(t *testing.T) {
	env := newTestEnv(t, false)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	responsive := dialWS(t, srv, "")
	silent := dialWS(t, srv, "")

	env.bus.Sweep()
	readUntil(t, responsive, bus.TypePing)
	readUntil(t, silent, bus.TypePing)

	sendWS(t, responsive, `{"type": "pong"}`)
	// The subscribe ack proves the pong before it was processed.
	sendWS(t, responsive, `{"type": "subscribe", "key": "call-1"}`)
	readUntil(t, responsive, bus.TypeSubscribed)

	env.bus.Sweep()

	readUntil(t, responsive, bus.TypePing)

	_ = silent.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := silent.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Fatalf("expected going-away close, got %v", err)
			}
			break
		}
	}
	if n := env.bus.Connections(); n != 1 {
		t.Fatalf("expected one surviving connection, got %d", n)
	}
}
