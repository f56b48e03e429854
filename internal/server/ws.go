package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sjawhar/roomline/internal/bus"
)

const (
	writeWait       = 10 * time.Second
	maxClientFrame  = 4 << 10
	maxAudioFrame   = 1 << 20
	clientReplySize = 8
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type clientMessage struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

func registerWSRoutes(mux *http.ServeMux, deps Deps) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		serveBus(w, r, deps)
	})
	mux.HandleFunc("GET /ws/calls/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		serveAudio(w, r, deps)
	})
}

// serveBus attaches a websocket to the bus. The socket's single writer is the
// loop below; the reader hands its acknowledgements over through replies.
func serveBus(w http.ResponseWriter, r *http.Request, deps Deps) {
	if deps.Bus == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "status bus unavailable")
		return
	}
	staff, _ := deps.Staff.Authenticate(r)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		deps.Logger.Warn("ws: upgrade failed", "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	conn := deps.Bus.Connect()
	defer deps.Bus.Close(conn)

	hello, _ := json.Marshal(bus.ConnectionEvent{
		Event:     bus.NewEvent(bus.TypeConnection, ""),
		Connected: true,
		ConnID:    conn.ID(),
	})
	if err := writeFrame(ws, hello); err != nil {
		return
	}

	replies := make(chan []byte, clientReplySize)
	s := busSession{deps: deps, conn: conn, staff: staff, replies: replies}
	keys := r.URL.Query()["key"]
	if len(keys) > clientReplySize {
		keys = keys[:clientReplySize]
	}
	for _, key := range keys {
		s.handle(clientMessage{Type: "subscribe", Key: key})
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.read(ws)
	}()

	for {
		select {
		case msg, ok := <-conn.Messages():
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "unresponsive"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeFrame(ws, msg); err != nil {
				return
			}
		case msg := <-replies:
			if err := writeFrame(ws, msg); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

func writeFrame(ws *websocket.Conn, msg []byte) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, msg)
}

type busSession struct {
	deps    Deps
	conn    *bus.Conn
	staff   string
	replies chan []byte
}

func (s busSession) read(ws *websocket.Conn) {
	ws.SetReadLimit(maxClientFrame)
	ws.SetPongHandler(func(string) error {
		s.conn.Ack()
		return nil
	})
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.reply(bus.TypeError, "", "invalid message")
			continue
		}
		s.handle(msg)
	}
}

func (s busSession) handle(msg clientMessage) {
	switch msg.Type {
	case "pong":
		s.conn.Ack()
	case "subscribe":
		if msg.Key == bus.StaffKey && s.staff == "" {
			s.reply(bus.TypeError, msg.Key, "staff credential required")
			return
		}
		if err := s.deps.Bus.Subscribe(msg.Key, s.conn); err != nil {
			s.reply(bus.TypeError, msg.Key, err.Error())
			return
		}
		s.reply(bus.TypeSubscribed, msg.Key, "")
	case "unsubscribe":
		s.deps.Bus.UnsubscribeKey(msg.Key, s.conn)
		s.reply(bus.TypeUnsubscribed, msg.Key, "")
	default:
		s.reply(bus.TypeError, msg.Key, "unknown message type "+msg.Type)
	}
}

func (s busSession) reply(eventType, key, errMsg string) {
	payload, err := json.Marshal(bus.AckEvent{Event: bus.NewEvent(eventType, key), Error: errMsg})
	if err != nil {
		return
	}
	select {
	case s.replies <- payload:
	case <-s.conn.Done():
	}
}

// serveAudio streams binary linear16 frames from the guest client into live
// transcription for the call, recording them on the way.
func serveAudio(w http.ResponseWriter, r *http.Request, deps Deps) {
	callID := r.PathValue("id")
	if !validID(callID) {
		writeJSONError(w, http.StatusBadRequest, "invalid call id")
		return
	}
	if deps.Audio == nil || !deps.Audio.Enabled() {
		writeJSONError(w, http.StatusServiceUnavailable, "live transcription is not configured")
		return
	}
	if _, err := deps.Calls.Start(callID, r.URL.Query().Get("language")); err != nil {
		writeError(w, err)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		deps.Logger.Warn("ws: audio upgrade failed", "call_id", callID, "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	stream, err := deps.Audio.Open(r.Context(), callID)
	if err != nil {
		deps.Logger.Warn("ws: open transcription stream failed", "call_id", callID, "error", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "transcription unavailable"),
			time.Now().Add(writeWait))
		return
	}
	defer func() { _ = stream.Close() }()

	var sink io.Writer = stream
	if deps.Recorder != nil {
		sink = deps.Recorder.Writer(callID, stream)
	}

	ws.SetReadLimit(maxAudioFrame)
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if _, err := sink.Write(data); err != nil {
			deps.Logger.Warn("ws: forward audio failed", "call_id", callID, "error", err)
			return
		}
	}
}
