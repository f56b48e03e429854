package bus

import (
	"time"

	"github.com/sjawhar/roomline/internal/order"
	"github.com/sjawhar/roomline/internal/summary"
	"github.com/sjawhar/roomline/internal/transcript"
)

const EventVersion = 1

// StaffKey receives every transcript, summary and order event.
const StaffKey = "staff"

const (
	TypeConnection   = "connection"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypeError        = "error"
	TypePing         = "ping"
	TypeTranscript   = "transcript"
	TypeOrderStatus  = "order_status"
	TypeSummaryReady = "summary_ready"
	TypeCallStarted  = "call_started"
	TypeCallEnded    = "call_ended"
)

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
	Key       string `json:"key,omitempty"`
}

type ConnectionEvent struct {
	Event
	Connected bool   `json:"connected"`
	ConnID    string `json:"conn_id"`
}

// AckEvent answers subscribe/unsubscribe requests and reports protocol errors.
type AckEvent struct {
	Event
	Error string `json:"error,omitempty"`
}

type PingEvent struct {
	Event
}

type TranscriptEvent struct {
	Event
	Entry transcript.Entry `json:"entry"`
}

type OrderStatusEvent struct {
	Event
	OrderRef       string       `json:"order_ref"`
	CallID         string       `json:"call_id"`
	RoomNumber     string       `json:"room_number"`
	Status         order.Status `json:"status"`
	PreviousStatus order.Status `json:"previous_status,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type SummaryReadyEvent struct {
	Event
	CallID      string                   `json:"call_id"`
	Summary     string                   `json:"summary"`
	GeneratedBy summary.Source           `json:"generated_by"`
	RoomNumber  string                   `json:"room_number,omitempty"`
	Requests    []summary.ServiceRequest `json:"requests"`
}

type CallStartedEvent struct {
	Event
	CallID string `json:"call_id"`
}

type CallEndedEvent struct {
	Event
	CallID   string  `json:"call_id"`
	Duration float64 `json:"duration"`
}

func newEvent(eventType, key string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Key:       key,
	}
}

// NewEvent builds the common event envelope for transports.
func NewEvent(eventType, key string) Event {
	return newEvent(eventType, key, time.Now())
}

// publishKeyed sends one copy of an event per distinct key, with the key
// stamped into the envelope.
func (b *Bus) publishKeyed(keys []string, build func(key string) any) {
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		b.PublishEvent(key, build(key))
	}
}

// PublishTranscript fans an appended entry out to the call and to staff.
func (b *Bus) PublishTranscript(e transcript.Entry) {
	now := b.now()
	b.publishKeyed([]string{e.SessionID, StaffKey}, func(key string) any {
		return TranscriptEvent{Event: newEvent(TypeTranscript, key, now), Entry: e}
	})
}

// PublishOrderStatus sends an order's current status to its reference, its
// originating call and staff. previous is empty for a newly placed order.
func (b *Bus) PublishOrderStatus(o order.Order, previous order.Status) {
	now := b.now()
	b.publishKeyed([]string{o.Reference, o.CallID, StaffKey}, func(key string) any {
		return OrderStatusEvent{
			Event:          newEvent(TypeOrderStatus, key, now),
			OrderRef:       o.Reference,
			CallID:         o.CallID,
			RoomNumber:     o.RoomNumber,
			Status:         o.Status,
			PreviousStatus: previous,
			UpdatedAt:      o.UpdatedAt,
		}
	})
}

func (b *Bus) PublishSummaryReady(s summary.CallSummary, requests []summary.ServiceRequest) {
	if requests == nil {
		requests = []summary.ServiceRequest{}
	}
	now := b.now()
	b.publishKeyed([]string{s.CallID, StaffKey}, func(key string) any {
		return SummaryReadyEvent{
			Event:       newEvent(TypeSummaryReady, key, now),
			CallID:      s.CallID,
			Summary:     s.Text,
			GeneratedBy: s.GeneratedBy,
			RoomNumber:  s.RoomNumber,
			Requests:    requests,
		}
	})
}

func (b *Bus) PublishCallStarted(callID string) {
	now := b.now()
	b.publishKeyed([]string{callID, StaffKey}, func(key string) any {
		return CallStartedEvent{Event: newEvent(TypeCallStarted, key, now), CallID: callID}
	})
}

func (b *Bus) PublishCallEnded(callID string, duration time.Duration) {
	now := b.now()
	b.publishKeyed([]string{callID, StaffKey}, func(key string) any {
		return CallEndedEvent{Event: newEvent(TypeCallEnded, key, now), CallID: callID, Duration: duration.Seconds()}
	})
}
