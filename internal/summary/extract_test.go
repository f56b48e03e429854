package summary

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/roomline/internal/catalog"
	"github.com/sjawhar/roomline/internal/llm"
)

func TestParseRequestsShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"object", `{"requests":[{"category":"room-service","request":"2 beef burgers"}]}`, 1},
		{"bare array", `[{"category":"spa","request":"massage"},{"category":"tours","request":"city tour"}]`, 2},
		{"fenced with comments", "```json\n{\n  // model chatter\n  \"requests\": [{\"category\": \"housekeeping\", \"request\": \"towels\",},]\n}\n```", 1},
		{"empty list", `{"requests": []}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRequests(tt.raw)
			if err != nil {
				t.Fatalf("ParseRequests failed: %v", err)
			}
			if got == nil || len(got) != tt.want {
				t.Fatalf("expected %d requests, got %#v", tt.want, got)
			}
		})
	}
}

func TestParseRequestsDetails(t *testing.T) {
	raw := `{"requests":[{"category":"Room Service","request":" burgers ","details":{"time":"19:30","party_size":2,"amount":24.5,"roomNumber":"305","notes":"no onions"}},
		{"category":"yacht charter","request":"boat"}]}`

	got, err := ParseRequests(raw)
	if err != nil {
		t.Fatalf("ParseRequests failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(got))
	}
	first := got[0]
	if first.Category != catalog.RoomService || first.FreeText != "burgers" {
		t.Fatalf("unexpected first request %+v", first)
	}
	d := first.Details
	if d.Time != "19:30" || d.RoomNumber != "305" || d.Notes != "no onions" {
		t.Fatalf("unexpected details %+v", d)
	}
	if d.PartySize == nil || *d.PartySize != 2 || d.Amount == nil || *d.Amount != 24.5 {
		t.Fatalf("unexpected numeric details %+v", d)
	}
	if got[1].Category != catalog.Other {
		t.Fatalf("expected unknown category to map to other, got %q", got[1].Category)
	}
}

func TestParseRequestsRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"not json", `{"summary":"no list"}`, `{"requests":"nope"}`, `42`} {
		if _, err := ParseRequests(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestExtractorDegradesToEmptyList(t *testing.T) {
	tests := []struct {
		name   string
		client *mockLLMClient
	}{
		{"malformed json", &mockLLMClient{response: "I think the guest wants food"}},
		{"object without requests", &mockLLMClient{response: `{"items": []}`}},
		{"generator failure", &mockLLMClient{errs: []error{providerErr(llm.ErrUnavailable)}}},
		{"timeout", &mockLLMClient{block: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(tt.client, 20*time.Millisecond, quietLogger())
			got := e.Extract(context.Background(), "REQUEST 1: Food & Beverage")
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil list, got %#v", got)
			}
		})
	}
}

func TestExtractorRequestsJSONMode(t *testing.T) {
	client := &mockLLMClient{response: `[{"category":"room-service","request":"2 beef burgers and 1 orange juice"}]`}
	e := NewExtractor(client, time.Second, quietLogger())

	got := e.Extract(context.Background(), "Room 305. REQUEST 1: Food & Beverage")
	if len(got) != 1 || got[0].Category != catalog.RoomService {
		t.Fatalf("unexpected requests %#v", got)
	}
	if !client.lastReq.JSON {
		t.Fatal("expected JSON mode request")
	}
}

func TestExtractorPromptAsksForInferredDetails(t *testing.T) {
	client := &mockLLMClient{response: `{"requests": []}`}
	e := NewExtractor(client, time.Second, quietLogger())
	e.now = func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }

	e.Extract(context.Background(), "Room 305. REQUEST 1: dinner for two on March 20")

	prompt := client.lastReq.Messages[0].Content
	for _, want := range []string{"Fill every details field", "infer", "today is 2026-03-14", "dinner for two on March 20"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q, got:\n%s", want, prompt)
		}
	}
	if strings.Contains(strings.ToLower(prompt), "omit") {
		t.Fatalf("prompt must not allow omitting details:\n%s", prompt)
	}
}

func TestExtractorWithoutClient(t *testing.T) {
	var e *Extractor
	if got := e.Extract(context.Background(), "anything"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %#v", got)
	}
	if got := NewExtractor(nil, 0, nil).Extract(context.Background(), "anything"); len(got) != 0 {
		t.Fatalf("expected empty list, got %#v", got)
	}
}
