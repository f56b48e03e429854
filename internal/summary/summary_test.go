package summary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/roomline/internal/llm"
	"github.com/sjawhar/roomline/internal/transcript"
)

type mockLLMClient struct {
	mu       sync.Mutex
	calls    int
	response string
	errs     []error
	lastReq  llm.Request
	block    bool
}

func (m *mockLLMClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastReq = req
	var err error
	if len(m.errs) > 0 {
		err = m.errs[0]
		m.errs = m.errs[1:]
	}
	block := m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", &llm.Error{Kind: llm.ErrUnavailable, Provider: "mock", Err: ctx.Err()}
	}
	if err != nil {
		return "", err
	}
	return m.response, nil
}

func (m *mockLLMClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func providerErr(kind error) error {
	return &llm.Error{Kind: kind, Provider: "mock", Err: errors.New(kind.Error())}
}

func conversation(lines ...string) []transcript.Entry {
	start := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	entries := make([]transcript.Entry, 0, len(lines))
	for i, line := range lines {
		speaker := transcript.SpeakerGuest
		if i%2 == 1 {
			speaker = transcript.SpeakerAssistant
		}
		entries = append(entries, transcript.Entry{
			SessionID:  "call-1",
			Seq:        int64(i + 1),
			Speaker:    speaker,
			Text:       line,
			OccurredAt: start.Add(time.Duration(i) * 10 * time.Second),
		})
	}
	return entries
}

func burgerCall() []transcript.Entry {
	return conversation(
		"Hi, this is room 305. I'd like 2 beef burgers and 1 orange juice, within 30 minutes please.",
		"Certainly. Two beef burgers and one orange juice to room 305 within 30 minutes.",
	)
}

func noSleep(time.Duration) {}

func recordSleeps(dst *[]time.Duration) func(time.Duration) {
	return func(d time.Duration) { *dst = append(*dst, d) }
}

func longText(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}
