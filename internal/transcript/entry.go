package transcript

import (
	"fmt"
	"strings"
	"time"
)

type Speaker string

const (
	SpeakerGuest     Speaker = "guest"
	SpeakerAssistant Speaker = "assistant"
)

// ParseSpeaker accepts the role names clients send ("user" and "bot" are
// common aliases from voice SDKs).
func ParseSpeaker(raw string) (Speaker, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "guest", "user", "caller":
		return SpeakerGuest, nil
	case "assistant", "bot", "agent", "ai":
		return SpeakerAssistant, nil
	default:
		return "", fmt.Errorf("unknown speaker %q", raw)
	}
}

func (s Speaker) Label() string {
	switch s {
	case SpeakerGuest:
		return "Guest"
	case SpeakerAssistant:
		return "Assistant"
	default:
		return string(s)
	}
}

// Entry is one utterance of a call. Entries are immutable once appended.
type Entry struct {
	SessionID  string    `json:"session_id"`
	Seq        int64     `json:"seq"`
	Speaker    Speaker   `json:"speaker"`
	Text       string    `json:"text"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e Entry) FormatMarkdown() string {
	ts := e.OccurredAt.Format("15:04:05")
	return fmt.Sprintf("**[%s] %s #%d:** %s", ts, e.Speaker.Label(), e.Seq, strings.TrimSpace(e.Text))
}

// Lines renders entries as "Guest: ..." lines for prompts and excerpts.
func Lines(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		b.WriteString(e.Speaker.Label())
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// Duration is the span between the first and last entry.
func Duration(entries []Entry) time.Duration {
	if len(entries) < 2 {
		return 0
	}
	d := entries[len(entries)-1].OccurredAt.Sub(entries[0].OccurredAt)
	if d < 0 {
		return 0
	}
	return d
}
