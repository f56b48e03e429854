// Package voice turns a call's live audio into transcript entries using
// Deepgram streaming transcription.
package voice

import (
	"log/slog"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"

	"github.com/sjawhar/roomline/internal/transcript"
)

type Appender interface {
	Append(callID string, speaker transcript.Speaker, text string) (transcript.Entry, error)
}

// Listener receives Deepgram callbacks for one call. Every finished utterance
// is appended to the call under the listener's speaker role.
type Listener struct {
	callID   string
	speaker  transcript.Speaker
	appender Appender
	logger   *slog.Logger

	mu     sync.Mutex
	buffer utteranceBuffer
}

func NewListener(callID string, speaker transcript.Speaker, appender Appender, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	if speaker == "" {
		speaker = transcript.SpeakerGuest
	}
	return &Listener{callID: callID, speaker: speaker, appender: appender, logger: logger}
}

func (l *Listener) Message(mr *api.MessageResponse) error {
	if !mr.IsFinal || len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	if strings.TrimSpace(alt.Transcript) == "" {
		return nil
	}

	words := make([]Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, Word{
			Speaker:        w.Speaker,
			PunctuatedWord: w.PunctuatedWord,
			Start:          w.Start,
			End:            w.End,
		})
	}

	l.mu.Lock()
	l.buffer.add(words)
	l.mu.Unlock()

	if mr.SpeechFinal {
		return l.Flush()
	}
	return nil
}

func (l *Listener) UtteranceEnd(*api.UtteranceEndResponse) error {
	return l.Flush()
}

// Flush appends whatever is buffered, one entry per speaker segment. A failed
// segment is logged and dropped; the remaining segments are still appended.
func (l *Listener) Flush() error {
	l.mu.Lock()
	words := l.buffer.flush()
	l.mu.Unlock()

	for _, seg := range GroupWordsBySpeaker(words) {
		if _, err := l.appender.Append(l.callID, l.speaker, seg.Text); err != nil {
			l.logger.Warn("voice: append utterance failed", "call_id", l.callID, "speaker", seg.Speaker, "error", err)
		}
	}
	return nil
}

func (l *Listener) Open(*api.OpenResponse) error {
	l.logger.Info("voice: connected to Deepgram", "call_id", l.callID)
	return nil
}

func (l *Listener) Close(*api.CloseResponse) error {
	l.logger.Info("voice: disconnected from Deepgram", "call_id", l.callID)
	return nil
}

func (l *Listener) Error(er *api.ErrorResponse) error {
	l.logger.Warn("voice: deepgram error", "call_id", l.callID, "code", er.ErrCode, "description", er.Description)
	return nil
}

func (l *Listener) Metadata(*api.MetadataResponse) error { return nil }

func (l *Listener) SpeechStarted(*api.SpeechStartedResponse) error { return nil }

func (l *Listener) UnhandledEvent([]byte) error { return nil }
