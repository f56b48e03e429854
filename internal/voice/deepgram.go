package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/sjawhar/roomline/internal/transcript"
)

var ErrNotConfigured = errors.New("live transcription is not configured")

type Options struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Logger     *slog.Logger
}

// Transcriber opens one Deepgram live stream per call.
type Transcriber struct {
	opts     Options
	appender Appender
}

var initOnce sync.Once

func NewTranscriber(opts Options, appender Appender) *Transcriber {
	if opts.Model == "" {
		opts.Model = "nova-2"
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Transcriber{opts: opts, appender: appender}
}

func (t *Transcriber) Enabled() bool {
	return t != nil && t.opts.APIKey != ""
}

// Open connects a stream for callID. Linear16 PCM written to the returned
// writer is transcribed; Close flushes pending words and disconnects.
func (t *Transcriber) Open(ctx context.Context, callID string) (io.WriteCloser, error) {
	if !t.Enabled() {
		return nil, ErrNotConfigured
	}
	initOnce.Do(func() {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	})

	listener := NewListener(callID, transcript.SpeakerGuest, t.appender, t.opts.Logger)
	cOptions := &interfaces.ClientOptions{APIKey: t.opts.APIKey, EnableKeepAlive: true}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          t.opts.Model,
		Language:       t.opts.Language,
		Diarize:        true,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		Encoding:       "linear16",
		SampleRate:     t.opts.SampleRate,
		Channels:       1,
	}

	dg, err := client.NewWSUsingCallback(ctx, t.opts.APIKey, cOptions, tOptions, listener)
	if err != nil {
		return nil, fmt.Errorf("create deepgram client: %w", err)
	}
	if ok := dg.Connect(); !ok {
		return nil, errors.New("connect deepgram: websocket handshake failed")
	}
	return &stream{writer: dg, stop: dg.Stop, listener: listener}, nil
}

type stream struct {
	writer   io.Writer
	stop     func()
	listener *Listener
	once     sync.Once
}

func (s *stream) Write(p []byte) (int, error) { return s.writer.Write(p) }

func (s *stream) Close() error {
	s.once.Do(func() {
		s.stop()
		_ = s.listener.Flush()
	})
	return nil
}
