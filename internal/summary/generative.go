package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sjawhar/roomline/internal/llm"
	"github.com/sjawhar/roomline/internal/transcript"
)

const (
	summaryMaxTokens   = 1024
	summaryTemperature = 0.2
)

// GenerationError is the typed failure of a generative attempt. Kind is one
// of llm.ErrUnavailable, llm.ErrRateLimited or llm.ErrBadResponse.
type GenerationError struct {
	Kind     error
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate summary (%d attempts): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Generator produces summaries with the generative collaborator.
type Generator struct {
	client          llm.Client
	tokenizer       *Tokenizer
	maxPromptTokens int
	backoff         []time.Duration
	sleep           func(time.Duration)
}

type GeneratorOption func(*Generator)

// WithTokenizer trims transcripts to maxTokens before templating.
func WithTokenizer(t *Tokenizer, maxTokens int) GeneratorOption {
	return func(g *Generator) {
		g.tokenizer = t
		g.maxPromptTokens = maxTokens
	}
}

func WithBackoff(backoff []time.Duration) GeneratorOption {
	return func(g *Generator) {
		g.backoff = backoff
	}
}

func NewGenerator(client llm.Client, opts ...GeneratorOption) *Generator {
	g := &Generator{
		client:  client,
		backoff: []time.Duration{1 * time.Second, 4 * time.Second},
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the summary text or a *GenerationError. Unavailable
// failures are retried with backoff while ctx allows.
func (g *Generator) Generate(ctx context.Context, entries []transcript.Entry, language string) (string, error) {
	tmpl := templateFor(language)
	body := transcript.Lines(entries)
	if g.maxPromptTokens > 0 {
		body = g.tokenizer.Fit(body, g.maxPromptTokens)
	}

	req := llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: tmpl.System},
			{Role: "user", Content: tmpl.instructions() + "\n\nTranscript:\n" + body},
		},
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
	}

	attempts := 0
	for {
		attempts++
		result, err := g.client.Complete(ctx, req)
		if err == nil {
			text := strings.TrimSpace(result)
			if text == "" {
				return "", &GenerationError{Kind: llm.ErrBadResponse, Attempts: attempts, Err: errors.New("empty summary")}
			}
			return text, nil
		}

		kind := kindOf(err)
		if kind != llm.ErrUnavailable || attempts > len(g.backoff) || ctx.Err() != nil {
			return "", &GenerationError{Kind: kind, Attempts: attempts, Err: err}
		}
		g.sleep(g.backoff[attempts-1])
		if ctx.Err() != nil {
			return "", &GenerationError{Kind: llm.ErrUnavailable, Attempts: attempts, Err: ctx.Err()}
		}
	}
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return llm.ErrRateLimited
	case errors.Is(err, llm.ErrBadResponse):
		return llm.ErrBadResponse
	default:
		return llm.ErrUnavailable
	}
}
