package summary

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sjawhar/roomline/internal/llm"
	"github.com/sjawhar/roomline/internal/transcript"
)

// TextGenerator is satisfied by *Generator.
type TextGenerator interface {
	Generate(ctx context.Context, entries []transcript.Entry, language string) (string, error)
}

type Input struct {
	CallID         string
	Entries        []transcript.Entry
	Language       string
	ForceHeuristic bool
}

// Orchestrator picks between generative and heuristic summarization. It never
// fails: any generative failure degrades to the heuristic summary.
type Orchestrator struct {
	generator TextGenerator
	timeout   time.Duration
	sem       *semaphore.Weighted
	logger    *slog.Logger
	now       func() time.Time
}

type OrchestratorConfig struct {
	Timeout       time.Duration
	MaxConcurrent int64
	Logger        *slog.Logger
}

// NewOrchestrator builds an orchestrator. generator may be nil, in which case
// every summary is heuristic.
func NewOrchestrator(generator TextGenerator, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		generator: generator,
		timeout:   cfg.Timeout,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

func (o *Orchestrator) Summarize(ctx context.Context, in Input) CallSummary {
	language := NormalizeLanguage(in.Language)
	result := CallSummary{
		CallID:          in.CallID,
		Language:        language,
		RoomNumber:      RoomFromTranscript(in.Entries),
		DurationSeconds: transcript.Duration(in.Entries).Seconds(),
		CreatedAt:       o.now().UTC(),
	}

	if !in.ForceHeuristic && o.generator != nil && len(in.Entries) > 0 {
		text, err := o.generate(ctx, in.Entries, language)
		if err == nil {
			result.Text = text
			result.GeneratedBy = SourceGenerative
			return result
		}
		o.logger.Warn("summary: falling back to heuristic", "call_id", in.CallID, "error", err)
	}

	result.Text = HeuristicSummary(in.Entries, language)
	result.GeneratedBy = SourceHeuristic
	return result
}

func (o *Orchestrator) generate(ctx context.Context, entries []transcript.Entry, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return "", &GenerationError{Kind: llm.ErrUnavailable, Err: err}
	}

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer o.sem.Release(1)
		text, err := o.generator.Generate(ctx, entries, language)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		return out.text, out.err
	case <-ctx.Done():
		return "", &GenerationError{Kind: llm.ErrUnavailable, Err: ctx.Err()}
	}
}
