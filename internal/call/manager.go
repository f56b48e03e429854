// Package call runs the lifecycle of a guest call: transcript capture, the
// end-of-call summary pipeline, and the events that go with them.
package call

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/roomline/internal/storage"
	"github.com/sjawhar/roomline/internal/summary"
	"github.com/sjawhar/roomline/internal/transcript"
)

type Deps struct {
	Store      Store
	Summarizer Summarizer
	Extractor  Extractor
	Events     EventPublisher
	Recorder   Recorder
	Archiver   Archiver
}

type Config struct {
	IdleTimeout     time.Duration
	DefaultLanguage string
	ForceHeuristic  bool
	Logger          *slog.Logger
}

type activeCall struct {
	startedAt time.Time
	language  string
}

type Manager struct {
	store      Store
	summarizer Summarizer
	extractor  Extractor
	events     EventPublisher
	recorder   Recorder
	archiver   Archiver

	transcripts     *transcript.Store
	idle            *IdleTimer
	logger          *slog.Logger
	defaultLanguage string
	forceHeuristic  bool
	now             func() time.Time

	mu     sync.Mutex
	active map[string]activeCall
	wg     sync.WaitGroup
}

func NewManager(deps Deps, cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = summary.DefaultLanguage
	}

	m := &Manager{
		store:           deps.Store,
		summarizer:      deps.Summarizer,
		extractor:       deps.Extractor,
		events:          deps.Events,
		recorder:        deps.Recorder,
		archiver:        deps.Archiver,
		logger:          cfg.Logger,
		defaultLanguage: cfg.DefaultLanguage,
		forceHeuristic:  cfg.ForceHeuristic,
		now:             func() time.Time { return time.Now().UTC() },
		active:          make(map[string]activeCall),
	}
	m.transcripts = transcript.NewStore(transcript.ObserverFunc(m.entryAppended))
	m.idle = NewIdleTimer(cfg.IdleTimeout, func(callID string) {
		m.logger.Info("call: idle timeout", "call_id", callID)
		if _, err := m.End(context.Background(), callID); err != nil && !errors.Is(err, ErrNotActive) {
			m.logger.Warn("call: end after idle failed", "call_id", callID, "error", err)
		}
	})
	return m
}

// entryAppended runs under the transcript session lock: entries are stored
// and published in sequence order.
func (m *Manager) entryAppended(e transcript.Entry) error {
	if err := m.store.AppendEntry(e); err != nil {
		return fmt.Errorf("persist entry: %w", err)
	}
	if m.events != nil {
		m.events.PublishTranscript(e)
	}
	return nil
}

// NewCallID returns an id such as "CALL-20260314183015-1A2B".
func NewCallID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return "CALL-" + now.UTC().Format("20060102150405") + "-" + suffix
}

// Start opens a call. An empty id gets a generated one; starting a call that
// is already active returns it unchanged.
func (m *Manager) Start(callID, language string) (storage.Call, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		callID = NewCallID(m.now())
	}
	if language == "" {
		language = m.defaultLanguage
	}
	language = summary.NormalizeLanguage(language)

	if err := m.ensureActive(callID, language); err != nil {
		return storage.Call{}, err
	}
	return m.store.GetCall(callID)
}

func (m *Manager) ensureActive(callID, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[callID]; ok {
		return nil
	}

	existing, err := m.store.GetCall(callID)
	switch {
	case err == nil && existing.Status == storage.CallEnded:
		return fmt.Errorf("call %s: %w", callID, ErrCallEnded)
	case err == nil:
		entries, err := m.store.GetEntries(callID)
		if err != nil {
			return fmt.Errorf("restore call %s: %w", callID, err)
		}
		m.transcripts.Restore(callID, entries)
		m.active[callID] = activeCall{startedAt: existing.StartedAt, language: existing.Language}
	case errors.Is(err, storage.ErrNotFound):
		startedAt := m.now()
		if err := m.store.CreateCall(callID, language, startedAt); err != nil {
			return fmt.Errorf("create call: %w", err)
		}
		if m.recorder != nil {
			if err := m.recorder.StartCall(callID); err != nil {
				m.logger.Warn("call: audio recording unavailable", "call_id", callID, "error", err)
			}
		}
		m.active[callID] = activeCall{startedAt: startedAt, language: language}
		if m.events != nil {
			m.events.PublishCallStarted(callID)
		}
		m.logger.Info("call: started", "call_id", callID, "language", language)
	default:
		return fmt.Errorf("get call %s: %w", callID, err)
	}

	m.idle.Touch(callID)
	return nil
}

// Append adds an utterance to a call, starting the call if needed.
func (m *Manager) Append(callID string, speaker transcript.Speaker, text string) (transcript.Entry, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return transcript.Entry{}, transcript.ErrSessionRequired
	}
	if strings.TrimSpace(text) == "" {
		return transcript.Entry{}, transcript.ErrEmptyText
	}
	if err := m.ensureActive(callID, m.defaultLanguage); err != nil {
		return transcript.Entry{}, err
	}

	entry, err := m.transcripts.Append(callID, speaker, text)
	if err != nil {
		return transcript.Entry{}, fmt.Errorf("append to call %s: %w", callID, err)
	}
	m.idle.Touch(callID)
	return entry, nil
}

// Entries returns the persisted transcript of a call.
func (m *Manager) Entries(callID string) ([]transcript.Entry, error) {
	if _, err := m.store.GetCall(callID); err != nil {
		return nil, err
	}
	return m.store.GetEntries(callID)
}

// End closes an active call and runs the summary pipeline.
func (m *Manager) End(ctx context.Context, callID string) (Result, error) {
	m.mu.Lock()
	call, ok := m.active[callID]
	if ok {
		delete(m.active, callID)
	}
	m.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("end call %s: %w", callID, ErrNotActive)
	}
	m.idle.Stop(callID)

	endedAt := m.now()
	audioPath := ""
	if m.recorder != nil {
		path, err := m.recorder.EndCall(callID)
		if err != nil {
			m.logger.Warn("call: finish audio recording failed", "call_id", callID, "error", err)
		}
		audioPath = path
	}

	if err := m.store.EndCall(callID, endedAt, audioPath); err != nil {
		return Result{}, fmt.Errorf("end call: %w", err)
	}
	m.transcripts.Drop(callID)

	if m.events != nil {
		m.events.PublishCallEnded(callID, endedAt.Sub(call.startedAt))
	}
	m.logger.Info("call: ended", "call_id", callID, "duration", endedAt.Sub(call.startedAt).String())

	return m.runPipeline(ctx, callID, call.language, m.forceHeuristic, true)
}

// Resummarize reruns the pipeline for a call that already has a transcript.
func (m *Manager) Resummarize(ctx context.Context, callID string, forceHeuristic bool) (Result, error) {
	c, err := m.store.GetCall(callID)
	if err != nil {
		return Result{}, err
	}
	return m.runPipeline(ctx, callID, c.Language, forceHeuristic || m.forceHeuristic, false)
}

// ResummarizeAsync runs Resummarize in the background. Failures are logged.
func (m *Manager) ResummarizeAsync(callID string, forceHeuristic bool) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if _, err := m.Resummarize(context.Background(), callID, forceHeuristic); err != nil {
			m.logger.Warn("call: resummarize failed", "call_id", callID, "error", err)
		}
	}()
}

// setSummaryStatus is advisory; a failed write never stops the pipeline.
func (m *Manager) setSummaryStatus(callID, status string) {
	if err := m.store.SetSummaryStatus(callID, status); err != nil {
		m.logger.Warn("call: set summary status failed", "call_id", callID, "status", status, "error", err)
	}
}

func (m *Manager) runPipeline(ctx context.Context, callID, language string, forceHeuristic, claim bool) (Result, error) {
	entries, err := m.store.GetEntries(callID)
	if err != nil {
		return Result{}, fmt.Errorf("load transcript: %w", err)
	}

	if claim {
		claimed, err := m.store.ClaimPipelineRun(callID, transcriptHash(entries))
		if err != nil {
			return Result{}, err
		}
		if !claimed {
			m.logger.Info("call: pipeline already ran for this transcript", "call_id", callID)
			return Result{}, nil
		}
	}

	m.setSummaryStatus(callID, storage.SummaryRunning)

	cs := m.summarizer.Summarize(ctx, summary.Input{
		CallID:         callID,
		Entries:        entries,
		Language:       language,
		ForceHeuristic: forceHeuristic,
	})

	requests := []summary.ServiceRequest{}
	if m.extractor != nil {
		requests = m.extractor.Extract(ctx, cs.Text)
	}

	if err := m.store.SaveSummary(cs); err != nil {
		m.setSummaryStatus(callID, storage.SummaryFailed)
		return Result{}, fmt.Errorf("save summary: %w", err)
	}
	if err := m.store.SaveRequests(callID, requests); err != nil {
		return Result{}, fmt.Errorf("save requests: %w", err)
	}

	if m.archiver != nil {
		if err := m.archiver.ArchiveCall(callID, entries, cs); err != nil {
			m.logger.Warn("call: archive failed", "call_id", callID, "error", err)
		}
	}
	if m.events != nil {
		m.events.PublishSummaryReady(cs, requests)
	}
	m.logger.Info("call: summary ready", "call_id", callID, "generated_by", cs.GeneratedBy, "requests", len(requests))

	return Result{Summary: cs, Requests: requests}, nil
}

func transcriptHash(entries []transcript.Entry) string {
	sum := sha256.Sum256([]byte(transcript.Lines(entries)))
	return hex.EncodeToString(sum[:])
}

// Active lists the ids of calls in progress.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown ends every active call and waits for background work.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.idle.StopAll()

	var errs []error
	for _, id := range m.Active() {
		if _, err := m.End(ctx, id); err != nil && !errors.Is(err, ErrNotActive) {
			errs = append(errs, err)
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
