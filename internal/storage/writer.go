package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/roomline/internal/summary"
	"github.com/sjawhar/roomline/internal/transcript"
)

// Writer appends finished calls to one markdown file per day.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// ArchiveCall appends the call transcript and its summary to the daily file
// of the call's first entry.
func (w *Writer) ArchiveCall(callID string, entries []transcript.Entry, cs summary.CallSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	day := cs.CreatedAt
	if len(entries) > 0 {
		day = entries[0].OccurredAt
	}
	path := w.PathFor(day)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	fmt.Fprintf(&b, "## Call %s\n\n", callID)
	if cs.RoomNumber != "" {
		fmt.Fprintf(&b, "Room: %s\n\n", cs.RoomNumber)
	}
	for _, e := range entries {
		b.WriteString(e.FormatMarkdown())
		b.WriteString("\n")
	}
	if strings.TrimSpace(cs.Text) != "" {
		fmt.Fprintf(&b, "\n### Summary (%s)\n\n%s\n", cs.GeneratedBy, strings.TrimSpace(cs.Text))
	}
	b.WriteString("\n")

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func (w *Writer) PathFor(day time.Time) string {
	return filepath.Join(w.dir, day.UTC().Format("2006-01-02")+".md")
}
