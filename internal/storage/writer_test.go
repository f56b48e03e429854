package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sjawhar/roomline/internal/summary"
	"github.com/sjawhar/roomline/internal/transcript"
)

func TestWriterArchivesToDaily(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	ts := time.Date(2026, 2, 26, 10, 30, 0, 0, time.Local)
	entries := []transcript.Entry{
		{SessionID: "call-1", Seq: 1, Speaker: transcript.SpeakerGuest, Text: "Room 305, towels please.", OccurredAt: ts},
		{SessionID: "call-1", Seq: 2, Speaker: transcript.SpeakerAssistant, Text: "On their way.", OccurredAt: ts.Add(5 * time.Second)},
	}
	cs := summary.CallSummary{CallID: "call-1", Text: "REQUEST 1: Housekeeping", GeneratedBy: summary.SourceHeuristic, RoomNumber: "305"}

	if err := w.ArchiveCall("call-1", entries, cs); err != nil {
		t.Fatalf("ArchiveCall failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "2026-02-26.md"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	content := string(data)
	for _, want := range []string{"## Call call-1", "Room: 305", "Guest #1:** Room 305, towels please.", "Assistant #2:**", "### Summary (heuristic)"} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in content, got: %s", want, content)
		}
	}
}

func TestWriterAppendsMultipleCalls(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	ts := time.Date(2026, 2, 26, 10, 30, 0, 0, time.Local)

	for _, id := range []string{"a", "b"} {
		entries := []transcript.Entry{{SessionID: id, Seq: 1, Speaker: transcript.SpeakerGuest, Text: "Hi.", OccurredAt: ts}}
		_ = w.ArchiveCall(id, entries, summary.CallSummary{CallID: id})
	}

	data, _ := os.ReadFile(w.PathFor(ts))
	if strings.Count(string(data), "## Call ") != 2 {
		t.Fatalf("expected two archived calls, got: %s", data)
	}
}
