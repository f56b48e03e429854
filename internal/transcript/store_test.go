package transcript

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAppendAssignsMonotonicSequence(t *testing.T) {
	store := NewStore(nil)

	first, err := store.Append("call-1", SpeakerGuest, "Room 305 please")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	second, err := store.Append("call-1", SpeakerAssistant, "Confirmed")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	other, err := store.Append("call-2", SpeakerGuest, "hello")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("expected seq 1,2 got %d,%d", first.Seq, second.Seq)
	}
	if other.Seq != 1 {
		t.Fatalf("expected independent sequence per session, got %d", other.Seq)
	}
	if got := store.Entries("call-1"); len(got) != 2 || got[1].Text != "Confirmed" {
		t.Fatalf("unexpected entries: %#v", got)
	}
}

func TestAppendRejectsEmptyInput(t *testing.T) {
	store := NewStore(nil)

	if _, err := store.Append("", SpeakerGuest, "hi"); !errors.Is(err, ErrSessionRequired) {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}
	if _, err := store.Append("call-1", SpeakerGuest, "   "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestObserverSeesEntriesInOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []int64
	store := NewStore(ObserverFunc(func(e Entry) error {
		mu.Lock()
		seen = append(seen, e.Seq)
		mu.Unlock()
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Append("call-1", SpeakerGuest, fmt.Sprintf("line %d", i))
		}(i)
	}
	wg.Wait()

	if len(seen) != 50 {
		t.Fatalf("expected 50 observed entries, got %d", len(seen))
	}
	for i, seq := range seen {
		if seq != int64(i+1) {
			t.Fatalf("observer saw seq %d at position %d", seq, i)
		}
	}
}

func TestObserverErrorRejectsEntry(t *testing.T) {
	fail := true
	store := NewStore(ObserverFunc(func(e Entry) error {
		if fail {
			return errors.New("disk full")
		}
		return nil
	}))

	if _, err := store.Append("call-1", SpeakerGuest, "lost"); err == nil {
		t.Fatal("expected observer error")
	}
	if got := store.Entries("call-1"); len(got) != 0 {
		t.Fatalf("expected rejected entry to be discarded, got %+v", got)
	}

	fail = false
	e, err := store.Append("call-1", SpeakerGuest, "kept")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if e.Seq != 1 {
		t.Fatalf("expected seq 1 after rejection, got %d", e.Seq)
	}
}

func TestEntriesReturnsCopyAndDropReleases(t *testing.T) {
	store := NewStore(nil)
	_, _ = store.Append("call-1", SpeakerGuest, "one")

	entries := store.Entries("call-1")
	entries[0].Text = "mutated"
	if store.Entries("call-1")[0].Text != "one" {
		t.Fatal("expected Entries to return a copy")
	}

	store.Drop("call-1")
	if got := store.Entries("call-1"); got != nil {
		t.Fatalf("expected nil after drop, got %#v", got)
	}
}

func TestRestoreOnlySeedsEmptySession(t *testing.T) {
	store := NewStore(nil)
	ts := time.Date(2026, 2, 26, 10, 0, 0, 0, time.UTC)
	store.Restore("call-1", []Entry{{SessionID: "call-1", Seq: 1, Speaker: SpeakerGuest, Text: "persisted", OccurredAt: ts}})

	next, err := store.Append("call-1", SpeakerAssistant, "fresh")
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if next.Seq != 2 {
		t.Fatalf("expected seq to continue after restore, got %d", next.Seq)
	}

	store.Restore("call-1", nil)
	if len(store.Entries("call-1")) != 2 {
		t.Fatal("Restore must not overwrite a live session")
	}
}

func TestFormatEntryMarkdown(t *testing.T) {
	e := Entry{
		Seq:        3,
		Speaker:    SpeakerGuest,
		Text:       "Hello world.",
		OccurredAt: time.Date(2026, 2, 26, 10, 32, 15, 0, time.Local),
	}
	got := e.FormatMarkdown()
	want := "**[10:32:15] Guest #3:** Hello world."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseSpeaker(t *testing.T) {
	if s, err := ParseSpeaker("User"); err != nil || s != SpeakerGuest {
		t.Fatalf("expected guest, got %q err=%v", s, err)
	}
	if s, err := ParseSpeaker("assistant"); err != nil || s != SpeakerAssistant {
		t.Fatalf("expected assistant, got %q err=%v", s, err)
	}
	if _, err := ParseSpeaker("narrator"); err == nil {
		t.Fatal("expected error for unknown speaker")
	}
}
