package voice

import "strings"

type Word struct {
	Speaker        *int
	PunctuatedWord string
	Start          float64
	End            float64
}

// Segment is a run of consecutive words from one diarized speaker.
type Segment struct {
	Speaker   int
	Text      string
	StartTime float64
	EndTime   float64
}

func GroupWordsBySpeaker(words []Word) []Segment {
	var segments []Segment
	for _, w := range words {
		text := strings.TrimSpace(w.PunctuatedWord)
		if text == "" {
			continue
		}
		speaker := -1
		if w.Speaker != nil {
			speaker = *w.Speaker
		}

		if n := len(segments); n > 0 && segments[n-1].Speaker == speaker {
			segments[n-1].Text += " " + text
			segments[n-1].EndTime = w.End
			continue
		}
		segments = append(segments, Segment{Speaker: speaker, Text: text, StartTime: w.Start, EndTime: w.End})
	}
	return segments
}

// utteranceBuffer holds is_final words until Deepgram marks the utterance
// complete.
type utteranceBuffer struct {
	words []Word
}

func (b *utteranceBuffer) add(words []Word) {
	b.words = append(b.words, words...)
}

func (b *utteranceBuffer) flush() []Word {
	if len(b.words) == 0 {
		return nil
	}
	out := b.words
	b.words = nil
	return out
}
