package summary

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const elision = "\n\n[...]\n\n"

// Tokenizer counts and slices prompt tokens. A nil Tokenizer falls back to
// whitespace-separated words.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer loads the cl100k_base encoding.
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Tokenizer{enc: enc}, nil
}

func (t *Tokenizer) Count(text string) int {
	if t == nil || t.enc == nil {
		return len(strings.Fields(text))
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Fit keeps the head and tail of text within budget tokens, replacing the
// middle with an elision marker. Text already within budget is returned as is.
func (t *Tokenizer) Fit(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	if t == nil || t.enc == nil {
		return fitWords(text, budget)
	}

	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	head := budget / 2
	tail := budget - head
	return t.enc.Decode(tokens[:head]) + elision + t.enc.Decode(tokens[len(tokens)-tail:])
}

func fitWords(text string, budget int) string {
	words := strings.Fields(text)
	if len(words) <= budget {
		return text
	}
	head := budget / 2
	tail := budget - head
	return strings.Join(words[:head], " ") + elision + strings.Join(words[len(words)-tail:], " ")
}
