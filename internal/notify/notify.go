// Package notify delivers order confirmations to guests and staff. Delivery
// is at-most-once: failures are reported to the caller and never retried.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var ErrNoRecipient = errors.New("no recipient")

// Content is a message written in markdown. Channels that support rich text
// render it; others send it as is.
type Content struct {
	Subject  string
	Markdown string
}

type Notifier interface {
	Notify(ctx context.Context, recipient string, content Content) error
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts markdown to an HTML fragment.
func RenderHTML(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
