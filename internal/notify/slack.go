package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts to an incoming webhook. A non-empty recipient
// overrides the webhook's default channel.
type SlackNotifier struct {
	webhookURL string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, post: slack.PostWebhookContext}
}

func (n *SlackNotifier) Notify(ctx context.Context, recipient string, content Content) error {
	msg := &slack.WebhookMessage{
		Channel: recipient,
		Text:    content.Subject,
		Blocks: &slack.Blocks{BlockSet: []slack.Block{
			slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, content.Subject, false, false)),
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, content.Markdown, false, false), nil, nil),
		}},
	}
	if err := n.post(ctx, n.webhookURL, msg); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}
