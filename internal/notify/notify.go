// Package notify sends operator-facing chat notifications about pipeline
// events, threaded on an artifact's build timestamp so every status
// update about the same snapshot lands in one conversation. Grounded on
// the original implementation's slack_notify (slack.py).
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Status is the notification severity, mapped to a distinct emoji prefix.
type Status string

const (
	StatusInfo    Status = "info"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

var emoji = map[Status]string{
	StatusInfo:    ":information_source:",
	StatusSuccess: ":white_check_mark:",
	StatusFailed:  ":x:",
}

// Notifier posts a message to the operator channel, optionally as a
// reply in an existing thread, and returns the posted message's
// timestamp so subsequent calls can thread on it.
type Notifier interface {
	Notify(ctx context.Context, message string, status Status, threadTS string) (newThreadTS string, err error)
}

// SlackNotifier implements Notifier against a single Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier builds a SlackNotifier posting to channel using token.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{client: slack.New(token), channel: channel}
}

// Notify posts message prefixed with the emoji for status. If threadTS is
// non-empty, the message is posted as a reply in that thread.
func (n *SlackNotifier) Notify(ctx context.Context, message string, status Status, threadTS string) (string, error) {
	prefix, ok := emoji[status]
	if !ok {
		prefix = emoji[StatusInfo]
	}

	opts := []slack.MsgOption{
		slack.MsgOptionText(fmt.Sprintf("%s %s", prefix, message), false),
	}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	_, newTS, err := n.client.PostMessageContext(ctx, n.channel, opts...)
	if err != nil {
		return "", fmt.Errorf("notify: post message: %w", err)
	}
	return newTS, nil
}

// NewNotifier returns a SlackNotifier when token is non-empty, or a
// NoopNotifier otherwise. This is how every worker picks its notifier
// from config.NotifyConfig without each needing its own branch.
func NewNotifier(token, channel string) Notifier {
	if token == "" {
		return NoopNotifier{}
	}
	return NewSlackNotifier(token, channel)
}

// NoopNotifier discards every notification. Used when SLACK_TOKEN is
// unset, and in tests.
type NoopNotifier struct{}

// Notify implements Notifier by doing nothing.
func (NoopNotifier) Notify(_ context.Context, _ string, _ Status, threadTS string) (string, error) {
	return threadTS, nil
}
