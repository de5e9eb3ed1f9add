package gateway

import (
	"context"

	"github.com/slack-go/slack"
)

// Slack is a [Messenger] backed by a slack-go client.
type Slack struct {
	client *slack.Client
}

var _ Messenger = (*Slack)(nil)

// NewSlack returns a Messenger using token.
func NewSlack(token string, opts ...slack.Option) *Slack {
	return &Slack{client: slack.New(token, opts...)}
}

// Client exposes the underlying client.
func (s *Slack) Client() *slack.Client { return s.client }

func msgOptions(msg Message) []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if len(msg.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(msg.Blocks...))
	}
	if msg.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ThreadTS))
	}
	return opts
}

// Send implements [Messenger].
func (s *Slack) Send(ctx context.Context, channel string, msg Message) (string, error) {
	_, ts, err := s.client.PostMessageContext(ctx, channel, msgOptions(msg)...)
	return ts, classify("chat.postMessage", err)
}

// Update implements [Messenger].
func (s *Slack) Update(ctx context.Context, channel, ts string, msg Message) error {
	msg.ThreadTS = ""
	_, _, _, err := s.client.UpdateMessageContext(ctx, channel, ts, msgOptions(msg)...)
	return classify("chat.update", err)
}

// Delete implements [Messenger].
func (s *Slack) Delete(ctx context.Context, channel, ts string) error {
	_, _, err := s.client.DeleteMessageContext(ctx, channel, ts)
	return classify("chat.delete", err)
}

// SendEphemeral implements [Messenger].
func (s *Slack) SendEphemeral(ctx context.Context, channel, user string, msg Message) error {
	_, err := s.client.PostEphemeralContext(ctx, channel, user, msgOptions(msg)...)
	return classify("chat.postEphemeral", err)
}

// OpenModal implements [Messenger].
func (s *Slack) OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	_, err := s.client.OpenViewContext(ctx, triggerID, view)
	return classify("views.open", err)
}

// PublishHome implements [Messenger].
func (s *Slack) PublishHome(ctx context.Context, user string, view slack.HomeTabViewRequest) error {
	_, err := s.client.PublishViewContext(ctx, slack.PublishViewContextRequest{UserID: user, View: view})
	return classify("views.publish", err)
}

// SlackFactory builds [Slack] messengers sharing the same client options.
type SlackFactory struct {
	opts []slack.Option
}

var _ Factory = (*SlackFactory)(nil)

// NewFactory returns a factory applying opts to every client it builds.
func NewFactory(opts ...slack.Option) *SlackFactory {
	return &SlackFactory{opts: opts}
}

// For implements [Factory].
func (f *SlackFactory) For(token string) Messenger {
	return NewSlack(token, f.opts...)
}
