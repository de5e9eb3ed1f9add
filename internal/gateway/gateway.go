// Package gateway is the bot's outbound side of the Slack Web API.
//
// A [Messenger] is bound to a single OAuth token: the workspace bot token for
// most traffic, or a user token when a message must be edited on the
// author's behalf. A [Factory] hands out messengers per token.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
)

// Errors classified from Slack API error codes. Wrapped errors still carry
// the original [slack.SlackErrorResponse].
var (
	ErrMessageTooLong = errors.New("gateway: message too long")
	ErrInvalidBlocks  = errors.New("gateway: invalid blocks")
)

// Message is an outbound chat message. Text doubles as the notification
// fallback when Blocks are set.
type Message struct {
	Text     string
	Blocks   []slack.Block
	ThreadTS string
}

// Messenger performs Web API calls with one token.
type Messenger interface {
	// Send posts msg to channel and returns the new message ts.
	Send(ctx context.Context, channel string, msg Message) (string, error)

	// Update replaces the message at ts. ThreadTS is ignored.
	Update(ctx context.Context, channel, ts string, msg Message) error

	// Delete removes the message at ts.
	Delete(ctx context.Context, channel, ts string) error

	// SendEphemeral posts msg visible only to user.
	SendEphemeral(ctx context.Context, channel, user string, msg Message) error

	// OpenModal opens view in response to the interaction that produced
	// triggerID.
	OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error

	// PublishHome replaces user's App Home tab.
	PublishHome(ctx context.Context, user string, view slack.HomeTabViewRequest) error
}

// Factory returns a [Messenger] for an OAuth token.
type Factory interface {
	For(token string) Messenger
}

// Code returns the Slack API error code carried by err, or "".
func Code(err error) string {
	var se slack.SlackErrorResponse
	if errors.As(err, &se) {
		return se.Err
	}
	return ""
}

// classify wraps a Web API error, attaching a sentinel for the codes that
// callers react to.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch Code(err) {
	case "msg_too_long":
		return fmt.Errorf("gateway: %s: %w: %w", op, ErrMessageTooLong, err)
	case "invalid_blocks", "invalid_blocks_format":
		return fmt.Errorf("gateway: %s: %w: %w", op, ErrInvalidBlocks, err)
	}
	return fmt.Errorf("gateway: %s: %w", op, err)
}

// IsFormatError reports whether err was caused by message size or block
// structure, which a plain-text resend can avoid.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrMessageTooLong) || errors.Is(err, ErrInvalidBlocks)
}
