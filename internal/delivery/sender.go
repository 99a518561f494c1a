// Package delivery sends notification texts to subscribers.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrRecipientUnreachable means the recipient can never be reached again
// (blocked the bot, deleted the account, unknown chat). Callers stop
// delivering to the recipient.
var ErrRecipientUnreachable = errors.New("delivery: recipient unreachable")

// Sender delivers one text message to userRef.
type Sender interface {
	Send(ctx context.Context, userRef, text string) error
}

// RetryAfterError is returned when the channel throttles the sender.
type RetryAfterError struct {
	After time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("delivery: throttled, retry after %s", e.After)
}

// StatusError is any other rejected send.
type StatusError struct {
	StatusCode  int
	Description string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("delivery: http %d: %s", e.StatusCode, e.Description)
}

// LogSender only logs messages. It is used as a dry run when no delivery
// channel is configured.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(_ context.Context, userRef, text string) error {
	log.Info().Str("user_ref", userRef).Int("len", len(text)).Msg("dry-run delivery")
	return nil
}
