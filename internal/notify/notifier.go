// Package notify delivers operator alerts. Delivery is best effort: a
// notifier reports whether the message went out but never propagates an
// error into the monitor's control flow.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier sends one operator-facing message.
type Notifier interface {
	// Notify delivers message and reports whether it was sent. Failures are
	// logged by the implementation and swallowed.
	Notify(ctx context.Context, message string) bool
}

// Nop is a Notifier that drops everything.
type Nop struct{}

// Notify discards the message.
func (Nop) Notify(context.Context, string) bool { return false }

// Multi fans a message out to several notifiers.
type Multi []Notifier

// Notify delivers to every notifier; sent when at least one succeeded.
func (m Multi) Notify(ctx context.Context, message string) bool {
	sent := false
	for _, n := range m {
		if n.Notify(ctx, message) {
			sent = true
		}
	}
	return sent
}

// LogNotifier writes alerts to the log only. Useful in development and as a
// floor under Multi so alerts are never silently lost.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs the message.
func (n LogNotifier) Notify(_ context.Context, message string) bool {
	n.Logger.Warn().Str("alert", message).Msg("operator alert")
	return true
}
