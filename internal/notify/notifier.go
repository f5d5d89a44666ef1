// Package notify delivers signal and closure alerts to operators.
// Notifications fan out to all registered senders (Telegram, Discord) and are
// filtered by event type so operators receive only the alerts they care
// about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// Event types accepted by the notifier filter.
const (
	EventSignalDetected = "signal_detected"
	EventSignalClosed   = "signal_closed"
	EventError          = "error"
)

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers a text notification.
	Send(ctx context.Context, message string) error
	// SendPhoto delivers an image with a caption. Channels without photo
	// support fall back to sending the caption as text.
	SendPhoto(ctx context.Context, caption string, photo []byte) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches alerts to one or more Senders. It maintains a set of
// allowed event types; events outside the set are dropped. An empty set
// allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that delivers to the given senders, limited
// to the listed event types.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// SignalDetected announces a freshly created signal, optionally with a
// rendered chart image.
func (n *Notifier) SignalDetected(ctx context.Context, sig domain.Signal, stats domain.TokenStats, chart []byte) error {
	if !n.allowed(EventSignalDetected) {
		return nil
	}
	msg := FormatSignal(sig, stats)
	if len(chart) > 0 {
		return n.dispatchPhoto(ctx, msg, chart)
	}
	return n.dispatch(ctx, msg)
}

// SignalClosed announces a spread closure with its outcome.
func (n *Notifier) SignalClosed(ctx context.Context, closed domain.ClosedSignal) error {
	if !n.allowed(EventSignalClosed) {
		return nil
	}
	return n.dispatch(ctx, FormatClosure(closed))
}

// Error announces an operational problem.
func (n *Notifier) Error(ctx context.Context, message string) error {
	if !n.allowed(EventError) {
		return nil
	}
	return n.dispatch(ctx, "⚠️ "+message)
}

func (n *Notifier) allowed(event string) bool {
	if len(n.events) == 0 {
		return true
	}
	if n.events[event] {
		return true
	}
	n.logger.Debug("event filtered out", slog.String("event", event))
	return false
}

// dispatch fans the message out to every sender. Errors are collected; one
// failing channel does not block the rest.
func (n *Notifier) dispatch(ctx context.Context, message string) error {
	return n.each(ctx, func(s Sender) error {
		return s.Send(ctx, message)
	})
}

func (n *Notifier) dispatchPhoto(ctx context.Context, caption string, photo []byte) error {
	return n.each(ctx, func(s Sender) error {
		return s.SendPhoto(ctx, caption, photo)
	})
}

func (n *Notifier) each(ctx context.Context, send func(Sender) error) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := send(s); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
		)
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
