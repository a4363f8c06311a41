// Package notify forwards selected lifecycle events to operator chat
// channels (Discord, Telegram).
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/launchpad/internal/domain"
)

// Sender delivers one notification over a single channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans notifications out to every Sender. Notify drops event types
// outside the configured allow list; an empty list allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders filtered to events.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends title and message if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyAll sends regardless of the filter. Used for integrity alerts.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// NotifyEvent renders a lifecycle event and passes it through Notify.
func (n *Notifier) NotifyEvent(ctx context.Context, ev domain.Event) error {
	return n.Notify(ctx, string(ev.Type), EventTitle(ev), EventMessage(ev))
}

// EventTitle is the human title for ev.
func EventTitle(ev domain.Event) string {
	return strings.ReplaceAll(string(ev.Type), "_", " ")
}

// EventMessage is the body text for ev.
func EventMessage(ev domain.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "actor: %s", ev.Actor.Hex())
	if ev.Product != (common.Address{}) {
		fmt.Fprintf(&b, "\nproduct: %s", ev.Product.Hex())
	}
	if ev.Bid != (common.Address{}) {
		fmt.Fprintf(&b, "\nbid: %s", ev.Bid.Hex())
	}
	if ev.Account != (common.Address{}) {
		fmt.Fprintf(&b, "\naccount: %s", ev.Account.Hex())
	}
	if ev.Amount != 0 {
		fmt.Fprintf(&b, "\namount: %s", domain.FormatUnits(ev.Amount, domain.CapitalDecimals))
	}
	return b.String()
}

// dispatch tries every sender; one failure does not stop the others.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
