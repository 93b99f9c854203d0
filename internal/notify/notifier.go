// Package notify delivers transfer events to whoever wants to hear about them.
// Delivery is best effort: the engine never rolls a transfer back because a
// notifier failed.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nathanyu/account-ledger/internal/domain"
)

// Notifier receives one event per side of a successful transfer.
type Notifier interface {
	NotifyAboutTransfer(ctx context.Context, event domain.TransferEvent) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event domain.TransferEvent) error

// NotifyAboutTransfer implements Notifier
func (f NotifierFunc) NotifyAboutTransfer(ctx context.Context, event domain.TransferEvent) error {
	return f(ctx, event)
}

// LogNotifier writes events to the structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier; a nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// NotifyAboutTransfer implements Notifier
func (n *LogNotifier) NotifyAboutTransfer(ctx context.Context, event domain.TransferEvent) error {
	n.logger.InfoContext(ctx, event.Message,
		slog.String("event", event.Type),
		slog.String("transfer_id", event.TransferID),
		slog.String("account_id", event.AccountID),
		slog.String("amount", event.Amount.String()),
	)
	return nil
}

// Multi fans an event out to every notifier, even when some of them fail.
type Multi []Notifier

// NotifyAboutTransfer implements Notifier
func (m Multi) NotifyAboutTransfer(ctx context.Context, event domain.TransferEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyAboutTransfer(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
