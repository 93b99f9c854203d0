package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nathanyu/account-ledger/internal/domain"
	"github.com/sony/gobreaker"
)

// BreakerConfig controls when a guarded notifier is short-circuited.
type BreakerConfig struct {
	ConsecutiveFailures uint32
	Timeout             time.Duration
	MaxRequests         uint32
}

// Breaker guards a remote notifier so a broker outage costs one fast
// rejection per event instead of a network round trip.
type Breaker struct {
	name    string
	next    Notifier
	breaker *gobreaker.CircuitBreaker
}

// NewBreaker wraps next in a circuit breaker named name.
func NewBreaker(name string, next Notifier, cfg BreakerConfig) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        "notifier-" + name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("notifier circuit breaker changed state",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}

	return &Breaker{
		name:    name,
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// NotifyAboutTransfer implements Notifier
func (b *Breaker) NotifyAboutTransfer(ctx context.Context, event domain.TransferEvent) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.NotifyAboutTransfer(ctx, event)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("notifier %s unavailable: %w", b.name, err)
	}
	return err
}
