package notify

import (
	"context"
	"fmt"

	"github.com/nathanyu/account-ledger/internal/domain"
	"github.com/nathanyu/account-ledger/internal/telemetry"
)

// EventSubject is the NATS subject transfer events are published on.
const EventSubject = "ledger.events"

// Publisher is the subset of *nats.Conn used for publishing.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes transfer events to NATS.
type NATSNotifier struct {
	conn    Publisher
	subject string
}

// NewNATSNotifier creates a notifier publishing on subject, or EventSubject when empty.
func NewNATSNotifier(conn Publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = EventSubject
	}
	return &NATSNotifier{conn: conn, subject: subject}
}

// NotifyAboutTransfer implements Notifier
func (n *NATSNotifier) NotifyAboutTransfer(_ context.Context, event domain.TransferEvent) error {
	data, err := domain.SerializeEvent(event)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	telemetry.NATSMessagesPublished.WithLabelValues(n.subject).Inc()
	return nil
}
