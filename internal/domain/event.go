package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType constants
const (
	EventTypeMoneyWithdrawn = "MoneyWithdrawn"
	EventTypeMoneyDeposited = "MoneyDeposited"
)

// TransferEvent is emitted to the notification collaborator once per side
// of a successful transfer.
type TransferEvent struct {
	Type       string          `json:"type"`
	TransferID string          `json:"transferId"`
	AccountID  string          `json:"accountId"`
	Amount     decimal.Decimal `json:"amount"`
	Message    string          `json:"message"`
}

// NewWithdrawnEvent builds the debit-side event for account.
func NewWithdrawnEvent(transferID, accountID string, amount decimal.Decimal) TransferEvent {
	return TransferEvent{
		Type:       EventTypeMoneyWithdrawn,
		TransferID: transferID,
		AccountID:  accountID,
		Amount:     amount,
		Message:    fmt.Sprintf("Withdrawing %s from the account", amount.String()),
	}
}

// NewDepositedEvent builds the credit-side event for account.
func NewDepositedEvent(transferID, accountID string, amount decimal.Decimal) TransferEvent {
	return TransferEvent{
		Type:       EventTypeMoneyDeposited,
		TransferID: transferID,
		AccountID:  accountID,
		Amount:     amount,
		Message:    fmt.Sprintf("Depositing %s to the account", amount.String()),
	}
}

// EventEnvelope wraps an event with metadata for serialization
type EventEnvelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// SerializeEvent converts an event to JSON bytes with envelope
func SerializeEvent(event TransferEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	envelope := EventEnvelope{
		Type:      event.Type,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	return json.Marshal(envelope)
}

// DeserializeEvent converts JSON bytes back to a TransferEvent
func DeserializeEvent(data []byte) (TransferEvent, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return TransferEvent{}, err
	}

	switch envelope.Type {
	case EventTypeMoneyWithdrawn, EventTypeMoneyDeposited:
	default:
		return TransferEvent{}, fmt.Errorf("unknown event type: %s", envelope.Type)
	}

	var event TransferEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return TransferEvent{}, err
	}
	return event, nil
}
