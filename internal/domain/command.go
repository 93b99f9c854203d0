package domain

import "github.com/shopspring/decimal"

// TransferCommand represents a transfer request arriving over the message bus
type TransferCommand struct {
	TransferID      string          `json:"transferId"`
	SourceAccountID string          `json:"sourceAccountId"`
	TargetAccountID string          `json:"targetAccountId"`
	Amount          decimal.Decimal `json:"amount"`
}
