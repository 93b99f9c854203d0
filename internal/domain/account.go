package domain

import (
	"encoding/json"
	"sync"

	"github.com/shopspring/decimal"
)

// Account is a balance holder guarded by its own mutex.
// The id never changes; the balance only moves through Withdraw and Deposit.
type Account struct {
	id string

	mu      sync.Mutex
	balance decimal.Decimal
}

// NewAccount creates an account with the given opening balance.
func NewAccount(id string, balance decimal.Decimal) *Account {
	return &Account{
		id:      id,
		balance: balance,
	}
}

// ID returns the account id.
func (a *Account) ID() string {
	return a.id
}

// Balance returns a snapshot of the current balance.
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Withdraw subtracts amount if the balance covers it.
// It reports false and leaves the balance untouched otherwise.
func (a *Account) Withdraw(amount decimal.Decimal) bool {
	if amount.IsNegative() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.balance.LessThan(amount) {
		return false
	}
	a.balance = a.balance.Sub(amount)
	return true
}

// Deposit adds amount to the balance. It always succeeds for a
// non-negative amount and reports false only for a negative one.
func (a *Account) Deposit(amount decimal.Decimal) bool {
	if amount.IsNegative() {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance = a.balance.Add(amount)
	return true
}

// accountJSON is the wire form; balance is rendered as a JSON number.
type accountJSON struct {
	AccountID string      `json:"accountId"`
	Balance   json.Number `json:"balance"`
}

// MarshalJSON implements json.Marshaler
func (a *Account) MarshalJSON() ([]byte, error) {
	return json.Marshal(accountJSON{
		AccountID: a.id,
		Balance:   json.Number(a.Balance().String()),
	})
}
