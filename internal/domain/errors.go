package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrDuplicateAccount = errors.New("duplicate account")
	ErrInvalidTransfer  = errors.New("invalid transfer")
	ErrAccountNotFound  = errors.New("account not found")
	ErrTransferFailed   = errors.New("transfer failed")
	ErrInvalidAccount   = errors.New("invalid account")
)

// Failure reasons carried by InvalidTransferError and TransferFailedError.
const (
	ReasonSameAccount         = "same account"
	ReasonNonPositiveAmount   = "non-positive amount"
	ReasonInsufficientBalance = "insufficient balance"
	ReasonCreditRejected      = "credit rejected"
	ReasonEmptyAccountID      = "empty account id"
	ReasonNegativeBalance     = "negative balance"
)

// DuplicateAccountError is returned when an account id is already registered.
type DuplicateAccountError struct {
	AccountID string
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("Account id %s already exists!", e.AccountID)
}

func (e *DuplicateAccountError) Is(target error) bool { return target == ErrDuplicateAccount }

// InvalidAccountError rejects an account that would break the store's invariants.
type InvalidAccountError struct {
	AccountID string
	Balance   decimal.Decimal
	Reason    string
}

func (e *InvalidAccountError) Error() string {
	if e.Reason == ReasonEmptyAccountID {
		return "Account id must not be empty"
	}
	return fmt.Sprintf("Account balance must not be negative: accountId = %s, balance = %s",
		e.AccountID, e.Balance.String())
}

func (e *InvalidAccountError) Is(target error) bool { return target == ErrInvalidAccount }

// InvalidTransferError is a caller error detected before any account is touched.
type InvalidTransferError struct {
	SourceAccountID string
	TargetAccountID string
	Amount          decimal.Decimal
	Reason          string
}

func (e *InvalidTransferError) Error() string {
	if e.Reason == ReasonSameAccount {
		return fmt.Sprintf("Accounts for transferring money must be different: sourceAccountId = %s, targetAccountId = %s",
			e.SourceAccountID, e.TargetAccountID)
	}
	return fmt.Sprintf("Transfer amount must be positive: amount = %s, sourceAccountId = %s, targetAccountId = %s",
		e.Amount.String(), e.SourceAccountID, e.TargetAccountID)
}

func (e *InvalidTransferError) Is(target error) bool { return target == ErrInvalidTransfer }

// AccountNotFoundError names the account id that could not be resolved.
type AccountNotFoundError struct {
	AccountID string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("Account id = %s not found!", e.AccountID)
}

func (e *AccountNotFoundError) Is(target error) bool { return target == ErrAccountNotFound }

// TransferFailedError is returned when the debit or the credit was refused.
// Compensated is set when a debit had to be reversed.
type TransferFailedError struct {
	SourceAccountID string
	TargetAccountID string
	Reason          string
	Compensated     bool
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("Failed to transfer money between accounts: sourceAccountId = %s, targetAccountId = %s",
		e.SourceAccountID, e.TargetAccountID)
}

func (e *TransferFailedError) Is(target error) bool { return target == ErrTransferFailed }
