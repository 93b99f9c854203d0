package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nathanyu/account-ledger/internal/domain"
	"github.com/nathanyu/account-ledger/internal/notify"
	"github.com/nathanyu/account-ledger/internal/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AccountLookup resolves account ids to the live account records.
type AccountLookup interface {
	Get(id string) (*domain.Account, bool)
}

// TransferEngine moves money between two accounts.
//
// It never holds more than one account lock at a time: the debit and the
// credit are separate atomic steps on each account, so transfers running in
// opposite directions over the same pair cannot deadlock. A reader looking
// between the two steps may see the amount missing from both accounts.
type TransferEngine struct {
	accounts AccountLookup
	notifier notify.Notifier

	// credit applies the deposit leg of a transfer.
	credit func(target *domain.Account, amount decimal.Decimal) bool
}

// NewTransferEngine creates a new transfer engine
func NewTransferEngine(accounts AccountLookup, notifier notify.Notifier) *TransferEngine {
	if notifier == nil {
		notifier = notify.NewLogNotifier(nil)
	}
	return &TransferEngine{
		accounts: accounts,
		notifier: notifier,
		credit:   (*domain.Account).Deposit,
	}
}

// Transfer moves amount from sourceID to targetID.
func (e *TransferEngine) Transfer(ctx context.Context, sourceID, targetID string, amount decimal.Decimal) error {
	return e.Execute(ctx, domain.TransferCommand{
		SourceAccountID: sourceID,
		TargetAccountID: targetID,
		Amount:          amount,
	})
}

// Execute runs a transfer command. Either both balances change by the amount,
// or neither does and a typed domain error is returned.
func (e *TransferEngine) Execute(ctx context.Context, cmd domain.TransferCommand) error {
	if cmd.TransferID == "" {
		cmd.TransferID = uuid.Must(uuid.NewV7()).String()
	}

	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "engine.Transfer")
	defer span.End()
	span.SetAttributes(
		attribute.String("transfer_id", cmd.TransferID),
		attribute.String("source_account", cmd.SourceAccountID),
		attribute.String("target_account", cmd.TargetAccountID),
		attribute.String("amount", cmd.Amount.String()),
	)

	err := e.execute(ctx, cmd)

	telemetry.TransferProcessingDuration.Observe(time.Since(start).Seconds())
	telemetry.TransfersTotal.WithLabelValues(statusOf(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.InfoContext(ctx, "transfer rejected",
			slog.String("transfer_id", cmd.TransferID),
			slog.String("source_account", cmd.SourceAccountID),
			slog.String("target_account", cmd.TargetAccountID),
			slog.String("amount", cmd.Amount.String()),
			slog.String("reason", err.Error()),
		)
		return err
	}

	span.SetStatus(codes.Ok, "")
	slog.DebugContext(ctx, "transfer completed",
		slog.String("transfer_id", cmd.TransferID),
		slog.String("source_account", cmd.SourceAccountID),
		slog.String("target_account", cmd.TargetAccountID),
		slog.String("amount", cmd.Amount.String()),
	)
	return nil
}

func (e *TransferEngine) execute(ctx context.Context, cmd domain.TransferCommand) error {
	if cmd.SourceAccountID == cmd.TargetAccountID {
		return &domain.InvalidTransferError{
			SourceAccountID: cmd.SourceAccountID,
			TargetAccountID: cmd.TargetAccountID,
			Amount:          cmd.Amount,
			Reason:          domain.ReasonSameAccount,
		}
	}
	if !cmd.Amount.IsPositive() {
		return &domain.InvalidTransferError{
			SourceAccountID: cmd.SourceAccountID,
			TargetAccountID: cmd.TargetAccountID,
			Amount:          cmd.Amount,
			Reason:          domain.ReasonNonPositiveAmount,
		}
	}

	source, err := e.resolve(cmd.SourceAccountID)
	if err != nil {
		return err
	}
	target, err := e.resolve(cmd.TargetAccountID)
	if err != nil {
		return err
	}

	if err := e.move(ctx, source, target, cmd.Amount); err != nil {
		return err
	}

	e.notify(ctx, domain.NewWithdrawnEvent(cmd.TransferID, source.ID(), cmd.Amount))
	e.notify(ctx, domain.NewDepositedEvent(cmd.TransferID, target.ID(), cmd.Amount))
	return nil
}

func (e *TransferEngine) resolve(id string) (*domain.Account, error) {
	account, ok := e.accounts.Get(id)
	if !ok {
		return nil, &domain.AccountNotFoundError{AccountID: id}
	}
	return account, nil
}

// move debits source then credits target. If the credit does not go through,
// whether refused or panicking, the deferred block deposits the amount back
// into source before the error or panic leaves move.
func (e *TransferEngine) move(ctx context.Context, source, target *domain.Account, amount decimal.Decimal) error {
	if !source.Withdraw(amount) {
		return &domain.TransferFailedError{
			SourceAccountID: source.ID(),
			TargetAccountID: target.ID(),
			Reason:          domain.ReasonInsufficientBalance,
		}
	}

	credited := false
	defer func() {
		if credited {
			return
		}
		telemetry.CompensationsTotal.Inc()
		if !source.Deposit(amount) {
			slog.ErrorContext(ctx, "compensating deposit refused",
				slog.String("source_account", source.ID()),
				slog.String("amount", amount.String()),
			)
			return
		}
		slog.WarnContext(ctx, "credit did not complete, debit reversed",
			slog.String("source_account", source.ID()),
			slog.String("target_account", target.ID()),
			slog.String("amount", amount.String()),
		)
	}()

	if !e.credit(target, amount) {
		return &domain.TransferFailedError{
			SourceAccountID: source.ID(),
			TargetAccountID: target.ID(),
			Reason:          domain.ReasonCreditRejected,
			Compensated:     true,
		}
	}
	credited = true
	return nil
}

// notify hands an event to the collaborator. Failures are logged and counted
// but do not affect the outcome of the transfer.
func (e *TransferEngine) notify(ctx context.Context, event domain.TransferEvent) {
	ctx, span := telemetry.StartSpan(ctx, "engine.notify")
	defer span.End()
	span.SetAttributes(
		attribute.String("event", event.Type),
		attribute.String("account", event.AccountID),
	)

	if err := e.notifier.NotifyAboutTransfer(ctx, event); err != nil {
		telemetry.NotificationsTotal.WithLabelValues(event.Type, "failed").Inc()
		span.RecordError(err)
		slog.WarnContext(ctx, "transfer notification failed",
			slog.String("transfer_id", event.TransferID),
			slog.String("account_id", event.AccountID),
			slog.String("event", event.Type),
			slog.Any("error", err),
		)
		return
	}
	telemetry.NotificationsTotal.WithLabelValues(event.Type, "delivered").Inc()
}

func statusOf(err error) string {
	var failed *domain.TransferFailedError
	switch {
	case err == nil:
		return telemetry.StatusSuccess
	case errors.Is(err, domain.ErrInvalidTransfer):
		return telemetry.StatusInvalid
	case errors.Is(err, domain.ErrAccountNotFound):
		return telemetry.StatusNotFound
	case errors.As(err, &failed) && failed.Compensated:
		return telemetry.StatusCompensated
	default:
		return telemetry.StatusInsufficient
	}
}
