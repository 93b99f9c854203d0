package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nathanyu/account-ledger/internal/domain"
	"github.com/nathanyu/account-ledger/internal/telemetry"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Error kinds reported in CommandResponse.
const (
	KindInvalidCommand  = "invalid_command"
	KindInvalidTransfer = "invalid_transfer"
	KindNotFound        = "account_not_found"
	KindTransferFailed  = "transfer_failed"
	KindInternal        = "internal"
)

// Executor runs transfer commands.
type Executor interface {
	Execute(ctx context.Context, cmd domain.TransferCommand) error
}

// CommandResponse represents the response to a command
type CommandResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// TransferConsumer serves transfer commands arriving over NATS request/reply.
type TransferConsumer struct {
	executor     Executor
	natsConn     *nats.Conn
	subscription *nats.Subscription

	mu       sync.Mutex
	stopped  bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewTransferConsumer creates a consumer feeding executor
func NewTransferConsumer(executor Executor, natsConn *nats.Conn) *TransferConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &TransferConsumer{
		executor: executor,
		natsConn: natsConn,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing commands from NATS
func (c *TransferConsumer) Start() error {
	sub, err := c.natsConn.Subscribe(CommandSubject, c.handleCommand)
	if err != nil {
		return fmt.Errorf("failed to subscribe to commands: %w", err)
	}

	c.subscription = sub
	slog.Info("transfer consumer started", slog.String("subject", CommandSubject))
	return nil
}

// Stop unsubscribes and waits for in-flight commands. Deliveries that
// arrive after Stop begins are dropped without a reply.
func (c *TransferConsumer) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()

		c.cancel()
		if c.subscription != nil {
			err = c.subscription.Unsubscribe()
		}
		c.wg.Wait()
	})
	return err
}

func (c *TransferConsumer) handleCommand(msg *nats.Msg) {
	if !c.begin() {
		return
	}
	defer c.wg.Done()

	ctx, span := telemetry.StartSpan(c.ctx, "queue.handleCommand",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination", CommandSubject),
		),
	)
	defer span.End()

	telemetry.NATSMessagesReceived.WithLabelValues(CommandSubject).Inc()

	resp := c.process(ctx, msg.Data)
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal command response", slog.Any("error", err))
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.WarnContext(ctx, "failed to respond to command", slog.Any("error", err))
	}
}

// begin registers an in-flight command unless the consumer is stopping.
func (c *TransferConsumer) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.wg.Add(1)
	return true
}

// process decodes and executes a single command payload.
func (c *TransferConsumer) process(ctx context.Context, data []byte) CommandResponse {
	var cmd domain.TransferCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		slog.WarnContext(ctx, "failed to unmarshal command", slog.Any("error", err))
		return CommandResponse{Error: "invalid command format", ErrorKind: KindInvalidCommand}
	}
	if cmd.SourceAccountID == "" || cmd.TargetAccountID == "" {
		return CommandResponse{Error: "sourceAccountId and targetAccountId are required", ErrorKind: KindInvalidCommand}
	}

	if err := c.executor.Execute(ctx, cmd); err != nil {
		return CommandResponse{Error: err.Error(), ErrorKind: kindOf(err)}
	}
	return CommandResponse{Success: true}
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidTransfer):
		return KindInvalidTransfer
	case errors.Is(err, domain.ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, domain.ErrTransferFailed):
		return KindTransferFailed
	default:
		return KindInternal
	}
}
