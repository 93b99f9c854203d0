package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nathanyu/account-ledger/internal/domain"
	"github.com/nathanyu/account-ledger/internal/telemetry"
	"github.com/nats-io/nats.go"
)

// CommandSubject is the request/reply subject transfer commands arrive on.
const CommandSubject = "ledger.commands.transfer"

// NATSClient wraps NATS connection for command publishing
type NATSClient struct {
	conn *nats.Conn
}

// NewNATSClient creates a new NATS client
func NewNATSClient(url string) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name("account-ledger"),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSClient{conn: conn}, nil
}

// GetConn returns the underlying NATS connection
func (c *NATSClient) GetConn() *nats.Conn {
	return c.conn
}

// PublishCommand publishes a transfer command and waits for response
func (c *NATSClient) PublishCommand(cmd domain.TransferCommand, timeout time.Duration) (*CommandResponse, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}

	msg, err := c.conn.Request(CommandSubject, data, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to publish command: %w", err)
	}
	telemetry.NATSMessagesPublished.WithLabelValues(CommandSubject).Inc()

	var resp CommandResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// Close drains and closes the NATS connection
func (c *NATSClient) Close() {
	if c.conn != nil {
		c.conn.Drain()
		c.conn.Close()
	}
}
