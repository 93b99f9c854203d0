package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nathanyu/account-ledger/internal/domain"
	"github.com/nathanyu/account-ledger/internal/telemetry"
	"github.com/shopspring/decimal"
)

// AccountRepository is the account registry the API reads and writes.
type AccountRepository interface {
	Create(account *domain.Account) error
	Get(id string) (*domain.Account, bool)
	All() []*domain.Account
	Len() int
}

// Transferrer executes transfer commands.
type Transferrer interface {
	Execute(ctx context.Context, cmd domain.TransferCommand) error
}

// Handler contains all HTTP handlers
type Handler struct {
	accounts AccountRepository
	engine   Transferrer
}

// NewHandler creates a new handler
func NewHandler(accounts AccountRepository, engine Transferrer) *Handler {
	return &Handler{
		accounts: accounts,
		engine:   engine,
	}
}

// CreateAccountRequest is the request body for account creation
type CreateAccountRequest struct {
	AccountID string          `json:"accountId" binding:"required"`
	Balance   decimal.Decimal `json:"balance" binding:"nonnegative_decimal"`
}

// CreateAccount handles POST /v1/accounts
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	account := domain.NewAccount(req.AccountID, req.Balance)
	if err := h.accounts.Create(account); err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateAccount):
			telemetry.AccountsCreatedTotal.WithLabelValues("duplicate").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		case errors.Is(err, domain.ErrInvalidAccount):
			telemetry.AccountsCreatedTotal.WithLabelValues("invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		telemetry.AccountsCreatedTotal.WithLabelValues("error").Inc()
		slog.ErrorContext(c.Request.Context(), "failed to create account",
			slog.String("account_id", req.AccountID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to create account"})
		return
	}

	telemetry.AccountsCreatedTotal.WithLabelValues("created").Inc()
	telemetry.AccountCount.Set(float64(h.accounts.Len()))
	slog.InfoContext(c.Request.Context(), "account created",
		slog.String("account_id", req.AccountID),
		slog.String("balance", req.Balance.String()),
	)

	c.JSON(http.StatusCreated, account)
}

// GetAccount handles GET /v1/accounts/:accountId
func (h *Handler) GetAccount(c *gin.Context) {
	accountID := c.Param("accountId")

	account, ok := h.accounts.Get(accountID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"message": (&domain.AccountNotFoundError{AccountID: accountID}).Error(),
		})
		return
	}

	c.JSON(http.StatusOK, account)
}

// AccountListResponse is the response for the account list endpoint
type AccountListResponse struct {
	Accounts []*domain.Account `json:"accounts"`
	Count    int               `json:"count"`
}

// ListAccounts handles GET /v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	accounts := h.accounts.All()
	c.JSON(http.StatusOK, AccountListResponse{
		Accounts: accounts,
		Count:    len(accounts),
	})
}

// TransferRequest is the request body for transfer endpoint
type TransferRequest struct {
	SourceAccountID string          `json:"sourceAccountId" binding:"required"`
	TargetAccountID string          `json:"targetAccountId" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"positive_decimal,money"`
}

// TransferResponse is the response body for transfer endpoint
type TransferResponse struct {
	TransferID string `json:"transferId"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
}

// Transfer handles POST /v1/accounts/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cmd := domain.TransferCommand{
		TransferID:      uuid.Must(uuid.NewV7()).String(),
		SourceAccountID: req.SourceAccountID,
		TargetAccountID: req.TargetAccountID,
		Amount:          req.Amount,
	}

	if err := h.engine.Execute(c.Request.Context(), cmd); err != nil {
		c.JSON(statusForTransferError(err), TransferResponse{
			TransferID: cmd.TransferID,
			Success:    false,
			Message:    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, TransferResponse{
		TransferID: cmd.TransferID,
		Success:    true,
		Message:    "transfer completed",
	})
}

// statusForTransferError maps engine rejections to 406 Not Acceptable.
func statusForTransferError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTransfer),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransferFailed):
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

// HealthResponse is the response for health check endpoint
type HealthResponse struct {
	Status   string `json:"status"`
	Accounts int    `json:"accounts"`
	Time     string `json:"time"`
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Accounts: h.accounts.Len(),
		Time:     time.Now().UTC().Format(time.RFC3339),
	})
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *Handler) {
	r.GET("/health", h.Health)

	v1 := r.Group("/v1/accounts")
	{
		v1.POST("", h.CreateAccount)
		v1.GET("", h.ListAccounts)
		v1.POST("/transfer", h.Transfer)
		v1.GET("/:accountId", h.GetAccount)
	}
}
