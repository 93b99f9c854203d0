package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nathanyu/account-ledger/internal/domain"
	"github.com/nathanyu/account-ledger/internal/engine"
	"github.com/nathanyu/account-ledger/internal/notify"
	"github.com/nathanyu/account-ledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, accounts *store.AccountStore, transferrer Transferrer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	if transferrer == nil {
		transferrer = engine.NewTransferEngine(accounts, notify.Multi{})
	}

	r := gin.New()
	SetupRoutes(r, NewHandler(accounts, transferrer))
	return r
}

func seededStore(t *testing.T) *store.AccountStore {
	t.Helper()
	s := store.NewAccountStore()
	require.NoError(t, s.Create(domain.NewAccount("ID-1", decimal.RequireFromString("550.55"))))
	require.NoError(t, s.Create(domain.NewAccount("ID-2", decimal.RequireFromString("400.25"))))
	return s
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBadRequest(t *testing.T, w *httptest.ResponseRecorder) BadRequestErrorResponse {
	t.Helper()
	var resp BadRequestErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func assertBalance(t *testing.T, s *store.AccountStore, id, want string) {
	t.Helper()
	account, ok := s.Get(id)
	require.True(t, ok, "account %s should exist", id)
	assert.True(t, decimal.RequireFromString(want).Equal(account.Balance()),
		"account %s: want %s, got %s", id, want, account.Balance())
}

func TestCreateAccount(t *testing.T) {
	s := store.NewAccountStore()
	r := setupRouter(t, s, nil)

	w := doRequest(r, http.MethodPost, "/v1/accounts", `{"accountId":"Id-123","balance":1000}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"accountId":"Id-123","balance":1000}`, w.Body.String())
	assertBalance(t, s, "Id-123", "1000")
}

func TestCreateAccount_DefaultsBalanceToZero(t *testing.T) {
	s := store.NewAccountStore()
	r := setupRouter(t, s, nil)

	w := doRequest(r, http.MethodPost, "/v1/accounts", `{"accountId":"Id-123"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assertBalance(t, s, "Id-123", "0")
}

func TestCreateAccount_Duplicate(t *testing.T) {
	s := store.NewAccountStore()
	r := setupRouter(t, s, nil)

	body := `{"accountId":"Id-123","balance":1000}`
	require.Equal(t, http.StatusCreated, doRequest(r, http.MethodPost, "/v1/accounts", body).Code)

	w := doRequest(r, http.MethodPost, "/v1/accounts", `{"accountId":"Id-123","balance":5}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Account id Id-123 already exists!")
	assertBalance(t, s, "Id-123", "1000")
}

func TestCreateAccount_Validation(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantType  string
	}{
		{name: "no account id", body: `{"balance":1000}`, wantField: "accountId", wantType: "required"},
		{name: "empty account id", body: `{"accountId":"","balance":1000}`, wantField: "accountId", wantType: "required"},
		{name: "negative balance", body: `{"accountId":"Id-123","balance":-1000}`, wantField: "balance", wantType: tagNonNegativeDecimal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewAccountStore()
			r := setupRouter(t, s, nil)

			w := doRequest(r, http.MethodPost, "/v1/accounts", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeBadRequest(t, w)
			require.NotEmpty(t, resp.Details)
			assert.Equal(t, tt.wantField, resp.Details[0].Field)
			assert.Equal(t, tt.wantType, resp.Details[0].Type)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestCreateAccount_MalformedBody(t *testing.T) {
	for name, body := range map[string]string{
		"no body":        "",
		"not json":       `accountId=1`,
		"string balance": `{"accountId":"Id-123","balance":"abc"}`,
	} {
		t.Run(name, func(t *testing.T) {
			s := store.NewAccountStore()
			r := setupRouter(t, s, nil)

			w := doRequest(r, http.MethodPost, "/v1/accounts", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestCreateAccount_LargeBalanceAccepted(t *testing.T) {
	s := store.NewAccountStore()
	r := setupRouter(t, s, nil)

	w := doRequest(r, http.MethodPost, "/v1/accounts", `{"accountId":"Id-123","balance":"12345678901.555"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assertBalance(t, s, "Id-123", "12345678901.555")
}

func TestTransfer_TrailingZerosAccepted(t *testing.T) {
	s := seededStore(t)
	r := setupRouter(t, s, nil)

	w := doRequest(r, http.MethodPost, "/v1/accounts/transfer",
		`{"sourceAccountId":"ID-1","targetAccountId":"ID-2","amount":"10.500"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assertBalance(t, s, "ID-1", "540.05")
}

type rejectingRepository struct {
	*store.AccountStore
}

func (rejectingRepository) Create(account *domain.Account) error {
	return &domain.InvalidAccountError{
		AccountID: account.ID(),
		Balance:   account.Balance(),
		Reason:    domain.ReasonNegativeBalance,
	}
}

func TestCreateAccount_InvalidAccountFromStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())
	s := store.NewAccountStore()
	r := gin.New()
	SetupRoutes(r, NewHandler(rejectingRepository{s}, engine.NewTransferEngine(s, notify.Multi{})))

	w := doRequest(r, http.MethodPost, "/v1/accounts", `{"accountId":"Id-123","balance":1}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Account balance must not be negative")
}

func TestGetAccount(t *testing.T) {
	s := store.NewAccountStore()
	require.NoError(t, s.Create(domain.NewAccount("Id-12345", decimal.RequireFromString("123.45"))))
	r := setupRouter(t, s, nil)

	w := doRequest(r, http.MethodGet, "/v1/accounts/Id-12345", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"accountId":"Id-12345","balance":123.45}`, w.Body.String())
}

func TestGetAccount_NotFound(t *testing.T) {
	r := setupRouter(t, store.NewAccountStore(), nil)

	w := doRequest(r, http.MethodGet, "/v1/accounts/Id-404", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Account id = Id-404 not found!")
}

func TestListAccounts(t *testing.T) {
	r := setupRouter(t, seededStore(t), nil)

	w := doRequest(r, http.MethodGet, "/v1/accounts", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"accounts": [
			{"accountId":"ID-1","balance":550.55},
			{"accountId":"ID-2","balance":400.25}
		],
		"count": 2
	}`, w.Body.String())
}

func TestTransfer(t *testing.T) {
	s := seededStore(t)
	r := setupRouter(t, s, nil)

	w := doRequest(r, http.MethodPost, "/v1/accounts/transfer",
		`{"sourceAccountId":"ID-1","targetAccountId":"ID-2","amount":150.55}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp TransferResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.TransferID)

	assertBalance(t, s, "ID-1", "400.00")
	assertBalance(t, s, "ID-2", "550.80")
}

func TestTransfer_Validation(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "negative amount", body: `{"sourceAccountId":"ID-1","targetAccountId":"ID-2","amount":-150.55}`, wantField: "amount"},
		{name: "zero amount", body: `{"sourceAccountId":"ID-1","targetAccountId":"ID-2","amount":0}`, wantField: "amount"},
		{name: "missing amount", body: `{"sourceAccountId":"ID-1","targetAccountId":"ID-2"}`, wantField: "amount"},
		{name: "empty source", body: `{"sourceAccountId":"","targetAccountId":"ID-2","amount":150.55}`, wantField: "sourceAccountId"},
		{name: "null target", body: `{"sourceAccountId":"ID-1","targetAccountId":null,"amount":150.55}`, wantField: "targetAccountId"},
		{name: "three fraction digits", body: `{"sourceAccountId":"ID-1","targetAccountId":"ID-2","amount":10.555}`, wantField: "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seededStore(t)
			r := setupRouter(t, s, nil)

			w := doRequest(r, http.MethodPost, "/v1/accounts/transfer", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeBadRequest(t, w)
			require.NotEmpty(t, resp.Details)
			assert.Equal(t, tt.wantField, resp.Details[0].Field)

			assertBalance(t, s, "ID-1", "550.55")
			assertBalance(t, s, "ID-2", "400.25")
		})
	}
}

func TestTransfer_WrongOrMissingBody(t *testing.T) {
	for name, body := range map[string]string{
		"no body":    "",
		"wrong body": `{"foo":"bar"}`,
	} {
		t.Run(name, func(t *testing.T) {
			s := seededStore(t)
			r := setupRouter(t, s, nil)

			w := doRequest(r, http.MethodPost, "/v1/accounts/transfer", body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assertBalance(t, s, "ID-1", "550.55")
			assertBalance(t, s, "ID-2", "400.25")
		})
	}
}

func TestTransfer_Rejected(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantMessage string
	}{
		{
			name:        "same account",
			body:        `{"sourceAccountId":"ID-1","targetAccountId":"ID-1","amount":150.55}`,
			wantMessage: "Accounts for transferring money must be different: sourceAccountId = ID-1, targetAccountId = ID-1",
		},
		{
			name:        "unknown source",
			body:        `{"sourceAccountId":"ID-9","targetAccountId":"ID-2","amount":150.55}`,
			wantMessage: "Account id = ID-9 not found!",
		},
		{
			name:        "unknown target",
			body:        `{"sourceAccountId":"ID-1","targetAccountId":"ID-9","amount":150.55}`,
			wantMessage: "Account id = ID-9 not found!",
		},
		{
			name:        "insufficient balance",
			body:        `{"sourceAccountId":"ID-1","targetAccountId":"ID-2","amount":570.75}`,
			wantMessage: "Failed to transfer money between accounts: sourceAccountId = ID-1, targetAccountId = ID-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seededStore(t)
			r := setupRouter(t, s, nil)

			w := doRequest(r, http.MethodPost, "/v1/accounts/transfer", tt.body)

			require.Equal(t, http.StatusNotAcceptable, w.Code)
			var resp TransferResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantMessage, resp.Message)

			assertBalance(t, s, "ID-1", "550.55")
			assertBalance(t, s, "ID-2", "400.25")
		})
	}
}

type failingTransferrer struct{}

func (failingTransferrer) Execute(context.Context, domain.TransferCommand) error {
	return assert.AnError
}

func TestTransfer_UnexpectedError(t *testing.T) {
	r := setupRouter(t, seededStore(t), failingTransferrer{})

	w := doRequest(r, http.MethodPost, "/v1/accounts/transfer",
		`{"sourceAccountId":"ID-1","targetAccountId":"ID-2","amount":1}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, seededStore(t), nil)

	w := doRequest(r, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Accounts)
}

func TestIsMoney(t *testing.T) {
	for value, want := range map[string]bool{
		"0":             true,
		"123.45":        true,
		"10.50":         true,
		"10.500":        true,
		"999999999.99":  true,
		"-999999999.99": true,
		"10.555":        false,
		"1000000000":    false,
		"0.001":         false,
	} {
		assert.Equal(t, want, isMoney(decimal.RequireFromString(value)), value)
	}
}
