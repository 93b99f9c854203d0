package store

import (
	"sort"
	"sync"

	"github.com/nathanyu/account-ledger/internal/domain"
)

// AccountStore is the in-memory registry of accounts.
// The map has its own lock; account balances are guarded by each account.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewAccountStore creates an empty store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*domain.Account),
	}
}

// Create registers account, failing with *domain.DuplicateAccountError if the id is taken.
// Accounts with an empty id or a negative balance are refused with *domain.InvalidAccountError.
func (s *AccountStore) Create(account *domain.Account) error {
	if account.ID() == "" {
		return &domain.InvalidAccountError{Reason: domain.ReasonEmptyAccountID}
	}
	if balance := account.Balance(); balance.IsNegative() {
		return &domain.InvalidAccountError{
			AccountID: account.ID(),
			Balance:   balance,
			Reason:    domain.ReasonNegativeBalance,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID()]; exists {
		return &domain.DuplicateAccountError{AccountID: account.ID()}
	}
	s.accounts[account.ID()] = account
	return nil
}

// Get returns the account registered under id.
func (s *AccountStore) Get(id string) (*domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[id]
	return account, exists
}

// All returns the registered accounts ordered by id.
func (s *AccountStore) All() []*domain.Account {
	s.mu.RLock()
	result := make([]*domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		result = append(result, account)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})
	return result
}

// Len returns the number of registered accounts.
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Clear drops every account. Test support only; callers must not run it
// alongside other operations.
func (s *AccountStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[string]*domain.Account)
}
