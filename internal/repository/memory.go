package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Dan9191/gente-bank/internal/models"
)

// MemoryStore keeps account documents in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
}

// NewMemoryStore initializes an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*models.Account)}
}

// FindByAccountNumber returns a copy of the stored account
func (s *MemoryStore) FindByAccountNumber(_ context.Context, number string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[number]
	if !ok {
		return nil, fmt.Errorf("find account %s: %w", number, ErrAccountNotFound)
	}
	return a.Clone(), nil
}

// Insert stores a new account with version 1
func (s *MemoryStore) Insert(_ context.Context, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.AccountNumber]; exists {
		return nil, fmt.Errorf("insert account %s: %w", account.AccountNumber, ErrDuplicateAccountNumber)
	}
	stored := account.Clone()
	stored.Version = 1
	s.accounts[stored.AccountNumber] = stored
	return stored.Clone(), nil
}

// UpdateFields applies the patch under the store lock
func (s *MemoryStore) UpdateFields(_ context.Context, number string, patch AccountPatch, expectedVersion int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[number]
	if !ok {
		return nil, fmt.Errorf("update account %s: %w", number, ErrAccountNotFound)
	}
	if expectedVersion != AnyVersion && a.Version != expectedVersion {
		return nil, fmt.Errorf("update account %s: stored version %d, expected %d: %w",
			number, a.Version, expectedVersion, ErrVersionConflict)
	}
	updated := a.Clone()
	patch.Apply(updated)
	s.accounts[number] = updated
	return updated.Clone(), nil
}

// Delete removes the account permanently
func (s *MemoryStore) Delete(_ context.Context, number string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[number]; !ok {
		return fmt.Errorf("delete account %s: %w", number, ErrAccountNotFound)
	}
	delete(s.accounts, number)
	return nil
}

// List returns copies of every account ordered by account number
func (s *MemoryStore) List(_ context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountNumber < out[j].AccountNumber })
	return out, nil
}

var _ AccountStore = (*MemoryStore)(nil)
