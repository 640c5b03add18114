package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind classifies an account
type AccountKind string

const (
	KindSavings AccountKind = "savings"
	KindCurrent AccountKind = "current"
)

// Valid reports whether k is one of the supported kinds
func (k AccountKind) Valid() bool {
	return k == KindSavings || k == KindCurrent
}

// Account represents a bank account together with its transaction log
type Account struct {
	AccountNumber string          `json:"accountNumber"`
	Username      string          `json:"username"`
	PasswordHash  string          `json:"-"` // Not serialized
	Balance       decimal.Decimal `json:"balance"`
	Agency        string          `json:"agency,omitempty"`
	Kind          AccountKind     `json:"kindAccount,omitempty"`
	Transactions  []Transaction   `json:"transactions"`
	Version       int64           `json:"-"`
	CreatedAt     time.Time       `json:"creationDate"`
	UpdatedAt     time.Time       `json:"lastUpdatedDate"`
}

// Clone returns a deep copy so callers can mutate it without touching shared state
func (a *Account) Clone() *Account {
	cp := *a
	cp.Transactions = make([]Transaction, len(a.Transactions))
	copy(cp.Transactions, a.Transactions)
	return &cp
}

// View returns the public projection of the account
func (a *Account) View() AccountView {
	txs := make([]Transaction, len(a.Transactions))
	copy(txs, a.Transactions)
	return AccountView{
		AccountNumber: a.AccountNumber,
		Username:      a.Username,
		Balance:       a.Balance,
		Agency:        a.Agency,
		Kind:          a.Kind,
		Transactions:  txs,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// AccountView is what leaves the service boundary. It has no password hash.
type AccountView struct {
	AccountNumber string          `json:"accountNumber"`
	Username      string          `json:"username"`
	Balance       decimal.Decimal `json:"balance"`
	Agency        string          `json:"agency,omitempty"`
	Kind          AccountKind     `json:"kindAccount,omitempty"`
	Transactions  []Transaction   `json:"transactions"`
	CreatedAt     time.Time       `json:"creationDate"`
	UpdatedAt     time.Time       `json:"lastUpdatedDate"`
}
