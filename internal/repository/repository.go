package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Dan9191/gente-bank/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound is returned when no record has the requested account number
	ErrAccountNotFound = errors.New("account not found")
	// ErrVersionConflict is returned when the stored version differs from the expected one
	ErrVersionConflict = errors.New("account version conflict")
	// ErrDuplicateAccountNumber is returned by Insert when the number is already taken
	ErrDuplicateAccountNumber = errors.New("duplicate account number")
)

// AnyVersion disables the optimistic version check of UpdateFields
const AnyVersion int64 = 0

// AccountStore persists account documents
type AccountStore interface {
	FindByAccountNumber(ctx context.Context, number string) (*models.Account, error)
	Insert(ctx context.Context, account *models.Account) (*models.Account, error)
	// UpdateFields applies patch to the stored account. When expectedVersion is not
	// AnyVersion the write only happens if the stored version still matches.
	UpdateFields(ctx context.Context, number string, patch AccountPatch, expectedVersion int64) (*models.Account, error)
	Delete(ctx context.Context, number string) error
	List(ctx context.Context) ([]*models.Account, error)
}

// AccountPatch is a partial update of an account document. Nil fields are left untouched.
type AccountPatch struct {
	Username     *string
	PasswordHash *string
	Agency       *string
	Kind         *models.AccountKind
	Balance      *decimal.Decimal
	Append       []models.Transaction
	UpdatedAt    time.Time
}

// Apply writes the patch into a and bumps its version
func (p AccountPatch) Apply(a *models.Account) {
	if p.Username != nil {
		a.Username = *p.Username
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.Agency != nil {
		a.Agency = *p.Agency
	}
	if p.Kind != nil {
		a.Kind = *p.Kind
	}
	if p.Balance != nil {
		a.Balance = *p.Balance
	}
	if len(p.Append) > 0 {
		a.Transactions = append(a.Transactions, p.Append...)
	}
	if !p.UpdatedAt.IsZero() {
		a.UpdatedAt = p.UpdatedAt
	}
	a.Version++
}
