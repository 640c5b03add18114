package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/gente-bank/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// accountDocument is the persisted JSONB layout of an account.
// Unlike models.Account it carries the password hash.
type accountDocument struct {
	AccountNumber string               `json:"accountNumber"`
	Username      string               `json:"username"`
	PasswordHash  string               `json:"password"`
	Balance       decimal.Decimal      `json:"balance"`
	Agency        string               `json:"agency,omitempty"`
	Kind          models.AccountKind   `json:"kindAccount,omitempty"`
	Transactions  []models.Transaction `json:"transactions"`
	CreatedAt     time.Time            `json:"creationDate"`
	UpdatedAt     time.Time            `json:"lastUpdatedDate"`
}

func toDocument(a *models.Account) accountDocument {
	txs := a.Transactions
	if txs == nil {
		txs = []models.Transaction{}
	}
	return accountDocument{
		AccountNumber: a.AccountNumber,
		Username:      a.Username,
		PasswordHash:  a.PasswordHash,
		Balance:       a.Balance,
		Agency:        a.Agency,
		Kind:          a.Kind,
		Transactions:  txs,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func (d accountDocument) toAccount(version int64) *models.Account {
	return &models.Account{
		AccountNumber: d.AccountNumber,
		Username:      d.Username,
		PasswordHash:  d.PasswordHash,
		Balance:       d.Balance,
		Agency:        d.Agency,
		Kind:          d.Kind,
		Transactions:  d.Transactions,
		Version:       version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// PostgresStore keeps one JSONB document per account in bank.accounts
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore initializes a new document store on top of db
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		version int64
		raw     []byte
	)
	if err := row.Scan(&version, &raw); err != nil {
		return nil, err
	}
	var doc accountDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode account document: %w", err)
	}
	return doc.toAccount(version), nil
}

// FindByAccountNumber retrieves an account by its number
func (s *PostgresStore) FindByAccountNumber(ctx context.Context, number string) (*models.Account, error) {
	query := `
		SELECT version, document
		FROM bank.accounts
		WHERE account_number = $1`
	account, err := scanAccount(s.db.QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find account %s: %w", number, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// Insert creates a new account document with version 1
func (s *PostgresStore) Insert(ctx context.Context, account *models.Account) (*models.Account, error) {
	raw, err := json.Marshal(toDocument(account))
	if err != nil {
		return nil, fmt.Errorf("failed to encode account document: %w", err)
	}
	query := `
		INSERT INTO bank.accounts (account_number, version, document, created_at, updated_at)
		VALUES ($1, 1, $2, $3, $4)`
	_, err = s.db.ExecContext(ctx, query, account.AccountNumber, raw, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, fmt.Errorf("insert account %s: %w", account.AccountNumber, ErrDuplicateAccountNumber)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	stored := account.Clone()
	stored.Version = 1
	return stored, nil
}

// UpdateFields locks the row, checks the version and writes the patched document
func (s *PostgresStore) UpdateFields(ctx context.Context, number string, patch AccountPatch, expectedVersion int64) (*models.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
		SELECT version, document
		FROM bank.accounts
		WHERE account_number = $1
		FOR UPDATE`
	account, err := scanAccount(tx.QueryRowContext(ctx, query, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update account %s: %w", number, ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	if expectedVersion != AnyVersion && account.Version != expectedVersion {
		return nil, fmt.Errorf("update account %s: stored version %d, expected %d: %w",
			number, account.Version, expectedVersion, ErrVersionConflict)
	}

	patch.Apply(account)
	raw, err := json.Marshal(toDocument(account))
	if err != nil {
		return nil, fmt.Errorf("failed to encode account document: %w", err)
	}
	update := `
		UPDATE bank.accounts
		SET version = $2, document = $3, updated_at = $4
		WHERE account_number = $1`
	if _, err := tx.ExecContext(ctx, update, number, account.Version, raw, account.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit account update: %w", err)
	}
	return account, nil
}

// Delete removes the account row permanently
func (s *PostgresStore) Delete(ctx context.Context, number string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bank.accounts WHERE account_number = $1`, number)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete account %s: %w", number, ErrAccountNotFound)
	}
	return nil
}

// List returns every account ordered by account number
func (s *PostgresStore) List(ctx context.Context) ([]*models.Account, error) {
	query := `
		SELECT version, document
		FROM bank.accounts
		ORDER BY account_number`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}
	return accounts, nil
}

var _ AccountStore = (*PostgresStore)(nil)
