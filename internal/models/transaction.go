package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the direction of a balance movement
type TransactionKind string

const (
	TransactionDeposit    TransactionKind = "deposit"
	TransactionWithdrawal TransactionKind = "withdrawal"
)

// Transaction represents a single entry of an account's transaction log.
// Entries are append-only.
type Transaction struct {
	Kind   TransactionKind `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

// Signed returns the amount with the sign it contributes to the balance
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == TransactionWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Totals sums deposits and withdrawals of a transaction log
func Totals(txs []Transaction) (deposits, withdrawals decimal.Decimal) {
	deposits, withdrawals = decimal.Zero, decimal.Zero
	for _, t := range txs {
		switch t.Kind {
		case TransactionDeposit:
			deposits = deposits.Add(t.Amount)
		case TransactionWithdrawal:
			withdrawals = withdrawals.Add(t.Amount)
		}
	}
	return deposits, withdrawals
}
