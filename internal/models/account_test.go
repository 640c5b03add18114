package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalsAndSigned(t *testing.T) {
	txs := []Transaction{
		{Kind: TransactionDeposit, Amount: decimal.RequireFromString("100.10")},
		{Kind: TransactionWithdrawal, Amount: decimal.RequireFromString("40")},
		{Kind: TransactionDeposit, Amount: decimal.RequireFromString("0.90")},
	}
	deposits, withdrawals := Totals(txs)
	assert.True(t, deposits.Equal(decimal.NewFromInt(101)))
	assert.True(t, withdrawals.Equal(decimal.NewFromInt(40)))
	assert.True(t, txs[1].Signed().Equal(decimal.NewFromInt(-40)))
	assert.True(t, txs[0].Signed().Equal(txs[0].Amount))

	deposits, withdrawals = Totals(nil)
	assert.True(t, deposits.IsZero())
	assert.True(t, withdrawals.IsZero())
}

func TestAccount_CloneIsIndependent(t *testing.T) {
	a := &Account{
		AccountNumber: "48213",
		Transactions:  []Transaction{{Kind: TransactionDeposit, Amount: decimal.NewFromInt(5)}},
	}
	cp := a.Clone()
	cp.Transactions[0].Amount = decimal.NewFromInt(7)
	cp.Transactions = append(cp.Transactions, Transaction{Kind: TransactionWithdrawal})

	assert.True(t, a.Transactions[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.Len(t, a.Transactions, 1)
}

func TestAccount_JSONHidesHash(t *testing.T) {
	a := &Account{
		AccountNumber: "48213",
		Username:      "maria",
		PasswordHash:  "$2a$10$secret",
		Balance:       decimal.NewFromInt(3),
		Kind:          KindSavings,
		Version:       4,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, v := range []any{a, a.View()} {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "secret")
		assert.NotContains(t, string(raw), "version")
		assert.Contains(t, string(raw), `"kindAccount":"savings"`)
	}
}

func TestAccountKind_Valid(t *testing.T) {
	assert.True(t, KindSavings.Valid())
	assert.True(t, KindCurrent.Valid())
	assert.False(t, AccountKind("gold").Valid())
	assert.False(t, AccountKind("").Valid())
}
