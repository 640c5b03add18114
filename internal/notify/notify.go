package notify

import (
	"context"
	"time"

	"github.com/Dan9191/gente-bank/internal/models"
	"github.com/shopspring/decimal"
)

// Drift describes an account whose balance disagrees with its transaction log
type Drift struct {
	AccountNumber string
	Balance       decimal.Decimal
	Expected      decimal.Decimal
}

// Notifier sends operational alerts
type Notifier interface {
	LargeTransaction(ctx context.Context, accountNumber, username string, tx models.Transaction, balance decimal.Decimal) error
	ReconciliationReport(ctx context.Context, checkedAt time.Time, drifts []Drift) error
}

// Nop discards every alert
type Nop struct{}

func (Nop) LargeTransaction(context.Context, string, string, models.Transaction, decimal.Decimal) error {
	return nil
}

func (Nop) ReconciliationReport(context.Context, time.Time, []Drift) error { return nil }
