package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dan9191/gente-bank/internal/models"
	"github.com/Dan9191/gente-bank/internal/notify"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const runTimeout = 5 * time.Minute

// AccountLister is the part of the store the reconciler reads
type AccountLister interface {
	List(ctx context.Context) ([]*models.Account, error)
}

// Reconciler periodically checks that every balance equals the sum of its
// transaction log and reports accounts that drifted
type Reconciler struct {
	accounts AccountLister
	notifier notify.Notifier
	log      *logrus.Logger
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReconciler initializes a new reconciler
func NewReconciler(accounts AccountLister, notifier notify.Notifier, log *logrus.Logger) *Reconciler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Reconciler{
		accounts: accounts,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Check returns the drift of a single account, or nil when it is consistent
func Check(a *models.Account) *notify.Drift {
	deposits, withdrawals := models.Totals(a.Transactions)
	expected := deposits.Sub(withdrawals)
	if expected.Equal(a.Balance) && !a.Balance.IsNegative() {
		return nil
	}
	return &notify.Drift{
		AccountNumber: a.AccountNumber,
		Balance:       a.Balance,
		Expected:      expected,
	}
}

// Run checks every account once. Drifts are logged and sent to the notifier.
func (r *Reconciler) Run(ctx context.Context) ([]notify.Drift, error) {
	checkedAt := r.now()
	accounts, err := r.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	var drifts []notify.Drift
	for _, a := range accounts {
		d := Check(a)
		if d == nil {
			continue
		}
		r.log.WithFields(logrus.Fields{
			"account_number": d.AccountNumber,
			"balance":        d.Balance.String(),
			"expected":       d.Expected.String(),
		}).Error("Balance does not match transaction log")
		drifts = append(drifts, *d)
	}

	r.log.WithFields(logrus.Fields{
		"accounts": len(accounts),
		"drifted":  len(drifts),
	}).Info("Reconciliation finished")

	if len(drifts) > 0 {
		if err := r.notifier.ReconciliationReport(ctx, checkedAt, drifts); err != nil {
			return drifts, fmt.Errorf("failed to send reconciliation report: %w", err)
		}
	}
	return drifts, nil
}

// Start schedules Run with a cron schedule such as "@every 1h" or "0 3 * * *".
// An empty schedule leaves the reconciler idle.
func (r *Reconciler) Start(schedule string) error {
	if schedule == "" {
		r.log.Info("Reconciliation schedule is empty, job disabled")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return fmt.Errorf("reconciler already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, r.runScheduled); err != nil {
		return fmt.Errorf("invalid reconciliation schedule %q: %w", schedule, err)
	}
	c.Start()
	r.cron = c
	r.log.Infof("Reconciliation scheduled: %s", schedule)
	return nil
}

// Stop halts the schedule and waits for a running check to finish
func (r *Reconciler) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

func (r *Reconciler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := r.Run(ctx); err != nil {
		r.log.Errorf("Reconciliation failed: %v", err)
	}
}
