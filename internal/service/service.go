package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/gente-bank/internal/auth"
	"github.com/Dan9191/gente-bank/internal/events"
	"github.com/Dan9191/gente-bank/internal/models"
	"github.com/Dan9191/gente-bank/internal/notify"
	"github.com/Dan9191/gente-bank/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxNumberAttempts = 10
	DefaultMaxVersionRetries = 5

	// amountScale is the number of fractional digits an amount may carry
	amountScale = 2

	notifyTimeout = 30 * time.Second
)

// Options tunes the Service. Zero values select the defaults.
type Options struct {
	MaxNumberAttempts int
	MaxVersionRetries int
	// MaxAmount caps a single deposit or withdrawal; zero disables the cap
	MaxAmount decimal.Decimal
	// LargeTransactionThreshold triggers an alert; zero disables alerts
	LargeTransactionThreshold decimal.Decimal
}

// NewAccount is the input of Register
type NewAccount struct {
	Username       string
	Password       string
	InitialBalance decimal.Decimal
	Agency         string
	Kind           models.AccountKind
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	Username *string
	Password *string
	Agency   *string
	Kind     *models.AccountKind
}

// Empty reports whether the update changes nothing
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.Password == nil && u.Agency == nil && u.Kind == nil
}

// Service handles account business logic
type Service struct {
	store     repository.AccountStore
	hasher    *auth.Hasher
	tokens    *auth.TokenIssuer
	publisher events.Publisher
	notifier  notify.Notifier
	log       *logrus.Logger
	opts      Options

	locks      *keyedLocker
	background sync.WaitGroup
	newNumber  func() (string, error)
	now        func() time.Time
}

// NewService initializes a new service
func NewService(
	store repository.AccountStore,
	hasher *auth.Hasher,
	tokens *auth.TokenIssuer,
	publisher events.Publisher,
	notifier notify.Notifier,
	log *logrus.Logger,
	opts Options,
) *Service {
	if opts.MaxNumberAttempts <= 0 {
		opts.MaxNumberAttempts = DefaultMaxNumberAttempts
	}
	if opts.MaxVersionRetries <= 0 {
		opts.MaxVersionRetries = DefaultMaxVersionRetries
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		publisher: publisher,
		notifier:  notifier,
		log:       log,
		opts:      opts,
		locks:     newKeyedLocker(),
		newNumber: randomAccountNumber,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new account under a freshly generated account number
func (s *Service) Register(ctx context.Context, in NewAccount) (*models.Account, error) {
	if strings.TrimSpace(in.Username) == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidArgument)
	}
	if in.Kind != "" && !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown account kind %q", ErrInvalidArgument, in.Kind)
	}
	if in.InitialBalance.IsNegative() {
		return nil, fmt.Errorf("%w: initial balance must not be negative", ErrInvalidArgument)
	}
	if !in.InitialBalance.Equal(in.InitialBalance.Round(amountScale)) {
		return nil, fmt.Errorf("%w: initial balance has more than %d decimal places", ErrInvalidArgument, amountScale)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := &models.Account{
		Username:     in.Username,
		PasswordHash: hash,
		Balance:      decimal.Zero,
		Agency:       in.Agency,
		Kind:         in.Kind,
		Transactions: []models.Transaction{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// An opening balance is booked as a deposit so the log always explains the balance
	if in.InitialBalance.IsPositive() {
		account.Balance = in.InitialBalance
		account.Transactions = append(account.Transactions, models.Transaction{
			Kind:   models.TransactionDeposit,
			Amount: in.InitialBalance,
			Date:   now,
		})
	}

	for attempt := 1; attempt <= s.opts.MaxNumberAttempts; attempt++ {
		number, err := s.newNumber()
		if err != nil {
			return nil, fmt.Errorf("failed to generate account number: %w", err)
		}
		_, err = s.store.FindByAccountNumber(ctx, number)
		if err == nil {
			s.log.Debugf("Account number %s taken, attempt %d", number, attempt)
			continue
		}
		if !errors.Is(err, repository.ErrAccountNotFound) {
			return nil, err
		}

		account.AccountNumber = number
		stored, err := s.store.Insert(ctx, account)
		if errors.Is(err, repository.ErrDuplicateAccountNumber) {
			s.log.Debugf("Account number %s inserted concurrently, attempt %d", number, attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		s.log.WithFields(logrus.Fields{
			"account_number": stored.AccountNumber,
			"attempts":       attempt,
		}).Info("Account registered")
		s.publish(ctx, events.AccountEventsStream, events.AccountCreated, events.AccountCreatedEvent{
			AccountNumber: stored.AccountNumber,
			Username:      stored.Username,
			Kind:          string(stored.Kind),
		})
		return stored, nil
	}
	return nil, fmt.Errorf("%w: no free account number after %d attempts", ErrConflict, s.opts.MaxNumberAttempts)
}

// Authenticate verifies the credentials and returns a signed bearer token
func (s *Service) Authenticate(ctx context.Context, accountNumber, password string) (string, error) {
	account, err := s.verified(ctx, accountNumber, password)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(account.AccountNumber, account.Username)
	if err != nil {
		return "", err
	}
	s.log.Infof("Account logged in: %s", account.AccountNumber)
	return token, nil
}

// Profile returns the account after verifying the credentials
func (s *Service) Profile(ctx context.Context, accountNumber, password string) (*models.Account, error) {
	return s.verified(ctx, accountNumber, password)
}

// Deposit credits amount to the account. The password is checked on every call.
func (s *Service) Deposit(ctx context.Context, accountNumber, password string, amount decimal.Decimal) (*models.Account, error) {
	return s.move(ctx, accountNumber, password, models.TransactionDeposit, amount)
}

// Withdraw debits amount from the account. The password is checked on every call.
func (s *Service) Withdraw(ctx context.Context, accountNumber, password string, amount decimal.Decimal) (*models.Account, error) {
	return s.move(ctx, accountNumber, password, models.TransactionWithdrawal, amount)
}

func (s *Service) move(ctx context.Context, accountNumber, password string, kind models.TransactionKind, amount decimal.Decimal) (*models.Account, error) {
	if err := s.validateAmount(amount); err != nil {
		return nil, err
	}

	var (
		tx           models.Transaction
		verifiedHash string
	)
	updated, err := s.mutate(ctx, accountNumber, func(a *models.Account) (repository.AccountPatch, error) {
		// a retry after a version conflict only re-runs bcrypt when the hash changed
		if a.PasswordHash != verifiedHash {
			if err := s.checkPassword(a, password); err != nil {
				return repository.AccountPatch{}, err
			}
			verifiedHash = a.PasswordHash
		}

		balance := a.Balance.Add(amount)
		if kind == models.TransactionWithdrawal {
			if a.Balance.LessThan(amount) {
				return repository.AccountPatch{}, fmt.Errorf("%w: balance %s, requested %s",
					ErrInsufficientFunds, a.Balance.StringFixed(amountScale), amount.StringFixed(amountScale))
			}
			balance = a.Balance.Sub(amount)
		}

		now := s.now()
		tx = models.Transaction{Kind: kind, Amount: amount, Date: now}
		return repository.AccountPatch{
			Balance:   &balance,
			Append:    []models.Transaction{tx},
			UpdatedAt: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"account_number": accountNumber,
		"type":           kind,
		"amount":         amount.String(),
		"balance":        updated.Balance.String(),
	}).Info("Transaction applied")
	s.publish(ctx, events.TransactionEventsStream, events.TransactionCreated, events.TransactionCreatedEvent{
		AccountNumber: accountNumber,
		Type:          string(kind),
		Amount:        amount,
		NewBalance:    updated.Balance,
	})
	if t := s.opts.LargeTransactionThreshold; t.IsPositive() && amount.GreaterThanOrEqual(t) {
		s.alertLargeTransaction(ctx, updated, tx)
	}
	return updated, nil
}

// UpdateProfile applies a partial profile change
func (s *Service) UpdateProfile(ctx context.Context, accountNumber string, update ProfileUpdate) (*models.Account, error) {
	if update.Empty() {
		return nil, fmt.Errorf("%w: update payload is empty", ErrInvalidArgument)
	}
	if update.Username != nil && strings.TrimSpace(*update.Username) == "" {
		return nil, fmt.Errorf("%w: username must not be empty", ErrInvalidArgument)
	}
	if update.Password != nil && *update.Password == "" {
		return nil, fmt.Errorf("%w: password must not be empty", ErrInvalidArgument)
	}
	if update.Kind != nil && !update.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown account kind %q", ErrInvalidArgument, *update.Kind)
	}

	patch := repository.AccountPatch{
		Username: update.Username,
		Agency:   update.Agency,
		Kind:     update.Kind,
	}
	var fields []string
	if update.Username != nil {
		fields = append(fields, "username")
	}
	if update.Password != nil {
		hash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
		fields = append(fields, "password")
	}
	if update.Agency != nil {
		fields = append(fields, "agency")
	}
	if update.Kind != nil {
		fields = append(fields, "kindAccount")
	}

	updated, err := s.mutate(ctx, accountNumber, func(*models.Account) (repository.AccountPatch, error) {
		patch.UpdatedAt = s.now()
		return patch, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("fields", fields).Infof("Account updated: %s", accountNumber)
	s.publish(ctx, events.AccountEventsStream, events.AccountUpdated, events.AccountUpdatedEvent{
		AccountNumber: accountNumber,
		Fields:        fields,
	})
	return updated, nil
}

// Delete removes the account permanently after re-verifying the password
func (s *Service) Delete(ctx context.Context, accountNumber, password string) error {
	unlock := s.locks.Lock(accountNumber)
	defer unlock()

	if _, err := s.verified(ctx, accountNumber, password); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, accountNumber); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return err
	}

	s.log.Infof("Account deleted: %s", accountNumber)
	s.publish(ctx, events.AccountEventsStream, events.AccountDeleted, events.AccountDeletedEvent{
		AccountNumber: accountNumber,
	})
	return nil
}

// List returns every account
func (s *Service) List(ctx context.Context) ([]*models.Account, error) {
	return s.store.List(ctx)
}

// Wait blocks until background alerts have been delivered
func (s *Service) Wait() {
	s.background.Wait()
}

// mutate runs a read-modify-write on one account. The keyed lock serializes
// goroutines of this process; the version check catches writers in other processes.
func (s *Service) mutate(ctx context.Context, accountNumber string, change func(*models.Account) (repository.AccountPatch, error)) (*models.Account, error) {
	unlock := s.locks.Lock(accountNumber)
	defer unlock()

	attempts := s.opts.MaxVersionRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current, err := s.find(ctx, accountNumber)
		if err != nil {
			return nil, err
		}
		patch, err := change(current)
		if err != nil {
			return nil, err
		}

		updated, err := s.store.UpdateFields(ctx, accountNumber, patch, current.Version)
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, repository.ErrVersionConflict):
			s.log.WithFields(logrus.Fields{
				"account_number": accountNumber,
				"attempt":        attempt,
			}).Warn("Concurrent account update, retrying")
		case errors.Is(err, repository.ErrAccountNotFound):
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: account %s changed concurrently %d times", ErrConflict, accountNumber, attempts)
}

func (s *Service) find(ctx context.Context, accountNumber string) (*models.Account, error) {
	account, err := s.store.FindByAccountNumber(ctx, accountNumber)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) verified(ctx context.Context, accountNumber, password string) (*models.Account, error) {
	account, err := s.find(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if err := s.checkPassword(account, password); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) checkPassword(account *models.Account, password string) error {
	err := s.hasher.Verify(account.PasswordHash, password)
	if errors.Is(err, auth.ErrPasswordMismatch) {
		s.log.Warnf("Invalid password for account %s", account.AccountNumber)
		return fmt.Errorf("%w: account %s", ErrUnauthorized, account.AccountNumber)
	}
	return err
}

func (s *Service) validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidArgument)
	}
	if !amount.Equal(amount.Round(amountScale)) {
		return fmt.Errorf("%w: amount has more than %d decimal places", ErrInvalidArgument, amountScale)
	}
	if s.opts.MaxAmount.IsPositive() && amount.GreaterThan(s.opts.MaxAmount) {
		return fmt.Errorf("%w: amount exceeds the limit of %s", ErrInvalidArgument, s.opts.MaxAmount.StringFixed(amountScale))
	}
	return nil
}

func (s *Service) publish(ctx context.Context, stream, eventType string, data any) {
	if err := s.publisher.Publish(ctx, stream, eventType, data); err != nil {
		s.log.Errorf("Failed to publish %s event: %v", eventType, err)
	}
}

func (s *Service) alertLargeTransaction(ctx context.Context, account *models.Account, tx models.Transaction) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()
		if err := s.notifier.LargeTransaction(ctx, account.AccountNumber, account.Username, tx, account.Balance); err != nil {
			s.log.Errorf("Failed to send large transaction alert for %s: %v", account.AccountNumber, err)
		}
	}()
}
