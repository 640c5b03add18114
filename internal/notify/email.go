package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/Dan9191/gente-bank/internal/models"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SMTPConfig holds the mail relay settings
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	To       string
}

// EmailSender delivers a prepared message
type EmailSender func(e *email.Email, addr string, auth smtp.Auth) error

// EmailNotifier sends alerts to the operations mailbox via SMTP
type EmailNotifier struct {
	cfg    SMTPConfig
	logger *logrus.Logger
	send   EmailSender
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg SMTPConfig, logger *logrus.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// LargeTransaction alerts about a deposit or withdrawal at or above the configured threshold
func (n *EmailNotifier) LargeTransaction(_ context.Context, accountNumber, username string, tx models.Transaction, balance decimal.Decimal) error {
	subject := fmt.Sprintf("Large %s on account %s", tx.Kind, accountNumber)
	return n.deliver(subject, largeTransactionBody(accountNumber, username, tx, balance))
}

// ReconciliationReport lists accounts whose balance drifted from their transaction log
func (n *EmailNotifier) ReconciliationReport(_ context.Context, checkedAt time.Time, drifts []Drift) error {
	subject := fmt.Sprintf("Reconciliation found %d drifted account(s)", len(drifts))
	return n.deliver(subject, reconciliationBody(checkedAt, drifts))
}

func (n *EmailNotifier) deliver(subject, body string) error {
	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = []string{n.cfg.To}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", n.cfg.Host, n.cfg.Port)
	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	if err := n.send(e, addr, auth); err != nil {
		n.logger.Errorf("Failed to send email to %s: %v", n.cfg.To, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Infof("Email sent to %s: %s", n.cfg.To, subject)
	return nil
}

func largeTransactionBody(accountNumber, username string, tx models.Transaction, balance decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Account: %s (%s)\n", accountNumber, username)
	fmt.Fprintf(&b, "Operation: %s\n", tx.Kind)
	fmt.Fprintf(&b, "Amount: %s\n", tx.Amount.StringFixed(2))
	fmt.Fprintf(&b, "Transaction time: %s\n", tx.Date.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Balance after operation: %s\n", balance.StringFixed(2))
	b.WriteString("\nBank Service")
	return b.String()
}

func reconciliationBody(checkedAt time.Time, drifts []Drift) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciliation run at %s found the following accounts out of balance:\n\n",
		checkedAt.Format("2006-01-02 15:04:05"))
	for _, d := range drifts {
		fmt.Fprintf(&b, "- %s: balance %s, transaction log %s\n",
			d.AccountNumber, d.Balance.StringFixed(2), d.Expected.StringFixed(2))
	}
	b.WriteString("\nBank Service")
	return b.String()
}
