package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	AccountCreated = "account.created"
	AccountUpdated = "account.updated"
	AccountDeleted = "account.deleted"

	TransactionCreated = "transaction.created"
)

// Stream names
const (
	AccountEventsStream     = "account.events"
	TransactionEventsStream = "transaction.events"
)

// Event is the envelope written to a stream
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type AccountCreatedEvent struct {
	AccountNumber string `json:"accountNumber"`
	Username      string `json:"username"`
	Kind          string `json:"kindAccount,omitempty"`
}

type AccountUpdatedEvent struct {
	AccountNumber string   `json:"accountNumber"`
	Fields        []string `json:"fields"`
}

type AccountDeletedEvent struct {
	AccountNumber string `json:"accountNumber"`
}

type TransactionCreatedEvent struct {
	AccountNumber string          `json:"accountNumber"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"newBalance"`
}

// Publisher writes events to a stream
type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
