// Package store defines the persistence boundary of the reconciliation
// engine. The engine only sees these interfaces; production wires the gorm
// implementation, tests wire the in-memory one.
package store

import (
	"context"
	"time"

	"github.com/launchkit/billing/internal/models"
)

// Tx is the transactional view handed to a reconciliation handler. All
// mutations made through a Tx commit atomically, including MarkEventProcessed:
// an event is marked processed in the same transaction as its effect, never
// before and never in a separate commit.
type Tx interface {
	// GetSubscription loads the row for a remote subscription id, holding it
	// exclusively until the transaction ends. Returns (nil, nil) when absent.
	GetSubscription(remoteSubscriptionID string) (*models.Subscription, error)
	SaveSubscription(sub *models.Subscription) error
	// InsertInvoiceOnce appends a ledger entry keyed by remote invoice id.
	// When the invoice already exists this is a no-op returning the existing
	// row, except that a failed entry is promoted to succeeded when the
	// incoming status is succeeded (a retried charge on the same invoice).
	// The returned bool reports whether a new row was inserted.
	InsertInvoiceOnce(p *models.InvoicePayment) (*models.InvoicePayment, bool, error)
	MarkEventProcessed(eventID string, at time.Time) error
}

// Store is the engine's persistence handle.
type Store interface {
	// AlreadyProcessed reports whether the event id has a committed
	// ProcessedEvent row.
	AlreadyProcessed(ctx context.Context, eventID string) (bool, error)

	// ReconcileTx runs fn inside a transaction serialized per remote
	// subscription id: two concurrent calls for the same id never interleave
	// their reads and writes. Calls for different ids may run concurrently.
	ReconcileTx(ctx context.Context, remoteSubscriptionID string, fn func(tx Tx) error) error

	// Read-only views for the billing UI/API. Never used to mutate state.
	GetSubscriptionByUser(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionByRemoteID(ctx context.Context, remoteSubscriptionID string) (*models.Subscription, error)
	// ListInvoicePayments returns the ledger for a subscription ordered by
	// recorded_at ascending.
	ListInvoicePayments(ctx context.Context, subscriptionID string) ([]*models.InvoicePayment, error)
}
