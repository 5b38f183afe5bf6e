// Package gormstore is the postgres-backed store.Store. Per-subscription
// serialization uses a row lock (SELECT ... FOR UPDATE) inside the
// reconciliation transaction, so it survives process restarts and multiple
// replicas sharing one database.
package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/launchkit/billing/internal/models"
	"github.com/launchkit/billing/internal/store"
	"github.com/launchkit/billing/pkg/tool"
	"github.com/launchkit/billing/pkg/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

// NewStore exposes the concrete store behind the store.Store interface for Fx.
func NewStore(db *gorm.DB) store.Store { return New(db) }

func (s *Store) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.ProcessedEvent{}).
		Where("event_id = ?", eventID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) ReconcileTx(ctx context.Context, remoteSubID string, fn func(tx store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{tx: tx, remoteSubID: remoteSubID})
	})
}

func (s *Store) GetSubscriptionByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) GetSubscriptionByRemoteID(ctx context.Context, remoteSubID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Where("remote_subscription_id = ?", remoteSubID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) ListInvoicePayments(ctx context.Context, subscriptionID string) ([]*models.InvoicePayment, error) {
	var items []*models.InvoicePayment
	if err := s.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("recorded_at asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

type gormTx struct {
	tx          *gorm.DB
	remoteSubID string
}

func (t *gormTx) GetSubscription(remoteSubID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("remote_subscription_id = ?", remoteSubID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Nothing to lock yet. The unique index on remote_subscription_id
		// backstops two transactions racing to create the first row: one
		// insert fails, the endpoint answers 5xx and the sender redelivers.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (t *gormTx) SaveSubscription(sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = tool.GenerateUUIDV7()
	}
	return t.tx.Save(sub).Error
}

func (t *gormTx) InsertInvoiceOnce(p *models.InvoicePayment) (*models.InvoicePayment, bool, error) {
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	res := t.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_invoice_id"}},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return p, true, nil
	}

	var existing models.InvoicePayment
	if err := t.tx.Where("remote_invoice_id = ?", p.RemoteInvoiceID).First(&existing).Error; err != nil {
		return nil, false, err
	}
	if existing.Status == types.InvoicePaymentStatusFailed && p.Status == types.InvoicePaymentStatusSucceeded {
		existing.Status = types.InvoicePaymentStatusSucceeded
		if err := t.tx.Save(&existing).Error; err != nil {
			return nil, false, err
		}
	}
	return &existing, false, nil
}

func (t *gormTx) MarkEventProcessed(eventID string, at time.Time) error {
	return t.tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProcessedEvent{EventID: eventID, ProcessedAt: at}).Error
}

var _ store.Store = (*Store)(nil)
