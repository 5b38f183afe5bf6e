// Package memstore is an in-memory store.Store used by tests and local
// development. It mirrors the transactional semantics of the gorm store:
// staged writes commit atomically and reconciliation is serialized per
// remote subscription id.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/launchkit/billing/internal/models"
	"github.com/launchkit/billing/internal/store"
	"github.com/launchkit/billing/pkg/tool"
	"github.com/launchkit/billing/pkg/types"
)

type Store struct {
	mu sync.Mutex

	subs      map[string]*models.Subscription   // keyed by remote subscription id
	invoices  map[string]*models.InvoicePayment // keyed by remote invoice id
	processed map[string]time.Time              // event id -> processed at

	subLocks map[string]*sync.Mutex

	// failNext, when set, makes the next ReconcileTx commit fail with that
	// error. Lets tests exercise the storage-failure path.
	failNext error
}

func New() *Store {
	return &Store{
		subs:      make(map[string]*models.Subscription),
		invoices:  make(map[string]*models.InvoicePayment),
		processed: make(map[string]time.Time),
		subLocks:  make(map[string]*sync.Mutex),
	}
}

// FailNextCommit makes the next transaction fail at commit time.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *Store) lockFor(remoteSubID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.subLocks[remoteSubID]
	if !ok {
		l = &sync.Mutex{}
		s.subLocks[remoteSubID] = l
	}
	return l
}

func (s *Store) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[eventID]
	return ok, nil
}

func (s *Store) ReconcileTx(ctx context.Context, remoteSubID string, fn func(tx store.Tx) error) error {
	l := s.lockFor(remoteSubID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	tx.commitLocked()
	return nil
}

func (s *Store) GetSubscriptionByUser(ctx context.Context, userID string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.UserID == userID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) GetSubscriptionByRemoteID(ctx context.Context, remoteSubID string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[remoteSubID]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) ListInvoicePayments(ctx context.Context, subscriptionID string) ([]*models.InvoicePayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.InvoicePayment
	for _, inv := range s.invoices {
		if inv.SubscriptionID == subscriptionID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	// recorded_at ascending, stable enough for tests
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].RecordedAt.Before(out[i].RecordedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

// InvoiceCount returns the total number of ledger rows. Test helper.
func (s *Store) InvoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

// ProcessedCount returns the number of idempotency records. Test helper.
func (s *Store) ProcessedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

// memTx stages writes and applies them on commit.
type memTx struct {
	store *Store

	stagedSubs     []*models.Subscription
	stagedInvoices []*models.InvoicePayment
	stagedEvents   map[string]time.Time
}

func (t *memTx) GetSubscription(remoteSubID string) (*models.Subscription, error) {
	// staged writes win over committed state within the transaction
	for i := len(t.stagedSubs) - 1; i >= 0; i-- {
		if t.stagedSubs[i].RemoteSubscriptionID == remoteSubID {
			cp := *t.stagedSubs[i]
			return &cp, nil
		}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if sub, ok := t.store.subs[remoteSubID]; ok {
		cp := *sub
		return &cp, nil
	}
	return nil, nil
}

func (t *memTx) SaveSubscription(sub *models.Subscription) error {
	if sub.ID == "" {
		sub.ID = tool.GenerateUUIDV7()
	}
	cp := *sub
	t.stagedSubs = append(t.stagedSubs, &cp)
	return nil
}

func (t *memTx) InsertInvoiceOnce(p *models.InvoicePayment) (*models.InvoicePayment, bool, error) {
	existing := t.findInvoice(p.RemoteInvoiceID)
	if existing != nil {
		if existing.Status == types.InvoicePaymentStatusFailed && p.Status == types.InvoicePaymentStatusSucceeded {
			upd := *existing
			upd.Status = types.InvoicePaymentStatusSucceeded
			t.stagedInvoices = append(t.stagedInvoices, &upd)
			return &upd, false, nil
		}
		return existing, false, nil
	}
	if p.ID == "" {
		p.ID = tool.GenerateUUIDV7()
	}
	cp := *p
	t.stagedInvoices = append(t.stagedInvoices, &cp)
	out := cp
	return &out, true, nil
}

func (t *memTx) findInvoice(remoteInvoiceID string) *models.InvoicePayment {
	for i := len(t.stagedInvoices) - 1; i >= 0; i-- {
		if t.stagedInvoices[i].RemoteInvoiceID == remoteInvoiceID {
			cp := *t.stagedInvoices[i]
			return &cp
		}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if inv, ok := t.store.invoices[remoteInvoiceID]; ok {
		cp := *inv
		return &cp
	}
	return nil
}

func (t *memTx) MarkEventProcessed(eventID string, at time.Time) error {
	if t.stagedEvents == nil {
		t.stagedEvents = make(map[string]time.Time)
	}
	t.stagedEvents[eventID] = at
	return nil
}

func (t *memTx) commitLocked() {
	now := time.Now()
	for _, sub := range t.stagedSubs {
		cp := *sub
		if existing, ok := t.store.subs[cp.RemoteSubscriptionID]; ok {
			cp.CreatedAt = existing.CreatedAt
		} else {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		t.store.subs[cp.RemoteSubscriptionID] = &cp
	}
	for _, inv := range t.stagedInvoices {
		cp := *inv
		if existing, ok := t.store.invoices[cp.RemoteInvoiceID]; ok {
			cp.CreatedAt = existing.CreatedAt
		} else {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		t.store.invoices[cp.RemoteInvoiceID] = &cp
	}
	for id, at := range t.stagedEvents {
		if _, ok := t.store.processed[id]; !ok {
			t.store.processed[id] = at
		}
	}
}

var _ store.Store = (*Store)(nil)
