// Package reconcile keeps local subscription and invoice state consistent
// with the payment processor's authoritative state. Events arrive
// at-least-once and out of order; the engine is built so that redelivery and
// reordering never regress state or duplicate financial side effects.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/launchkit/billing/internal/app/service/notify"
	"github.com/launchkit/billing/internal/models"
	"github.com/launchkit/billing/internal/platform/processor"
	"github.com/launchkit/billing/internal/store"
	"github.com/launchkit/billing/pkg/config"
	"github.com/launchkit/billing/pkg/logctx"
	"github.com/launchkit/billing/pkg/types"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Outcome classifies what dispatching an event did. Every outcome is an
// acknowledgment; only a returned error maps to a retryable failure.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeStale     Outcome = "stale"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeUnknown   Outcome = "unknown"
	OutcomeNoop      Outcome = "noop"
)

// AuditRecorder receives subscription change audit entries. Implementations
// must not block reconciliation.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.SubscriptionLog)
}

type Engine struct {
	store    store.Store
	notifier notify.Notifier
	cfg      *config.Config
	audit    AuditRecorder
	metrics  *Metrics
	log      *zap.SugaredLogger
}

func NewEngine(st store.Store, notifier notify.Notifier, cfg *config.Config, audit AuditRecorder, metrics *Metrics, log *zap.SugaredLogger) *Engine {
	return &Engine{store: st, notifier: notifier, cfg: cfg, audit: audit, metrics: metrics, log: log}
}

// pendingNotice is a notification side effect collected inside the
// transaction and emitted only after it commits.
type pendingNotice struct {
	kind processor.EventType
	sub  models.Subscription
}

// Dispatch routes a parsed event to its handler. Events for the same remote
// subscription are serialized by the store; events for different
// subscriptions run concurrently. A nil error means the event is fully
// acknowledged; an error means nothing was committed and the sender should
// redeliver.
func (e *Engine) Dispatch(ctx context.Context, ev *processor.Event) (Outcome, error) {
	log := logctx.FromCtx(ctx, e.log)

	if ev.Type == processor.EventTypeUnknown {
		log.Infow("event_type_unknown", "event_id", ev.ID, "raw_type", ev.RawType)
		e.metrics.observe(ev.RawType, OutcomeUnknown)
		return OutcomeUnknown, nil
	}

	processed, err := e.store.AlreadyProcessed(ctx, ev.ID)
	if err != nil {
		return "", fmt.Errorf("failed to check idempotency record: %w", err)
	}
	if processed {
		log.Infow("event_duplicate", "event_id", ev.ID, "type", ev.Type)
		e.metrics.observe(string(ev.Type), OutcomeDuplicate)
		return OutcomeDuplicate, nil
	}

	remoteSubID := ev.RemoteSubscriptionID()
	if remoteSubID == "" {
		// Parser guarantees all known types carry one; belt and suspenders.
		return "", fmt.Errorf("event %s has no subscription reference", ev.ID)
	}

	var outcome Outcome
	var notices []pendingNotice
	err = e.store.ReconcileTx(ctx, remoteSubID, func(tx store.Tx) error {
		out, ns, err := e.apply(ctx, tx, ev)
		if err != nil {
			return err
		}
		outcome = out
		notices = ns
		return tx.MarkEventProcessed(ev.ID, time.Now())
	})
	if err != nil {
		e.metrics.observe(string(ev.Type), Outcome("error"))
		return "", fmt.Errorf("failed to reconcile event %s: %w", ev.ID, err)
	}

	for _, n := range notices {
		e.emit(ctx, n)
	}

	log.Infow("event_reconciled", "event_id", ev.ID, "type", ev.Type, "outcome", outcome)
	e.metrics.observe(string(ev.Type), outcome)
	return outcome, nil
}

func (e *Engine) apply(ctx context.Context, tx store.Tx, ev *processor.Event) (Outcome, []pendingNotice, error) {
	switch ev.Type {
	case processor.EventTypeCheckoutCompleted:
		return e.applyCheckoutCompleted(ctx, tx, ev)
	case processor.EventTypeSubscriptionCreated, processor.EventTypeSubscriptionUpdated:
		return e.applySubscriptionUpsert(ctx, tx, ev)
	case processor.EventTypeSubscriptionDeleted:
		return e.applySubscriptionDeleted(ctx, tx, ev)
	case processor.EventTypeTrialWillEnd:
		return e.applyTrialWillEnd(ctx, tx, ev)
	case processor.EventTypePaymentSucceeded, processor.EventTypePaymentFailed:
		return e.applyPayment(ctx, tx, ev)
	}
	return "", nil, fmt.Errorf("no handler for event type %s", ev.Type)
}

// applyCheckoutCompleted creates the subscription if absent. The metadata was
// stamped by the checkout-session collaborator, so this is the only event that
// can bind a remote subscription to a local user.
func (e *Engine) applyCheckoutCompleted(ctx context.Context, tx store.Tx, ev *processor.Event) (Outcome, []pendingNotice, error) {
	existing, err := tx.GetSubscription(ev.Checkout.SubscriptionID)
	if err != nil {
		return "", nil, err
	}
	ts := ev.EffectiveTimestamp()

	if existing != nil {
		// Attach the user binding if an out-of-order processor event created a
		// placeholder row first; everything else is a no-op.
		if existing.UserID == "" {
			before := *existing
			existing.UserID = ev.Checkout.Metadata.UserID
			if existing.Tier == "" {
				existing.Tier = e.resolveTier(ctx, ev.Checkout.Metadata.Tier)
			}
			if err := tx.SaveSubscription(existing); err != nil {
				return "", nil, err
			}
			e.recordAudit(ctx, ev, types.SubscriptionChangeReasonCheckout, &before, existing)
			return OutcomeApplied, nil, nil
		}
		return OutcomeNoop, nil, nil
	}

	sub := &models.Subscription{
		UserID:               ev.Checkout.Metadata.UserID,
		RemoteSubscriptionID: ev.Checkout.SubscriptionID,
		RemoteCustomerID:     ev.Checkout.CustomerID,
		Tier:                 e.resolveTier(ctx, ev.Checkout.Metadata.Tier),
		Status:               types.SubscriptionStatusTrialing,
		Watermark:            ts,
	}
	if tier := e.cfg.GetTierByID(sub.Tier); tier != nil && tier.TrialDays > 0 {
		end := ts.Add(time.Duration(tier.TrialDays) * 24 * time.Hour)
		sub.TrialEnd = &end
	}
	if err := tx.SaveSubscription(sub); err != nil {
		return "", nil, err
	}
	e.recordAudit(ctx, ev, types.SubscriptionChangeReasonCheckout, nil, sub)
	return OutcomeApplied, nil, nil
}

// applySubscriptionUpsert handles subscription_created (idempotent create)
// and subscription_updated (watermark-gated field update) with shared logic:
// both mirror the processor's subscription object onto the local row.
func (e *Engine) applySubscriptionUpsert(ctx context.Context, tx store.Tx, ev *processor.Event) (Outcome, []pendingNotice, error) {
	obj := ev.Subscription
	ts := ev.EffectiveTimestamp()

	existing, err := tx.GetSubscription(obj.ID)
	if err != nil {
		return "", nil, err
	}
	if existing == nil {
		sub := subscriptionFromObject(obj, ts)
		if err := tx.SaveSubscription(sub); err != nil {
			return "", nil, err
		}
		reason := types.SubscriptionChangeReasonRemoteCreate
		if ev.Type == processor.EventTypeSubscriptionUpdated {
			// Placeholder row: created out of order before subscription_created
			// arrived, so the eventual create converges instead of orphaning.
			reason = types.SubscriptionChangeReasonPlaceholder
		}
		e.recordAudit(ctx, ev, reason, nil, sub)
		return OutcomeApplied, nil, nil
	}

	if ts.Before(existing.Watermark) {
		return OutcomeStale, nil, nil
	}

	before := *existing
	mergeSubscriptionObject(existing, obj)
	existing.Watermark = ts
	if err := tx.SaveSubscription(existing); err != nil {
		return "", nil, err
	}
	reason := types.SubscriptionChangeReasonRemoteUpdate
	if ev.Type == processor.EventTypeSubscriptionCreated {
		reason = types.SubscriptionChangeReasonRemoteCreate
	}
	e.recordAudit(ctx, ev, reason, &before, existing)
	return OutcomeApplied, nil, nil
}

func (e *Engine) applySubscriptionDeleted(ctx context.Context, tx store.Tx, ev *processor.Event) (Outcome, []pendingNotice, error) {
	obj := ev.Subscription
	ts := ev.EffectiveTimestamp()

	existing, err := tx.GetSubscription(obj.ID)
	if err != nil {
		return "", nil, err
	}
	if existing == nil {
		// Delete for a subscription never seen locally: keep the tombstone so
		// later out-of-order events cannot resurrect it.
		sub := subscriptionFromObject(obj, ts)
		sub.Status = types.SubscriptionStatusCanceled
		if err := tx.SaveSubscription(sub); err != nil {
			return "", nil, err
		}
		e.recordAudit(ctx, ev, types.SubscriptionChangeReasonRemoteDelete, nil, sub)
		return OutcomeApplied, nil, nil
	}

	if ts.Before(existing.Watermark) {
		return OutcomeStale, nil, nil
	}

	before := *existing
	existing.Status = types.SubscriptionStatusCanceled
	existing.Watermark = ts
	if err := tx.SaveSubscription(existing); err != nil {
		return "", nil, err
	}
	e.recordAudit(ctx, ev, types.SubscriptionChangeReasonRemoteDelete, &before, existing)
	return OutcomeApplied, nil, nil
}

// applyTrialWillEnd mutates nothing; it hands the user off to the
// notification sender. The idempotency guard keeps redeliveries from
// notifying twice.
func (e *Engine) applyTrialWillEnd(ctx context.Context, tx store.Tx, ev *processor.Event) (Outcome, []pendingNotice, error) {
	existing, err := tx.GetSubscription(ev.Subscription.ID)
	if err != nil {
		return "", nil, err
	}
	if existing == nil || existing.UserID == "" {
		logctx.FromCtx(ctx, e.log).Warnw("trial_will_end_without_user",
			"event_id", ev.ID, "remote_subscription_id", ev.Subscription.ID)
		return OutcomeNoop, nil, nil
	}
	return OutcomeNoop, []pendingNotice{{kind: processor.EventTypeTrialWillEnd, sub: *existing}}, nil
}

// applyPayment appends to the invoice ledger and moves the subscription to
// active (payment_succeeded, recovering from past_due) or past_due
// (payment_failed). The ledger append is keyed by remote invoice id and is
// not watermark-gated: a stale status mutation is discarded, the payment
// history is not.
func (e *Engine) applyPayment(ctx context.Context, tx store.Tx, ev *processor.Event) (Outcome, []pendingNotice, error) {
	obj := ev.Invoice
	ts := ev.EffectiveTimestamp()

	status := types.InvoicePaymentStatusSucceeded
	subStatus := types.SubscriptionStatusActive
	reason := types.SubscriptionChangeReasonPayment
	if ev.Type == processor.EventTypePaymentFailed {
		status = types.InvoicePaymentStatusFailed
		subStatus = types.SubscriptionStatusPastDue
		reason = types.SubscriptionChangeReasonPaymentFailure
	}

	existing, err := tx.GetSubscription(obj.SubscriptionID)
	if err != nil {
		return "", nil, err
	}
	if existing == nil {
		// Placeholder row so a later out-of-order subscription_created
		// converges rather than orphaning this payment.
		existing = &models.Subscription{
			RemoteSubscriptionID: obj.SubscriptionID,
			Status:               subStatus,
			Watermark:            ts,
		}
		if err := tx.SaveSubscription(existing); err != nil {
			return "", nil, err
		}
		e.recordAudit(ctx, ev, types.SubscriptionChangeReasonPlaceholder, nil, existing)
	}

	_, inserted, err := tx.InsertInvoiceOnce(&models.InvoicePayment{
		SubscriptionID:  existing.ID,
		RemoteInvoiceID: obj.InvoiceID,
		AmountCents:     obj.AmountCents,
		Status:          status,
		RecordedAt:      ev.OccurredAt,
	})
	if err != nil {
		return "", nil, err
	}

	outcome := OutcomeApplied
	if ts.Before(existing.Watermark) {
		outcome = OutcomeStale
	} else if !existing.Status.Terminal() {
		before := *existing
		existing.Status = subStatus
		if obj.PeriodEnd > 0 && status == types.InvoicePaymentStatusSucceeded {
			end := time.Unix(obj.PeriodEnd, 0).UTC()
			existing.CurrentPeriodEnd = &end
		}
		existing.Watermark = ts
		if err := tx.SaveSubscription(existing); err != nil {
			return "", nil, err
		}
		e.recordAudit(ctx, ev, reason, &before, existing)
	} else {
		// Canceled is terminal for status, but the row still records the
		// later watermark.
		existing.Watermark = ts
		if err := tx.SaveSubscription(existing); err != nil {
			return "", nil, err
		}
	}

	var notices []pendingNotice
	if ev.Type == processor.EventTypePaymentFailed && inserted && existing.UserID != "" {
		notices = append(notices, pendingNotice{kind: processor.EventTypePaymentFailed, sub: *existing})
	}
	return outcome, notices, nil
}

func (e *Engine) emit(ctx context.Context, n pendingNotice) {
	var err error
	switch n.kind {
	case processor.EventTypeTrialWillEnd:
		err = e.notifier.TrialWillEnd(ctx, &n.sub)
	case processor.EventTypePaymentFailed:
		err = e.notifier.PaymentFailed(ctx, &n.sub)
	}
	if err != nil {
		// No delivery guarantee is owed here; log and move on.
		logctx.FromCtx(ctx, e.log).Errorw("notification_dispatch_failed",
			"kind", n.kind, "remote_subscription_id", n.sub.RemoteSubscriptionID, "error", err.Error())
	}
}

// resolveTier validates a checkout metadata tier against the configured
// catalog, falling back to the raw value for tiers rolled out remote-first.
func (e *Engine) resolveTier(ctx context.Context, tierID string) string {
	if tierID == "" {
		return ""
	}
	if e.cfg.GetTierByID(tierID) == nil {
		logctx.FromCtx(ctx, e.log).Warnw("tier_not_in_catalog", "tier", tierID)
	}
	return tierID
}

func (e *Engine) recordAudit(ctx context.Context, ev *processor.Event, reason types.SubscriptionChangeReason, before, after *models.Subscription) {
	if e.audit == nil {
		return
	}
	entry := &models.SubscriptionLog{
		RemoteSubscriptionID: after.RemoteSubscriptionID,
		UserID:               after.UserID,
		Reason:               reason,
		EventID:              ev.ID,
	}
	entry.Before = datatypes.NewJSONType(before)
	cp := *after
	entry.After = datatypes.NewJSONType(&cp)
	e.audit.Record(ctx, entry)
}

func subscriptionFromObject(obj *processor.SubscriptionObject, ts time.Time) *models.Subscription {
	sub := &models.Subscription{
		RemoteSubscriptionID: obj.ID,
		RemoteCustomerID:     obj.CustomerID,
		Tier:                 obj.Tier,
		Status:               parseRemoteStatus(obj.Status, types.SubscriptionStatusTrialing),
		Watermark:            ts,
	}
	applyTimestamps(sub, obj)
	return sub
}

func mergeSubscriptionObject(sub *models.Subscription, obj *processor.SubscriptionObject) {
	if obj.CustomerID != "" {
		sub.RemoteCustomerID = obj.CustomerID
	}
	if obj.Tier != "" {
		sub.Tier = obj.Tier
	}
	if !sub.Status.Terminal() {
		sub.Status = parseRemoteStatus(obj.Status, sub.Status)
	}
	applyTimestamps(sub, obj)
}

func applyTimestamps(sub *models.Subscription, obj *processor.SubscriptionObject) {
	if obj.TrialEnd > 0 {
		t := time.Unix(obj.TrialEnd, 0).UTC()
		sub.TrialEnd = &t
	}
	if obj.CurrentPeriodEnd > 0 {
		t := time.Unix(obj.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &t
	}
}

func parseRemoteStatus(s string, fallback types.SubscriptionStatus) types.SubscriptionStatus {
	switch types.SubscriptionStatus(s) {
	case types.SubscriptionStatusTrialing, types.SubscriptionStatusActive,
		types.SubscriptionStatusPastDue, types.SubscriptionStatusCanceled:
		return types.SubscriptionStatus(s)
	}
	return fallback
}
