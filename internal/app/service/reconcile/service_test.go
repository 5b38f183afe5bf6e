package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/launchkit/billing/internal/models"
	"github.com/launchkit/billing/internal/platform/processor"
	"github.com/launchkit/billing/internal/store/memstore"
	"github.com/launchkit/billing/pkg/config"
	"github.com/launchkit/billing/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubNotifier struct {
	mu           sync.Mutex
	trialWillEnd []string
	paymentFail  []string
}

func (n *stubNotifier) TrialWillEnd(_ context.Context, sub *models.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.trialWillEnd = append(n.trialWillEnd, sub.UserID)
	return nil
}

func (n *stubNotifier) PaymentFailed(_ context.Context, sub *models.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paymentFail = append(n.paymentFail, sub.UserID)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *memstore.Store, *stubNotifier) {
	t.Helper()
	st := memstore.New()
	notifier := &stubNotifier{}
	cfg := &config.Config{Billing: config.BillingConfig{
		Tiers: []*types.Tier{{ID: "pro", Name: "Pro", PriceCents: 9700, Currency: "USD", TrialDays: 14}},
	}}
	eng := NewEngine(st, notifier, cfg, nil, NewMetrics(prometheus.NewRegistry()), zap.NewNop().Sugar())
	return eng, st, notifier
}

func checkoutEvent(eventID, subID, userID, tier string, at int64) *processor.Event {
	return &processor.Event{
		ID: eventID, Type: processor.EventTypeCheckoutCompleted, RawType: string(processor.EventTypeCheckoutCompleted),
		OccurredAt: time.Unix(at, 0).UTC(),
		Checkout: &processor.CheckoutObject{
			SubscriptionID: subID, CustomerID: "cus_1",
			Metadata: processor.CheckoutMetadata{UserID: userID, Tier: tier},
		},
	}
}

func subEvent(eventID string, typ processor.EventType, obj processor.SubscriptionObject, at int64) *processor.Event {
	return &processor.Event{
		ID: eventID, Type: typ, RawType: string(typ),
		OccurredAt:   time.Unix(at, 0).UTC(),
		Subscription: &obj,
	}
}

func paymentEvent(eventID string, typ processor.EventType, subID, invoiceID string, amount, at int64) *processor.Event {
	return &processor.Event{
		ID: eventID, Type: typ, RawType: string(typ),
		OccurredAt: time.Unix(at, 0).UTC(),
		Invoice:    &processor.InvoiceObject{InvoiceID: invoiceID, SubscriptionID: subID, AmountCents: amount},
	}
}

func TestDispatch_CheckoutThenPaymentsScenario(t *testing.T) {
	eng, st, notifier := newTestEngine(t)
	ctx := context.Background()

	out, err := eng.Dispatch(ctx, checkoutEvent("evt_1", "sub_S1", "u1", "pro", 1000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	sub, err := st.GetSubscriptionByUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, types.SubscriptionStatusTrialing, sub.Status)
	assert.Equal(t, "pro", sub.Tier)
	require.NotNil(t, sub.TrialEnd, "tier catalog trial days should set trial_end")

	out, err = eng.Dispatch(ctx, paymentEvent("evt_2", processor.EventTypePaymentFailed, "sub_S1", "in_I1", 9700, 2000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	sub, err = st.GetSubscriptionByRemoteID(ctx, "sub_S1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusPastDue, sub.Status)

	invoices, err := st.ListInvoicePayments(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "in_I1", invoices[0].RemoteInvoiceID)
	assert.Equal(t, types.InvoicePaymentStatusFailed, invoices[0].Status)
	assert.Equal(t, int64(9700), invoices[0].AmountCents)
	assert.Equal(t, []string{"u1"}, notifier.paymentFail)

	out, err = eng.Dispatch(ctx, paymentEvent("evt_3", processor.EventTypePaymentSucceeded, "sub_S1", "in_I2", 9700, 3000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	sub, err = st.GetSubscriptionByRemoteID(ctx, "sub_S1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status, "successful payment recovers from past_due")

	invoices, err = st.ListInvoicePayments(ctx, sub.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 2)
}

func TestDispatch_Idempotence(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	ev := subEvent("evt_1", processor.EventTypeSubscriptionCreated,
		processor.SubscriptionObject{ID: "sub_1", CustomerID: "cus_1", Status: "active", Tier: "pro"}, 1000)

	out, err := eng.Dispatch(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	first, err := st.GetSubscriptionByRemoteID(ctx, "sub_1")
	require.NoError(t, err)

	out, err = eng.Dispatch(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out, "re-delivery must be acknowledged without effect")

	second, err := st.GetSubscriptionByRemoteID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Watermark, second.Watermark)
	assert.Equal(t, 1, st.ProcessedCount())
}

func TestDispatch_NoRegression(t *testing.T) {
	// E1 (t1, active) and E2 (t2 < t1, past_due) delivered E2, E1, E2-again:
	// final status must be active.
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	e1 := subEvent("evt_E1", processor.EventTypeSubscriptionUpdated,
		processor.SubscriptionObject{ID: "sub_1", Status: "active"}, 2000)
	e2 := subEvent("evt_E2", processor.EventTypeSubscriptionUpdated,
		processor.SubscriptionObject{ID: "sub_1", Status: "past_due"}, 1000)

	out, err := eng.Dispatch(ctx, e2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	out, err = eng.Dispatch(ctx, e1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	out, err = eng.Dispatch(ctx, e2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)

	// a fresh delivery of the same stale payload under a new event id is
	// discarded by the watermark, not the idempotency guard
	e2bis := subEvent("evt_E2_bis", processor.EventTypeSubscriptionUpdated,
		processor.SubscriptionObject{ID: "sub_1", Status: "past_due"}, 1000)
	out, err = eng.Dispatch(ctx, e2bis)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, out)

	sub, err := st.GetSubscriptionByRemoteID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, time.Unix(2000, 0).UTC(), sub.Watermark)
}

func TestDispatch_LedgerUniqueness(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	// same invoice redelivered under two different event ids (two HTTP requests)
	_, err := eng.Dispatch(ctx, paymentEvent("evt_a", processor.EventTypePaymentSucceeded, "sub_1", "in_1", 9700, 1000))
	require.NoError(t, err)
	_, err = eng.Dispatch(ctx, paymentEvent("evt_b", processor.EventTypePaymentSucceeded, "sub_1", "in_1", 9700, 1001))
	require.NoError(t, err)

	assert.Equal(t, 1, st.InvoiceCount())
}

func TestDispatch_FailedInvoicePromotedOnRetry(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Dispatch(ctx, paymentEvent("evt_a", processor.EventTypePaymentFailed, "sub_1", "in_1", 9700, 1000))
	require.NoError(t, err)
	_, err = eng.Dispatch(ctx, paymentEvent("evt_b", processor.EventTypePaymentSucceeded, "sub_1", "in_1", 9700, 2000))
	require.NoError(t, err)

	sub, err := st.GetSubscriptionByRemoteID(ctx, "sub_1")
	require.NoError(t, err)
	invoices, err := st.ListInvoicePayments(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, invoices, 1, "retried charge on the same invoice must not add a row")
	assert.Equal(t, types.InvoicePaymentStatusSucceeded, invoices[0].Status)
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
}

func TestDispatch_CanceledIsTerminal(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Dispatch(ctx, subEvent("evt_1", processor.EventTypeSubscriptionCreated,
		processor.SubscriptionObject{ID: "sub_1", Status: "active", Tier: "pro"}, 1000))
	require.NoError(t, err)

	_, err = eng.Dispatch(ctx, subEvent("evt_2", processor.EventTypeSubscriptionDeleted,
		processor.SubscriptionObject{ID: "sub_1"}, 2000))
	require.NoError(t, err)

	// later update and later payment both leave status canceled
	out, err := eng.Dispatch(ctx, subEvent("evt_3", processor.EventTypeSubscriptionUpdated,
		processor.SubscriptionObject{ID: "sub_1", Status: "active"}, 3000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)

	_, err = eng.Dispatch(ctx, paymentEvent("evt_4", processor.EventTypePaymentSucceeded, "sub_1", "in_1", 9700, 4000))
	require.NoError(t, err)

	sub, err := st.GetSubscriptionByRemoteID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusCanceled, sub.Status)
	assert.Equal(t, time.Unix(4000, 0).UTC(), sub.Watermark, "terminal status still records later watermarks")
	assert.Equal(t, 1, st.InvoiceCount(), "payments on a canceled subscription still hit the ledger")
}

func TestDispatch_PlaceholderConvergence(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	// payment arrives before the subscription is known locally
	_, err := eng.Dispatch(ctx, paymentEvent("evt_1", processor.EventTypePaymentSucceeded, "sub_1", "in_1", 9700, 2000))
	require.NoError(t, err)

	sub, err := st.GetSubscriptionByRemoteID(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, sub, "missing subscription must create a placeholder, not fail")
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
	assert.Empty(t, sub.UserID)

	// the out-of-order create converges onto the placeholder
	_, err = eng.Dispatch(ctx, subEvent("evt_2", processor.EventTypeSubscriptionCreated,
		processor.SubscriptionObject{ID: "sub_1", CustomerID: "cus_1", Status: "active", Tier: "pro"}, 3000))
	require.NoError(t, err)

	// and checkout_completed binds the user without creating a second row
	_, err = eng.Dispatch(ctx, checkoutEvent("evt_3", "sub_1", "u1", "pro", 1000))
	require.NoError(t, err)

	sub, err = st.GetSubscriptionByRemoteID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", sub.UserID)
	assert.Equal(t, "pro", sub.Tier)
	assert.Equal(t, "cus_1", sub.RemoteCustomerID)

	byUser, err := st.GetSubscriptionByUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, byUser)
	assert.Equal(t, sub.ID, byUser.ID)
}

func TestDispatch_CheckoutForExistingSubscriptionIsNoop(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Dispatch(ctx, checkoutEvent("evt_1", "sub_1", "u1", "pro", 1000))
	require.NoError(t, err)
	out, err := eng.Dispatch(ctx, checkoutEvent("evt_2", "sub_1", "u1", "pro", 1500))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out)

	sub, err := st.GetSubscriptionByRemoteID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1000, 0).UTC(), sub.Watermark)
}

func TestDispatch_TrialWillEnd(t *testing.T) {
	eng, _, notifier := newTestEngine(t)
	ctx := context.Background()

	// without a local row there is no user to notify
	out, err := eng.Dispatch(ctx, subEvent("evt_1", processor.EventTypeTrialWillEnd,
		processor.SubscriptionObject{ID: "sub_ghost"}, 1000))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out)
	assert.Empty(t, notifier.trialWillEnd)

	_, err = eng.Dispatch(ctx, checkoutEvent("evt_2", "sub_1", "u1", "pro", 1000))
	require.NoError(t, err)

	out, err = eng.Dispatch(ctx, subEvent("evt_3", processor.EventTypeTrialWillEnd,
		processor.SubscriptionObject{ID: "sub_1", TrialEnd: 2000}, 1500))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, out)
	assert.Equal(t, []string{"u1"}, notifier.trialWillEnd)

	// redelivery is deduped by the idempotency guard, no second notification
	_, err = eng.Dispatch(ctx, subEvent("evt_3", processor.EventTypeTrialWillEnd,
		processor.SubscriptionObject{ID: "sub_1", TrialEnd: 2000}, 1500))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, notifier.trialWillEnd)
}

func TestDispatch_UnknownTypeAcknowledged(t *testing.T) {
	eng, st, _ := newTestEngine(t)

	out, err := eng.Dispatch(context.Background(), &processor.Event{
		ID: "evt_1", Type: processor.EventTypeUnknown, RawType: "customer.tax_id.created",
		OccurredAt: time.Unix(1000, 0).UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, out)
	assert.Equal(t, 0, st.ProcessedCount(), "unknown events are not consumed, a later release may handle them")
}

func TestDispatch_StorageFailureLeavesEventUnprocessed(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	ev := subEvent("evt_1", processor.EventTypeSubscriptionCreated,
		processor.SubscriptionObject{ID: "sub_1", Status: "active"}, 1000)

	st.FailNextCommit(errors.New("connection reset"))
	_, err := eng.Dispatch(ctx, ev)
	require.Error(t, err)

	assert.Equal(t, 0, st.ProcessedCount(), "failed commit must not mark the event processed")
	sub, err := st.GetSubscriptionByRemoteID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Nil(t, sub, "failed commit must be all-or-nothing")

	// redelivery after the failure applies cleanly
	out, err := eng.Dispatch(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, 1, st.ProcessedCount())
}

func TestDispatch_ConcurrentEventsForOneSubscription(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			status := "past_due"
			if i == n-1 {
				status = "active"
			}
			// event i carries timestamp 1000+i; the highest timestamp wins
			_, err := eng.Dispatch(ctx, subEvent(fmt.Sprintf("evt_%d", i),
				processor.EventTypeSubscriptionUpdated,
				processor.SubscriptionObject{ID: "sub_1", Status: status}, int64(1000+i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sub, err := st.GetSubscriptionByRemoteID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, time.Unix(int64(1000+n-1), 0).UTC(), sub.Watermark)
	assert.Equal(t, n, st.ProcessedCount())
}
