package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/launchkit/billing/internal/app/service/reconcile"
	"github.com/launchkit/billing/internal/models"
	"github.com/launchkit/billing/internal/platform/processor"
	"github.com/launchkit/billing/internal/store/memstore"
	"github.com/launchkit/billing/pkg/config"
	"github.com/launchkit/billing/pkg/types"
)

const testWebhookSecret = "whsec_test"

type noopNotifier struct{}

func (noopNotifier) TrialWillEnd(context.Context, *models.Subscription) error  { return nil }
func (noopNotifier) PaymentFailed(context.Context, *models.Subscription) error { return nil }

func newWebhookRouter(t *testing.T) (*gin.Engine, *memstore.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memstore.New()
	cfg := &config.Config{Billing: config.BillingConfig{
		WebhookSecret: testWebhookSecret,
		Tiers:         []*types.Tier{{ID: "pro", Name: "Pro", PriceCents: 9700, Currency: "USD", TrialDays: 14}},
	}}
	eng := reconcile.NewEngine(st, noopNotifier{}, cfg, nil, nil, zap.NewNop().Sugar())

	r := gin.New()
	RegisterBillingWebhookRoutes(r, eng, nil, cfg, zap.NewNop().Sugar())
	return r, st
}

func postWebhook(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(processor.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func signedEvent(t *testing.T, eventType string, created int64, object map[string]any) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      "evt_" + eventType,
		"type":    eventType,
		"created": created,
		"data":    map[string]any{"object": object},
	})
	require.NoError(t, err)
	return body, processor.Sign(body, testWebhookSecret)
}

func TestApiBillingWebhook_AppliesSignedEvent(t *testing.T) {
	r, st := newWebhookRouter(t)

	body, sig := signedEvent(t, "checkout_completed", 1700000000, map[string]any{
		"subscription": "sub_1",
		"customer":     "cus_1",
		"metadata":     map[string]any{"user_id": "u1", "tier": "pro"},
	})
	w := postWebhook(r, body, sig)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), string(reconcile.OutcomeApplied))

	sub, err := st.GetSubscriptionByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.Equal(t, types.SubscriptionStatusTrialing, sub.Status)
}

func TestApiBillingWebhook_RejectsBadSignature(t *testing.T) {
	r, st := newWebhookRouter(t)

	body, _ := signedEvent(t, "checkout_completed", 1700000000, map[string]any{
		"subscription": "sub_1",
		"customer":     "cus_1",
		"metadata":     map[string]any{"user_id": "u1", "tier": "pro"},
	})

	for _, sig := range []string{"", "deadbeef", processor.Sign(body, "wrong-secret")} {
		w := postWebhook(r, body, sig)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
	sub, err := st.GetSubscriptionByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Nil(t, sub)
}

func TestApiBillingWebhook_RejectsMalformedPayload(t *testing.T) {
	r, _ := newWebhookRouter(t)

	// valid signature over garbage bytes
	body := []byte("{not json")
	w := postWebhook(r, body, processor.Sign(body, testWebhookSecret))
	require.Equal(t, http.StatusBadRequest, w.Code)

	// known type missing required fields
	body, sig := signedEvent(t, "payment_succeeded", 1700000000, map[string]any{})
	w = postWebhook(r, body, sig)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiBillingWebhook_AcknowledgesUnknownType(t *testing.T) {
	r, _ := newWebhookRouter(t)

	body, sig := signedEvent(t, "customer_updated", 1700000000, map[string]any{"id": "cus_1"})
	w := postWebhook(r, body, sig)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), string(reconcile.OutcomeUnknown))
}

func TestApiBillingWebhook_DuplicateAcknowledged(t *testing.T) {
	r, st := newWebhookRouter(t)

	body, sig := signedEvent(t, "subscription_created", 1700000000, map[string]any{
		"id":                 "sub_2",
		"customer":           "cus_2",
		"status":             "active",
		"tier":               "pro",
		"current_period_end": 1702600000,
	})

	w := postWebhook(r, body, sig)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), string(reconcile.OutcomeApplied))

	w = postWebhook(r, body, sig)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), string(reconcile.OutcomeDuplicate))
	require.Equal(t, 1, st.ProcessedCount())
}

func TestApiBillingWebhook_StorageFailureReturns500(t *testing.T) {
	r, st := newWebhookRouter(t)

	body, sig := signedEvent(t, "subscription_created", 1700000000, map[string]any{
		"id":       "sub_3",
		"customer": "cus_3",
		"status":   "active",
		"tier":     "pro",
	})

	st.FailNextCommit(errors.New("disk on fire"))
	w := postWebhook(r, body, sig)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	// redelivery succeeds once storage recovers
	w = postWebhook(r, body, sig)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), string(reconcile.OutcomeApplied))
}
