package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent_KnownTypes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, ev *Event)
	}{
		{
			name: "checkout completed",
			payload: `{"id":"evt_1","type":"checkout_completed","created":1700000000,
				"data":{"object":{"subscription":"sub_1","customer":"cus_1","metadata":{"user_id":"u1","tier":"pro"}}}}`,
			check: func(t *testing.T, ev *Event) {
				require.NotNil(t, ev.Checkout)
				assert.Equal(t, "sub_1", ev.Checkout.SubscriptionID)
				assert.Equal(t, "u1", ev.Checkout.Metadata.UserID)
				assert.Equal(t, "pro", ev.Checkout.Metadata.Tier)
				assert.Equal(t, "sub_1", ev.RemoteSubscriptionID())
			},
		},
		{
			name: "subscription updated",
			payload: `{"id":"evt_2","type":"subscription_updated","created":1700000100,
				"data":{"object":{"id":"sub_1","customer":"cus_1","status":"active","tier":"pro","current_period_end":1702592000}}}`,
			check: func(t *testing.T, ev *Event) {
				require.NotNil(t, ev.Subscription)
				assert.Equal(t, "active", ev.Subscription.Status)
				assert.Equal(t, int64(1702592000), ev.Subscription.CurrentPeriodEnd)
				assert.Equal(t, "sub_1", ev.RemoteSubscriptionID())
			},
		},
		{
			name: "payment succeeded",
			payload: `{"id":"evt_3","type":"payment_succeeded","created":1700000200,
				"data":{"object":{"invoice":"in_1","subscription":"sub_1","amount":9700}}}`,
			check: func(t *testing.T, ev *Event) {
				require.NotNil(t, ev.Invoice)
				assert.Equal(t, "in_1", ev.Invoice.InvoiceID)
				assert.Equal(t, int64(9700), ev.Invoice.AmountCents)
				assert.Equal(t, "sub_1", ev.RemoteSubscriptionID())
			},
		},
		{
			name: "trial will end",
			payload: `{"id":"evt_4","type":"trial_will_end","created":1700000300,
				"data":{"object":{"id":"sub_1","customer":"cus_1","status":"trialing","trial_end":1700600000}}}`,
			check: func(t *testing.T, ev *Event) {
				require.NotNil(t, ev.Subscription)
				assert.Equal(t, int64(1700600000), ev.Subscription.TrialEnd)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, EventType(ev.RawType), ev.Type)
			assert.False(t, ev.OccurredAt.IsZero())
			tt.check(t, ev)
		})
	}
}

func TestParseEvent_UnknownTypeIsNotAnError(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_9","type":"customer.tax_id.created","created":1700000000,"data":{"object":{"id":"txi_1"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventTypeUnknown, ev.Type)
	assert.Equal(t, "customer.tax_id.created", ev.RawType)
	assert.Empty(t, ev.RemoteSubscriptionID())
}

func TestParseEvent_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{{{`},
		{"missing id", `{"type":"payment_succeeded","created":1700000000,"data":{"object":{"invoice":"in_1","subscription":"sub_1"}}}`},
		{"missing created", `{"id":"evt_1","type":"payment_succeeded","data":{"object":{"invoice":"in_1","subscription":"sub_1"}}}`},
		{"checkout without metadata user", `{"id":"evt_1","type":"checkout_completed","created":1700000000,"data":{"object":{"subscription":"sub_1","metadata":{"tier":"pro"}}}}`},
		{"subscription without id", `{"id":"evt_1","type":"subscription_created","created":1700000000,"data":{"object":{"status":"active"}}}`},
		{"payment without invoice", `{"id":"evt_1","type":"payment_failed","created":1700000000,"data":{"object":{"subscription":"sub_1","amount":9700}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tt.payload))
			require.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestEffectiveTimestamp(t *testing.T) {
	occurred := int64(1700000000)
	periodEnd := int64(1702592000)

	t.Run("invoice period end wins when later", func(t *testing.T) {
		ev := &Event{
			OccurredAt: time.Unix(occurred, 0).UTC(),
			Invoice:    &InvoiceObject{InvoiceID: "in_1", SubscriptionID: "sub_1", PeriodEnd: periodEnd},
		}
		assert.Equal(t, time.Unix(periodEnd, 0).UTC(), ev.EffectiveTimestamp())
	})

	t.Run("occurred_at wins when period end is earlier", func(t *testing.T) {
		ev := &Event{
			OccurredAt: time.Unix(periodEnd, 0).UTC(),
			Invoice:    &InvoiceObject{InvoiceID: "in_1", SubscriptionID: "sub_1", PeriodEnd: occurred},
		}
		assert.Equal(t, time.Unix(periodEnd, 0).UTC(), ev.EffectiveTimestamp())
	})

	t.Run("no invoice uses occurred_at", func(t *testing.T) {
		ev := &Event{OccurredAt: time.Unix(occurred, 0).UTC()}
		assert.Equal(t, time.Unix(occurred, 0).UTC(), ev.EffectiveTimestamp())
	})
}
