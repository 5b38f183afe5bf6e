package handlers

import (
	"time"

	"github.com/launchkit/billing/internal/app/service/statistics"
	"github.com/launchkit/billing/pkg/response"
	"github.com/launchkit/billing/pkg/types"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespSubscription wraps a single subscription view in the standard envelope.
type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    SwaggerSubscription      `json:"data"`
}

// RespInvoiceHistory wraps a subscription's invoice payment history.
type RespInvoiceHistory struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []SwaggerInvoicePayment  `json:"data"`
}

// RespListSubscriptions wraps statistics.ListSubscriptionsResponse in the standard envelope.
type RespListSubscriptions struct {
	Code    response.APIResponseCode             `json:"code"`
	Message string                               `json:"message"`
	Data    statistics.ListSubscriptionsResponse `json:"data"`
}

// RespBillingStatistic wraps statistics.BillingStatisticResponse in the standard envelope.
type RespBillingStatistic struct {
	Code    response.APIResponseCode            `json:"code"`
	Message string                              `json:"message"`
	Data    statistics.BillingStatisticResponse `json:"data"`
}

// RespListWebhookEvents wraps a list of webhook event log entries.
type RespListWebhookEvents struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    []SwaggerWebhookEventLog  `json:"data"`
}

// SwaggerSubscription is a simplified view of models.Subscription for documentation purposes.
type SwaggerSubscription struct {
	ID                   string                   `json:"id"`
	UserID               string                   `json:"user_id"`
	RemoteSubscriptionID string                   `json:"remote_subscription_id"`
	RemoteCustomerID     string                   `json:"remote_customer_id"`
	Tier                 string                   `json:"tier"`
	Status               types.SubscriptionStatus `json:"status"`
	TrialEnd             *time.Time               `json:"trial_end"`
	CurrentPeriodEnd     *time.Time               `json:"current_period_end"`
	Watermark            time.Time                `json:"watermark"`
	CreatedAt            time.Time                `json:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at"`
}

// SwaggerInvoicePayment is a simplified view of models.InvoicePayment for documentation purposes.
type SwaggerInvoicePayment struct {
	ID              string                     `json:"id"`
	SubscriptionID  string                     `json:"subscription_id"`
	RemoteInvoiceID string                     `json:"remote_invoice_id"`
	AmountCents     int64                      `json:"amount_cents"`
	Status          types.InvoicePaymentStatus `json:"status"`
	RecordedAt      time.Time                  `json:"recorded_at"`
}

// SwaggerWebhookEventLog is a simplified view of models.WebhookEventLog for documentation purposes.
type SwaggerWebhookEventLog struct {
	ID                   string    `json:"id"`
	EventID              string    `json:"event_id"`
	EventType            string    `json:"event_type"`
	RemoteSubscriptionID string    `json:"remote_subscription_id"`
	Status               string    `json:"status"`
	OccurredAt           time.Time `json:"occurred_at"`
	CreatedAt            time.Time `json:"created_at"`
}
