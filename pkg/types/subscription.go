package types

type SubscriptionStatus string

const (
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Terminal reports whether no further status transition is allowed.
// A canceled subscription keeps recording watermarks but its status is frozen.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusCanceled
}

type InvoicePaymentStatus string

const (
	InvoicePaymentStatusSucceeded InvoicePaymentStatus = "succeeded"
	InvoicePaymentStatusFailed    InvoicePaymentStatus = "failed"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonCheckout       SubscriptionChangeReason = "checkout"
	SubscriptionChangeReasonRemoteCreate   SubscriptionChangeReason = "remoteCreate"
	SubscriptionChangeReasonRemoteUpdate   SubscriptionChangeReason = "remoteUpdate"
	SubscriptionChangeReasonRemoteDelete   SubscriptionChangeReason = "remoteDelete"
	SubscriptionChangeReasonPayment        SubscriptionChangeReason = "payment"
	SubscriptionChangeReasonPaymentFailure SubscriptionChangeReason = "paymentFailure"
	SubscriptionChangeReasonPlaceholder    SubscriptionChangeReason = "placeholder"
)
