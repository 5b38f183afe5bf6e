package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedPayload is returned when a payload of a known event type is
// missing required fields. Unknown types never produce this error.
var ErrMalformedPayload = errors.New("malformed webhook payload")

type EventType string

const (
	EventTypeCheckoutCompleted   EventType = "checkout_completed"
	EventTypeSubscriptionCreated EventType = "subscription_created"
	EventTypeSubscriptionUpdated EventType = "subscription_updated"
	EventTypeSubscriptionDeleted EventType = "subscription_deleted"
	EventTypeTrialWillEnd        EventType = "trial_will_end"
	EventTypePaymentSucceeded    EventType = "payment_succeeded"
	EventTypePaymentFailed       EventType = "payment_failed"
	// EventTypeUnknown is the catch-all for event kinds this service does not
	// handle yet. Unknown events are acknowledged without a handler so new
	// remote event kinds never break ingestion. The raw type string is kept
	// on Event.RawType.
	EventTypeUnknown EventType = "unknown"
)

var knownEventTypes = map[EventType]bool{
	EventTypeCheckoutCompleted:   true,
	EventTypeSubscriptionCreated: true,
	EventTypeSubscriptionUpdated: true,
	EventTypeSubscriptionDeleted: true,
	EventTypeTrialWillEnd:        true,
	EventTypePaymentSucceeded:    true,
	EventTypePaymentFailed:       true,
}

// CheckoutObject is the data object of a checkout_completed event. The
// metadata is stamped by the checkout-session collaborator when the session
// is created and round-trips through the processor untouched.
type CheckoutObject struct {
	SubscriptionID string           `json:"subscription"`
	CustomerID     string           `json:"customer"`
	Metadata       CheckoutMetadata `json:"metadata"`
}

type CheckoutMetadata struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
}

// SubscriptionObject is the data object of subscription_* and trial_will_end events.
type SubscriptionObject struct {
	ID               string `json:"id"`
	CustomerID       string `json:"customer"`
	Status           string `json:"status"`
	Tier             string `json:"tier"`
	TrialEnd         int64  `json:"trial_end"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

// InvoiceObject is the data object of payment_succeeded / payment_failed events.
type InvoiceObject struct {
	InvoiceID      string `json:"invoice"`
	SubscriptionID string `json:"subscription"`
	AmountCents    int64  `json:"amount"`
	// PeriodEnd is the end of the billing period this invoice pays for, when
	// the processor includes it (renewals). Unix seconds, 0 when absent.
	PeriodEnd int64 `json:"period_end"`
}

// Event is the typed envelope decoded from a verified webhook payload.
// Exactly one of Checkout / Subscription / Invoice is set for known types.
type Event struct {
	ID         string
	Type       EventType
	RawType    string
	OccurredAt time.Time

	Checkout     *CheckoutObject
	Subscription *SubscriptionObject
	Invoice      *InvoiceObject

	// Raw is the verified payload, kept for the event log.
	Raw json.RawMessage
}

type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// RemoteSubscriptionID returns the processor subscription id the event refers
// to, or "" for events that carry none. The dispatcher serializes on this key.
func (e *Event) RemoteSubscriptionID() string {
	switch {
	case e.Checkout != nil:
		return e.Checkout.SubscriptionID
	case e.Subscription != nil:
		return e.Subscription.ID
	case e.Invoice != nil:
		return e.Invoice.SubscriptionID
	}
	return ""
}

// ParseEvent decodes a verified payload into a typed Event. Unknown event
// types parse into EventTypeUnknown; known types with missing required fields
// fail with ErrMalformedPayload.
func ParseEvent(payload []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.ID == "" || env.Type == "" || env.Created <= 0 {
		return nil, fmt.Errorf("%w: missing id, type or created", ErrMalformedPayload)
	}

	ev := &Event{
		ID:         env.ID,
		Type:       EventType(env.Type),
		RawType:    env.Type,
		OccurredAt: time.Unix(env.Created, 0).UTC(),
		Raw:        json.RawMessage(payload),
	}
	if !knownEventTypes[ev.Type] {
		ev.Type = EventTypeUnknown
		return ev, nil
	}

	switch ev.Type {
	case EventTypeCheckoutCompleted:
		var obj CheckoutObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if obj.SubscriptionID == "" || obj.Metadata.UserID == "" {
			return nil, fmt.Errorf("%w: checkout_completed requires subscription and metadata.user_id", ErrMalformedPayload)
		}
		ev.Checkout = &obj

	case EventTypeSubscriptionCreated, EventTypeSubscriptionUpdated,
		EventTypeSubscriptionDeleted, EventTypeTrialWillEnd:
		var obj SubscriptionObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if obj.ID == "" {
			return nil, fmt.Errorf("%w: %s requires subscription id", ErrMalformedPayload, env.Type)
		}
		ev.Subscription = &obj

	case EventTypePaymentSucceeded, EventTypePaymentFailed:
		var obj InvoiceObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if obj.InvoiceID == "" || obj.SubscriptionID == "" {
			return nil, fmt.Errorf("%w: %s requires invoice and subscription", ErrMalformedPayload, env.Type)
		}
		ev.Invoice = &obj
	}

	return ev, nil
}

// EffectiveTimestamp is the timestamp the watermark rule compares against.
// For invoice events carrying a billing period end, the later of occurred_at
// and the period end wins, so a renewal is never considered older than the
// period it pays for.
func (e *Event) EffectiveTimestamp() time.Time {
	ts := e.OccurredAt
	if e.Invoice != nil && e.Invoice.PeriodEnd > 0 {
		if pe := time.Unix(e.Invoice.PeriodEnd, 0).UTC(); pe.After(ts) {
			ts = pe
		}
	}
	return ts
}
