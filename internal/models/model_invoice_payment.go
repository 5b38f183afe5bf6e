package models

import (
	"time"

	"github.com/launchkit/billing/pkg/types"
)

// InvoicePayment is one append-only ledger entry for a payment attempt.
// RemoteInvoiceID is unique; redelivered events for the same invoice must not
// create a second row.
type InvoicePayment struct {
	ID              string                     `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID  string                     `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	RemoteInvoiceID string                     `gorm:"column:remote_invoice_id;type:varchar(128);not null;uniqueIndex" json:"remote_invoice_id"`
	AmountCents     int64                      `gorm:"column:amount_cents;type:bigint;not null" json:"amount_cents"`
	Status          types.InvoicePaymentStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	RecordedAt      time.Time                  `gorm:"column:recorded_at;not null" json:"recorded_at"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

func (InvoicePayment) TableName() string {
	return "invoice_payment"
}
