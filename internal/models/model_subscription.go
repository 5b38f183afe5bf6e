package models

import (
	"time"

	"github.com/launchkit/billing/pkg/types"

	"gorm.io/datatypes"
)

// Subscription is the local mirror of one remote processor subscription.
// Rows are never hard-deleted; cancellation flips Status to canceled and the
// row keeps recording watermarks for audit purposes.
type Subscription struct {
	ID     string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);index" json:"user_id"`
	// RemoteSubscriptionID is the processor-side subscription id. Exactly one
	// local row exists per remote subscription.
	RemoteSubscriptionID string                   `gorm:"column:remote_subscription_id;type:varchar(128);not null;uniqueIndex" json:"remote_subscription_id"`
	RemoteCustomerID     string                   `gorm:"column:remote_customer_id;type:varchar(128)" json:"remote_customer_id"`
	Tier                 string                   `gorm:"column:tier;type:varchar(64)" json:"tier"`
	Status               types.SubscriptionStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	TrialEnd             *time.Time               `gorm:"column:trial_end;default:null" json:"trial_end"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	// Watermark is the effective timestamp of the newest event applied to this
	// row. Events older than the watermark are discarded as stale.
	Watermark time.Time `gorm:"column:watermark;not null" json:"watermark"`
	// Extra stores additional JSON data (for example raw processor metadata).
	Extra     datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// Valid reports whether the subscription currently grants entitlements.
func (s *Subscription) Valid() bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case types.SubscriptionStatusTrialing:
		return s.TrialEnd == nil || s.TrialEnd.After(time.Now())
	case types.SubscriptionStatusActive:
		return true
	default:
		return false
	}
}
