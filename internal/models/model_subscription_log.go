package models

import (
	"time"

	"github.com/launchkit/billing/pkg/types"

	"gorm.io/datatypes"
)

// SubscriptionLog records changes to subscriptions.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID                   string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	RemoteSubscriptionID string `gorm:"column:remote_subscription_id;type:varchar(128);index;not null"`
	UserID               string `gorm:"column:user_id;type:varchar(64);index"`
	// Reason is the change reason.
	Reason types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	// EventID is the webhook event that triggered the change, if any.
	EventID string `gorm:"column:event_id;type:varchar(128)"`
	// Before stores subscription data before the change in JSON format.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'"`
	// After stores subscription data after the change in JSON format.
	After datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'"`
	// Extra stores additional context such as trigger source.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
