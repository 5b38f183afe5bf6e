package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookEventLogStatus string

const (
	WebhookEventLogStatusReceived     WebhookEventLogStatus = "received"
	WebhookEventLogStatusHandled      WebhookEventLogStatus = "handled"
	WebhookEventLogStatusHandleFailed WebhookEventLogStatus = "handle_failed"
)

// WebhookEventLog records every inbound processor event and its outcome.
type WebhookEventLog struct {
	ID                   string                `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID              string                `gorm:"column:event_id;type:varchar(128);index" json:"event_id"`
	EventType            string                `gorm:"column:event_type;type:varchar(64)" json:"event_type"`
	RemoteSubscriptionID string                `gorm:"column:remote_subscription_id;type:varchar(128);index" json:"remote_subscription_id"`
	TraceID              string                `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	OccurredAt           time.Time             `gorm:"column:occurred_at" json:"occurred_at"`
	Data                 datatypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	Result               *datatypes.JSON       `gorm:"column:result;type:jsonb" json:"result"`
	Status               WebhookEventLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

func (WebhookEventLog) TableName() string { return "webhook_event_log" }
