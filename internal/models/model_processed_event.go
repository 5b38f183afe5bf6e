package models

import "time"

// ProcessedEvent is the idempotency record for one webhook event id.
// It is inserted in the same transaction as the handler's mutation, so a crash
// between mutation and mark cannot drop or double-apply an event.
type ProcessedEvent struct {
	EventID     string    `gorm:"column:event_id;type:varchar(128);primary_key" json:"event_id"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null" json:"processed_at"`
}

func (ProcessedEvent) TableName() string {
	return "processed_event"
}
