package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcessedEvent is an append-only record of a webhook event id. A row here
// means the event's side effects are durable; it is never updated or deleted
// inside the operational window.
type ProcessedEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID    string    `gorm:"column:event_id;not null;uniqueIndex"`
	Type       string    `gorm:"column:type;not null"`
	ReceivedAt time.Time `gorm:"column:received_at;autoCreateTime"`
}

// TableName overrides the default pluralization.
func (ProcessedEvent) TableName() string {
	return "processed_events"
}
