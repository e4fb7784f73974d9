package models

import "time"

// GithubEvent stores one webhook delivery. DeliveryID carries a unique
// index so redeliveries of the same event collapse into a single row.
type GithubEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DeliveryID  string    `gorm:"type:varchar(191);not null;uniqueIndex:ux_github_events_delivery_id" json:"delivery_id"`
	EventType   string    `gorm:"type:varchar(64);not null;index" json:"event_type"`
	PayloadJSON string    `gorm:"type:longtext;not null" json:"payload_json"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
