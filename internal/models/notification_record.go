package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationRecord is the durable history row written for every
// notification that passes through the core. The in-memory registry remains
// the source of truth for live queries; this table backs audit review and
// client catch-up after restarts.
type NotificationRecord struct {
	BaseModel

	NotificationID string         `gorm:"type:uuid;uniqueIndex;not null" json:"notification_id"`
	Type           string         `gorm:"type:varchar(64);not null;index" json:"type"`
	Category       string         `gorm:"type:varchar(32);index" json:"category"`
	Priority       string         `gorm:"type:varchar(16);index" json:"priority"`
	Title          string         `gorm:"type:varchar(255);not null" json:"title"`
	Message        string         `gorm:"type:text" json:"message"`
	RecipientID    string         `gorm:"type:uuid;index" json:"recipient_id"`
	RecipientRole  string         `gorm:"type:varchar(32);index" json:"recipient_role"`
	DepartmentID   string         `gorm:"type:uuid" json:"department_id"`
	ActionURL      string         `gorm:"type:text" json:"action_url"`
	Payload        datatypes.JSON `json:"payload"`
	ExpiresAt      *time.Time     `json:"expires_at"`
	ReadAt         *time.Time     `json:"read_at"`
}
