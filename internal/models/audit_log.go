package models

// AuditLog captures one append-only audit trail entry for a notification
// operation.
type AuditLog struct {
	BaseModel

	Action         string `gorm:"type:varchar(64);not null;index" json:"action"`
	NotificationID string `gorm:"type:uuid;index" json:"notification_id"`
	Type           string `gorm:"type:varchar(64)" json:"type"`
	RecipientID    string `gorm:"type:uuid;index" json:"recipient_id"`
	Priority       string `gorm:"type:varchar(16)" json:"priority"`
	UserID         string `gorm:"type:uuid;index" json:"user_id"`
}
