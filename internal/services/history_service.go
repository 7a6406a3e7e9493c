package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carepulse/backend/internal/models"
	"github.com/carepulse/backend/internal/notify"
)

// HistoryService mirrors the in-memory registry into the durable
// notification history table. The registry is volatile by design; this table
// is what survives restarts and feeds client catch-up queries.
type HistoryService struct {
	db *gorm.DB
}

// NewHistoryService constructs a HistoryService.
func NewHistoryService(db *gorm.DB) (*HistoryService, error) {
	if db == nil {
		return nil, errors.New("history service: db is required")
	}
	return &HistoryService{db: db}, nil
}

// Attach subscribes the history writer to every notification fanned out by
// the system and returns the unsubscribe handle. Persistence failures are
// swallowed by the dispatcher's callback isolation; durable history is
// best-effort relative to live delivery.
func (s *HistoryService) Attach(system *notify.System) func() {
	return system.Subscribe(notify.BroadcastKey, func(n *notify.Notification) {
		_ = s.RecordNotification(n)
	})
}

// RecordNotification upserts the durable row for a notification, keyed by
// its notification id.
func (s *HistoryService) RecordNotification(n *notify.Notification) error {
	if n == nil || n.ID == "" {
		return errors.New("history service: notification id is required")
	}

	record := models.NotificationRecord{
		NotificationID: n.ID,
		Type:           string(n.Type),
		Category:       string(n.Category),
		Priority:       string(n.Priority),
		Title:          n.Title,
		Message:        n.Message,
		RecipientID:    n.RecipientID,
		RecipientRole:  n.RecipientRole,
		DepartmentID:   n.DepartmentID,
		ActionURL:      n.ActionURL,
		ExpiresAt:      n.ExpiresAt,
		ReadAt:         n.ReadAt,
	}

	if n.Data != nil {
		payload, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("history service: marshal payload: %w", err)
		}
		record.Payload = datatypes.JSON(payload)
	}

	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "notification_id"}},
		UpdateAll: true,
	}).Create(&record).Error
}

// MarkRead stamps the durable row's read timestamp. Unknown ids are a no-op.
func (s *HistoryService) MarkRead(ctx context.Context, notificationID string, at time.Time) error {
	ctx = ensureContext(ctx)
	return s.db.WithContext(ctx).
		Model(&models.NotificationRecord{}).
		Where("notification_id = ? AND read_at IS NULL", notificationID).
		Update("read_at", at).Error
}

// ListRecent returns the most recent durable rows for a recipient, newest
// first. A zero limit defaults to 50.
func (s *HistoryService) ListRecent(ctx context.Context, recipientID string, limit int) ([]models.NotificationRecord, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rows []models.NotificationRecord
	query := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if recipientID != "" {
		query = query.Where("recipient_id = ?", recipientID)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history service: list records: %w", err)
	}
	return rows, nil
}

// CleanupOlderThan removes durable rows older than the retention window (in days).
func (s *HistoryService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("history service: retentionDays must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.NotificationRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("history service: cleanup records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
