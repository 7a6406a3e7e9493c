package database

import "github.com/carepulse/backend/internal/models"

func migrationModels() []any {
	return []any{
		&models.NotificationRecord{},
		&models.AuditLog{},
		&models.Medicine{},
	}
}
