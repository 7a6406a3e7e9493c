package models

import "time"

// Medicine is the slice of the pharmacy inventory the background checks
// read: stock levels and expiry dates. Full inventory management lives in
// the pharmacy module of the platform, not here.
type Medicine struct {
	BaseModel

	Name         string     `gorm:"type:varchar(255);not null;index" json:"name"`
	Stock        int        `gorm:"not null;default:0" json:"stock"`
	MinimumStock int        `gorm:"not null;default:0" json:"minimum_stock"`
	ExpiryDate   *time.Time `gorm:"index" json:"expiry_date"`
}
