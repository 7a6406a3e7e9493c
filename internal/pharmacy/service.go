package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/carepulse/backend/internal/clinical"
	"github.com/carepulse/backend/internal/models"
	"github.com/carepulse/backend/internal/notify"
	"github.com/carepulse/backend/pkg/logger"
)

// DefaultExpiryWindowDays is how far ahead the expiry check looks when the
// caller does not specify a window.
const DefaultExpiryWindowDays = 30

// lowStockAlertTTL keeps routine low-stock notices from piling up between
// scheduled checks. Out-of-stock alerts never expire.
const lowStockAlertTTL = 24 * time.Hour

// Service runs the pharmacy inventory checks and turns their findings into
// notifications for the pharmacy staff.
type Service struct {
	db     *gorm.DB
	system *notify.System
	log    *zap.Logger
}

// NewService constructs the pharmacy notification service.
func NewService(db *gorm.DB, system *notify.System) (*Service, error) {
	if db == nil {
		return nil, errors.New("pharmacy: db is required")
	}
	if system == nil {
		return nil, errors.New("pharmacy: notification system is required")
	}
	return &Service{
		db:     db,
		system: system,
		log:    logger.WithModule("pharmacy.service"),
	}, nil
}

// NotifyLowStock alerts pharmacists about a medicine running low. Medicines
// that are fully out of stock, or below a tenth of their minimum, are also
// escalated to administrators.
func (s *Service) NotifyLowStock(medicineID, medicineName string, currentStock, minimumStock int) error {
	outOfStock := currentStock <= 0

	title := fmt.Sprintf("Low Stock: %s", medicineName)
	message := fmt.Sprintf("%s is running low: %d units left (minimum: %d)", medicineName, currentStock, minimumStock)
	if outOfStock {
		title = fmt.Sprintf("OUT OF STOCK: %s", medicineName)
		message = fmt.Sprintf("%s is completely out of stock. Reorder immediately.", medicineName)
	}

	expiresIn := lowStockAlertTTL
	if outOfStock {
		expiresIn = 0
	}

	_, err := s.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypeMedicationOutOfStock,
		Title:         title,
		Message:       message,
		RecipientRole: clinical.RolePharmacist,
		Data: map[string]any{
			"medicine_id":   medicineID,
			"medicine_name": medicineName,
			"current_stock": currentStock,
			"minimum_stock": minimumStock,
			"out_of_stock":  outOfStock,
		},
		ActionURL: fmt.Sprintf("/pharmacy/inventory?search=%s", medicineID),
		Actions: []notify.Action{
			{ID: "reorder", Label: "Reorder Now", Action: "reorder", Style: "primary"},
			{ID: "view_inventory", Label: "View Inventory", Action: "navigate", URL: "/pharmacy/inventory", Style: "secondary"},
		},
		ExpiresIn: expiresIn,
	})

	if outOfStock || currentStock*10 < minimumStock {
		_, adminErr := s.system.CreateNotification(notify.CreateParams{
			Type:          notify.TypeMedicationOutOfStock,
			Title:         "Inventory Critical",
			Message:       fmt.Sprintf("%s critically low: %d units", medicineName, currentStock),
			RecipientRole: clinical.RoleAdmin,
			Data: map[string]any{
				"medicine_id":   medicineID,
				"medicine_name": medicineName,
				"current_stock": currentStock,
			},
			ActionURL: "/admin/inventory",
		})
		err = multierr.Append(err, adminErr)
	}

	return err
}

// NotifyMedicationExpiring alerts pharmacists about a medicine nearing its
// expiry date.
func (s *Service) NotifyMedicationExpiring(medicineID, medicineName string, expiryDate time.Time, daysUntilExpiry int) (string, error) {
	return s.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypeMedicationExpiring,
		Title:         fmt.Sprintf("%s expires in %d days", medicineName, daysUntilExpiry),
		Message:       fmt.Sprintf("%s expires on %s", medicineName, expiryDate.Format("Jan 2, 2006")),
		RecipientRole: clinical.RolePharmacist,
		Data: map[string]any{
			"medicine_id":       medicineID,
			"medicine_name":     medicineName,
			"expiry_date":       expiryDate,
			"days_until_expiry": daysUntilExpiry,
		},
		ActionURL: "/pharmacy/inventory?expiring=true",
		Actions: []notify.Action{
			{ID: "review_stock", Label: "Review Stock", Action: "navigate", URL: "/pharmacy/inventory?expiring=true", Style: "primary"},
		},
	})
}

// NotifyPrescriptionPickupReminder nudges pharmacists about a prescription
// that has been sitting ready for pickup.
func (s *Service) NotifyPrescriptionPickupReminder(prescriptionID, patientName string, daysSinceReady int, medicineNames []string) (string, error) {
	return s.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypePrescriptionReadyForPickup,
		Title:         fmt.Sprintf("Prescription Pickup Reminder: %s", patientName),
		Message:       fmt.Sprintf("Prescription ready for pickup for %d days. Medicines: %s", daysSinceReady, strings.Join(medicineNames, ", ")),
		RecipientRole: clinical.RolePharmacist,
		Data: map[string]any{
			"prescription_id":  prescriptionID,
			"patient_name":     patientName,
			"days_since_ready": daysSinceReady,
			"medicine_names":   medicineNames,
		},
		ActionURL: fmt.Sprintf("/pharmacy/prescriptions/%s", prescriptionID),
		Actions: []notify.Action{
			{ID: "call_patient", Label: "Call Patient", Action: "call_patient", Style: "primary"},
			{ID: "mark_contacted", Label: "Mark as Contacted", Action: "mark_contacted", Style: "secondary"},
		},
	})
}

// NotifyHighValueTransaction flags a sale or purchase above the configured
// threshold for review.
func (s *Service) NotifyHighValueTransaction(transactionType, orderID, counterparty string, amount, threshold float64) (string, error) {
	return s.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypePaymentReceived,
		Title:         fmt.Sprintf("High-Value %s: %.2f", titleCase(transactionType), amount),
		Message:       fmt.Sprintf("%s with %s: %.2f (above threshold: %.2f)", titleCase(transactionType), counterparty, amount, threshold),
		RecipientRole: clinical.RolePharmacist,
		Data: map[string]any{
			"transaction_type": transactionType,
			"order_id":         orderID,
			"counterparty":     counterparty,
			"amount":           amount,
			"threshold":        threshold,
		},
		ActionURL: fmt.Sprintf("/pharmacy/orders/%s", orderID),
	})
}

// NotifyDailySalesSummary publishes the end-of-day pharmacy figures. The
// summary expires after a week.
func (s *Service) NotifyDailySalesSummary(date time.Time, totalSales float64, totalOrders, lowStockAlerts int) (string, error) {
	return s.system.CreateNotification(notify.CreateParams{
		Type:          notify.TypePaymentReceived,
		Title:         fmt.Sprintf("Daily Sales Summary: %s", date.Format("Jan 2, 2006")),
		Message:       fmt.Sprintf("Sales: %.2f | Orders: %d | Stock Alerts: %d", totalSales, totalOrders, lowStockAlerts),
		RecipientRole: clinical.RolePharmacist,
		Data: map[string]any{
			"date":             date,
			"total_sales":      totalSales,
			"total_orders":     totalOrders,
			"low_stock_alerts": lowStockAlerts,
		},
		ActionURL: "/pharmacy/dashboard",
		ExpiresIn: 7 * 24 * time.Hour,
	})
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// CheckLowStock scans the inventory for medicines at or below their minimum
// stock and raises a notification for each. Returns how many were flagged.
func (s *Service) CheckLowStock(ctx context.Context) (int, error) {
	var medicines []models.Medicine
	if err := s.db.WithContext(ctx).
		Where("stock <= minimum_stock").
		Find(&medicines).Error; err != nil {
		return 0, fmt.Errorf("pharmacy: query low stock: %w", err)
	}

	var errs error
	for _, m := range medicines {
		errs = multierr.Append(errs, s.NotifyLowStock(m.ID, m.Name, m.Stock, m.MinimumStock))
	}

	if len(medicines) > 0 {
		s.log.Info("low stock check complete", zap.Int("flagged", len(medicines)))
	}
	return len(medicines), errs
}

// CheckExpiringMedications scans for stocked medicines expiring within the
// window (in days) and raises a notification for each. Already-expired stock
// is skipped; disposal is a separate workflow.
func (s *Service) CheckExpiringMedications(ctx context.Context, windowDays int) (int, error) {
	if windowDays <= 0 {
		windowDays = DefaultExpiryWindowDays
	}

	now := time.Now()
	cutoff := now.AddDate(0, 0, windowDays)

	var medicines []models.Medicine
	if err := s.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date <= ? AND expiry_date >= ? AND stock > 0", cutoff, now).
		Find(&medicines).Error; err != nil {
		return 0, fmt.Errorf("pharmacy: query expiring medicines: %w", err)
	}

	var errs error
	flagged := 0
	for _, m := range medicines {
		daysUntil := int(m.ExpiryDate.Sub(now).Hours() / 24)
		if daysUntil < 0 {
			continue
		}
		flagged++
		_, err := s.NotifyMedicationExpiring(m.ID, m.Name, *m.ExpiryDate, daysUntil)
		errs = multierr.Append(errs, err)
	}

	if flagged > 0 {
		s.log.Info("expiry check complete", zap.Int("flagged", flagged))
	}
	return flagged, errs
}
