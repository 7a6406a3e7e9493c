package pharmacy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carepulse/backend/internal/clinical"
	"github.com/carepulse/backend/internal/database/testutil"
	"github.com/carepulse/backend/internal/models"
	"github.com/carepulse/backend/internal/notify"
)

func newTestService(t *testing.T) (*Service, *notify.System, *[]*notify.Notification) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	system, err := notify.NewSystem(notify.Config{})
	require.NoError(t, err)
	t.Cleanup(system.Cleanup)

	svc, err := NewService(db, system)
	require.NoError(t, err)

	var received []*notify.Notification
	unsubscribe := system.Subscribe(notify.BroadcastKey, func(n *notify.Notification) {
		received = append(received, n)
	})
	t.Cleanup(unsubscribe)

	return svc, system, &received
}

func seedMedicine(t *testing.T, svc *Service, name string, stock, minimum int, expiry *time.Time) {
	t.Helper()
	require.NoError(t, svc.db.Create(&models.Medicine{
		Name:         name,
		Stock:        stock,
		MinimumStock: minimum,
		ExpiryDate:   expiry,
	}).Error)
}

func TestNotifyLowStockRoutesToPharmacists(t *testing.T) {
	svc, _, received := newTestService(t)

	require.NoError(t, svc.NotifyLowStock("med-1", "Amoxicillin", 5, 20))

	require.Len(t, *received, 1)
	n := (*received)[0]
	require.Equal(t, notify.TypeMedicationOutOfStock, n.Type)
	require.Equal(t, clinical.RolePharmacist, n.RecipientRole)
	require.Equal(t, notify.PriorityHigh, n.Priority)
	require.NotNil(t, n.ExpiresAt, "routine low-stock notices expire")
}

func TestNotifyLowStockOutOfStockEscalatesToAdmin(t *testing.T) {
	svc, _, received := newTestService(t)

	require.NoError(t, svc.NotifyLowStock("med-1", "Insulin", 0, 50))

	require.Len(t, *received, 2)
	pharmacist := (*received)[0]
	admin := (*received)[1]

	require.Equal(t, clinical.RolePharmacist, pharmacist.RecipientRole)
	require.Nil(t, pharmacist.ExpiresAt, "out-of-stock alerts never expire")
	require.Equal(t, clinical.RoleAdmin, admin.RecipientRole)
}

func TestNotifyPrescriptionPickupReminder(t *testing.T) {
	svc, _, received := newTestService(t)

	id, err := svc.NotifyPrescriptionPickupReminder("rx-1", "Jane Doe", 3, []string{"Amoxicillin", "Ibuprofen"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Len(t, *received, 1)
	n := (*received)[0]
	require.Equal(t, notify.TypePrescriptionReadyForPickup, n.Type)
	require.Equal(t, clinical.RolePharmacist, n.RecipientRole)
	require.Contains(t, n.Message, "3 days")
	require.Contains(t, n.Message, "Amoxicillin, Ibuprofen")
	require.Equal(t, 3, n.Data["days_since_ready"])
}

func TestNotifyHighValueTransaction(t *testing.T) {
	svc, _, received := newTestService(t)

	_, err := svc.NotifyHighValueTransaction("sale", "order-9", "City Clinic", 15000, 10000)
	require.NoError(t, err)

	require.Len(t, *received, 1)
	n := (*received)[0]
	require.Equal(t, notify.TypePaymentReceived, n.Type)
	require.Equal(t, clinical.RolePharmacist, n.RecipientRole)
	require.Equal(t, "High-Value Sale: 15000.00", n.Title)
	require.Contains(t, n.Message, "City Clinic")
	require.Equal(t, 15000.0, n.Data["amount"])
}

func TestNotifyDailySalesSummaryExpiresAfterAWeek(t *testing.T) {
	svc, _, received := newTestService(t)

	date := time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)
	_, err := svc.NotifyDailySalesSummary(date, 4250.75, 31, 2)
	require.NoError(t, err)

	require.Len(t, *received, 1)
	n := (*received)[0]
	require.Equal(t, "Daily Sales Summary: Mar 4, 2026", n.Title)
	require.Contains(t, n.Message, "Orders: 31")
	require.NotNil(t, n.ExpiresAt)
	require.WithinDuration(t, time.Now().Add(7*24*time.Hour), *n.ExpiresAt, time.Minute)
}

func TestCheckLowStockFlagsOnlyDepletedMedicines(t *testing.T) {
	svc, _, received := newTestService(t)

	seedMedicine(t, svc, "Amoxicillin", 5, 20, nil)
	seedMedicine(t, svc, "Paracetamol", 100, 20, nil)
	seedMedicine(t, svc, "Insulin", 0, 50, nil)

	flagged, err := svc.CheckLowStock(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, flagged)
	require.NotEmpty(t, *received)
}

func TestCheckExpiringMedications(t *testing.T) {
	svc, _, received := newTestService(t)

	soon := time.Now().AddDate(0, 0, 10)
	far := time.Now().AddDate(1, 0, 0)
	past := time.Now().AddDate(0, 0, -5)

	seedMedicine(t, svc, "Expiring", 10, 5, &soon)
	seedMedicine(t, svc, "Fresh", 10, 5, &far)
	seedMedicine(t, svc, "AlreadyExpired", 10, 5, &past)
	seedMedicine(t, svc, "ExpiringButEmpty", 0, 5, &soon)

	flagged, err := svc.CheckExpiringMedications(context.Background(), 30)
	require.NoError(t, err)
	require.Equal(t, 1, flagged)

	require.Len(t, *received, 1)
	n := (*received)[0]
	require.Equal(t, notify.TypeMedicationExpiring, n.Type)
	require.Equal(t, notify.PriorityLow, n.Priority)
	require.Equal(t, "Expiring", n.Data["medicine_name"])
}

func TestCheckExpiringMedicationsDefaultsWindow(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CheckExpiringMedications(context.Background(), 0)
	require.NoError(t, err)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	system, err := notify.NewSystem(notify.Config{})
	require.NoError(t, err)
	t.Cleanup(system.Cleanup)

	_, err = NewService(nil, system)
	require.Error(t, err)

	_, err = NewService(db, nil)
	require.Error(t, err)
}
