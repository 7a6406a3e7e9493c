package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carepulse/backend/internal/database/testutil"
	"github.com/carepulse/backend/internal/models"
	"github.com/carepulse/backend/internal/notify"
)

func TestHistoryServiceRecordNotificationUpserts(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	n := &notify.Notification{
		ID:          "n1",
		Type:        notify.TypeLabResultsAvailable,
		Category:    notify.CategoryClinical,
		Priority:    notify.PriorityHigh,
		Title:       "Lab Results Available",
		RecipientID: "doctor-1",
		CreatedAt:   time.Now(),
		Data:        map[string]any{"test_type": "CBC"},
	}
	require.NoError(t, svc.RecordNotification(n))

	// Re-recording the same id updates in place instead of duplicating.
	n.Title = "Lab Results Updated"
	require.NoError(t, svc.RecordNotification(n))

	var rows []models.NotificationRecord
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, "Lab Results Updated", rows[0].Title)
	require.JSONEq(t, `{"test_type":"CBC"}`, string(rows[0].Payload))
}

func TestHistoryServiceRecordNotificationRequiresID(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	require.Error(t, svc.RecordNotification(nil))
	require.Error(t, svc.RecordNotification(&notify.Notification{}))
}

func TestHistoryServiceAttachPersistsFanOut(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	system, err := notify.NewSystem(notify.Config{})
	require.NoError(t, err)
	t.Cleanup(system.Cleanup)

	unsubscribe := svc.Attach(system)
	defer unsubscribe()

	id, err := system.CreateNotification(notify.CreateParams{
		Type:        notify.TypePatientArrival,
		Title:       "Patient Arrived",
		RecipientID: "reception-1",
	})
	require.NoError(t, err)

	var row models.NotificationRecord
	require.NoError(t, db.Where("notification_id = ?", id).First(&row).Error)
	require.Equal(t, "Patient Arrived", row.Title)
	require.Equal(t, string(notify.PriorityHigh), row.Priority)
}

func TestHistoryServiceMarkRead(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	require.NoError(t, svc.RecordNotification(&notify.Notification{
		ID:   "n1",
		Type: notify.TypePatientArrival,
	}))

	at := time.Now()
	require.NoError(t, svc.MarkRead(context.Background(), "n1", at))

	var row models.NotificationRecord
	require.NoError(t, db.Where("notification_id = ?", "n1").First(&row).Error)
	require.NotNil(t, row.ReadAt)

	// Already-read rows keep their original timestamp.
	require.NoError(t, svc.MarkRead(context.Background(), "n1", at.Add(time.Hour)))
	var again models.NotificationRecord
	require.NoError(t, db.Where("notification_id = ?", "n1").First(&again).Error)
	require.Equal(t, row.ReadAt.Unix(), again.ReadAt.Unix())

	// Unknown ids are a no-op.
	require.NoError(t, svc.MarkRead(context.Background(), "missing", at))
}

func TestHistoryServiceListRecent(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, svc.RecordNotification(&notify.Notification{
			ID:          id,
			Type:        notify.TypePatientArrival,
			RecipientID: "doctor-1",
		}))
	}
	require.NoError(t, svc.RecordNotification(&notify.Notification{
		ID:          "other",
		Type:        notify.TypePatientArrival,
		RecipientID: "doctor-2",
	}))

	rows, err := svc.ListRecent(context.Background(), "doctor-1", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	all, err := svc.ListRecent(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
}

func TestHistoryServiceCleanupOlderThan(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewHistoryService(db)
	require.NoError(t, err)

	require.NoError(t, svc.RecordNotification(&notify.Notification{
		ID:   "stale",
		Type: notify.TypePatientArrival,
	}))
	require.NoError(t, db.Model(&models.NotificationRecord{}).
		Where("notification_id = ?", "stale").
		Update("created_at", time.Now().AddDate(0, 0, -60)).Error)

	require.NoError(t, svc.RecordNotification(&notify.Notification{
		ID:   "fresh",
		Type: notify.TypePatientArrival,
	}))

	removed, err := svc.CleanupOlderThan(context.Background(), 30)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	rows, err := svc.ListRecent(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "fresh", rows[0].NotificationID)
}
