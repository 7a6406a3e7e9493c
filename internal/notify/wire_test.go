package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeInboundNotification(t *testing.T) {
	payload := []byte(`{
		"type": "notification",
		"notification": {
			"id": "n1",
			"type": "emergency_alert",
			"title": "Code Blue",
			"recipientRole": "doctor"
		}
	}`)

	msg, err := DecodeInbound(payload)
	require.NoError(t, err)

	frame, ok := msg.(InboundNotification)
	require.True(t, ok)
	require.Equal(t, "n1", frame.Notification.ID)
	require.Equal(t, TypeEmergencyAlert, frame.Notification.Type)
	require.Equal(t, "doctor", frame.Notification.RecipientRole)
}

func TestDecodeInboundNotificationMissingBody(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type": "notification"}`))
	require.Error(t, err)
}

func TestDecodeInboundRead(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type": "notification_read", "notificationId": "n1", "userId": "u1"}`))
	require.NoError(t, err)

	frame, ok := msg.(InboundRead)
	require.True(t, ok)
	require.Equal(t, "n1", frame.NotificationID)
	require.Equal(t, "u1", frame.UserID)
}

func TestDecodeInboundDeleted(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type": "notification_deleted", "notificationId": "n1"}`))
	require.NoError(t, err)

	frame, ok := msg.(InboundDeleted)
	require.True(t, ok)
	require.Equal(t, "n1", frame.NotificationID)
}

func TestDecodeInboundPong(t *testing.T) {
	msg, err := DecodeInbound([]byte(`{"type": "pong"}`))
	require.NoError(t, err)
	require.IsType(t, InboundPong{}, msg)
}

func TestDecodeInboundRejectsUnknownAndMalformed(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type": "subscribe"}`))
	require.Error(t, err)

	_, err = DecodeInbound([]byte(`{not json`))
	require.Error(t, err)
}
