package notify

import (
	"encoding/json"
	"fmt"
)

// Outbound frame kinds sent to the signaling relay.
const (
	frameAuth         = "auth"
	framePing         = "ping"
	frameNotification = "notification"
	frameMarkRead     = "mark_read"
	frameDelete       = "delete_notification"
)

// Inbound frame kinds received from the signaling relay.
const (
	inNotification        = "notification"
	inNotificationRead    = "notification_read"
	inNotificationDeleted = "notification_deleted"
	inPong                = "pong"
)

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type pingFrame struct {
	Type string `json:"type"`
}

type notificationFrame struct {
	Type         string        `json:"type"`
	Notification *Notification `json:"notification"`
}

type markReadFrame struct {
	Type           string `json:"type"`
	NotificationID string `json:"notificationId"`
	UserID         string `json:"userId"`
}

type deleteFrame struct {
	Type           string `json:"type"`
	NotificationID string `json:"notificationId"`
}

// InboundMessage is the tagged union of frames the relay can push. Each
// variant is handled explicitly in the transport's dispatch switch; adding a
// variant without extending the switch fails to compile there.
type InboundMessage interface {
	inbound()
}

// InboundNotification carries a notification originated elsewhere.
type InboundNotification struct {
	Notification *Notification
}

// InboundRead signals that a notification was read on another client.
type InboundRead struct {
	NotificationID string
	UserID         string
}

// InboundDeleted signals that a notification was deleted on another client.
type InboundDeleted struct {
	NotificationID string
}

// InboundPong acknowledges a liveness ping.
type InboundPong struct{}

func (InboundNotification) inbound() {}
func (InboundRead) inbound()         {}
func (InboundDeleted) inbound()      {}
func (InboundPong) inbound()         {}

type inboundEnvelope struct {
	Type           string        `json:"type"`
	Notification   *Notification `json:"notification,omitempty"`
	NotificationID string        `json:"notificationId,omitempty"`
	UserID         string        `json:"userId,omitempty"`
}

// DecodeInbound parses a relay frame into its typed variant. Unknown frame
// kinds produce an error; callers log and drop them.
func DecodeInbound(payload []byte) (InboundMessage, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode inbound frame: %w", err)
	}

	switch env.Type {
	case inNotification:
		if env.Notification == nil {
			return nil, fmt.Errorf("notification frame missing body")
		}
		return InboundNotification{Notification: env.Notification}, nil
	case inNotificationRead:
		return InboundRead{NotificationID: env.NotificationID, UserID: env.UserID}, nil
	case inNotificationDeleted:
		return InboundDeleted{NotificationID: env.NotificationID}, nil
	case inPong:
		return InboundPong{}, nil
	default:
		return nil, fmt.Errorf("unknown inbound frame type %q", env.Type)
	}
}
