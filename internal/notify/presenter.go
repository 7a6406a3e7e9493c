package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carepulse/backend/pkg/logger"
)

// Non-critical alerts auto-dismiss after this interval.
const alertAutoDismiss = 10 * time.Second

// Permission is the tri-state alert permission for a recipient.
type Permission string

// Alert permission states.
const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Alert is the payload handed to the host alerting facility for an elevated
// notification. Tag equals the notification id so repeated delivery of the
// same id replaces the alert instead of stacking.
type Alert struct {
	Tag                string        `json:"tag"`
	Title              string        `json:"title"`
	Body               string        `json:"body"`
	ActionURL          string        `json:"actionUrl,omitempty"`
	RequireInteraction bool          `json:"requireInteraction"`
	Silent             bool          `json:"silent"`
	AutoDismiss        time.Duration `json:"autoDismissMs,omitempty"`
}

// AlertSink raises an alert for a recipient through whatever surface the
// host provides (operator console push, desktop bridge). A sink that cannot
// show alerts returns false and the bridge degrades silently.
type AlertSink interface {
	Raise(recipientKey string, alert Alert) bool
}

// Presenter decides whether and how an elevated notification is surfaced as
// a native alert.
type Presenter interface {
	Present(n *Notification)
}

// AlertBridge gates alerts on priority and per-recipient permission. An
// undecided recipient is prompted once through the prompt function; the
// answer is remembered for the lifetime of the bridge.
type AlertBridge struct {
	sink   AlertSink
	prompt func(recipientKey string) Permission

	mu          sync.Mutex
	permissions map[string]Permission
	log         *zap.Logger
}

// NewAlertBridge constructs the presentation bridge. A nil prompt grants on
// first use, matching hosts that do not require explicit consent.
func NewAlertBridge(sink AlertSink, prompt func(recipientKey string) Permission) *AlertBridge {
	if prompt == nil {
		prompt = func(string) Permission { return PermissionGranted }
	}
	return &AlertBridge{
		sink:        sink,
		prompt:      prompt,
		permissions: make(map[string]Permission),
		log:         logger.WithModule("notify.presenter"),
	}
}

// Present raises a native alert for high, urgent and critical notifications.
// Denied permission or an unavailable sink is a silent degrade; the
// notification remains queryable in the registry either way.
func (b *AlertBridge) Present(n *Notification) {
	if n == nil || !n.Priority.Elevated() || b.sink == nil {
		return
	}

	key := n.RecipientID
	if key == "" {
		key = BroadcastKey
	}

	if b.permissionFor(key) != PermissionGranted {
		return
	}

	alert := Alert{
		Tag:                n.ID,
		Title:              n.Title,
		Body:               n.Message,
		ActionURL:          n.ActionURL,
		RequireInteraction: n.Priority == PriorityCritical,
		Silent:             n.Priority == PriorityLow,
	}
	if n.Priority != PriorityCritical {
		alert.AutoDismiss = alertAutoDismiss
	}

	if !b.sink.Raise(key, alert) {
		b.log.Debug("alert sink unavailable",
			zap.String("recipient", key),
			zap.String("notification_id", n.ID),
		)
	}
}

// permissionFor resolves the recipient's stored permission, prompting once
// when still undecided.
func (b *AlertBridge) permissionFor(key string) Permission {
	b.mu.Lock()
	current, ok := b.permissions[key]
	b.mu.Unlock()

	if ok && current != PermissionDefault {
		return current
	}

	decided := b.prompt(key)
	if decided != PermissionGranted && decided != PermissionDenied {
		decided = PermissionDefault
	}

	b.mu.Lock()
	b.permissions[key] = decided
	b.mu.Unlock()
	return decided
}

// SetPermission records an explicit permission decision for a recipient.
func (b *AlertBridge) SetPermission(recipientKey string, p Permission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.permissions[recipientKey] = p
}
