package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/carepulse/backend/pkg/logger"
	"github.com/carepulse/backend/pkg/metrics"
)

const defaultSweepSpec = "@every 1m"

// Audit actions emitted by the facade.
const (
	AuditActionCreated  = "notification_created"
	AuditActionReceived = "notification_received"
	AuditActionRead     = "notification_read"
)

// AuditEvent describes one notification operation for the audit trail.
type AuditEvent struct {
	Action         string
	NotificationID string
	Type           Type
	RecipientID    string
	Priority       Priority
	UserID         string
}

// AuditSink receives audit events. Calls are fire-and-forget: a failing sink
// is logged and never aborts the triggering operation.
type AuditSink interface {
	Record(event AuditEvent) error
}

// CreateParams are the producer-supplied attributes of a new notification.
type CreateParams struct {
	Type          Type
	Title         string
	Message       string
	RecipientID   string
	RecipientRole string
	DepartmentID  string
	Data          map[string]any
	ActionURL     string
	Actions       []Action
	// ExpiresIn sets a TTL relative to creation; zero means never expires.
	ExpiresIn time.Duration
}

// Config wires the facade's collaborators.
type Config struct {
	Transport TransportConfig
	Presenter Presenter
	Audit     AuditSink
}

// Option customises a System.
type Option func(*System)

// WithClock overrides the clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *System) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides notification id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *System) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithSweepSchedule overrides the expiry sweep cron specification.
func WithSweepSchedule(spec string) Option {
	return func(s *System) {
		if spec != "" {
			s.sweepSpec = spec
		}
	}
}

// WithCron injects a preconfigured cron instance, primarily for tests.
func WithCron(c *cron.Cron) Option {
	return func(s *System) {
		if c != nil {
			s.cron = c
		}
	}
}

// System is the notification facade. It composes the registry, dispatcher,
// transport and presentation bridge behind the public contract and owns the
// expiry sweep timer.
type System struct {
	registry   *Registry
	dispatcher *Dispatcher
	transport  *Transport
	presenter  Presenter
	audit      AuditSink

	cron      *cron.Cron
	sweepSpec string
	now       func() time.Time
	newID     func() string
	log       *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewSystem constructs a running notification system: the live channel
// starts connecting and the expiry sweep is scheduled. Call Cleanup on
// teardown to release both.
func NewSystem(cfg Config, opts ...Option) (*System, error) {
	s := &System{
		registry:   NewRegistry(),
		dispatcher: NewDispatcher(),
		presenter:  cfg.Presenter,
		audit:      cfg.Audit,
		sweepSpec:  defaultSweepSpec,
		now:        time.Now,
		newID:      uuid.NewString,
		log:        logger.WithModule("notify.system"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	if _, err := s.cron.AddFunc(s.sweepSpec, s.sweep); err != nil {
		return nil, err
	}
	s.cron.Start()

	s.transport = NewTransport(cfg.Transport, s)
	return s, nil
}

// Registry exposes the underlying store for read-side collaborators.
func (s *System) Registry() *Registry {
	return s.registry
}

// Transport exposes the live channel, primarily for state inspection.
func (s *System) Transport() *Transport {
	return s.transport
}

func (s *System) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *System) sweep() {
	if !s.active() {
		return
	}
	s.registry.Sweep(s.now())
}

// CreateNotification classifies, stores, echoes and fans out a new
// notification, returning its id. The only rejected input is a missing type;
// everything else is producer-defined.
func (s *System) CreateNotification(params CreateParams) (string, error) {
	if params.Type == "" {
		return "", errors.New("notify: type is required")
	}

	category, priority := Classify(params.Type)
	now := s.now()

	n := &Notification{
		ID:            s.newID(),
		Type:          params.Type,
		Category:      category,
		Priority:      priority,
		Title:         params.Title,
		Message:       params.Message,
		Data:          params.Data,
		RecipientID:   params.RecipientID,
		RecipientRole: params.RecipientRole,
		DepartmentID:  params.DepartmentID,
		CreatedAt:     now,
		ActionURL:     params.ActionURL,
		Actions:       params.Actions,
	}
	if params.ExpiresIn > 0 {
		expires := now.Add(params.ExpiresIn)
		n.ExpiresAt = &expires
	}

	// Store before fan-out so a subscriber querying from its callback sees
	// its own notification.
	s.registry.Put(n)
	s.transport.EchoNotification(n)
	s.dispatcher.Notify(n)
	if s.presenter != nil && n.Priority.Elevated() {
		s.presenter.Present(n)
	}

	metrics.NotificationsCreated.WithLabelValues(string(priority)).Inc()
	s.recordAudit(AuditEvent{
		Action:         AuditActionCreated,
		NotificationID: n.ID,
		Type:           n.Type,
		RecipientID:    n.RecipientID,
		Priority:       n.Priority,
	})

	return n.ID, nil
}

// Subscribe registers a callback for a recipient id, a "role:<role>" token
// or "all", returning the unsubscribe handle.
func (s *System) Subscribe(key string, callback Callback) func() {
	return s.dispatcher.Subscribe(key, callback)
}

// MarkAsRead sets the read timestamp once. Re-marking an already-read or
// unknown id is a no-op, never an error.
func (s *System) MarkAsRead(notificationID, userID string) {
	s.markRead(notificationID, userID, true)
}

func (s *System) markRead(notificationID, userID string, echo bool) {
	// The registry applies the mutation under its own lock so concurrent
	// Select calls never observe a half-written read mark.
	n := s.registry.MarkRead(notificationID, s.now())
	if n == nil {
		return
	}

	if echo {
		s.transport.EchoRead(notificationID, userID)
	}
	s.recordAudit(AuditEvent{
		Action:         AuditActionRead,
		NotificationID: notificationID,
		Type:           n.Type,
		RecipientID:    n.RecipientID,
		UserID:         userID,
	})
}

// DeleteNotification removes the record locally and echoes the deletion.
// Unknown ids are a silent no-op.
func (s *System) DeleteNotification(notificationID string) {
	s.registry.Delete(notificationID)
	s.transport.EchoDelete(notificationID)
}

// GetNotifications returns the recipient's visible notifications ordered by
// priority then recency. Empty arguments act as pass-through filters.
func (s *System) GetNotifications(recipientID string, category Category, unreadOnly bool) []*Notification {
	return s.registry.Select(Query{
		RecipientID: recipientID,
		Category:    category,
		UnreadOnly:  unreadOnly,
	}, s.now())
}

// GetUnreadCount counts unread visible notifications for the recipient.
func (s *System) GetUnreadCount(recipientID string, category Category) int {
	return len(s.GetNotifications(recipientID, category, true))
}

// ClearAllNotifications deletes every notification currently visible to the
// recipient and returns the cleared ids. Individual deletes are atomic; the
// batch is not.
func (s *System) ClearAllNotifications(recipientID string) []string {
	visible := s.GetNotifications(recipientID, "", false)
	ids := make([]string, 0, len(visible))
	for _, n := range visible {
		s.DeleteNotification(n.ID)
		ids = append(ids, n.ID)
	}
	return ids
}

// HandleRemoteNotification merges a relay-delivered notification into the
// registry and fans it out. Records missing a classification are classified
// locally so foreign producers cannot downgrade emergency events.
func (s *System) HandleRemoteNotification(n *Notification) {
	if n == nil || n.ID == "" || !s.active() {
		return
	}
	if n.Category == "" || n.Priority == "" {
		n.Category, n.Priority = Classify(n.Type)
	}

	s.registry.Put(n)
	s.dispatcher.Notify(n)
	if s.presenter != nil && n.Priority.Elevated() {
		s.presenter.Present(n)
	}

	s.recordAudit(AuditEvent{
		Action:         AuditActionReceived,
		NotificationID: n.ID,
		Type:           n.Type,
		RecipientID:    n.RecipientID,
		Priority:       n.Priority,
	})
}

// HandleRemoteRead applies a read-mark pushed by the relay.
func (s *System) HandleRemoteRead(notificationID, userID string) {
	if !s.active() {
		return
	}
	s.markRead(notificationID, userID, false)
}

// HandleRemoteDelete applies a deletion pushed by the relay.
func (s *System) HandleRemoteDelete(notificationID string) {
	if !s.active() {
		return
	}
	s.registry.Delete(notificationID)
}

func (s *System) recordAudit(event AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(event); err != nil {
		s.log.Warn("audit sink failed",
			zap.String("action", event.Action),
			zap.String("notification_id", event.NotificationID),
			zap.Error(err),
		)
	}
}

// Cleanup closes the live channel, stops the sweep and clears all in-memory
// state. Idempotent; any timer callback firing afterwards is a no-op.
func (s *System) Cleanup() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// Timers first so nothing fires into cleared state.
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.transport.Close()
	s.registry.Clear()
	s.dispatcher.Clear()
	s.log.Info("notification system shut down")
}
