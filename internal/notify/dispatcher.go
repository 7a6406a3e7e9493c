package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/carepulse/backend/pkg/logger"
	"github.com/carepulse/backend/pkg/metrics"
)

// BroadcastKey is the addressing token that reaches every subscriber.
const BroadcastKey = "all"

// RoleKey builds the addressing token for role-wide subscriptions.
func RoleKey(role string) string {
	return "role:" + role
}

// Callback receives notifications fanned out by the dispatcher.
type Callback func(*Notification)

type subscription struct {
	key      string
	callback Callback
}

// Dispatcher is the publish/subscribe fabric. Subscriptions are keyed by a
// recipient id, a role token ("role:<role>") or the broadcast token "all".
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string][]*subscription
	log         *zap.Logger
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string][]*subscription),
		log:         logger.WithModule("notify.dispatcher"),
	}
}

// Subscribe registers the callback under the key and returns an unsubscribe
// function that removes exactly this registration, leaving other callbacks
// under the same key intact.
func (d *Dispatcher) Subscribe(key string, callback Callback) func() {
	sub := &subscription{key: key, callback: callback}

	d.mu.Lock()
	d.subscribers[key] = append(d.subscribers[key], sub)
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		subs := d.subscribers[key]
		for i, candidate := range subs {
			if candidate == sub {
				d.subscribers[key] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
		if len(d.subscribers[key]) == 0 {
			delete(d.subscribers, key)
		}
	}
}

// Notify fans the notification out to, in order: subscribers keyed by its
// recipient id, subscribers keyed by its role token, and broadcast
// subscribers. Role-addressed notifications deliberately reach "all"
// subscribers as well; general dashboards rely on it.
func (d *Dispatcher) Notify(n *Notification) {
	if n == nil {
		return
	}

	if n.RecipientID != "" {
		d.deliver(n.RecipientID, n)
	}
	if n.RecipientRole != "" {
		d.deliver(RoleKey(n.RecipientRole), n)
	}
	d.deliver(BroadcastKey, n)
}

func (d *Dispatcher) deliver(key string, n *Notification) {
	d.mu.RLock()
	subs := append([]*subscription(nil), d.subscribers[key]...)
	d.mu.RUnlock()

	for _, sub := range subs {
		d.invoke(sub, n)
	}
}

// invoke shields fan-out from a failing subscriber: one panicking callback
// must never prevent delivery to the others.
func (d *Dispatcher) invoke(sub *subscription, n *Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.SubscriberFailures.Inc()
			d.log.Error("subscriber callback panicked",
				zap.String("key", sub.key),
				zap.String("notification_id", n.ID),
				zap.Any("panic", rec),
			)
		}
	}()
	sub.callback(n)
	metrics.NotificationsDelivered.Inc()
}

// Clear removes every subscription. Used on teardown.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = make(map[string][]*subscription)
}
