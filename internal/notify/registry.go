package notify

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carepulse/backend/pkg/logger"
	"github.com/carepulse/backend/pkg/metrics"
)

// Query selects notifications from the registry. Zero values mean
// "no filter" for the corresponding attribute.
type Query struct {
	RecipientID string
	Category    Category
	UnreadOnly  bool
}

// Registry is the in-memory notification store. Records are keyed by id and
// evicted either explicitly or by the periodic expiry sweep. The registry
// owns its records: Put stores a copy and every read hands out a snapshot,
// so callers never share mutable state with concurrent readers.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*Notification
	log     *zap.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Notification),
		log:     logger.WithModule("notify.registry"),
	}
}

// Put stores the notification, replacing any record with the same id.
func (r *Registry) Put(n *Notification) {
	if n == nil || n.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[n.ID] = n.Clone()
}

// Get returns a snapshot of the notification for the id, or nil when absent.
func (r *Registry) Get(id string) *Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[id].Clone()
}

// MarkRead stamps the record as read under the registry lock and returns a
// snapshot of the updated record. Already-read and unknown ids return nil;
// the timestamp never moves once set.
func (r *Registry) MarkRead(id string, at time.Time) *Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.records[id]
	if n == nil || n.Read() {
		return nil
	}
	read := at
	n.ReadAt = &read
	return n.Clone()
}

// Delete removes the record for the id. Unknown ids are a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
}

// Len reports the number of stored records, including not-yet-swept
// expired ones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Select returns a fresh, sorted snapshot of the notifications matching the
// query. Expired records are filtered out even before the sweep removes them.
// Order is priority descending, then creation time descending.
func (r *Registry) Select(q Query, now time.Time) []*Notification {
	r.mu.RLock()
	matched := make([]*Notification, 0, len(r.records))
	for _, n := range r.records {
		if n.Expired(now) {
			continue
		}
		if q.RecipientID != "" && n.RecipientID != q.RecipientID {
			continue
		}
		if q.Category != "" && n.Category != q.Category {
			continue
		}
		if q.UnreadOnly && n.Read() {
			continue
		}
		matched = append(matched, n.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if d := matched[i].Priority.Rank() - matched[j].Priority.Rank(); d != 0 {
			return d > 0
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched
}

// Sweep removes every record whose TTL elapsed before now and returns the
// number of evictions.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []string
	for id, n := range r.records {
		if n.Expired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(r.records, id)
	}
	r.mu.Unlock()

	if len(expired) > 0 {
		metrics.NotificationsExpired.Add(float64(len(expired)))
		r.log.Debug("swept expired notifications", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Clear drops every record. Used on teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*Notification)
}
