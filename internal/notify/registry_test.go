package notify

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func makeNotification(id string, priority Priority, createdAt time.Time) *Notification {
	return &Notification{
		ID:        id,
		Type:      TypeSystemMaintenance,
		Category:  CategorySystem,
		Priority:  priority,
		CreatedAt: createdAt,
	}
}

func TestRegistryPutGetDelete(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	n := makeNotification("n1", PriorityNormal, now)
	r.Put(n)

	require.Equal(t, 1, r.Len())
	got := r.Get("n1")
	require.Equal(t, n, got)
	require.NotSame(t, n, got, "reads hand out snapshots")

	// Put with the same id replaces.
	replacement := makeNotification("n1", PriorityHigh, now)
	r.Put(replacement)
	require.Equal(t, 1, r.Len())
	require.Equal(t, replacement, r.Get("n1"))

	r.Delete("n1")
	require.Nil(t, r.Get("n1"))
	require.Zero(t, r.Len())

	// Unknown deletes and nil puts are no-ops.
	r.Delete("missing")
	r.Put(nil)
	r.Put(&Notification{})
	require.Zero(t, r.Len())
}

func TestRegistrySelectOrdersByPriorityThenRecency(t *testing.T) {
	r := NewRegistry()
	base := time.Now()

	r.Put(makeNotification("low", PriorityLow, base))
	r.Put(makeNotification("critical", PriorityCritical, base.Add(-time.Hour)))
	r.Put(makeNotification("normal-old", PriorityNormal, base.Add(-2*time.Minute)))
	r.Put(makeNotification("normal-new", PriorityNormal, base.Add(-time.Minute)))
	r.Put(makeNotification("urgent", PriorityUrgent, base))

	got := r.Select(Query{}, base)
	ids := make([]string, 0, len(got))
	for _, n := range got {
		ids = append(ids, n.ID)
	}

	require.Equal(t, []string{"critical", "urgent", "normal-new", "normal-old", "low"}, ids)
}

func TestRegistrySelectFilters(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	read := now.Add(-time.Minute)

	forAlice := makeNotification("alice-1", PriorityNormal, now)
	forAlice.RecipientID = "alice"
	forAlice.Category = CategoryClinical

	forBob := makeNotification("bob-1", PriorityNormal, now)
	forBob.RecipientID = "bob"

	readByAlice := makeNotification("alice-2", PriorityNormal, now)
	readByAlice.RecipientID = "alice"
	readByAlice.ReadAt = &read

	r.Put(forAlice)
	r.Put(forBob)
	r.Put(readByAlice)

	require.Len(t, r.Select(Query{RecipientID: "alice"}, now), 2)
	require.Len(t, r.Select(Query{RecipientID: "alice", UnreadOnly: true}, now), 1)
	require.Len(t, r.Select(Query{Category: CategoryClinical}, now), 1)
	require.Len(t, r.Select(Query{RecipientID: "nobody"}, now), 0)
}

func TestRegistrySelectSkipsExpired(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	expired := makeNotification("expired", PriorityHigh, now.Add(-2*time.Hour))
	past := now.Add(-time.Hour)
	expired.ExpiresAt = &past

	live := makeNotification("live", PriorityNormal, now)
	future := now.Add(time.Hour)
	live.ExpiresAt = &future

	r.Put(expired)
	r.Put(live)

	got := r.Select(Query{}, now)
	require.Len(t, got, 1)
	require.Equal(t, "live", got[0].ID)

	// Expired records remain stored until swept.
	require.Equal(t, 2, r.Len())
}

func TestRegistrySweep(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		n := makeNotification(id, PriorityNormal, now)
		if i < 2 {
			past := now.Add(-time.Minute)
			n.ExpiresAt = &past
		}
		r.Put(n)
	}

	require.Equal(t, 2, r.Sweep(now))
	require.Equal(t, 1, r.Len())
	require.NotNil(t, r.Get("c"))

	// Second sweep finds nothing.
	require.Zero(t, r.Sweep(now))
}

func TestRegistryMarkRead(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.Put(makeNotification("n1", PriorityNormal, now))

	read := r.MarkRead("n1", now)
	require.NotNil(t, read)
	require.True(t, read.Read())
	require.Equal(t, now, *read.ReadAt)
	require.True(t, r.Get("n1").Read())

	// Re-marking does not move the timestamp; unknown ids report no
	// transition either.
	require.Nil(t, r.MarkRead("n1", now.Add(time.Hour)))
	require.Equal(t, now, *r.Get("n1").ReadAt)
	require.Nil(t, r.MarkRead("missing", now))
}

func TestRegistryHandsOutSnapshots(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	n := makeNotification("n1", PriorityNormal, now)
	r.Put(n)

	// Mutating the caller's record after Put does not leak into the store.
	n.ReadAt = &now
	require.False(t, r.Get("n1").Read())

	// Nor does mutating what Get or Select returned.
	got := r.Get("n1")
	got.ReadAt = &now
	require.False(t, r.Get("n1").Read())

	selected := r.Select(Query{}, now)
	require.Len(t, selected, 1)
	selected[0].ReadAt = &now
	require.False(t, r.Get("n1").Read())
}

func TestRegistryConcurrentMarkReadAndSelect(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	for i := 0; i < 50; i++ {
		r.Put(makeNotification(fmt.Sprintf("n%d", i), PriorityNormal, now))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			r.MarkRead(fmt.Sprintf("n%d", i), now)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			r.Select(Query{UnreadOnly: true}, now)
		}
	}()
	wg.Wait()

	require.Empty(t, r.Select(Query{UnreadOnly: true}, now))
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	r.Put(makeNotification("n1", PriorityNormal, time.Now()))
	r.Clear()
	require.Zero(t, r.Len())
}
