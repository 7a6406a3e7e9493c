package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatcherAddressingModes(t *testing.T) {
	d := NewDispatcher()

	var userHits, roleHits, broadcastHits, otherHits int
	d.Subscribe("doctor-1", func(*Notification) { userHits++ })
	d.Subscribe(RoleKey("pharmacist"), func(*Notification) { roleHits++ })
	d.Subscribe(BroadcastKey, func(*Notification) { broadcastHits++ })
	d.Subscribe("doctor-2", func(*Notification) { otherHits++ })

	d.Notify(&Notification{ID: "n1", RecipientRole: "pharmacist"})

	require.Zero(t, userHits)
	require.Equal(t, 1, roleHits)
	require.Equal(t, 1, broadcastHits, "role-addressed notifications also reach broadcast subscribers")
	require.Zero(t, otherHits)

	d.Notify(&Notification{ID: "n2", RecipientID: "doctor-1"})

	require.Equal(t, 1, userHits)
	require.Equal(t, 1, roleHits)
	require.Equal(t, 2, broadcastHits)
	require.Zero(t, otherHits)
}

func TestDispatcherUnsubscribeRemovesOnlyOwnRegistration(t *testing.T) {
	d := NewDispatcher()

	var first, second int
	unsubscribe := d.Subscribe(BroadcastKey, func(*Notification) { first++ })
	d.Subscribe(BroadcastKey, func(*Notification) { second++ })

	d.Notify(&Notification{ID: "n1"})
	require.Equal(t, 1, first)
	require.Equal(t, 1, second)

	unsubscribe()
	d.Notify(&Notification{ID: "n2"})
	require.Equal(t, 1, first)
	require.Equal(t, 2, second)

	// Unsubscribing twice is harmless.
	unsubscribe()
	d.Notify(&Notification{ID: "n3"})
	require.Equal(t, 3, second)
}

func TestDispatcherIsolatesPanickingSubscriber(t *testing.T) {
	d := NewDispatcher()

	var delivered []string
	d.Subscribe(BroadcastKey, func(*Notification) { panic("subscriber bug") })
	d.Subscribe(BroadcastKey, func(n *Notification) { delivered = append(delivered, n.ID) })

	require.NotPanics(t, func() {
		d.Notify(&Notification{ID: "n1"})
	})
	require.Equal(t, []string{"n1"}, delivered)
}

func TestDispatcherSubscriberSeesOwnNotificationInRegistry(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher()

	var found *Notification
	d.Subscribe(BroadcastKey, func(n *Notification) {
		found = registry.Get(n.ID)
	})

	n := makeNotification("n1", PriorityNormal, time.Now())
	registry.Put(n)
	d.Notify(n)

	require.NotNil(t, found)
	require.Equal(t, n.ID, found.ID)
}

func TestDispatcherClear(t *testing.T) {
	d := NewDispatcher()

	var hits int
	d.Subscribe(BroadcastKey, func(*Notification) { hits++ })

	d.Clear()
	d.Notify(&Notification{ID: "n1"})
	require.Zero(t, hits)
}
