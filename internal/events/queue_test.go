package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub-console/internal/store"
)

func notice(name string, version uint64) store.Notice {
	return store.Notice{Store: name, Kind: store.ChangeFetched, Version: version}
}

func TestEventQueue_GetEvents(t *testing.T) {
	eq := NewEventQueue(EventQueueConfig{})
	for i := range 5 {
		eq.Publish("admin", notice("companies", uint64(i+1)))
	}

	events, next, hasMore := eq.GetEvents(0, 3)
	require.Len(t, events, 3)
	assert.Equal(t, int64(0), events[0].Offset)
	assert.Equal(t, int64(3), next)
	assert.True(t, hasMore)
	assert.Equal(t, "admin", events[0].App)
	assert.Equal(t, "fetched", events[0].Kind)

	events, next, hasMore = eq.GetEvents(next, 3)
	assert.Len(t, events, 2)
	assert.Equal(t, int64(5), next)
	assert.False(t, hasMore)

	events, next, hasMore = eq.GetEvents(5, 3)
	assert.Empty(t, events)
	assert.Equal(t, int64(5), next)
	assert.False(t, hasMore)
}

func TestEventQueue_Rotation(t *testing.T) {
	eq := NewEventQueue(EventQueueConfig{MaxEvents: 8})
	for i := range 9 {
		eq.Publish("admin", notice("users", uint64(i)))
	}

	assert.Equal(t, 6, eq.Len())
	events, _, _ := eq.GetEvents(0, 100)
	require.NotEmpty(t, events)
	assert.Equal(t, int64(3), events[0].Offset, "rotated events are skipped")
	assert.Equal(t, int64(9), eq.CurrentOffset())
}

func TestEventQueue_WaitForEvents(t *testing.T) {
	eq := NewEventQueue(EventQueueConfig{})

	wait := eq.WaitForEvents(0, time.Minute)
	select {
	case <-wait:
		t.Fatal("woke before any event")
	default:
	}

	eq.Publish("reviewer", notice("reviews", 1))
	select {
	case <-wait:
	case <-time.After(time.Second):
		t.Fatal("waiter not notified")
	}

	// already available
	select {
	case <-eq.WaitForEvents(0, time.Minute):
	case <-time.After(time.Second):
		t.Fatal("expected immediate wake")
	}
}

func TestEventQueue_WaitTimeout(t *testing.T) {
	eq := NewEventQueue(EventQueueConfig{})
	select {
	case <-eq.WaitForEvents(0, 10*time.Millisecond):
	case <-time.After(time.Second):
		t.Fatal("timeout did not fire")
	}
}

func TestEventQueue_TimedOutWaitersAreDropped(t *testing.T) {
	eq := NewEventQueue(EventQueueConfig{})
	long := eq.WaitForEvents(0, time.Minute)
	short := eq.WaitForEvents(0, 10*time.Millisecond)

	select {
	case <-short:
	case <-time.After(time.Second):
		t.Fatal("timeout did not fire")
	}

	eq.waitersMutex.Lock()
	assert.Len(t, eq.waiters[0], 1, "only the pending waiter stays registered")
	eq.waitersMutex.Unlock()

	eq.Publish("admin", notice("companies", 1))
	select {
	case <-long:
	case <-time.After(time.Second):
		t.Fatal("pending waiter was not notified")
	}

	eq.waitersMutex.Lock()
	assert.Empty(t, eq.waiters)
	eq.waitersMutex.Unlock()
}

type watchable struct {
	fn func(store.Notice)
}

func (w *watchable) Name() string { return "fake" }
func (w *watchable) Watch(fn func(store.Notice)) func() {
	w.fn = fn
	return func() { w.fn = nil }
}
func (w *watchable) ClearError() {}
func (w *watchable) Reset()      {}

func TestEventQueue_Attach(t *testing.T) {
	eq := NewEventQueue(EventQueueConfig{})
	w := &watchable{}
	detach := eq.Attach("business", w)

	w.fn(store.Notice{Store: "fake", Kind: store.ChangeFailed, Error: "boom"})
	events, _, _ := eq.GetEvents(0, 10)
	require.Len(t, events, 1)
	assert.Equal(t, "business", events[0].App)
	assert.Equal(t, "boom", events[0].Error)

	detach()
	assert.Nil(t, w.fn)
}
