// Package events keeps the in-memory change feed of store transitions that
// the gateway serves with offset-based long polling.
package events

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"reviewhub-console/internal/models"
	"reviewhub-console/internal/store"
)

// DefaultMaxEvents is the retained feed length when Config leaves it unset
const DefaultMaxEvents = 1000

// EventQueue is an offset-addressed ring of events
type EventQueue struct {
	mu         sync.RWMutex
	events     []models.Event
	nextOffset int64
	maxEvents  int
	logger     *slog.Logger

	waitersMutex sync.Mutex
	waiters      map[int64][]chan struct{}
}

// EventQueueConfig holds configuration for the event queue
type EventQueueConfig struct {
	MaxEvents int
	Logger    *slog.Logger
}

// NewEventQueue creates an empty queue
func NewEventQueue(config EventQueueConfig) *EventQueue {
	if config.MaxEvents <= 0 {
		config.MaxEvents = DefaultMaxEvents
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &EventQueue{
		events:    make([]models.Event, 0),
		maxEvents: config.MaxEvents,
		logger:    config.Logger,
		waiters:   make(map[int64][]chan struct{}),
	}
}

// Publish appends the notice of app's store as the next event
func (eq *EventQueue) Publish(app string, n store.Notice) models.Event {
	eq.mu.Lock()
	event := models.Event{
		Offset:    eq.nextOffset,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		App:       app,
		Store:     n.Store,
		Kind:      string(n.Kind),
		Version:   n.Version,
		IsLoading: n.IsLoading,
		Error:     n.Error,
	}
	eq.nextOffset++
	eq.events = append(eq.events, event)

	if len(eq.events) > eq.maxEvents {
		// keep 75% of max events
		keepCount := eq.maxEvents * 3 / 4
		removed := len(eq.events) - keepCount
		eq.events = append([]models.Event(nil), eq.events[removed:]...)
		eq.logger.Debug("Event queue rotated", "removed_events", removed, "remaining_events", len(eq.events))
	}
	eq.mu.Unlock()

	eq.notifyWaiters(event.Offset)
	return event
}

// Attach publishes every transition of w under app until the returned
// function is called
func (eq *EventQueue) Attach(app string, w store.Watchable) func() {
	return w.Watch(func(n store.Notice) {
		eq.Publish(app, n)
	})
}

// GetEvents returns up to limit events at or after fromOffset, the offset to
// resume from and whether more events follow
func (eq *EventQueue) GetEvents(fromOffset int64, limit int) ([]models.Event, int64, bool) {
	eq.mu.RLock()
	defer eq.mu.RUnlock()

	startIdx := -1
	for i, event := range eq.events {
		if event.Offset >= fromOffset {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return []models.Event{}, max(fromOffset, eq.nextOffset), false
	}

	hasMore := false
	endIdx := startIdx + limit
	if endIdx >= len(eq.events) {
		endIdx = len(eq.events)
	} else {
		hasMore = true
	}

	result := make([]models.Event, endIdx-startIdx)
	copy(result, eq.events[startIdx:endIdx])
	return result, result[len(result)-1].Offset + 1, hasMore
}

// WaitForEvents returns a channel closed once an event at or after
// fromOffset exists, or after timeout
func (eq *EventQueue) WaitForEvents(fromOffset int64, timeout time.Duration) <-chan struct{} {
	eq.waitersMutex.Lock()
	defer eq.waitersMutex.Unlock()

	notifyChan := make(chan struct{})
	if eq.CurrentOffset() > fromOffset {
		close(notifyChan)
		return notifyChan
	}

	eq.waiters[fromOffset] = append(eq.waiters[fromOffset], notifyChan)
	time.AfterFunc(timeout, func() {
		eq.waitersMutex.Lock()
		defer eq.waitersMutex.Unlock()
		closeOnce(notifyChan)
		eq.dropWaiter(fromOffset, notifyChan)
	})
	return notifyChan
}

// CurrentOffset returns the offset the next event will get
func (eq *EventQueue) CurrentOffset() int64 {
	eq.mu.RLock()
	defer eq.mu.RUnlock()
	return eq.nextOffset
}

// Len returns the number of retained events
func (eq *EventQueue) Len() int {
	eq.mu.RLock()
	defer eq.mu.RUnlock()
	return len(eq.events)
}

func (eq *EventQueue) notifyWaiters(offset int64) {
	eq.waitersMutex.Lock()
	defer eq.waitersMutex.Unlock()

	for waitOffset, waiters := range eq.waiters {
		if waitOffset <= offset {
			for _, waiter := range waiters {
				closeOnce(waiter)
			}
			delete(eq.waiters, waitOffset)
		}
	}
}

// dropWaiter forgets a waiter that timed out; callers hold waitersMutex
func (eq *EventQueue) dropWaiter(offset int64, ch chan struct{}) {
	waiters := slices.DeleteFunc(eq.waiters[offset], func(w chan struct{}) bool { return w == ch })
	if len(waiters) == 0 {
		delete(eq.waiters, offset)
		return
	}
	eq.waiters[offset] = waiters
}

// closeOnce closes ch unless it is closed already; callers hold waitersMutex
func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}
