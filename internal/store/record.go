package store

import (
	"context"
	"log/slog"
	"sync"

	"reviewhub-console/internal/telemetry"
)

// RecordEndpoint is the adapter surface of a single-entity store
type RecordEndpoint[T any, U any] interface {
	Fetch(ctx context.Context) (T, error)
	Update(ctx context.Context, payload U) (T, error)
}

// RecordState is the state of a single-entity store
type RecordState[T any] struct {
	Data      T      `json:"data"`
	Loaded    bool   `json:"loaded"`
	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
	Version   uint64 `json:"version"`
}

// Record mirrors one server-owned object such as an analytics snapshot or
// the settings document. It follows the loading, error, fencing and
// cancellation rules of Collection.
type Record[T any, U any] struct {
	name        string
	endpoint    RecordEndpoint[T, U]
	instruments *telemetry.Instruments
	logger      *slog.Logger

	mu         sync.Mutex
	state      RecordState[T]
	inflight   int
	fetchToken uint64
	epoch      uint64

	listeners    map[int]func(ChangeKind, RecordState[T])
	nextListener int
	notifyMu     sync.Mutex
}

// NewRecord creates an empty record store
func NewRecord[T any, U any](endpoint RecordEndpoint[T, U], opts Options) *Record[T, U] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Record[T, U]{
		name:        opts.Name,
		endpoint:    endpoint,
		instruments: opts.Instruments,
		logger:      logger.With("store", opts.Name),
		listeners:   make(map[int]func(ChangeKind, RecordState[T])),
	}
}

func (r *Record[T, U]) Name() string {
	return r.name
}

func (r *Record[T, U]) Snapshot() RecordState[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers fn to receive the change kind and the new state
func (r *Record[T, U]) Subscribe(fn func(kind ChangeKind, state RecordState[T])) func() {
	r.mu.Lock()
	id := r.nextListener
	r.nextListener++
	r.listeners[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

// Fetch loads the object; only the latest fetch is applied
func (r *Record[T, U]) Fetch(ctx context.Context) bool {
	r.mu.Lock()
	r.inflight++
	r.fetchToken++
	token, epoch := r.fetchToken, r.epoch
	r.state.IsLoading = true
	r.state.Error = ""
	r.publishAndUnlock(ChangeLoading)

	data, err := r.endpoint.Fetch(ctx)

	return r.settle(ctx, epoch, func(s *RecordState[T]) ChangeKind {
		if token != r.fetchToken {
			r.instruments.RecordDiscarded(ctx, r.name, "superseded")
			return ChangeSettled
		}
		if err != nil {
			r.logger.Warn("Record fetch failed", "error", err)
			s.Error = err.Error()
			return ChangeFailed
		}
		s.Data = data
		s.Loaded = true
		s.Error = ""
		return ChangeFetched
	}) == ChangeFetched
}

// Update writes payload and keeps the server-confirmed object
func (r *Record[T, U]) Update(ctx context.Context, payload U) bool {
	r.mu.Lock()
	r.inflight++
	epoch := r.epoch
	r.state.IsLoading = true
	r.publishAndUnlock(ChangeLoading)

	data, err := r.endpoint.Update(ctx, payload)

	return r.settle(ctx, epoch, func(s *RecordState[T]) ChangeKind {
		if err != nil {
			r.logger.Warn("Record update failed", "error", err)
			s.Error = err.Error()
			return ChangeFailed
		}
		s.Data = data
		s.Loaded = true
		s.Error = ""
		return ChangeUpdated
	}) == ChangeUpdated
}

func (r *Record[T, U]) ClearError() {
	r.mu.Lock()
	if r.state.Error == "" {
		r.mu.Unlock()
		return
	}
	r.state.Error = ""
	r.publishAndUnlock(ChangeErrorCleared)
}

func (r *Record[T, U]) Reset() {
	r.mu.Lock()
	r.epoch++
	r.inflight = 0
	r.state = RecordState[T]{Version: r.state.Version}
	r.publishAndUnlock(ChangeReset)
}

func (r *Record[T, U]) settle(ctx context.Context, epoch uint64, fn func(s *RecordState[T]) ChangeKind) ChangeKind {
	r.mu.Lock()
	if epoch != r.epoch {
		r.mu.Unlock()
		r.instruments.RecordDiscarded(ctx, r.name, "reset")
		return ChangeSettled
	}

	r.inflight--
	wasLoading := r.state.IsLoading
	kind := ChangeSettled
	if ctx.Err() != nil {
		r.instruments.RecordDiscarded(ctx, r.name, "canceled")
	} else {
		kind = fn(&r.state)
	}
	r.state.IsLoading = r.inflight > 0

	if kind == ChangeSettled && wasLoading == r.state.IsLoading {
		r.mu.Unlock()
		return kind
	}
	r.publishAndUnlock(kind)
	return kind
}

func (r *Record[T, U]) publishAndUnlock(kind ChangeKind) {
	r.state.Version++
	state := r.state
	listeners := make([]func(ChangeKind, RecordState[T]), 0, len(r.listeners))
	for i := 0; i < r.nextListener; i++ {
		if fn, ok := r.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}

	r.notifyMu.Lock()
	r.mu.Unlock()
	defer r.notifyMu.Unlock()

	r.instruments.RecordTransition(context.Background(), r.name, string(kind))
	for _, fn := range listeners {
		fn(kind, state)
	}
}

// Watch subscribes fn to type-erased notices of every transition
func (r *Record[T, U]) Watch(fn func(Notice)) func() {
	return r.Subscribe(func(kind ChangeKind, state RecordState[T]) {
		fn(Notice{
			Store:     r.name,
			Kind:      kind,
			Version:   state.Version,
			IsLoading: state.IsLoading,
			Error:     state.Error,
		})
	})
}
