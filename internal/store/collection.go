package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"reviewhub-console/internal/telemetry"
)

// Placement decides how a created entity becomes visible
type Placement int

const (
	// InsertFront prepends the created entity to the current page
	InsertFront Placement = iota
	// InsertBack appends the created entity to the current page
	InsertBack
	// Refetch reloads the current page after a create
	Refetch
)

// DefaultBulkConcurrency bounds per-id fan-out when Options leaves it unset
const DefaultBulkConcurrency = 4

// Options configures a Collection
type Options struct {
	Name            string
	Placement       Placement
	BulkConcurrency int
	Instruments     *telemetry.Instruments
	Logger          *slog.Logger
}

// Collection is the generic paginated entity store
type Collection[T Entity[ID], ID comparable, C any, U any] struct {
	name            string
	endpoint        Endpoint[T, ID, C, U]
	placement       Placement
	bulkConcurrency int
	instruments     *telemetry.Instruments
	logger          *slog.Logger
	// order rearranges the items of a page, e.g. most-reported first
	order func([]T) []T

	mu       sync.Mutex
	state    State[T]
	inflight int
	// fetchToken is the token of the latest issued fetch
	fetchToken uint64
	// epoch is bumped by Reset so results of older requests are dropped
	epoch uint64

	listeners    map[int]func(Change[T])
	nextListener int
	// notifyMu is taken before mu is released so deliveries keep transition order
	notifyMu sync.Mutex
}

// NewCollection creates an empty collection over endpoint
func NewCollection[T Entity[ID], ID comparable, C any, U any](endpoint Endpoint[T, ID, C, U], opts Options) *Collection[T, ID, C, U] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := opts.BulkConcurrency
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}

	return &Collection[T, ID, C, U]{
		name:            opts.Name,
		endpoint:        endpoint,
		placement:       opts.Placement,
		bulkConcurrency: concurrency,
		instruments:     opts.Instruments,
		logger:          logger.With("store", opts.Name),
		state:           State[T]{Items: []T{}},
		listeners:       make(map[int]func(Change[T])),
	}
}

// SetOrder makes every page pass through order before it becomes visible
func (c *Collection[T, ID, C, U]) SetOrder(order func([]T) []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = order
	c.arrange(&c.state)
}

// arrange applies the page order; callers hold mu
func (c *Collection[T, ID, C, U]) arrange(s *State[T]) {
	if c.order != nil && len(s.Items) > 1 {
		s.Items = c.order(s.Items)
	}
}

// Name returns the store name used in logs, metrics and change events
func (c *Collection[T, ID, C, U]) Name() string {
	return c.name
}

// Snapshot returns a consistent copy of the current state
func (c *Collection[T, ID, C, U]) Snapshot() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Get looks up an entity by id in the current items
func (c *Collection[T, ID, C, U]) Get(id ID) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := indexOf(c.state.Items, id); i >= 0 {
		return c.state.Items[i], true
	}
	var zero T
	return zero, false
}

// Subscribe registers fn to run after every state transition and returns a
// func that removes it. fn runs synchronously in transition order and must
// not call back into the collection's actions.
func (c *Collection[T, ID, C, U]) Subscribe(fn func(Change[T])) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// FetchPage loads one zero-based page. The result is applied only when this
// call is still the latest fetch and ctx was not canceled.
func (c *Collection[T, ID, C, U]) FetchPage(ctx context.Context, page, size int, criteria Criteria) bool {
	if page < 0 || size <= 0 {
		c.fail(fmt.Sprintf("invalid page request: page %d, size %d", page, size))
		return false
	}

	epoch, token := c.begin(true, true)
	c.logger.Debug("Fetching page", "page", page, "size", size, "criteria", criteria.String())

	result, err := c.endpoint.List(ctx, PageQuery{Page: page, Size: size, Criteria: criteria.clone()})

	kind := c.settle(ctx, epoch, func(s *State[T]) ChangeKind {
		if token != c.fetchToken {
			c.instruments.RecordDiscarded(ctx, c.name, "superseded")
			c.logger.Debug("Discarding superseded page", "page", page, "token", token, "latest", c.fetchToken)
			return ChangeSettled
		}
		if err != nil {
			c.logger.Warn("Page fetch failed", "page", page, "size", size, "error", err)
			s.Error = err.Error()
			return ChangeFailed
		}

		totalPages := result.TotalPages
		if !result.HasTotalPages {
			totalPages = pageCount(result.TotalItems, size)
		}
		if page >= max(totalPages, 1) {
			s.Error = fmt.Sprintf("page %d out of range (total pages %d)", page, totalPages)
			return ChangeFailed
		}

		items := uniqueByID[T, ID](result.Items)
		if len(items) > size {
			items = items[:size]
		}
		s.Items = items
		c.arrange(s)
		s.CurrentPage = page
		s.TotalPages = totalPages
		s.TotalItems = max(result.TotalItems, len(items))
		s.PageSize = size
		s.Criteria = criteria.clone()
		s.Error = ""
		return ChangeFetched
	})
	return kind == ChangeFetched
}

// Refresh re-fetches the current page with the current criteria. A store
// that was never fetched uses defaultSize, or stays untouched when that is 0.
func (c *Collection[T, ID, C, U]) Refresh(ctx context.Context, defaultSize int) bool {
	c.mu.Lock()
	page, size, criteria := c.state.CurrentPage, c.state.PageSize, c.state.Criteria.clone()
	c.mu.Unlock()

	if size <= 0 {
		if defaultSize <= 0 {
			return false
		}
		size = defaultSize
	}
	return c.FetchPage(ctx, page, size, criteria)
}

// Create sends payload to the server and makes the created entity visible
func (c *Collection[T, ID, C, U]) Create(ctx context.Context, payload C) bool {
	epoch, _ := c.begin(false, false)

	created, err := c.endpoint.Create(ctx, payload)

	kind := c.settle(ctx, epoch, func(s *State[T]) ChangeKind {
		if err != nil {
			c.logger.Warn("Create failed", "error", err)
			s.Error = err.Error()
			return ChangeFailed
		}

		id := created.EntityID()
		if items, replaced := replaceByID(s.Items, id, created); replaced {
			s.Items = items
		} else {
			s.TotalItems++
			switch c.placement {
			case InsertBack:
				s.Items = append(s.Items, created)
			case Refetch:
				// the refetch below brings the entity in at its server position
			default:
				s.Items = append([]T{created}, s.Items...)
				if s.PageSize > 0 && len(s.Items) > s.PageSize {
					s.Items = s.Items[:s.PageSize]
				}
			}
			s.recount()
		}
		c.arrange(s)
		s.Error = ""
		c.logger.Info("Entity created", "id", id)
		return ChangeCreated
	})

	if kind != ChangeCreated {
		return false
	}
	if c.placement == Refetch {
		c.Refresh(ctx, 0)
	}
	return true
}

// Update replaces the entity with the server-confirmed version. Other
// entities are untouched. A server success for an id missing from the
// current page counts as success without changing items.
func (c *Collection[T, ID, C, U]) Update(ctx context.Context, id ID, payload U) bool {
	epoch, _ := c.begin(false, false)

	updated, err := c.endpoint.Update(ctx, id, payload)

	kind := c.settle(ctx, epoch, func(s *State[T]) ChangeKind {
		if err != nil {
			c.logger.Warn("Update failed", "id", id, "error", err)
			s.Error = err.Error()
			return ChangeFailed
		}
		if items, ok := replaceByID(s.Items, id, updated); ok {
			s.Items = items
		}
		s.Error = ""
		return ChangeUpdated
	})
	return kind == ChangeUpdated
}

// Remove deletes the entity on the server and drops it from items. Removing
// an id not present locally leaves items unchanged; the server-confirmed
// delete still lowers TotalItems.
func (c *Collection[T, ID, C, U]) Remove(ctx context.Context, id ID) bool {
	epoch, _ := c.begin(false, false)

	err := c.endpoint.Delete(ctx, id)

	refetch := false
	kind := c.settle(ctx, epoch, func(s *State[T]) ChangeKind {
		if err != nil {
			c.logger.Warn("Remove failed", "id", id, "error", err)
			s.Error = err.Error()
			return ChangeFailed
		}
		refetch = dropIDs(s, map[ID]struct{}{id: {}})
		c.arrange(s)
		s.Error = ""
		return ChangeRemoved
	})

	if kind != ChangeRemoved {
		return false
	}
	if refetch {
		c.Refresh(ctx, 0)
	}
	return true
}

// ClearError clears the error message without touching items or loading
func (c *Collection[T, ID, C, U]) ClearError() {
	c.mu.Lock()
	if c.state.Error == "" {
		c.mu.Unlock()
		return
	}
	c.state.Error = ""
	c.publishAndUnlock(ChangeErrorCleared)
}

// Reset empties the collection and drops the results of requests in flight
func (c *Collection[T, ID, C, U]) Reset() {
	c.mu.Lock()
	c.epoch++
	c.inflight = 0
	c.state = State[T]{Items: []T{}, Version: c.state.Version}
	c.logger.Debug("Store reset", "epoch", c.epoch)
	c.publishAndUnlock(ChangeReset)
}

// dropIDs removes ids from the page and lowers TotalItems by the number of
// ids the server confirmed deleted, whether or not they were on this page.
// It reports whether the page emptied while items remain on the server, in
// which case the page index is clamped and a refetch is due.
func dropIDs[T Entity[ID], ID comparable](s *State[T], ids map[ID]struct{}) bool {
	items, removed := removeIDs(s.Items, ids)
	s.Items = items
	s.TotalItems = max(s.TotalItems-len(ids), len(s.Items))
	s.recount()
	return removed > 0 && len(s.Items) == 0 && s.TotalItems > 0
}

// fail records a failure that never reached the network
func (c *Collection[T, ID, C, U]) fail(message string) {
	c.mu.Lock()
	c.state.Error = message
	c.publishAndUnlock(ChangeFailed)
}

// begin marks one request in flight. It returns the epoch the request
// belongs to and, for fetches, the freshly issued fetch token.
func (c *Collection[T, ID, C, U]) begin(clearError, fetch bool) (uint64, uint64) {
	c.mu.Lock()
	c.inflight++
	c.state.IsLoading = true
	if clearError {
		c.state.Error = ""
	}
	var token uint64
	if fetch {
		c.fetchToken++
		token = c.fetchToken
	}
	epoch := c.epoch
	c.publishAndUnlock(ChangeLoading)
	return epoch, token
}

// settle releases one in-flight request and applies fn to the state when
// the request still belongs to the current epoch and ctx is live. fn returns
// the kind of transition it made; ChangeSettled means nothing was applied.
func (c *Collection[T, ID, C, U]) settle(ctx context.Context, epoch uint64, fn func(s *State[T]) ChangeKind) ChangeKind {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.instruments.RecordDiscarded(ctx, c.name, "reset")
		return ChangeSettled
	}

	c.inflight--
	wasLoading := c.state.IsLoading

	kind := ChangeSettled
	if ctx.Err() != nil {
		c.instruments.RecordDiscarded(ctx, c.name, "canceled")
	} else {
		kind = fn(&c.state)
	}
	c.state.IsLoading = c.inflight > 0

	if kind == ChangeSettled && wasLoading == c.state.IsLoading {
		c.mu.Unlock()
		return kind
	}
	c.publishAndUnlock(kind)
	return kind
}

// publishAndUnlock bumps the version, releases mu and delivers the change.
// mu must be held.
func (c *Collection[T, ID, C, U]) publishAndUnlock(kind ChangeKind) {
	c.state.Version++
	change := Change[T]{Store: c.name, Kind: kind, State: c.state.clone()}
	listeners := make([]func(Change[T]), 0, len(c.listeners))
	for i := 0; i < c.nextListener; i++ {
		if fn, ok := c.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	c.instruments.RecordTransition(context.Background(), c.name, string(kind))
	for _, fn := range listeners {
		fn(change)
	}
}

// Watch subscribes fn to type-erased notices of every transition
func (c *Collection[T, ID, C, U]) Watch(fn func(Notice)) func() {
	return c.Subscribe(func(change Change[T]) {
		fn(Notice{
			Store:     change.Store,
			Kind:      change.Kind,
			Version:   change.State.Version,
			IsLoading: change.State.IsLoading,
			Error:     change.State.Error,
		})
	})
}
