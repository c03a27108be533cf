package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"reviewhub-console/internal/models"
	"reviewhub-console/internal/store"
	"reviewhub-console/internal/stores"
)

// ErrUnsupported is returned for actions a store does not offer
var ErrUnsupported = errors.New("operation not supported by this store")

// ErrBadInput wraps request bodies and ids that cannot be decoded
var ErrBadInput = errors.New("bad input")

// FetchQuery is a type-erased page request
type FetchQuery struct {
	Page     int
	Size     int
	Criteria store.Criteria
}

// Result is what every action reports: whether it succeeded and the
// snapshot of the store afterwards
type Result struct {
	OK    bool `json:"success"`
	State any  `json:"state"`
	// Bulk is set for bulk operations
	Bulk any `json:"bulk,omitempty"`
}

// Handle is the type-erased surface the gateway and the CLI drive a store
// through. Returned errors are input errors only; action failures are
// reported through Result.OK and the state's error.
type Handle interface {
	Name() string
	State() any
	Fetch(ctx context.Context, q FetchQuery) (Result, error)
	Create(ctx context.Context, body []byte) (Result, error)
	Update(ctx context.Context, id string, body []byte) (Result, error)
	Remove(ctx context.Context, id string) (Result, error)
	Bulk(ctx context.Context, op store.BulkOp, ids []string) (Result, error)
	ClearError() Result
	// Refresh re-fetches what the store shows; stores that were never
	// loaded are skipped
	Refresh(ctx context.Context) error
	// LastError is the error message recorded in the store's state
	LastError() string
	Watchable() store.Watchable
}

// mutator is the mutation surface shared by Collection and ReviewBoard
type mutator[ID comparable, C any, U any] interface {
	Create(ctx context.Context, payload C) bool
	Update(ctx context.Context, id ID, payload U) bool
	Remove(ctx context.Context, id ID) bool
	BulkOperate(ctx context.Context, ids []ID, op store.BulkOp) store.BulkResult[ID]
}

type collectionHandle[T store.Entity[ID], ID comparable, C any, U any] struct {
	coll     *store.Collection[T, ID, C, U]
	mutate   mutator[ID, C, U]
	parseID  func(string) (ID, error)
	readOnly bool
}

func newCollectionHandle[T store.Entity[ID], ID comparable, C any, U any](coll *store.Collection[T, ID, C, U], parseID func(string) (ID, error)) *collectionHandle[T, ID, C, U] {
	return &collectionHandle[T, ID, C, U]{coll: coll, mutate: coll, parseID: parseID}
}

func (h *collectionHandle[T, ID, C, U]) Name() string               { return h.coll.Name() }
func (h *collectionHandle[T, ID, C, U]) State() any                 { return h.coll.Snapshot() }
func (h *collectionHandle[T, ID, C, U]) Watchable() store.Watchable { return h.coll }
func (h *collectionHandle[T, ID, C, U]) LastError() string          { return h.coll.Snapshot().Error }

func (h *collectionHandle[T, ID, C, U]) result(ok bool) Result {
	return Result{OK: ok, State: h.coll.Snapshot()}
}

func (h *collectionHandle[T, ID, C, U]) Fetch(ctx context.Context, q FetchQuery) (Result, error) {
	return h.result(h.coll.FetchPage(ctx, q.Page, q.Size, q.Criteria)), nil
}

func (h *collectionHandle[T, ID, C, U]) Create(ctx context.Context, body []byte) (Result, error) {
	if h.readOnly {
		return Result{}, ErrUnsupported
	}
	var payload C
	if err := decodeBody(body, &payload); err != nil {
		return Result{}, err
	}
	return h.result(h.mutate.Create(ctx, payload)), nil
}

func (h *collectionHandle[T, ID, C, U]) Update(ctx context.Context, rawID string, body []byte) (Result, error) {
	if h.readOnly {
		return Result{}, ErrUnsupported
	}
	id, err := h.id(rawID)
	if err != nil {
		return Result{}, err
	}
	var payload U
	if err := decodeBody(body, &payload); err != nil {
		return Result{}, err
	}
	return h.result(h.mutate.Update(ctx, id, payload)), nil
}

func (h *collectionHandle[T, ID, C, U]) Remove(ctx context.Context, rawID string) (Result, error) {
	if h.readOnly {
		return Result{}, ErrUnsupported
	}
	id, err := h.id(rawID)
	if err != nil {
		return Result{}, err
	}
	return h.result(h.mutate.Remove(ctx, id)), nil
}

func (h *collectionHandle[T, ID, C, U]) Bulk(ctx context.Context, op store.BulkOp, rawIDs []string) (Result, error) {
	if h.readOnly {
		return Result{}, ErrUnsupported
	}
	ids := make([]ID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := h.id(raw)
		if err != nil {
			return Result{}, err
		}
		ids = append(ids, id)
	}
	bulk := h.mutate.BulkOperate(ctx, ids, op)
	out := h.result(bulk.OK())
	out.Bulk = bulk
	return out, nil
}

func (h *collectionHandle[T, ID, C, U]) ClearError() Result {
	h.coll.ClearError()
	return h.result(true)
}

func (h *collectionHandle[T, ID, C, U]) Refresh(ctx context.Context) error {
	return refreshError(h.coll.Refresh(ctx, 0), h.LastError())
}

func (h *collectionHandle[T, ID, C, U]) id(raw string) (ID, error) {
	id, err := h.parseID(raw)
	if err != nil {
		return id, fmt.Errorf("%w: invalid id %q", ErrBadInput, raw)
	}
	return id, nil
}

type recordHandle[T any, U any] struct {
	rec *store.Record[T, U]
	// writable is false for records without an update call, e.g. analytics
	writable bool
}

func (h *recordHandle[T, U]) Name() string               { return h.rec.Name() }
func (h *recordHandle[T, U]) State() any                 { return h.rec.Snapshot() }
func (h *recordHandle[T, U]) Watchable() store.Watchable { return h.rec }
func (h *recordHandle[T, U]) LastError() string          { return h.rec.Snapshot().Error }

func (h *recordHandle[T, U]) Fetch(ctx context.Context, _ FetchQuery) (Result, error) {
	return Result{OK: h.rec.Fetch(ctx), State: h.rec.Snapshot()}, nil
}

func (h *recordHandle[T, U]) Create(context.Context, []byte) (Result, error) {
	return Result{}, ErrUnsupported
}

// Update ignores id; a record has exactly one object
func (h *recordHandle[T, U]) Update(ctx context.Context, _ string, body []byte) (Result, error) {
	if !h.writable {
		return Result{}, ErrUnsupported
	}
	var payload U
	if err := decodeBody(body, &payload); err != nil {
		return Result{}, err
	}
	return Result{OK: h.rec.Update(ctx, payload), State: h.rec.Snapshot()}, nil
}

func (h *recordHandle[T, U]) Remove(context.Context, string) (Result, error) {
	return Result{}, ErrUnsupported
}

func (h *recordHandle[T, U]) Bulk(context.Context, store.BulkOp, []string) (Result, error) {
	return Result{}, ErrUnsupported
}

func (h *recordHandle[T, U]) Refresh(ctx context.Context) error {
	if !h.rec.Snapshot().Loaded {
		return nil
	}
	return refreshError(h.rec.Fetch(ctx), h.LastError())
}

func (h *recordHandle[T, U]) ClearError() Result {
	h.rec.ClearError()
	return Result{OK: true, State: h.rec.Snapshot()}
}

// boardHandle drives the paged half of a ReviewBoard; mutations go through
// the board so both views are invalidated
func boardHandle(board *stores.ReviewBoard) Handle {
	h := newCollectionHandle(board.Paged, parseInt64)
	h.mutate = board
	return h
}

func readOnly[T store.Entity[ID], ID comparable, C any, U any](h *collectionHandle[T, ID, C, U]) *collectionHandle[T, ID, C, U] {
	h.readOnly = true
	return h
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseString(s string) (string, error) {
	if s == "" {
		return "", errors.New("empty id")
	}
	return s, nil
}

// refreshError reports a failed refresh; a false result without a recorded
// error means the call was skipped or canceled
func refreshError(ok bool, msg string) error {
	if ok || msg == "" {
		return nil
	}
	return errors.New(msg)
}

func decodeBody(body []byte, out any) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: request body is required", ErrBadInput)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: invalid JSON in request body: %v", ErrBadInput, err)
	}
	return nil
}

// filteredHandle exposes the client-side filtered review view. It is read
// only; mutations go through the board's paged handle.
type filteredHandle struct {
	view *store.FilteredView[models.Review]
}

func (h *filteredHandle) Name() string               { return h.view.Name() }
func (h *filteredHandle) State() any                 { return h.view.Snapshot() }
func (h *filteredHandle) Watchable() store.Watchable { return h.view }
func (h *filteredHandle) LastError() string          { return h.view.Snapshot().Error }

// Fetch reloads the all-items set; page and size are ignored
func (h *filteredHandle) Fetch(ctx context.Context, q FetchQuery) (Result, error) {
	return Result{OK: h.view.FetchAll(ctx, q.Criteria), State: h.view.Snapshot()}, nil
}

// Filter applies criteria and moves to page, loading the all-items set
// first when it was never loaded
func (h *filteredHandle) Filter(ctx context.Context, criteria store.FilterCriteria, page int) Result {
	if len(h.view.All()) == 0 && !h.view.FetchAll(ctx, store.Criteria{}) {
		return Result{OK: false, State: h.view.Snapshot()}
	}
	h.view.SetCriteria(criteria)
	ok := h.view.SetPage(page)
	return Result{OK: ok, State: h.view.Snapshot()}
}

func (h *filteredHandle) Create(context.Context, []byte) (Result, error) {
	return Result{}, ErrUnsupported
}

func (h *filteredHandle) Update(context.Context, string, []byte) (Result, error) {
	return Result{}, ErrUnsupported
}

func (h *filteredHandle) Remove(context.Context, string) (Result, error) {
	return Result{}, ErrUnsupported
}

func (h *filteredHandle) Bulk(context.Context, store.BulkOp, []string) (Result, error) {
	return Result{}, ErrUnsupported
}

func (h *filteredHandle) Refresh(ctx context.Context) error {
	if len(h.view.All()) == 0 {
		return nil
	}
	return refreshError(h.view.FetchAll(ctx, store.Criteria{}), h.LastError())
}

func (h *filteredHandle) ClearError() Result {
	h.view.ClearError()
	return Result{OK: true, State: h.view.Snapshot()}
}

// Filterer is implemented by handles that filter on the client
type Filterer interface {
	Filter(ctx context.Context, criteria store.FilterCriteria, page int) Result
}

// FilteredHandle finds the filtered view for name in c: the store itself,
// or its all-items companion such as reviews_all for reviews
func FilteredHandle(c Container, name string) (Handle, Filterer, bool) {
	for _, candidate := range []string{name, name + "_all"} {
		if h, ok := c.Handle(candidate); ok {
			if f, ok := h.(Filterer); ok {
				return h, f, true
			}
		}
	}
	return nil, nil, false
}
