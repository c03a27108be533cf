package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

type item struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Rating int    `json:"rating"`
	Ref    int64  `json:"ref"`
}

func (i item) EntityID() int64 { return i.ID }

type itemInput struct {
	Name   string
	Status string
}

type itemUpdate struct {
	Status string
}

var errNotFound = errors.New("resource not found")

// fakeEndpoint is an in-memory server. A gate registered for a page blocks
// List for that page until released or until ctx is done.
type fakeEndpoint struct {
	mu        sync.Mutex
	items     []item
	nextID    int64
	listErr   error
	mutateErr error
	listCalls int
	gates     map[int]chan struct{}
	entered   chan int
	// listFn overrides the paging logic when set
	listFn func(q PageQuery) (Page[item], error)
}

func newFakeEndpoint(n int) *fakeEndpoint {
	f := &fakeEndpoint{gates: map[int]chan struct{}{}, entered: make(chan int, 16)}
	for i := 1; i <= n; i++ {
		f.items = append(f.items, item{ID: int64(i), Name: fmt.Sprintf("item %d", i), Status: "PENDING"})
	}
	f.nextID = int64(n)
	return f
}

func (f *fakeEndpoint) gate(page int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[page] = ch
	return ch
}

func (f *fakeEndpoint) List(ctx context.Context, q PageQuery) (Page[item], error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.gates[q.Page]
	listErr := f.listErr
	listFn := f.listFn
	items := slices.Clone(f.items)
	f.mu.Unlock()

	if gate != nil {
		f.entered <- q.Page
		select {
		case <-gate:
		case <-ctx.Done():
			return Page[item]{}, ctx.Err()
		}
	}
	if listErr != nil {
		return Page[item]{}, listErr
	}
	if listFn != nil {
		return listFn(q)
	}

	if q.Criteria.Status != "" {
		items = slices.DeleteFunc(items, func(i item) bool { return i.Status != q.Criteria.Status })
	}
	start := min(q.Page*q.Size, len(items))
	end := min(start+q.Size, len(items))
	return Page[item]{Items: items[start:end], TotalItems: len(items)}, nil
}

func (f *fakeEndpoint) Create(ctx context.Context, payload itemInput) (item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return item{}, f.mutateErr
	}
	f.nextID++
	created := item{ID: f.nextID, Name: payload.Name, Status: payload.Status}
	f.items = append(f.items, created)
	return created, nil
}

func (f *fakeEndpoint) Update(ctx context.Context, id int64, payload itemUpdate) (item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return item{}, f.mutateErr
	}
	i := slices.IndexFunc(f.items, func(it item) bool { return it.ID == id })
	if i < 0 {
		return item{}, errNotFound
	}
	f.items[i].Status = payload.Status
	return f.items[i], nil
}

func (f *fakeEndpoint) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return f.mutateErr
	}
	i := slices.IndexFunc(f.items, func(it item) bool { return it.ID == id })
	if i < 0 {
		return errNotFound
	}
	f.items = slices.Delete(f.items, i, i+1)
	return nil
}

func (f *fakeEndpoint) ListAll(ctx context.Context, criteria Criteria) ([]item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.items), nil
}

// itemOpEndpoint applies bulk operations one id at a time
type itemOpEndpoint struct {
	*fakeEndpoint
	fail map[int64]string
}

func (e *itemOpEndpoint) Operate(ctx context.Context, op BulkOp, id int64) (item, error) {
	if reason, ok := e.fail[id]; ok {
		return item{}, errors.New(reason)
	}
	status := map[BulkOp]string{BulkApprove: "APPROVED", BulkReject: "REJECTED", BulkDismiss: "DISMISSED"}[op]
	if op == BulkDismiss {
		return item{}, e.Delete(ctx, id)
	}
	return e.Update(ctx, id, itemUpdate{Status: status})
}

// bulkEndpoint has a server-side bulk call
type bulkEndpoint struct {
	*fakeEndpoint
	calls int
}

func (e *bulkEndpoint) Bulk(ctx context.Context, op BulkOp, ids []int64) (BulkResponse[item, int64], error) {
	e.calls++
	resp := BulkResponse[item, int64]{Failed: map[int64]string{}}
	for _, id := range ids {
		if op.Removes() {
			if err := e.Delete(ctx, id); err != nil {
				resp.Failed[id] = err.Error()
				continue
			}
			resp.Removed = append(resp.Removed, id)
			continue
		}
		updated, err := e.Update(ctx, id, itemUpdate{Status: "APPROVED"})
		if err != nil {
			resp.Failed[id] = err.Error()
			continue
		}
		resp.Updated = append(resp.Updated, updated)
	}
	return resp, nil
}

func newCollection(endpoint Endpoint[item, int64, itemInput, itemUpdate], opts ...func(*Options)) *Collection[item, int64, itemInput, itemUpdate] {
	o := Options{Name: "items"}
	for _, fn := range opts {
		fn(&o)
	}
	return NewCollection[item, int64, itemInput, itemUpdate](endpoint, o)
}

func ids(items []item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
