// Package store mirrors server-owned collections into memory and mediates
// every read and write to them.
//
// A Collection owns one paginated slice of server state plus the request
// state (loading flag, error message) of the calls made against it. Every
// action converts failures into state and returns a success indicator, so
// nothing but booleans and snapshots cross the store boundary. Fetches are
// fenced by token and every action honors context cancellation: a result
// that arrives after its context was canceled, or after a newer fetch was
// issued, changes nothing.
package store

import (
	"context"
	"sort"
	"strings"
)

// Entity is a server-owned record identified by a unique id
type Entity[ID comparable] interface {
	EntityID() ID
}

// Criteria are the server-side query parameters of a paginated fetch
type Criteria struct {
	Status  string            `json:"status,omitempty"`
	Search  string            `json:"search,omitempty"`
	Sort    string            `json:"sort,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// Params flattens the criteria into query parameters, omitting empty ones
func (c Criteria) Params() map[string]string {
	params := make(map[string]string, len(c.Filters)+3)
	for key, value := range c.Filters {
		if value != "" {
			params[key] = value
		}
	}
	if c.Status != "" {
		params["status"] = c.Status
	}
	if c.Search != "" {
		params["search"] = c.Search
	}
	if c.Sort != "" {
		params["sort"] = c.Sort
	}
	return params
}

func (c Criteria) clone() Criteria {
	out := c
	if c.Filters != nil {
		out.Filters = make(map[string]string, len(c.Filters))
		for key, value := range c.Filters {
			out.Filters[key] = value
		}
	}
	return out
}

// String renders the criteria deterministically, used in logs
func (c Criteria) String() string {
	params := c.Params()
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, key := range keys {
		pairs[i] = key + "=" + params[key]
	}
	return strings.Join(pairs, "&")
}

// PageQuery is a zero-based page request
type PageQuery struct {
	Page     int
	Size     int
	Criteria Criteria
}

// Page is one page of a server collection. TotalPages is derived from
// TotalItems when HasTotalPages is false.
type Page[T any] struct {
	Items         []T
	TotalPages    int
	TotalItems    int
	HasTotalPages bool
}

// Endpoint is the adapter surface one collection needs
type Endpoint[T Entity[ID], ID comparable, C any, U any] interface {
	List(ctx context.Context, q PageQuery) (Page[T], error)
	Create(ctx context.Context, payload C) (T, error)
	Update(ctx context.Context, id ID, payload U) (T, error)
	Delete(ctx context.Context, id ID) error
}

// AllEndpoint is implemented by endpoints that can return the unpaginated set
type AllEndpoint[T any] interface {
	ListAll(ctx context.Context, criteria Criteria) ([]T, error)
}

// BulkOp names an operation applied to a set of selected ids
type BulkOp string

const (
	BulkApprove BulkOp = "approve"
	BulkReject  BulkOp = "reject"
	BulkDismiss BulkOp = "dismiss"
	BulkDelete  BulkOp = "delete"
)

// Removes reports whether the operation takes entities out of the collection
func (op BulkOp) Removes() bool {
	return op == BulkDelete || op == BulkDismiss
}

// BulkResponse is what a server-side bulk call reports
type BulkResponse[T any, ID comparable] struct {
	Updated []T
	Removed []ID
	Failed  map[ID]string
}

// BulkEndpoint is implemented by endpoints with a server-side bulk call
type BulkEndpoint[T any, ID comparable] interface {
	Bulk(ctx context.Context, op BulkOp, ids []ID) (BulkResponse[T, ID], error)
}

// ItemOpEndpoint applies one bulk operation to a single id. It is the
// per-id fallback when no server-side bulk call exists.
type ItemOpEndpoint[T any, ID comparable] interface {
	Operate(ctx context.Context, op BulkOp, id ID) (T, error)
}

// BulkResult reports the outcome of a bulk operation per id
type BulkResult[ID comparable] struct {
	Succeeded []ID          `json:"succeeded"`
	Failed    map[ID]string `json:"failed,omitempty"`
	Canceled  bool          `json:"canceled,omitempty"`
}

// OK is true when every id succeeded and the call was not canceled
func (r BulkResult[ID]) OK() bool {
	return !r.Canceled && len(r.Failed) == 0
}

// Notice is the type-erased form of a change, used by consumers that watch
// stores of different entity types together
type Notice struct {
	Store     string     `json:"store"`
	Kind      ChangeKind `json:"kind"`
	Version   uint64     `json:"version"`
	IsLoading bool       `json:"isLoading"`
	Error     string     `json:"error,omitempty"`
}

// Watchable is implemented by every store in this package
type Watchable interface {
	Name() string
	Watch(fn func(Notice)) func()
	ClearError()
	Reset()
}
