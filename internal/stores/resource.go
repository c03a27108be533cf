// Package stores configures the generic store engine for each entity of the
// platform: REST paths, envelope keys and the bulk operations the backend
// supports.
package stores

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"

	"github.com/google/uuid"

	"reviewhub-console/internal/apiclient"
	"reviewhub-console/internal/store"
)

// PathFunc resolves the collection path at request time. Company-scoped
// resources change path when the active company changes.
type PathFunc func() string

// StaticPath always resolves to path
func StaticPath(path string) PathFunc {
	return func() string { return path }
}

// Resource is the REST endpoint of one entity collection
type Resource[T store.Entity[ID], ID comparable, C any, U any] struct {
	client *apiclient.Client
	path   PathFunc
	keys   apiclient.PageKeys
}

// NewResource creates a resource whose list envelope is decoded with keys
func NewResource[T store.Entity[ID], ID comparable, C any, U any](client *apiclient.Client, path PathFunc, keys apiclient.PageKeys) *Resource[T, ID, C, U] {
	return &Resource[T, ID, C, U]{client: client, path: path, keys: keys}
}

// Path returns the current collection path
func (r *Resource[T, ID, C, U]) Path() string {
	return r.path()
}

func (r *Resource[T, ID, C, U]) List(ctx context.Context, q store.PageQuery) (store.Page[T], error) {
	page, err := apiclient.ListPage[T](ctx, r.client, r.path(), apiclient.PageQuery(q.Page, q.Size, criteriaValues(q.Criteria)), r.keys)
	if err != nil {
		return store.Page[T]{}, err
	}
	return store.Page[T]{
		Items:         page.Items,
		TotalPages:    page.TotalPages,
		TotalItems:    page.TotalItems,
		HasTotalPages: page.HasTotalPages,
	}, nil
}

// ListAll fetches the unpaginated set with all=true
func (r *Resource[T, ID, C, U]) ListAll(ctx context.Context, criteria store.Criteria) ([]T, error) {
	query := criteriaValues(criteria)
	query.Set("all", "true")
	page, err := apiclient.ListPage[T](ctx, r.client, r.path(), query, r.keys)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (r *Resource[T, ID, C, U]) Create(ctx context.Context, payload C) (T, error) {
	var created T
	err := r.client.Post(ctx, r.path(), payload, &created)
	return created, err
}

func (r *Resource[T, ID, C, U]) Update(ctx context.Context, id ID, payload U) (T, error) {
	var updated T
	err := r.client.Put(ctx, r.itemPath(id), payload, &updated)
	return updated, err
}

func (r *Resource[T, ID, C, U]) Delete(ctx context.Context, id ID) error {
	return r.client.Delete(ctx, r.itemPath(id), nil)
}

func (r *Resource[T, ID, C, U]) itemPath(id ID) string {
	return r.path() + "/" + url.PathEscape(formatID(id))
}

// BulkRequest is the body of POST {path}/bulk
type BulkRequest[ID comparable] struct {
	Operation      store.BulkOp `json:"operation"`
	IDs            []ID         `json:"ids"`
	IdempotencyKey string       `json:"idempotencyKey"`
}

// BulkResponse is the body the backend answers a bulk call with
type BulkResponse[T any, ID comparable] struct {
	Updated []T           `json:"updated"`
	Removed []ID          `json:"removed"`
	Failed  map[ID]string `json:"failed"`
}

// BulkResource is a Resource whose backend has a bulk endpoint for ops
type BulkResource[T store.Entity[ID], ID comparable, C any, U any] struct {
	*Resource[T, ID, C, U]
	ops []store.BulkOp
}

// WithBulk adds the server-side bulk call for ops
func WithBulk[T store.Entity[ID], ID comparable, C any, U any](r *Resource[T, ID, C, U], ops ...store.BulkOp) *BulkResource[T, ID, C, U] {
	return &BulkResource[T, ID, C, U]{Resource: r, ops: ops}
}

func (r *BulkResource[T, ID, C, U]) Bulk(ctx context.Context, op store.BulkOp, ids []ID) (store.BulkResponse[T, ID], error) {
	if !slices.Contains(r.ops, op) {
		return store.BulkResponse[T, ID]{}, fmt.Errorf("bulk %s is not supported for %s", op, r.path())
	}

	var resp BulkResponse[T, ID]
	req := BulkRequest[ID]{Operation: op, IDs: ids, IdempotencyKey: uuid.NewString()}
	if err := r.client.Post(ctx, r.path()+"/bulk", req, &resp); err != nil {
		return store.BulkResponse[T, ID]{}, err
	}
	return store.BulkResponse[T, ID]{Updated: resp.Updated, Removed: resp.Removed, Failed: resp.Failed}, nil
}

// OpResource is a Resource whose backend applies ops to one id at a time
// with POST {path}/{id}/{op}
type OpResource[T store.Entity[ID], ID comparable, C any, U any] struct {
	*Resource[T, ID, C, U]
	ops []store.BulkOp
}

// WithItemOps adds the per-id operation call for ops
func WithItemOps[T store.Entity[ID], ID comparable, C any, U any](r *Resource[T, ID, C, U], ops ...store.BulkOp) *OpResource[T, ID, C, U] {
	return &OpResource[T, ID, C, U]{Resource: r, ops: ops}
}

func (r *OpResource[T, ID, C, U]) Operate(ctx context.Context, op store.BulkOp, id ID) (T, error) {
	var out T
	if !slices.Contains(r.ops, op) {
		return out, fmt.Errorf("%s is not supported for %s", op, r.path())
	}
	err := r.client.Post(ctx, r.itemPath(id)+"/"+string(op), nil, &out)
	return out, err
}

// Document is the REST endpoint of a single-object resource
type Document[T any, U any] struct {
	client *apiclient.Client
	path   PathFunc
}

func NewDocument[T any, U any](client *apiclient.Client, path PathFunc) *Document[T, U] {
	return &Document[T, U]{client: client, path: path}
}

func (d *Document[T, U]) Fetch(ctx context.Context) (T, error) {
	var out T
	err := d.client.Get(ctx, d.path(), nil, &out)
	return out, err
}

func (d *Document[T, U]) Update(ctx context.Context, payload U) (T, error) {
	var out T
	err := d.client.Put(ctx, d.path(), payload, &out)
	return out, err
}

func criteriaValues(criteria store.Criteria) url.Values {
	query := url.Values{}
	for key, value := range criteria.Params() {
		query.Set(key, value)
	}
	return query
}

func formatID[ID comparable](id ID) string {
	switch v := any(id).(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
