package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"reviewhub-console/internal/cache"
	"reviewhub-console/internal/store"
)

const maxPageSize = 100

// errValidation marks build/apply errors that map to 400
var errValidation = errors.New("validation failed")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errValidation, fmt.Sprintf(format, args...))
}

// envelope names the keys of one entity's list body. Entities use
// different spellings on the real backend and the mock mirrors that.
type envelope struct {
	items, page, totalPages, total string
}

var (
	itemsEnvelope  = envelope{"items", "currentPage", "totalPages", "totalItems"}
	springEnvelope = envelope{"content", "number", "totalPages", "totalElements"}
)

func (e envelope) encode(items any, page, totalPages, total int) map[string]any {
	return map[string]any{
		e.items:      items,
		e.page:       page,
		e.totalPages: totalPages,
		e.total:      total,
	}
}

// resource serves one entity collection
type resource[T store.Entity[ID], ID comparable, C any, U any] struct {
	name string
	// singular names one row in error messages
	singular string
	rows     *table[T, ID]
	envelope envelope
	parseID  func(string) (ID, error)
	build    func(id ID, in C) (T, error)
	apply    func(row T, in U) (T, error)
	status   func(T) string
	text     func(T) []string
	// company reports whether a row belongs to the company in the path
	company func(T) int64
	// ops apply a bulk operation to one row; remove=true deletes the row
	ops         map[store.BulkOp]func(T) (row T, remove bool)
	idempotency *cache.TTLCache[[]byte]
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

func (res *resource[T, ID, C, U]) routes(r chi.Router) {
	r.Get("/", res.list)
	r.Post("/", res.create)
	if len(res.ops) > 0 {
		r.Post("/bulk", res.bulk)
		r.Post("/{id}/{op}", res.operate)
	}
	r.Put("/{id}", res.update)
	r.Delete("/{id}", res.remove)
}

// keep builds the row filter from the path scope and the query
func (res *resource[T, ID, C, U]) keep(r *http.Request) (func(T) bool, error) {
	var companyID int64
	if raw := chi.URLParam(r, "companyID"); raw != "" && res.company != nil {
		id, err := parseInt64(raw)
		if err != nil || id <= 0 {
			return nil, invalid("invalid company id %q", raw)
		}
		companyID = id
	}
	status := r.URL.Query().Get("status")
	search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search")))

	return func(row T) bool {
		if companyID != 0 && res.company(row) != companyID {
			return false
		}
		if status != "" && res.status != nil && !strings.EqualFold(res.status(row), status) {
			return false
		}
		if search != "" && res.text != nil {
			for _, text := range res.text(row) {
				if strings.Contains(strings.ToLower(text), search) {
					return true
				}
			}
			return false
		}
		return true
	}, nil
}

// list handles GET /{resource}?page=&size=&status=&search=&all=
func (res *resource[T, ID, C, U]) list(w http.ResponseWriter, r *http.Request) {
	keep, err := res.keep(r)
	if err != nil {
		writeMutationError(w, err)
		return
	}
	rows := res.rows.snapshot(keep)

	if r.URL.Query().Get("all") == "true" {
		writeJSON(w, http.StatusOK, rows)
		return
	}

	page, err := queryInt(r, "page", 0)
	if err != nil || page < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "page must be a non-negative integer")
		return
	}
	size, err := queryInt(r, "size", 10)
	if err != nil || size <= 0 || size > maxPageSize {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("size must be between 1 and %d", maxPageSize))
		return
	}

	totalPages := (len(rows) + size - 1) / size
	start := min(page*size, len(rows))
	end := min(start+size, len(rows))

	writeJSON(w, http.StatusOK, res.envelope.encode(rows[start:end], page, totalPages, len(rows)))
}

func (res *resource[T, ID, C, U]) create(w http.ResponseWriter, r *http.Request) {
	var in C
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON in request body")
		return
	}

	row, err := res.rows.insert(func(id ID) (T, error) { return res.build(id, in) })
	if err != nil {
		writeMutationError(w, err)
		return
	}
	slog.Info("Mock entity created", "resource", res.name, "id", row.EntityID())
	writeJSON(w, http.StatusCreated, row)
}

func (res *resource[T, ID, C, U]) update(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathID(w, r)
	if !ok {
		return
	}
	var in U
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON in request body")
		return
	}

	row, found, err := res.rows.modify(id, func(row T) (T, error) { return res.apply(row, in) })
	switch {
	case !found:
		writeNotFound(w, res.singular, id)
	case err != nil:
		writeMutationError(w, err)
	default:
		writeJSON(w, http.StatusOK, row)
	}
}

func (res *resource[T, ID, C, U]) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathID(w, r)
	if !ok {
		return
	}
	if !res.rows.delete(id) {
		writeNotFound(w, res.singular, id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// operate handles POST /{resource}/{id}/{op}
func (res *resource[T, ID, C, U]) operate(w http.ResponseWriter, r *http.Request) {
	id, ok := res.pathID(w, r)
	if !ok {
		return
	}
	op := store.BulkOp(chi.URLParam(r, "op"))
	if _, supported := res.ops[op]; !supported {
		writeError(w, http.StatusBadRequest, "unsupported_operation", fmt.Sprintf("%s does not support %s", res.name, op))
		return
	}

	row, reason := res.applyOp(op, id)
	if reason != "" {
		writeNotFound(w, res.singular, id)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

type bulkRequest[ID comparable] struct {
	Operation      store.BulkOp `json:"operation"`
	IDs            []ID         `json:"ids"`
	IdempotencyKey string       `json:"idempotencyKey"`
}

type bulkResponse[T any, ID comparable] struct {
	Updated []T           `json:"updated"`
	Removed []ID          `json:"removed"`
	Failed  map[ID]string `json:"failed"`
}

// bulk handles POST /{resource}/bulk. A replayed idempotency key gets the
// stored response without applying the operation again.
func (res *resource[T, ID, C, U]) bulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest[ID]
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON in request body")
		return
	}
	if _, supported := res.ops[req.Operation]; !supported {
		writeError(w, http.StatusBadRequest, "unsupported_operation", fmt.Sprintf("%s does not support bulk %s", res.name, req.Operation))
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "No ids specified")
		return
	}

	cacheKey := res.name + ":" + req.IdempotencyKey
	if req.IdempotencyKey != "" && res.idempotency != nil {
		if cached, ok := res.idempotency.Get(cacheKey); ok {
			slog.Info("Replaying bulk response", "resource", res.name, "idempotency_key", req.IdempotencyKey)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	resp := bulkResponse[T, ID]{Updated: []T{}, Removed: []ID{}, Failed: map[ID]string{}}
	for _, id := range req.IDs {
		row, reason := res.applyOp(req.Operation, id)
		switch {
		case reason != "":
			resp.Failed[id] = reason
		case req.Operation.Removes():
			resp.Removed = append(resp.Removed, id)
		default:
			resp.Updated = append(resp.Updated, row)
		}
	}

	slog.Info("Bulk request completed",
		"resource", res.name,
		"operation", req.Operation,
		"total_requests", len(req.IDs),
		"failed_updates", len(resp.Failed))

	body, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to encode bulk response")
		return
	}
	if req.IdempotencyKey != "" && res.idempotency != nil {
		res.idempotency.Set(cacheKey, body)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// applyOp runs op on one row and returns a failure reason when it cannot
func (res *resource[T, ID, C, U]) applyOp(op store.BulkOp, id ID) (T, string) {
	var removed bool
	row, found, _ := res.rows.modify(id, func(row T) (T, error) {
		var next T
		next, removed = res.ops[op](row)
		return next, nil
	})
	if !found {
		return row, fmt.Sprintf("%s %v not found", res.singular, id)
	}
	if removed {
		res.rows.delete(id)
	}
	return row, ""
}

func (res *resource[T, ID, C, U]) pathID(w http.ResponseWriter, r *http.Request) (ID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := res.parseID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid id %q", raw))
		return id, false
	}
	return id, true
}
