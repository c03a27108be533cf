package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"reviewhub-console/internal/app"
	"reviewhub-console/internal/models"
	"reviewhub-console/internal/store"
)

const maxBodyBytes = 1 << 20

// StoreHandler exposes every store of every application over HTTP
type StoreHandler struct {
	apps            *app.Apps
	defaultPageSize int
}

// NewStoreHandler creates a new store handler
func NewStoreHandler(apps *app.Apps, defaultPageSize int) *StoreHandler {
	if defaultPageSize <= 0 {
		defaultPageSize = 10
	}
	return &StoreHandler{apps: apps, defaultPageSize: defaultPageSize}
}

// response is the body of every store action
type response struct {
	app.Result
	Error string `json:"error,omitempty"`
}

// writeJSONResponse is a helper function to write JSON responses
func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// writeResult answers 200 for a successful action and 422 for one the
// store recorded as failed; both carry the store snapshot
func writeResult(w http.ResponseWriter, h app.Handle, res app.Result) {
	if res.OK {
		writeJSONResponse(w, http.StatusOK, response{Result: res})
		return
	}
	writeJSONResponse(w, http.StatusUnprocessableEntity, response{Result: res, Error: h.LastError()})
}

// writeActionError maps input errors of a store action to a status
func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrUnsupported):
		writeErrorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", err.Error(), nil)
	case errors.Is(err, app.ErrBadInput):
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
	default:
		writeErrorResponse(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}

func (h *StoreHandler) container(w http.ResponseWriter, r *http.Request) (app.Container, bool) {
	name := mux.Vars(r)["app"]
	c, ok := h.apps.Get(name)
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Application not found: %s", name), nil)
		return nil, false
	}
	return c, true
}

func (h *StoreHandler) resolve(w http.ResponseWriter, r *http.Request) (app.Handle, bool) {
	c, ok := h.container(w, r)
	if !ok {
		return nil, false
	}
	name := mux.Vars(r)["store"]
	handle, ok := c.Handle(name)
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Store not found: %s/%s", c.Name(), name), []models.ErrorDetail{
			{Field: "store", Issue: "one of " + strings.Join(c.Names(), ", ")},
		})
		return nil, false
	}
	return handle, true
}

// List handles GET /v1/{app}/{store} - fetch a page and return the snapshot
func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := queryInt(query.Get("page"), 0)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "page must be an integer", nil)
		return
	}
	size, err := queryInt(query.Get("size"), h.defaultPageSize)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "size must be an integer", nil)
		return
	}

	criteria := store.Criteria{
		Status: models.NormalizeStatus(query.Get("status")),
		Search: query.Get("search"),
		Sort:   query.Get("sort"),
	}

	res, err := handle.Fetch(r.Context(), app.FetchQuery{Page: page, Size: size, Criteria: criteria})
	if err != nil {
		writeActionError(w, err)
		return
	}

	slog.Debug("Store fetched",
		"store", handle.Name(),
		"page", page,
		"size", size,
		"success", res.OK,
		"remote_addr", r.RemoteAddr)

	writeResult(w, handle, res)
}

// State handles GET /v1/{app}/{store}/state - snapshot without fetching
func (h *StoreHandler) State(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, handle.State())
}

// Create handles POST /v1/{app}/{store}
func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	res, err := handle.Create(r.Context(), body)
	if err != nil {
		writeActionError(w, err)
		return
	}
	slog.Info("Entity create requested", "store", handle.Name(), "success", res.OK, "remote_addr", r.RemoteAddr)
	writeResult(w, handle, res)
}

// Update handles PUT /v1/{app}/{store}/{id}
func (h *StoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	res, err := handle.Update(r.Context(), id, body)
	if err != nil {
		writeActionError(w, err)
		return
	}
	slog.Info("Entity update requested", "store", handle.Name(), "id", id, "success", res.OK, "remote_addr", r.RemoteAddr)
	writeResult(w, handle, res)
}

// Remove handles DELETE /v1/{app}/{store}/{id}
func (h *StoreHandler) Remove(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	res, err := handle.Remove(r.Context(), id)
	if err != nil {
		writeActionError(w, err)
		return
	}
	slog.Info("Entity remove requested", "store", handle.Name(), "id", id, "success", res.OK, "remote_addr", r.RemoteAddr)
	writeResult(w, handle, res)
}

// bulkRequest accepts ids as JSON strings or numbers
type bulkRequest struct {
	Operation store.BulkOp      `json:"operation"`
	IDs       []json.RawMessage `json:"ids"`
}

// Bulk handles POST /v1/{app}/{store}/bulk
func (h *StoreHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req bulkRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON in request body", nil)
		return
	}

	var details []models.ErrorDetail
	switch req.Operation {
	case store.BulkApprove, store.BulkReject, store.BulkDismiss, store.BulkDelete:
	default:
		details = append(details, models.ErrorDetail{Field: "operation", Issue: "must be one of approve, reject, dismiss, delete"})
	}
	ids := make([]string, 0, len(req.IDs))
	for i, raw := range req.IDs {
		id, err := rawID(raw)
		if err != nil {
			details = append(details, models.ErrorDetail{Field: fmt.Sprintf("ids[%d]", i), Issue: "must be a string or a number"})
			continue
		}
		ids = append(ids, id)
	}
	if len(details) > 0 {
		writeErrorResponse(w, http.StatusBadRequest, "validation_error", "Bulk request validation failed", details)
		return
	}

	res, err := handle.Bulk(r.Context(), req.Operation, ids)
	if err != nil {
		writeActionError(w, err)
		return
	}
	slog.Info("Bulk operation requested",
		"store", handle.Name(),
		"operation", req.Operation,
		"total_requests", len(ids),
		"success", res.OK,
		"remote_addr", r.RemoteAddr)
	writeResult(w, handle, res)
}

// ClearError handles DELETE /v1/{app}/{store}/error
func (h *StoreHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	writeResult(w, handle, handle.ClearError())
}

// Filtered handles GET /v1/{app}/{store}/filtered?rating=&status=&keyword=&page=
func (h *StoreHandler) Filtered(w http.ResponseWriter, r *http.Request) {
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["store"]
	handle, filterer, ok := app.FilteredHandle(c, name)
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Store %s/%s has no client-side filters", c.Name(), name), nil)
		return
	}

	query := r.URL.Query()
	criteria := store.FilterCriteria{
		Status:  models.NormalizeStatus(query.Get("status")),
		Keyword: query.Get("keyword"),
	}
	for _, raw := range query["rating"] {
		for _, part := range strings.Split(raw, ",") {
			rating, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || rating < 1 || rating > 5 {
				writeErrorResponse(w, http.StatusBadRequest, "bad_request", "rating must be between 1 and 5", nil)
				return
			}
			criteria.Ratings = append(criteria.Ratings, rating)
		}
	}
	page, err := queryInt(query.Get("page"), 0)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "page must be an integer", nil)
		return
	}

	writeResult(w, handle, filterer.Filter(r.Context(), criteria, page))
}

// ResetApp handles POST /v1/{app}/reset - clear every store of the application
func (h *StoreHandler) ResetApp(w http.ResponseWriter, r *http.Request) {
	c, ok := h.container(w, r)
	if !ok {
		return
	}
	c.Reset()
	slog.Info("Application reset", "app", c.Name(), "remote_addr", r.RemoteAddr)
	writeJSONResponse(w, http.StatusOK, map[string]any{"app": c.Name(), "reset": true})
}

type companyRequest struct {
	CompanyID int64 `json:"companyId"`
}

// SelectCompany handles POST /v1/{app}/company - switch the active company
// of the business portal or narrow the reviewer's reviews
func (h *StoreHandler) SelectCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON in request body", nil)
		return
	}

	switch name := mux.Vars(r)["app"]; name {
	case app.NameBusiness:
		if err := h.apps.Business.SwitchCompany(req.CompanyID); err != nil {
			writeActionError(w, err)
			return
		}
	case app.NameReviewer:
		h.apps.Reviewer.SelectCompany(req.CompanyID)
	default:
		writeErrorResponse(w, http.StatusNotFound, "not_found", fmt.Sprintf("Application %s has no company selection", name), nil)
		return
	}

	slog.Info("Company selected", "app", mux.Vars(r)["app"], "company_id", req.CompanyID, "remote_addr", r.RemoteAddr)
	writeJSONResponse(w, http.StatusOK, req)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Failed to read request body", nil)
		return nil, false
	}
	return body, true
}

func queryInt(raw string, defaultValue int) (int, error) {
	if raw == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(raw)
}

func rawID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
