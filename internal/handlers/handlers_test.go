package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub-console/internal/apiclient"
	"reviewhub-console/internal/app"
	"reviewhub-console/internal/events"
	"reviewhub-console/internal/middleware"
	"reviewhub-console/internal/mockapi"
	"reviewhub-console/internal/models"
	"reviewhub-console/internal/store"
	viewsync "reviewhub-console/internal/sync"
	"reviewhub-console/internal/testutils"
)

const gatewayKey = "gateway-key"

type storeResponse[T any] struct {
	Success bool                     `json:"success"`
	State   T                        `json:"state"`
	Bulk    *store.BulkResult[int64] `json:"bulk"`
	Error   string                   `json:"error"`
}

type gateway struct {
	router  *mux.Router
	apps    *app.Apps
	backend *testutils.Backend
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	backend := testutils.NewBackend(t)
	apps := app.New(backend.Client,
		events.NewEventQueue(events.EventQueueConfig{}),
		viewsync.NewReconciler(nil, 0),
		app.Options{PageSize: 5})

	router := NewRouter(RouterConfig{
		Apps:            apps,
		Backend:         backend.Client,
		APIKeys:         []string{gatewayKey},
		DefaultPageSize: 10,
		RequestTimeout:  5 * time.Second,
		Version:         "test",
	})
	return &gateway{router: router, apps: apps, backend: backend}
}

func (g *gateway) do(t *testing.T, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req, err := testutils.CreateHTTPRequestWithAuth(method, url, gatewayKey, body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	return w
}

type failingBackend struct{}

func (failingBackend) HealthCheck(context.Context) (*apiclient.HealthResponse, error) {
	return nil, errors.New("connection refused")
}

func TestHealth(t *testing.T) {
	g := newGateway(t)
	req, _ := testutils.CreateHTTPRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)

	var health models.HealthResponse
	testutils.AssertJSONResponse(t, w, http.StatusOK, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Backend)
	assert.Equal(t, "test", health.Version)

	w = httptest.NewRecorder()
	NewHealthHandler(failingBackend{}, "test").Health(w, req)
	testutils.AssertJSONResponse(t, w, http.StatusServiceUnavailable, &health)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unreachable", health.Backend)
}

func TestAuthRequired(t *testing.T) {
	g := newGateway(t)
	for _, url := range []string{"/v1/admin/companies", "/v1/events", "/v1/sync/status"} {
		req, _ := testutils.CreateHTTPRequest(http.MethodGet, url, nil)
		w := httptest.NewRecorder()
		g.router.ServeHTTP(w, req)
		testutils.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
	}
}

func TestMetricsRouteNeedsScrapeExporter(t *testing.T) {
	g := newGateway(t)
	req, _ := testutils.CreateHTTPRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestList(t *testing.T) {
	g := newGateway(t)

	var resp storeResponse[store.State[models.Company]]
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/admin/companies?page=2&size=10", nil), http.StatusOK, &resp)
	assert.True(t, resp.Success)
	assert.Len(t, resp.State.Items, 3)
	assert.Equal(t, mockapi.FixtureCompanies, resp.State.TotalItems)

	resp = storeResponse[store.State[models.Company]]{}
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/admin/companies?status=pending", nil), http.StatusOK, &resp)
	assert.Equal(t, 5, resp.State.TotalItems)
	assert.Equal(t, models.StatusPending, resp.State.Criteria.Status)
}

func TestList_Errors(t *testing.T) {
	g := newGateway(t)

	tests := []struct {
		name   string
		url    string
		status int
		code   string
	}{
		{"bad page", "/v1/admin/companies?page=x", http.StatusBadRequest, "bad_request"},
		{"bad size", "/v1/admin/companies?size=x", http.StatusBadRequest, "bad_request"},
		{"unknown app", "/v1/nope/companies", http.StatusNotFound, "not_found"},
		{"unknown store", "/v1/business/plans", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutils.AssertErrorResponse(t, g.do(t, http.MethodGet, tt.url, nil), tt.status, tt.code)
		})
	}
}

func TestList_ReportsMostReportedFirst(t *testing.T) {
	g := newGateway(t)

	var resp storeResponse[store.State[models.Report]]
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/admin/reports", nil), http.StatusOK, &resp)
	var reviewIDs, reportIDs []int64
	for _, r := range resp.State.Items {
		reviewIDs = append(reviewIDs, r.ReviewID)
		reportIDs = append(reportIDs, r.ID)
	}
	assert.Equal(t, []int64{2, 2, 2, 5, 5, 9, 14}, reviewIDs)
	// equal counts keep server order
	assert.Equal(t, []int64{2, 4, 7, 1, 5, 3, 6}, reportIDs)

	// dismissing one of review 2's reports moves review 5 ahead
	testutils.AssertJSONResponse(t, g.do(t, http.MethodPost, "/v1/admin/reports/bulk", map[string]any{"operation": "dismiss", "ids": []int64{2, 4}}), http.StatusOK, &resp)
	reviewIDs = nil
	for _, r := range resp.State.Items {
		reviewIDs = append(reviewIDs, r.ReviewID)
	}
	assert.Equal(t, []int64{5, 5, 2, 9, 14}, reviewIDs)
}

func TestList_OutOfRangeKeepsPage(t *testing.T) {
	g := newGateway(t)
	g.do(t, http.MethodGet, "/v1/admin/companies?page=0&size=10", nil)

	var resp storeResponse[store.State[models.Company]]
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/admin/companies?page=9&size=10", nil), http.StatusUnprocessableEntity, &resp)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, resp.Error, resp.State.Error)
	assert.Len(t, resp.State.Items, 10)

	var state store.State[models.Company]
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/admin/companies/state", nil), http.StatusOK, &state)
	assert.NotEmpty(t, state.Error)

	resp = storeResponse[store.State[models.Company]]{}
	testutils.AssertJSONResponse(t, g.do(t, http.MethodDelete, "/v1/admin/companies/error", nil), http.StatusOK, &resp)
	assert.Empty(t, resp.State.Error)
	assert.Len(t, resp.State.Items, 10)
}

func TestCreateUpdateRemove(t *testing.T) {
	g := newGateway(t)
	g.do(t, http.MethodGet, "/v1/admin/plans", nil)

	var resp storeResponse[store.State[models.Plan]]
	testutils.AssertJSONResponse(t, g.do(t, http.MethodPost, "/v1/admin/plans",
		models.PlanInput{Name: "Team", Price: 99, Interval: "month"}), http.StatusOK, &resp)
	require.Len(t, resp.State.Items, 4)
	created := resp.State.Items[3]
	assert.Equal(t, "Team", created.Name)

	resp = storeResponse[store.State[models.Plan]]{}
	testutils.AssertJSONResponse(t, g.do(t, http.MethodPost, "/v1/admin/plans",
		models.PlanInput{Name: "Broken", Price: -1}), http.StatusUnprocessableEntity, &resp)
	assert.Equal(t, "Price cannot be negative", resp.Error)
	assert.Len(t, resp.State.Items, 4)

	resp = storeResponse[store.State[models.Plan]]{}
	testutils.AssertJSONResponse(t, g.do(t, http.MethodDelete, "/v1/admin/plans/1", nil), http.StatusOK, &resp)
	assert.Len(t, resp.State.Items, 3)

	testutils.AssertErrorResponse(t, g.do(t, http.MethodPut, "/v1/admin/plans/abc", map[string]any{}), http.StatusBadRequest, "bad_request")
	testutils.AssertErrorResponse(t, g.do(t, http.MethodPut, "/v1/admin/analytics/1", map[string]any{}), http.StatusMethodNotAllowed, "method_not_allowed")
	testutils.AssertErrorResponse(t, g.do(t, http.MethodPost, "/v1/reviewer/companies", map[string]any{"name": "x"}), http.StatusMethodNotAllowed, "method_not_allowed")
}

func TestBulk(t *testing.T) {
	g := newGateway(t)
	g.do(t, http.MethodGet, "/v1/admin/companies?status=pending", nil)

	var resp storeResponse[store.State[models.Company]]
	testutils.AssertJSONResponse(t, g.do(t, http.MethodPost, "/v1/admin/companies/bulk",
		json.RawMessage(`{"operation":"approve","ids":[19,"20",999]}`)), http.StatusUnprocessableEntity, &resp)
	require.NotNil(t, resp.Bulk)
	assert.ElementsMatch(t, []int64{19, 20}, resp.Bulk.Succeeded)
	assert.Contains(t, resp.Bulk.Failed, int64(999))

	w := g.do(t, http.MethodPost, "/v1/admin/companies/bulk", map[string]any{"operation": "archive", "ids": []bool{true}})
	var errResp models.ErrorResponse
	testutils.AssertJSONResponse(t, w, http.StatusBadRequest, &errResp)
	assert.Equal(t, "validation_error", errResp.Code)
	assert.Len(t, errResp.Details, 2)
}

func TestCompanySelection(t *testing.T) {
	g := newGateway(t)

	testutils.AssertErrorResponse(t, g.do(t, http.MethodPost, "/v1/business/company", map[string]int{"companyId": 0}), http.StatusBadRequest, "bad_request")
	testutils.AssertErrorResponse(t, g.do(t, http.MethodPost, "/v1/admin/company", map[string]int{"companyId": 1}), http.StatusNotFound, "not_found")

	w := g.do(t, http.MethodPost, "/v1/business/company", map[string]int{"companyId": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), g.apps.Business.CompanyID())

	var resp storeResponse[store.State[models.Review]]
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/business/reviews", nil), http.StatusOK, &resp)
	assert.Equal(t, mockapi.FixtureCompanyReviews, resp.State.TotalItems)
}

func TestFiltered(t *testing.T) {
	g := newGateway(t)
	require.Equal(t, http.StatusOK, g.do(t, http.MethodPost, "/v1/reviewer/company", map[string]int{"companyId": 1}).Code)

	var resp storeResponse[store.FilteredState[models.Review]]
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/reviewer/reviews/filtered?rating=5", nil), http.StatusOK, &resp)
	assert.Equal(t, mockapi.FixtureFiveStar, resp.State.FilteredCount)
	assert.Equal(t, mockapi.FixtureCompanyReviews, resp.State.TotalCount)
	assert.Len(t, resp.State.Items, 5)

	resp = storeResponse[store.FilteredState[models.Review]]{}
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/reviewer/reviews_all/filtered?keyword=coffee", nil), http.StatusOK, &resp)
	assert.Equal(t, 2, resp.State.FilteredCount)

	resp = storeResponse[store.FilteredState[models.Review]]{}
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/reviewer/reviews/filtered?rating=5&page=4", nil), http.StatusUnprocessableEntity, &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, "page 4 out of range (total pages 1)", resp.Error)

	testutils.AssertErrorResponse(t, g.do(t, http.MethodGet, "/v1/reviewer/reviews/filtered?rating=7", nil), http.StatusBadRequest, "bad_request")
	testutils.AssertErrorResponse(t, g.do(t, http.MethodGet, "/v1/admin/companies/filtered", nil), http.StatusNotFound, "not_found")
}

func TestResetApp(t *testing.T) {
	g := newGateway(t)
	g.do(t, http.MethodGet, "/v1/admin/users", nil)
	require.NotEmpty(t, g.apps.Admin.Users.Snapshot().Items)

	w := g.do(t, http.MethodPost, "/v1/admin/reset", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, g.apps.Admin.Users.Snapshot().Items)
}

func TestEvents(t *testing.T) {
	g := newGateway(t)
	g.do(t, http.MethodGet, "/v1/admin/plans", nil)

	var resp models.EventsResponse
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/events?offset=0", nil), http.StatusOK, &resp)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "plans", resp.Events[0].Store)
	assert.Equal(t, string(store.ChangeLoading), resp.Events[0].Kind)
	assert.Equal(t, int64(2), resp.NextOffset)

	testutils.AssertErrorResponse(t, g.do(t, http.MethodGet, "/v1/events?offset=-1", nil), http.StatusBadRequest, "events_error")
}

func TestEvents_LongPoll(t *testing.T) {
	g := newGateway(t)
	offset := g.apps.Events.CurrentOffset()

	go func() {
		time.Sleep(50 * time.Millisecond)
		g.apps.Admin.Features.FetchPage(context.Background(), 0, 10, store.Criteria{})
	}()

	start := time.Now()
	var resp models.EventsResponse
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/events?wait=5&offset=0", nil), http.StatusOK, &resp)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.NotEmpty(t, resp.Events)
	assert.Equal(t, offset, resp.Events[0].Offset)
}

func TestSync(t *testing.T) {
	g := newGateway(t)
	g.do(t, http.MethodGet, "/v1/admin/users", nil)

	var status forceSyncResponse
	testutils.AssertJSONResponse(t, g.do(t, http.MethodPost, "/v1/sync/force", nil), http.StatusOK, &status)
	assert.True(t, status.LastSyncSuccess)
	assert.Positive(t, status.ViewCount)

	g.backend.Mock.FailPath("/users", http.StatusInternalServerError, "database unavailable")
	status = forceSyncResponse{}
	testutils.AssertJSONResponse(t, g.do(t, http.MethodPost, "/v1/sync/force", nil), http.StatusBadGateway, &status)
	assert.False(t, status.LastSyncSuccess)
	assert.Contains(t, status.Error, "database unavailable")

	var current models.SyncStatus
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/sync/status", nil), http.StatusOK, &current)
	assert.Contains(t, current.ErrorMessage, "database unavailable")
}

func TestRateLimit(t *testing.T) {
	g := newGateway(t)
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, MutationsPerMinute: 1})
	t.Cleanup(limiter.Stop)
	g.router = NewRouter(RouterConfig{
		Apps:        g.apps,
		APIKeys:     []string{gatewayKey},
		RateLimiter: limiter,
	})

	assert.Equal(t, http.StatusOK, g.do(t, http.MethodPost, "/v1/admin/reset", nil).Code)
	testutils.AssertErrorResponse(t, g.do(t, http.MethodPost, "/v1/admin/reset", nil), http.StatusTooManyRequests, "rate_limit_exceeded")

	var stats map[string]any
	testutils.AssertJSONResponse(t, g.do(t, http.MethodGet, "/v1/rate-limit/status", nil), http.StatusOK, &stats)
	assert.Equal(t, true, stats["enabled"])
	assert.EqualValues(t, 1, stats["mutations_per_minute"])

	// the reset itself is a mutation and is over budget
	assert.Equal(t, http.StatusTooManyRequests, g.do(t, http.MethodPost, "/v1/rate-limit/reset", nil).Code)
	limiter.Reset()
	assert.Equal(t, http.StatusOK, g.do(t, http.MethodPost, "/v1/rate-limit/reset", nil).Code)

	w := httptest.NewRecorder()
	NewRateLimitStatusHandler(nil).GetRateLimitStatus(w, httptest.NewRequest(http.MethodGet, "/v1/rate-limit/status", nil))
	testutils.AssertErrorResponse(t, w, http.StatusServiceUnavailable, "rate_limiter_unavailable")
}
