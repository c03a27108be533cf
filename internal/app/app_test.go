package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reviewhub-console/internal/events"
	"reviewhub-console/internal/mockapi"
	"reviewhub-console/internal/models"
	"reviewhub-console/internal/store"
	"reviewhub-console/internal/stores"
	viewsync "reviewhub-console/internal/sync"
	"reviewhub-console/internal/testutils"
)

func newApps(t *testing.T) (*Apps, *testutils.Backend) {
	t.Helper()
	backend := testutils.NewBackend(t)
	apps := New(backend.Client,
		events.NewEventQueue(events.EventQueueConfig{}),
		viewsync.NewReconciler(nil, 0),
		Options{PageSize: 5})
	return apps, backend
}

func TestApps_Get(t *testing.T) {
	apps, _ := newApps(t)
	for _, name := range []string{NameAdmin, NameBusiness, NameReviewer} {
		c, ok := apps.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}
	_, ok := apps.Get("nope")
	assert.False(t, ok)

	assert.Equal(t, []string{
		stores.NameCompanies, stores.NamePlans, stores.NameFeatures, stores.NameUsers,
		stores.NameSubscriptions, stores.NameTickets, stores.NameReports,
		stores.NameSettings, stores.NameAnalytics,
	}, apps.Admin.Names())
}

func TestAdmin_FetchPublishesEvents(t *testing.T) {
	apps, _ := newApps(t)
	h, ok := apps.Admin.Handle(stores.NameCompanies)
	require.True(t, ok)

	res, err := h.Fetch(context.Background(), FetchQuery{Page: 2, Size: 10})
	require.NoError(t, err)
	assert.True(t, res.OK)
	state := res.State.(store.State[models.Company])
	assert.Len(t, state.Items, 3)

	evs, _, _ := apps.Events.GetEvents(0, 100)
	require.Len(t, evs, 2)
	assert.Equal(t, NameAdmin, evs[0].App)
	assert.Equal(t, stores.NameCompanies, evs[0].Store)
	assert.Equal(t, string(store.ChangeLoading), evs[0].Kind)
	assert.Equal(t, string(store.ChangeFetched), evs[1].Kind)
}

func TestAdmin_HandleInputErrors(t *testing.T) {
	apps, _ := newApps(t)
	ctx := context.Background()

	companies, _ := apps.Admin.Handle(stores.NameCompanies)
	_, err := companies.Update(ctx, "abc", []byte(`{}`))
	assert.ErrorIs(t, err, ErrBadInput)
	_, err = companies.Create(ctx, []byte(`{`))
	assert.ErrorIs(t, err, ErrBadInput)
	_, err = companies.Create(ctx, nil)
	assert.ErrorIs(t, err, ErrBadInput)

	analytics, _ := apps.Admin.Handle(stores.NameAnalytics)
	_, err = analytics.Update(ctx, "", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnsupported)
	_, err = analytics.Remove(ctx, "1")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestAdmin_CreateAndBulk(t *testing.T) {
	apps, _ := newApps(t)
	ctx := context.Background()
	companies, _ := apps.Admin.Handle(stores.NameCompanies)

	_, err := companies.Fetch(ctx, FetchQuery{Page: 0, Size: 10, Criteria: store.Criteria{Status: models.StatusPending}})
	require.NoError(t, err)

	res, err := companies.Create(ctx, []byte(`{"name":"Acme","category":"Retail"}`))
	require.NoError(t, err)
	assert.True(t, res.OK)
	state := res.State.(store.State[models.Company])
	assert.Equal(t, "Acme", state.Items[0].Name)

	res, err = companies.Bulk(ctx, store.BulkApprove, []string{"19", "20"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	bulk := res.Bulk.(store.BulkResult[int64])
	assert.ElementsMatch(t, []int64{19, 20}, bulk.Succeeded)
}

func TestBusiness_SwitchCompany(t *testing.T) {
	apps, _ := newApps(t)
	ctx := context.Background()
	biz := apps.Business
	reviews, _ := biz.Handle(stores.NameReviews)

	res, err := reviews.Fetch(ctx, FetchQuery{Page: 0, Size: 5})
	require.NoError(t, err)
	assert.False(t, res.OK, "no company selected")
	assert.NotEmpty(t, reviews.LastError())

	require.NoError(t, biz.SwitchCompany(1))
	res, _ = reviews.Fetch(ctx, FetchQuery{Page: 0, Size: 5})
	require.True(t, res.OK)
	assert.Equal(t, mockapi.FixtureCompanyReviews, res.State.(store.State[models.Review]).TotalItems)

	invitations, _ := biz.Handle(stores.NameInvitations)
	res, _ = invitations.Fetch(ctx, FetchQuery{Page: 0, Size: 10})
	require.True(t, res.OK)
	assert.Equal(t, 4, res.State.(store.State[models.Invitation]).TotalItems)

	require.NoError(t, biz.SwitchCompany(2))
	assert.Empty(t, biz.Reviews.Snapshot().Items, "previous company's data is cleared")
	assert.Empty(t, biz.Invitations.Snapshot().Items)
	assert.Equal(t, int64(2), biz.CompanyID())

	res, _ = reviews.Fetch(ctx, FetchQuery{Page: 0, Size: 5})
	require.True(t, res.OK)
	for _, r := range res.State.(store.State[models.Review]).Items {
		assert.Equal(t, int64(2), r.CompanyID)
	}

	assert.ErrorIs(t, biz.SwitchCompany(0), ErrBadInput)
}

func TestReviewer_BoardMutationSyncsBothViews(t *testing.T) {
	apps, _ := newApps(t)
	ctx := context.Background()
	reviewer := apps.Reviewer
	reviewer.SelectCompany(1)

	all, _ := reviewer.Handle(stores.NameReviewsAll)
	filterer := all.(Filterer)
	res := filterer.Filter(ctx, store.FilterCriteria{Ratings: []int{5}}, 0)
	require.True(t, res.OK)
	filtered := res.State.(store.FilteredState[models.Review])
	assert.Equal(t, mockapi.FixtureFiveStar, filtered.FilteredCount)
	assert.Len(t, filtered.Items, 5)

	paged, _ := reviewer.Handle(stores.NameReviews)
	_, err := paged.Fetch(ctx, FetchQuery{Page: 0, Size: 5})
	require.NoError(t, err)

	// review 1 is five-star; rating it 1 must drop it from the filtered view
	res, err = paged.Update(ctx, "1", []byte(`{"rating":1}`))
	require.NoError(t, err)
	require.True(t, res.OK)

	filtered = reviewer.Board.All.Snapshot()
	assert.Equal(t, mockapi.FixtureFiveStar-1, filtered.FilteredCount)
	status := apps.Reconciler.GetSyncStatus()
	assert.True(t, status.LastSyncSuccess)
	assert.False(t, status.LastSyncTime.IsZero())
}

func TestReviewer_CompaniesReadOnly(t *testing.T) {
	apps, _ := newApps(t)
	companies, _ := apps.Reviewer.Handle(stores.NameCompanies)
	_, err := companies.Create(context.Background(), []byte(`{"name":"x"}`))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestApps_ResetAndForceSync(t *testing.T) {
	apps, backend := newApps(t)
	ctx := context.Background()

	users, _ := apps.Admin.Handle(stores.NameUsers)
	res, _ := users.Fetch(ctx, FetchQuery{Page: 0, Size: 10})
	require.True(t, res.OK)

	require.NoError(t, apps.Reconciler.ForceSync(ctx))

	backend.Mock.FailPath("/users", 500, "database unavailable")
	err := apps.Reconciler.ForceSync(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	backend.Mock.ClearFailures()

	apps.Admin.Logout()
	assert.Empty(t, apps.Admin.Users.Snapshot().Items)
	assert.Empty(t, apps.Admin.Users.Snapshot().Error)
}

func TestFilteredHandle(t *testing.T) {
	apps, _ := newApps(t)

	h, f, ok := FilteredHandle(apps.Reviewer, stores.NameReviews)
	require.True(t, ok)
	assert.NotNil(t, f)
	assert.Equal(t, stores.NameReviewsAll, h.Name())

	_, _, ok = FilteredHandle(apps.Reviewer, stores.NameReviewsAll)
	assert.True(t, ok)
	_, _, ok = FilteredHandle(apps.Admin, stores.NameCompanies)
	assert.False(t, ok)
}

func TestApps_PeriodicReconciliation(t *testing.T) {
	backend := testutils.NewBackend(t)
	reconciler := viewsync.NewReconciler(nil, 10*time.Millisecond)
	apps := New(backend.Client, nil, reconciler, Options{PageSize: 5})

	users, _ := apps.Admin.Handle(stores.NameUsers)
	res, _ := users.Fetch(context.Background(), FetchQuery{Page: 0, Size: 10})
	require.True(t, res.OK)

	backend.Mock.FailPath("/users", 500, "database unavailable")
	reconciler.Start(context.Background())
	defer reconciler.Stop()

	testutils.WaitForCondition(t, func() bool {
		return users.LastError() == "database unavailable"
	}, 2*time.Second, "periodic sync records the backend failure")
	assert.NotEmpty(t, apps.Admin.Users.Snapshot().Items, "failed refresh keeps the loaded page")
}
