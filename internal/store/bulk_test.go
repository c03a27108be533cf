package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedAmong(items []item, want ...int64) int {
	n := 0
	for _, it := range items {
		for _, id := range want {
			if it.ID == id && it.Status == "APPROVED" {
				n++
			}
		}
	}
	return n
}

func TestCollection_BulkOperate_SingleTransition(t *testing.T) {
	endpoint := &itemOpEndpoint{fakeEndpoint: newFakeEndpoint(6)}
	c := newCollection(endpoint)
	ctx := context.Background()
	require.True(t, c.FetchPage(ctx, 0, 10, Criteria{}))

	var changes []Change[item]
	c.Subscribe(func(change Change[item]) { changes = append(changes, change) })

	result := c.BulkOperate(ctx, []int64{1, 2, 3}, BulkApprove)

	require.True(t, result.OK())
	assert.ElementsMatch(t, []int64{1, 2, 3}, result.Succeeded)
	assert.Equal(t, 3, approvedAmong(c.Snapshot().Items, 1, 2, 3))

	require.Len(t, changes, 2)
	assert.Equal(t, ChangeLoading, changes[0].Kind)
	assert.Equal(t, ChangeBulk, changes[1].Kind)
	for _, change := range changes {
		n := approvedAmong(change.State.Items, 1, 2, 3)
		assert.True(t, n == 0 || n == 3, "partial transition observed: %d of 3", n)
	}
}

func TestCollection_BulkOperate_PartialFailure(t *testing.T) {
	endpoint := &itemOpEndpoint{
		fakeEndpoint: newFakeEndpoint(4),
		fail:         map[int64]string{2: "review already moderated"},
	}
	c := newCollection(endpoint)
	ctx := context.Background()
	require.True(t, c.FetchPage(ctx, 0, 10, Criteria{}))

	result := c.BulkOperate(ctx, []int64{1, 2, 3, 3}, BulkApprove)

	assert.False(t, result.OK())
	assert.ElementsMatch(t, []int64{1, 3}, result.Succeeded)
	assert.Equal(t, map[int64]string{2: "review already moderated"}, result.Failed)

	state := c.Snapshot()
	assert.Equal(t, 2, approvedAmong(state.Items, 1, 3))
	assert.Equal(t, "PENDING", state.Items[1].Status)
	assert.Contains(t, state.Error, "1 of 3")
	assert.Contains(t, state.Error, "review already moderated")
}

func TestCollection_BulkOperate_ServerBulkRemoves(t *testing.T) {
	endpoint := &bulkEndpoint{fakeEndpoint: newFakeEndpoint(5)}
	c := newCollection(endpoint)
	ctx := context.Background()
	require.True(t, c.FetchPage(ctx, 0, 10, Criteria{}))

	result := c.BulkOperate(ctx, []int64{2, 4}, BulkDismiss)

	require.True(t, result.OK())
	assert.Equal(t, 1, endpoint.calls)
	state := c.Snapshot()
	assert.Equal(t, []int64{1, 3, 5}, ids(state.Items))
	assert.Equal(t, 3, state.TotalItems)
}

func TestCollection_BulkOperate_Unsupported(t *testing.T) {
	f := newFakeEndpoint(3)
	c := newCollection(f)
	ctx := context.Background()
	require.True(t, c.FetchPage(ctx, 0, 10, Criteria{}))

	result := c.BulkOperate(ctx, []int64{1, 2}, BulkApprove)
	assert.Empty(t, result.Succeeded)
	assert.Equal(t, errOpNotSupported, result.Failed[1])
	assert.Len(t, c.Snapshot().Items, 3)

	// delete falls back to the per-id Delete call
	result = c.BulkOperate(ctx, []int64{1, 2}, BulkDelete)
	require.True(t, result.OK())
	assert.Equal(t, []int64{3}, ids(c.Snapshot().Items))
	assert.Empty(t, c.Snapshot().Error)
}

func TestCollection_BulkOperate_Empty(t *testing.T) {
	c := newCollection(newFakeEndpoint(3))

	var notified bool
	c.Subscribe(func(Change[item]) { notified = true })

	result := c.BulkOperate(context.Background(), nil, BulkApprove)
	assert.True(t, result.OK())
	assert.Empty(t, result.Succeeded)
	assert.False(t, notified)
}

func TestCollection_BulkOperate_Canceled(t *testing.T) {
	endpoint := &itemOpEndpoint{fakeEndpoint: newFakeEndpoint(3)}
	c := newCollection(endpoint)
	require.True(t, c.FetchPage(context.Background(), 0, 10, Criteria{}))
	before := c.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := c.BulkOperate(ctx, []int64{1, 2}, BulkApprove)

	assert.True(t, result.Canceled)
	assert.False(t, result.OK())
	after := c.Snapshot()
	assert.Equal(t, before.Items, after.Items)
	assert.Empty(t, after.Error)
	assert.False(t, after.IsLoading)
}
