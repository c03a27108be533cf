package store

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// errOpNotSupported is reported per id when the endpoint can neither run a
// server-side bulk call nor apply op to a single id
const errOpNotSupported = "operation not supported"

// BulkOperate applies op to every id and reports the outcome per id. The
// endpoint's bulk call is used when it has one, otherwise ids fan out with
// bounded concurrency. All successes land in one state transition.
func (c *Collection[T, ID, C, U]) BulkOperate(ctx context.Context, ids []ID, op BulkOp) BulkResult[ID] {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return BulkResult[ID]{Succeeded: []ID{}}
	}

	epoch, _ := c.begin(false, false)
	c.logger.Info("Bulk operation started", "op", op, "count", len(ids))

	resp := c.runBulk(ctx, op, ids)

	result := BulkResult[ID]{Succeeded: []ID{}}
	for _, id := range ids {
		if _, failed := resp.Failed[id]; !failed {
			result.Succeeded = append(result.Succeeded, id)
		}
	}
	if len(resp.Failed) > 0 {
		result.Failed = resp.Failed
	}
	if op.Removes() && len(resp.Removed) == 0 {
		resp.Removed = result.Succeeded
	}

	refetch := false
	kind := c.settle(ctx, epoch, func(s *State[T]) ChangeKind {
		for _, item := range resp.Updated {
			if items, ok := replaceByID(s.Items, item.EntityID(), item); ok {
				s.Items = items
			}
		}
		if len(resp.Removed) > 0 {
			drop := make(map[ID]struct{}, len(resp.Removed))
			for _, id := range resp.Removed {
				drop[id] = struct{}{}
			}
			refetch = dropIDs(s, drop)
		}
		c.arrange(s)

		if len(result.Failed) == 0 {
			s.Error = ""
			return ChangeBulk
		}
		s.Error = bulkSummary(op, ids, result.Failed)
		if len(result.Succeeded) == 0 {
			return ChangeFailed
		}
		return ChangeBulk
	})

	if kind == ChangeSettled {
		return BulkResult[ID]{Canceled: true}
	}

	c.logger.Info("Bulk operation finished",
		"op", op,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	if refetch {
		c.Refresh(ctx, 0)
	}
	return result
}

func (c *Collection[T, ID, C, U]) runBulk(ctx context.Context, op BulkOp, ids []ID) BulkResponse[T, ID] {
	if bulk, ok := c.endpoint.(BulkEndpoint[T, ID]); ok {
		resp, err := bulk.Bulk(ctx, op, ids)
		if err != nil {
			return failAll[T](ids, err.Error())
		}
		if resp.Failed == nil {
			resp.Failed = map[ID]string{}
		}
		return resp
	}

	itemOp, hasItemOp := c.endpoint.(ItemOpEndpoint[T, ID])
	if !hasItemOp && op != BulkDelete {
		return failAll[T](ids, errOpNotSupported)
	}

	var (
		mu   sync.Mutex
		resp = BulkResponse[T, ID]{Failed: map[ID]string{}}
		g    errgroup.Group
	)
	g.SetLimit(c.bulkConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			var (
				item T
				err  error
			)
			if op == BulkDelete {
				err = c.endpoint.Delete(ctx, id)
			} else {
				item, err = itemOp.Operate(ctx, op, id)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				resp.Failed[id] = err.Error()
			case op.Removes():
				resp.Removed = append(resp.Removed, id)
			default:
				resp.Updated = append(resp.Updated, item)
			}
			// per-id failures are results, not group errors
			return nil
		})
	}
	_ = g.Wait()

	return resp
}

func failAll[T any, ID comparable](ids []ID, reason string) BulkResponse[T, ID] {
	failed := make(map[ID]string, len(ids))
	for _, id := range ids {
		failed[id] = reason
	}
	return BulkResponse[T, ID]{Failed: failed}
}

func uniqueIDs[ID comparable](ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// bulkSummary names the first failure in request order
func bulkSummary[ID comparable](op BulkOp, ids []ID, failed map[ID]string) string {
	for _, id := range ids {
		if reason, ok := failed[id]; ok {
			return fmt.Sprintf("%s failed for %d of %d items: %v: %s", op, len(failed), len(ids), id, reason)
		}
	}
	return fmt.Sprintf("%s failed for %d of %d items", op, len(failed), len(ids))
}
