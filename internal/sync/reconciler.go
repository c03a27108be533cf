// Package sync keeps derived views consistent with the backend after
// mutations and on demand.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"reviewhub-console/internal/models"
)

// RefreshFunc re-fetches one view from the backend
type RefreshFunc func(ctx context.Context) error

// Invalidator is implemented by view groups whose mutations must refresh
// every view of the group, such as stores.ReviewBoard
type Invalidator interface {
	Refresh(ctx context.Context) error
	OnInvalidate(fn func(ctx context.Context) error)
}

// Reconciler refreshes registered views and tracks the outcome
type Reconciler struct {
	logger       *slog.Logger
	syncInterval time.Duration
	syncMutex    sync.Mutex
	stopOnce     sync.Once
	stopChan     chan struct{}

	viewsMutex sync.RWMutex
	views      map[string]RefreshFunc

	statusMutex sync.RWMutex
	status      models.SyncStatus
}

// NewReconciler creates a reconciler; a zero interval disables periodic sync
func NewReconciler(logger *slog.Logger, interval time.Duration) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		logger:       logger,
		syncInterval: interval,
		stopChan:     make(chan struct{}),
		views:        make(map[string]RefreshFunc),
	}
}

// Register adds a view under name, replacing any view with that name
func (r *Reconciler) Register(name string, refresh RefreshFunc) {
	r.viewsMutex.Lock()
	defer r.viewsMutex.Unlock()
	r.views[name] = refresh
}

// Unregister drops the view registered under name
func (r *Reconciler) Unregister(name string) {
	r.viewsMutex.Lock()
	defer r.viewsMutex.Unlock()
	delete(r.views, name)
}

// Attach registers group under name and routes its post-mutation
// invalidation through the reconciler
func (r *Reconciler) Attach(name string, group Invalidator) {
	r.Register(name, group.Refresh)
	group.OnInvalidate(func(ctx context.Context) error {
		return r.Invalidate(ctx, name)
	})
}

// Invalidate refreshes the view registered under name
func (r *Reconciler) Invalidate(ctx context.Context, name string) error {
	r.viewsMutex.RLock()
	refresh, ok := r.views[name]
	r.viewsMutex.RUnlock()
	if !ok {
		return fmt.Errorf("no view registered as %q", name)
	}

	r.syncMutex.Lock()
	defer r.syncMutex.Unlock()

	r.logger.Debug("Invalidating view", "view", name)
	r.updateSyncStatus(true, false, "", time.Time{})

	if err := refresh(ctx); err != nil {
		r.logger.Warn("View refresh failed", "view", name, "error", err)
		r.updateSyncStatus(false, false, err.Error(), time.Time{})
		return fmt.Errorf("failed to refresh %s: %w", name, err)
	}

	r.updateSyncStatus(false, true, "", time.Now())
	return nil
}

// ForceSync refreshes every registered view concurrently
func (r *Reconciler) ForceSync(ctx context.Context) error {
	r.syncMutex.Lock()
	defer r.syncMutex.Unlock()

	r.logger.Info("Force sync requested")
	startTime := time.Now()
	r.updateSyncStatus(true, false, "", time.Time{})

	r.viewsMutex.RLock()
	names := make([]string, 0, len(r.views))
	refreshers := make([]RefreshFunc, 0, len(r.views))
	for name := range r.views {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		refreshers = append(refreshers, r.views[name])
	}
	r.viewsMutex.RUnlock()

	errs := make([]error, len(names))
	var g errgroup.Group
	for i, refresh := range refreshers {
		g.Go(func() error {
			if err := refresh(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", names[i], err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		r.logger.Error("Force sync failed", "error", err)
		r.updateSyncStatus(false, false, err.Error(), time.Time{})
		return err
	}

	r.updateSyncStatus(false, true, "", time.Now())
	r.logger.Info("Force sync completed", "views_synced", len(names), "duration", time.Since(startTime))
	return nil
}

// Start runs periodic sync until ctx ends or Stop is called
func (r *Reconciler) Start(ctx context.Context) {
	if r.syncInterval <= 0 {
		return
	}
	r.logger.Info("Starting periodic sync", "interval", r.syncInterval)
	go r.periodicSync(ctx)
}

// Stop ends periodic sync
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
}

// GetSyncStatus returns a copy of the current status
func (r *Reconciler) GetSyncStatus() models.SyncStatus {
	r.statusMutex.RLock()
	defer r.statusMutex.RUnlock()

	status := r.status
	r.viewsMutex.RLock()
	status.ViewCount = len(r.views)
	r.viewsMutex.RUnlock()
	return status
}

func (r *Reconciler) periodicSync(ctx context.Context) {
	ticker := time.NewTicker(r.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Periodic sync stopped due to context cancellation")
			return
		case <-r.stopChan:
			r.logger.Info("Periodic sync stopped")
			return
		case <-ticker.C:
			if err := r.ForceSync(ctx); err != nil {
				r.logger.Error("Periodic sync failed", "error", err)
			}
		}
	}
}

func (r *Reconciler) updateSyncStatus(inProgress, success bool, errorMsg string, syncTime time.Time) {
	r.statusMutex.Lock()
	defer r.statusMutex.Unlock()

	r.status.InProgress = inProgress
	r.status.LastSyncSuccess = success
	r.status.ErrorMessage = errorMsg
	if !syncTime.IsZero() {
		r.status.LastSyncTime = syncTime
	}
}
