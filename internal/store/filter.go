package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"reviewhub-console/internal/telemetry"
)

// FilterCriteria select a subset of the all-items set on the client. An
// empty rating set matches every rating.
type FilterCriteria struct {
	Ratings []int  `json:"ratings,omitempty"`
	Status  string `json:"status,omitempty"`
	Keyword string `json:"keyword,omitempty"`
}

// FilterFields tells a FilteredView how to read the fields it filters on
type FilterFields[T any] struct {
	Rating func(T) int
	Status func(T) string
	// Text returns the strings searched by keyword, e.g. title and description
	Text func(T) []string
}

// FilteredState is a snapshot of a FilteredView
type FilteredState[T any] struct {
	Items         []T            `json:"items"`
	Page          int            `json:"page"`
	PageSize      int            `json:"pageSize"`
	TotalPages    int            `json:"totalPages"`
	FilteredCount int            `json:"filteredCount"`
	TotalCount    int            `json:"totalCount"`
	RatingCounts  map[int]int    `json:"ratingCounts"`
	Criteria      FilterCriteria `json:"criteria"`
	IsLoading     bool           `json:"isLoading"`
	Error         string         `json:"error,omitempty"`
	Version       uint64         `json:"version"`
}

// FilteredView holds the unpaginated all-items set and paginates the
// filtered subset locally. It never touches the server-paginated collection
// of the same entities; changing any filter resets only its own page index.
type FilteredView[T any] struct {
	name        string
	endpoint    AllEndpoint[T]
	fields      FilterFields[T]
	instruments *telemetry.Instruments
	logger      *slog.Logger

	mu         sync.Mutex
	all        []T
	criteria   FilterCriteria
	page       int
	pageSize   int
	isLoading  bool
	err        string
	version    uint64
	inflight   int
	fetchToken uint64
	epoch      uint64

	listeners    map[int]func(Notice)
	nextListener int
	notifyMu     sync.Mutex
}

// NewFilteredView creates an empty view paginating pageSize items locally
func NewFilteredView[T any](endpoint AllEndpoint[T], fields FilterFields[T], pageSize int, opts Options) *FilteredView[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = 5
	}
	return &FilteredView[T]{
		name:        opts.Name,
		endpoint:    endpoint,
		fields:      fields,
		instruments: opts.Instruments,
		logger:      logger.With("store", opts.Name),
		pageSize:    pageSize,
		all:         []T{},
		listeners:   make(map[int]func(Notice)),
	}
}

func (v *FilteredView[T]) Name() string {
	return v.name
}

// FetchAll replaces the all-items set. The local page index is clamped to
// the new filtered page count rather than reset.
func (v *FilteredView[T]) FetchAll(ctx context.Context, criteria Criteria) bool {
	v.mu.Lock()
	v.inflight++
	v.fetchToken++
	token, epoch := v.fetchToken, v.epoch
	v.isLoading = true
	v.err = ""
	v.publishAndUnlock(ChangeLoading)

	items, err := v.endpoint.ListAll(ctx, criteria)

	v.mu.Lock()
	if epoch != v.epoch {
		v.mu.Unlock()
		v.instruments.RecordDiscarded(ctx, v.name, "reset")
		return false
	}
	v.inflight--
	kind := ChangeSettled
	switch {
	case ctx.Err() != nil:
		v.instruments.RecordDiscarded(ctx, v.name, "canceled")
	case token != v.fetchToken:
		v.instruments.RecordDiscarded(ctx, v.name, "superseded")
	case err != nil:
		v.logger.Warn("All-items fetch failed", "error", err)
		v.err = err.Error()
		kind = ChangeFailed
	default:
		v.all = slices.Clone(items)
		v.err = ""
		v.page = min(v.page, max(v.totalPagesLocked(len(v.filteredLocked()))-1, 0))
		kind = ChangeFetched
	}
	v.isLoading = v.inflight > 0
	v.publishAndUnlock(kind)
	return kind == ChangeFetched
}

// ToggleRating adds rating to the rating set, or removes it when present
func (v *FilteredView[T]) ToggleRating(rating int) {
	v.mu.Lock()
	if i := slices.Index(v.criteria.Ratings, rating); i >= 0 {
		v.criteria.Ratings = slices.Delete(slices.Clone(v.criteria.Ratings), i, i+1)
	} else {
		v.criteria.Ratings = append(slices.Clone(v.criteria.Ratings), rating)
		slices.Sort(v.criteria.Ratings)
	}
	v.page = 0
	v.publishAndUnlock(ChangeFiltered)
}

func (v *FilteredView[T]) SetStatus(status string) {
	v.mu.Lock()
	v.criteria.Status = status
	v.page = 0
	v.publishAndUnlock(ChangeFiltered)
}

func (v *FilteredView[T]) SetKeyword(keyword string) {
	v.mu.Lock()
	v.criteria.Keyword = strings.TrimSpace(keyword)
	v.page = 0
	v.publishAndUnlock(ChangeFiltered)
}

// SetCriteria replaces every filter at once
func (v *FilteredView[T]) SetCriteria(criteria FilterCriteria) {
	v.mu.Lock()
	criteria.Ratings = slices.Clone(criteria.Ratings)
	slices.Sort(criteria.Ratings)
	criteria.Ratings = slices.Compact(criteria.Ratings)
	criteria.Keyword = strings.TrimSpace(criteria.Keyword)
	v.criteria = criteria
	v.page = 0
	v.publishAndUnlock(ChangeFiltered)
}

// SetPage moves the local page index. An out-of-range page is refused and
// recorded as the view's error; the current page stays.
func (v *FilteredView[T]) SetPage(page int) bool {
	v.mu.Lock()
	totalPages := v.totalPagesLocked(len(v.filteredLocked()))
	if page < 0 || page >= max(totalPages, 1) {
		v.err = fmt.Sprintf("page %d out of range (total pages %d)", page, totalPages)
		v.publishAndUnlock(ChangeFailed)
		return false
	}
	v.page = page
	v.err = ""
	v.publishAndUnlock(ChangeFiltered)
	return true
}

func (v *FilteredView[T]) ClearError() {
	v.mu.Lock()
	if v.err == "" {
		v.mu.Unlock()
		return
	}
	v.err = ""
	v.publishAndUnlock(ChangeErrorCleared)
}

// Reset drops the all-items set and the filters
func (v *FilteredView[T]) Reset() {
	v.mu.Lock()
	v.epoch++
	v.inflight = 0
	v.all = []T{}
	v.criteria = FilterCriteria{}
	v.page = 0
	v.isLoading = false
	v.err = ""
	v.publishAndUnlock(ChangeReset)
}

// All returns a copy of the unfiltered all-items set
func (v *FilteredView[T]) All() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.all)
}

func (v *FilteredView[T]) Snapshot() FilteredState[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Watch subscribes fn to notices of every transition
func (v *FilteredView[T]) Watch(fn func(Notice)) func() {
	v.mu.Lock()
	id := v.nextListener
	v.nextListener++
	v.listeners[id] = fn
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			delete(v.listeners, id)
			v.mu.Unlock()
		})
	}
}

func (v *FilteredView[T]) snapshotLocked() FilteredState[T] {
	filtered := v.filteredLocked()
	totalPages := v.totalPagesLocked(len(filtered))

	start := min(v.page*v.pageSize, len(filtered))
	end := min(start+v.pageSize, len(filtered))

	counts := make(map[int]int)
	for _, item := range v.all {
		counts[v.fields.Rating(item)]++
	}

	criteria := v.criteria
	criteria.Ratings = slices.Clone(v.criteria.Ratings)

	return FilteredState[T]{
		Items:         slices.Clone(filtered[start:end]),
		Page:          v.page,
		PageSize:      v.pageSize,
		TotalPages:    totalPages,
		FilteredCount: len(filtered),
		TotalCount:    len(v.all),
		RatingCounts:  counts,
		Criteria:      criteria,
		IsLoading:     v.isLoading,
		Error:         v.err,
		Version:       v.version,
	}
}

func (v *FilteredView[T]) totalPagesLocked(filtered int) int {
	return pageCount(filtered, v.pageSize)
}

func (v *FilteredView[T]) filteredLocked() []T {
	keyword := strings.ToLower(v.criteria.Keyword)
	out := make([]T, 0, len(v.all))
	for _, item := range v.all {
		if len(v.criteria.Ratings) > 0 && !slices.Contains(v.criteria.Ratings, v.fields.Rating(item)) {
			continue
		}
		if v.criteria.Status != "" && v.fields.Status != nil &&
			!strings.EqualFold(v.fields.Status(item), v.criteria.Status) {
			continue
		}
		if keyword != "" && !v.matchesKeyword(item, keyword) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (v *FilteredView[T]) matchesKeyword(item T, keyword string) bool {
	if v.fields.Text == nil {
		return false
	}
	for _, text := range v.fields.Text(item) {
		if strings.Contains(strings.ToLower(text), keyword) {
			return true
		}
	}
	return false
}

func (v *FilteredView[T]) publishAndUnlock(kind ChangeKind) {
	v.version++
	notice := Notice{Store: v.name, Kind: kind, Version: v.version, IsLoading: v.isLoading, Error: v.err}
	listeners := make([]func(Notice), 0, len(v.listeners))
	for i := 0; i < v.nextListener; i++ {
		if fn, ok := v.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}

	v.notifyMu.Lock()
	v.mu.Unlock()
	defer v.notifyMu.Unlock()

	v.instruments.RecordTransition(context.Background(), v.name, string(kind))
	for _, fn := range listeners {
		fn(notice)
	}
}
