package mockapi

import (
	"slices"
	"sync"

	"reviewhub-console/internal/store"
)

// table keeps rows in insertion order, which is the order the mock backend
// lists them in
type table[T store.Entity[ID], ID comparable] struct {
	mu    sync.RWMutex
	rows  []T
	newID func() ID
}

func newTable[T store.Entity[ID], ID comparable](rows []T, newID func() ID) *table[T, ID] {
	return &table[T, ID]{rows: slices.Clone(rows), newID: newID}
}

// snapshot returns the rows matching keep, in order
func (t *table[T, ID]) snapshot(keep func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]T, 0, len(t.rows))
	for _, row := range t.rows {
		if keep == nil || keep(row) {
			out = append(out, row)
		}
	}
	return out
}

func (t *table[T, ID]) get(id ID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i := t.indexLocked(id); i >= 0 {
		return t.rows[i], true
	}
	var zero T
	return zero, false
}

// insert assigns a fresh id through build and appends the row
func (t *table[T, ID]) insert(build func(id ID) (T, error)) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, err := build(t.newID())
	if err != nil {
		return row, err
	}
	t.rows = append(t.rows, row)
	return row, nil
}

// modify replaces the row with id by fn's result. found is false when no
// row has id; err is fn's error.
func (t *table[T, ID]) modify(id ID, fn func(T) (T, error)) (row T, found bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(id)
	if i < 0 {
		return row, false, nil
	}
	row, err = fn(t.rows[i])
	if err != nil {
		return row, true, err
	}
	t.rows[i] = row
	return row, true, nil
}

func (t *table[T, ID]) delete(id ID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(id)
	if i < 0 {
		return false
	}
	t.rows = slices.Delete(t.rows, i, i+1)
	return true
}

func (t *table[T, ID]) reset(rows []T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = slices.Clone(rows)
}

func (t *table[T, ID]) indexLocked(id ID) int {
	return slices.IndexFunc(t.rows, func(row T) bool { return row.EntityID() == id })
}

// sequence hands out increasing int64 ids after start
func sequence(start int64) func() int64 {
	next := start
	return func() int64 {
		next++
		return next
	}
}
