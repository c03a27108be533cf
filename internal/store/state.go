package store

import "slices"

// State is the collection state plus the request state of one store
type State[T any] struct {
	Items       []T      `json:"items"`
	CurrentPage int      `json:"currentPage"`
	TotalPages  int      `json:"totalPages"`
	TotalItems  int      `json:"totalItems"`
	PageSize    int      `json:"pageSize"`
	Criteria    Criteria `json:"criteria"`
	IsLoading   bool     `json:"isLoading"`
	Error       string   `json:"error,omitempty"`
	// Version increases by one on every applied transition
	Version uint64 `json:"version"`
}

func (s State[T]) clone() State[T] {
	out := s
	out.Items = slices.Clone(s.Items)
	out.Criteria = s.Criteria.clone()
	return out
}

// ChangeKind names the transition that produced a snapshot
type ChangeKind string

const (
	ChangeLoading      ChangeKind = "loading"
	ChangeFetched      ChangeKind = "fetched"
	ChangeCreated      ChangeKind = "created"
	ChangeUpdated      ChangeKind = "updated"
	ChangeRemoved      ChangeKind = "removed"
	ChangeBulk         ChangeKind = "bulk"
	ChangeFailed       ChangeKind = "failed"
	ChangeErrorCleared ChangeKind = "error_cleared"
	ChangeSettled      ChangeKind = "settled"
	ChangeReset        ChangeKind = "reset"
	ChangeFiltered     ChangeKind = "filtered"
)

// Mutation reports whether the change was a successful write to the server
func (k ChangeKind) Mutation() bool {
	switch k {
	case ChangeCreated, ChangeUpdated, ChangeRemoved, ChangeBulk:
		return true
	}
	return false
}

// Change is delivered to subscribers after every transition
type Change[T any] struct {
	Store string
	Kind  ChangeKind
	State State[T]
}

// pageCount is ceil(totalItems/size), zero for an empty collection
func pageCount(totalItems, size int) int {
	if totalItems <= 0 || size <= 0 {
		return 0
	}
	return (totalItems + size - 1) / size
}

// recount derives TotalPages after a local change to TotalItems. A store
// that was never fetched has no page size; its items then form one page.
func (s *State[T]) recount() {
	if s.PageSize > 0 {
		s.TotalPages = pageCount(s.TotalItems, s.PageSize)
	} else if s.TotalItems > 0 {
		s.TotalPages = max(s.TotalPages, 1)
	} else {
		s.TotalPages = 0
	}
	s.CurrentPage = min(s.CurrentPage, max(s.TotalPages-1, 0))
}

// uniqueByID keeps the first occurrence of every id, preserving order
func uniqueByID[T Entity[ID], ID comparable](items []T) []T {
	seen := make(map[ID]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		id := item.EntityID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}

func indexOf[T Entity[ID], ID comparable](items []T, id ID) int {
	return slices.IndexFunc(items, func(item T) bool { return item.EntityID() == id })
}

// replaceByID swaps the entity with the same id in place
func replaceByID[T Entity[ID], ID comparable](items []T, id ID, item T) ([]T, bool) {
	i := indexOf(items, id)
	if i < 0 {
		return items, false
	}
	out := slices.Clone(items)
	out[i] = item
	return out, true
}

// removeIDs drops every entity whose id is in ids and reports how many went
func removeIDs[T Entity[ID], ID comparable](items []T, ids map[ID]struct{}) ([]T, int) {
	out := make([]T, 0, len(items))
	removed := 0
	for _, item := range items {
		if _, drop := ids[item.EntityID()]; drop {
			removed++
			continue
		}
		out = append(out, item)
	}
	return out, removed
}
