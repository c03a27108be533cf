package store

import (
	"cmp"
	"slices"
)

// SortByRelatedCount orders items so that those sharing their related key
// with more items come first. Ties keep the input order.
func SortByRelatedCount[T any, K comparable](items []T, related func(T) K) []T {
	counts := RelatedCounts(items, related)

	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		return cmp.Compare(counts[related(b)], counts[related(a)])
	})
	return out
}

// RelatedCounts returns how many items share each related key
func RelatedCounts[T any, K comparable](items []T, related func(T) K) map[K]int {
	counts := make(map[K]int, len(items))
	for _, item := range items {
		counts[related(item)]++
	}
	return counts
}
