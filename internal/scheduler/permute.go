package scheduler

import "math/rand"

// KeyedPermutation returns a permutation of [0, n) deterministically
// derived from key, so a given scan seed always reproduces the same
// target/port order (useful for resuming or replaying a scan) while
// different scans spread load differently (spec §4.3: "randomized with a
// keyed permutation so adjacent work items rarely share a destination").
func KeyedPermutation(n int, key uint64) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	if n < 2 {
		return perm
	}

	src := rand.New(rand.NewSource(int64(key)))
	src.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	return perm
}

// ApplyPermutation reorders items according to perm (as returned by
// KeyedPermutation), returning a new slice.
func ApplyPermutation[T any](items []T, perm []int) []T {
	out := make([]T, len(items))
	for i, p := range perm {
		out[i] = items[p]
	}
	return out
}
