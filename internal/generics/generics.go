// Package generics implements generic map/slice helpers missing from the
// stdlib, in particular deterministic (sorted) and randomized (shuffled)
// iteration over map keys.
package generics

import (
	"cmp"
	"iter"
	"math/rand"
	"slices"
)

// SliceMap executes fn sequentially for every element of in and returns
// the mapped slice.
func SliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// KeysSlice returns a slice with the keys of a map, in map order.
func KeysSlice[Map interface{ ~map[K]V }, K comparable, V any](m Map) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// SortedKeys returns an iterator over the sorted keys of the given map.
func SortedKeys[Map interface{ ~map[K]V }, K cmp.Ordered, V any](m Map) iter.Seq[K] {
	sortedKeys := KeysSlice(m)
	slices.Sort(sortedKeys)
	return slices.Values(sortedKeys)
}

// SortedKeysAndValues iterates over keys and values of m sorted by key.
func SortedKeysAndValues[Map interface{ ~map[K]V }, K cmp.Ordered, V any](m Map) iter.Seq2[K, V] {
	sortedKeys := KeysSlice(m)
	slices.Sort(sortedKeys)
	return func(yield func(K, V) bool) {
		for _, key := range sortedKeys {
			if !yield(key, m[key]) {
				break
			}
		}
	}
}

// ShuffledKeys returns the keys of m in a fresh uniformly random order.
// The shuffle starts from the sorted order, so maps with equal key sets
// draw from the same permutation distribution.
func ShuffledKeys[Map interface{ ~map[K]V }, K cmp.Ordered, V any](m Map, rng *rand.Rand) []K {
	keys := KeysSlice(m)
	slices.Sort(keys)
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	return keys
}
