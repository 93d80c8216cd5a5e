// Package fn holds small generic helpers shared by the engine packages.
package fn

import (
	"cmp"
	"slices"
)

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// Filter returns elements where pred is true.
func Filter[T any](items []T, pred func(T) bool) []T {
	var out []T
	for _, v := range items {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// Find returns the first element, in slice order, for which pred is true.
func Find[T any](items []T, pred func(T) bool) (T, bool) {
	for _, v := range items {
		if pred(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// FirstNonEmpty returns the first non-empty string, or "".
func FirstNonEmpty(vals ...string) string {
	v, _ := Find(vals, func(s string) bool { return s != "" })
	return v
}

// SortedKeys returns the keys of m in ascending order. It never returns nil.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// GroupBy groups items by a key function, preserving order within groups.
func GroupBy[T any, K comparable](items []T, key func(T) K) map[K][]T {
	out := make(map[K][]T)
	for _, v := range items {
		k := key(v)
		out[k] = append(out[k], v)
	}
	return out
}
