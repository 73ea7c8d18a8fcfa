package utils

// CloneMap returns a shallow copy of m. A nil map stays nil.
func CloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	cloneM := make(map[K]V, len(m))
	for k, v := range m {
		cloneM[k] = v
	}
	return cloneM
}

// UniqueSlice returns the distinct elements of a in first-seen order.
// a is left untouched.
func UniqueSlice[K comparable](a []K) []K {
	seen := make(map[K]struct{}, len(a))
	out := make([]K, 0, len(a))
	for _, v := range a {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
