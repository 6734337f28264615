package gsr

import "math"

// Downsample reduces points to at most limit evenly spaced elements, always
// keeping the first and last one. Inputs already within the limit, or a
// non-positive limit, are returned unchanged.
func Downsample[T any](points []T, limit int) []T {
	n := len(points)
	if limit <= 0 || n <= limit {
		return points
	}
	if limit == 1 {
		return []T{points[0]}
	}

	out := make([]T, 0, limit)
	step := float64(n-1) / float64(limit-1)
	for i := 0; i < limit; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= n {
			idx = n - 1
		}
		out = append(out, points[idx])
	}
	return out
}
