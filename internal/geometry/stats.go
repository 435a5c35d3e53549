package geometry

import (
	"math"
	"slices"
)

// Distance returns the euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Median returns the median of values, or 0 for an empty slice.
// The input slice is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// MedianAbsoluteDeviation returns median(|v - median(values)|).
func MedianAbsoluteDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Median(values)
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - m)
	}
	return Median(deviations)
}

// Centroid returns the arithmetic mean of the points.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(points))
	return Point{X: sx / n, Y: sy / n}
}

// PointInPolygon reports whether p lies inside the polygon using even-odd ray casting.
// Polygons with fewer than three vertices contain nothing.
func PointInPolygon(p Point, polygon []Point) bool {
	if len(polygon) < 3 {
		return false
	}
	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		pi, pj := polygon[i], polygon[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			xCross := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < xCross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Round1 rounds v to one decimal place. Non-finite values round to 0.
func Round1(v float64) float64 {
	if !IsFinite(v) {
		return 0
	}
	r := math.Round(v*10) / 10
	if r == 0 {
		return 0 // avoid -0 in serialized output
	}
	return r
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// FiniteOr returns v when it is finite, otherwise fallback.
func FiniteOr(v, fallback float64) float64 {
	if IsFinite(v) {
		return v
	}
	return fallback
}

// PositiveOr returns v when it is finite and greater than zero, otherwise fallback.
func PositiveOr(v, fallback float64) float64 {
	if IsFinite(v) && v > 0 {
		return v
	}
	return fallback
}
