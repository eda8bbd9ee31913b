package soil

import (
	"sort"
)

// Interval is a horizon's depth span in cm, [Top, Bottom).
type Interval struct {
	Top    float64
	Bottom float64
}

// weightEpsilon absorbs float noise when deciding whether the summed weight
// of a layer fell short of 1.
const weightEpsilon = 1e-9

// overlap returns the length of the intersection between a horizon and a layer.
func overlap(l Layer, h Interval) float64 {
	switch {
	case h.Bottom <= h.Top:
		return 0
	// starts inside, extends below
	case h.Top >= l.Min && h.Top < l.Max && h.Bottom > l.Max:
		return l.Max - h.Top
	// starts above, ends inside
	case h.Top < l.Min && h.Bottom > l.Min && h.Bottom <= l.Max:
		return h.Bottom - l.Min
	// covers the whole layer
	case h.Top <= l.Min && h.Bottom >= l.Max:
		return l.Depth()
	// sits inside the layer
	case h.Top >= l.Min && h.Bottom <= l.Max:
		return h.Bottom - h.Top
	}
	return 0
}

// Weights returns, for each horizon, the fraction of the layer it overlaps.
// The result is index-aligned with horizons.
func Weights(l Layer, horizons []Interval) []float64 {
	out := make([]float64, len(horizons))
	d := l.Depth()
	if d <= 0 {
		return out
	}
	for i, h := range horizons {
		out[i] = overlap(l, h) / d
	}
	return out
}

// depthOrder returns horizon indexes sorted by top depth, ties by bottom.
func depthOrder(horizons []Interval) []int {
	idx := make([]int, len(horizons))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ha, hb := horizons[idx[a]], horizons[idx[b]]
		if ha.Top != hb.Top {
			return ha.Top < hb.Top
		}
		return ha.Bottom < hb.Bottom
	})
	return idx
}

// Resample returns the depth-weighted value of one attribute for a layer.
// values is index-aligned with horizons. When the horizons do not cover the
// whole layer the missing weight is filled with the deepest horizon's value.
// An empty horizon set yields fallback.
func Resample(l Layer, horizons []Interval, values []float64, fallback float64) float64 {
	if len(horizons) == 0 || len(values) < len(horizons) {
		return fallback
	}

	order := depthOrder(horizons)
	w := Weights(l, horizons)

	var sum, total float64
	for _, i := range order {
		sum += w[i] * values[i]
		total += w[i]
	}
	if total < 1-weightEpsilon {
		sum += (1 - total) * values[order[len(order)-1]]
	}
	return sum
}

// ResampleAll resamples an attribute onto every APSIM layer.
func ResampleAll(horizons []Interval, values []float64, fallback float64) []float64 {
	out := make([]float64, len(Layers))
	for i, l := range Layers {
		out[i] = Resample(l, horizons, values, fallback)
	}
	return out
}
