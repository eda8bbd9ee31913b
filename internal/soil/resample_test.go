package soil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

func TestWeights_OverlapCases(t *testing.T) {
	layer := Layer{Min: 10, Max: 20}
	tests := []struct {
		name string
		h    Interval
		want float64
	}{
		{"starts inside extends below", Interval{15, 40}, 0.5},
		{"starts above ends inside", Interval{0, 12}, 0.2},
		{"covers layer", Interval{0, 50}, 1},
		{"exactly the layer", Interval{10, 20}, 1},
		{"inside layer", Interval{12, 18}, 0.6},
		{"entirely above", Interval{0, 10}, 0},
		{"entirely below", Interval{20, 30}, 0},
		{"degenerate", Interval{15, 15}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Weights(layer, []Interval{tt.h})
			assert.InDelta(t, tt.want, w[0], 1e-12)
		})
	}
}

func TestWeights_ConservationOverTiledProfile(t *testing.T) {
	horizons := []Interval{{0, 18}, {18, 43}, {43, 90}, {90, 137}, {137, 200}}

	spans := make([]float64, len(horizons))
	for _, l := range Layers {
		w := Weights(l, horizons)
		for i := range horizons {
			spans[i] += w[i] * l.Depth()
		}
	}
	for i, h := range horizons {
		assert.InDelta(t, h.Bottom-h.Top, spans[i], 1e-9, "horizon %d", i)
	}
}

func TestWeights_EveryLayerSumsToOneWhenTiled(t *testing.T) {
	horizons := []Interval{{0, 7}, {7, 33}, {33, 152}, {152, 200}}
	for _, l := range Layers {
		var total float64
		for _, w := range Weights(l, horizons) {
			total += w
		}
		assert.InDelta(t, 1.0, total, 1e-9, "layer %v", l)
	}
}

func TestResample_WeightedAverage(t *testing.T) {
	horizons := []Interval{{0, 12}, {12, 200}}
	values := []float64{10, 20}

	// layer 10-15: 2 cm of the first horizon, 3 cm of the second
	got := Resample(Layer{10, 15}, horizons, values, -1)
	assert.InDelta(t, 0.4*10+0.6*20, got, 1e-12)
}

func TestResample_RowOrderDoesNotMatter(t *testing.T) {
	a := []Interval{{0, 25}, {25, 60}, {60, 200}}
	av := []float64{1.2, 1.4, 1.6}
	b := []Interval{{60, 200}, {0, 25}, {25, 60}}
	bv := []float64{1.6, 1.2, 1.4}

	assert.Equal(t, ResampleAll(a, av, 0), ResampleAll(b, bv, 0))
}

func TestResampleAll_Profile(t *testing.T) {
	horizons := []Interval{{0, 20}, {20, 60}, {60, 200}}
	values := []float64{1.3, 1.45, 1.55}

	// 0-20, 20-50, the 50-75 blend, then 75-200
	want := []float64{
		1.3, 1.3, 1.3, 1.3, 1.3, 1.3, 1.3,
		1.45, 1.45, 1.45, 1.45, 1.45,
		0.4*1.45 + 0.6*1.55,
		1.55, 1.55, 1.55,
	}
	got := ResampleAll(horizons, values, 0)
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("ResampleAll mismatch (-want +got):\n%s", diff)
	}
}

func TestResample_GapFilledFromDeepestHorizon(t *testing.T) {
	horizons := []Interval{{0, 100}, {100, 120}}
	values := []float64{1, 2}

	assert.InDelta(t, 0.4*2+0.6*2, Resample(Layer{100, 150}, horizons, values, 0), 1e-12)
	assert.InDelta(t, 2.0, Resample(Layer{150, 200}, horizons, values, 0), 1e-12)
	assert.InDelta(t, 1.0, Resample(Layer{50, 75}, horizons, values, 0), 1e-12)
}

func TestResample_EmptyUsesFallback(t *testing.T) {
	assert.Equal(t, 0.5, Resample(Layer{0, 2}, nil, nil, 0.5))

	all := ResampleAll(nil, nil, 3)
	assert.Len(t, all, len(Layers))
	for _, v := range all {
		assert.Equal(t, 3.0, v)
	}
}

func TestLayers_Thickness(t *testing.T) {
	th := Thicknesses()
	assert.Len(t, th, 16)
	assert.Equal(t, 20.0, th[0])
	assert.Equal(t, 50.0, th[5])
	assert.Equal(t, 500.0, th[15])
	assert.Equal(t, 200.0, ProfileDepth())
}
