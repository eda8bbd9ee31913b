package soil

import (
	"math"

	"github.com/rotisserie/eris"
)

// Hydraulics holds the water-retention parameters of one horizon.
// Water contents are volumetric fractions, BD is g/cm3 and KS mm/day.
type Hydraulics struct {
	LL15 float64
	DUL  float64
	SAT  float64
	BD   float64
	KS   float64
}

// SaxtonRawls estimates hydraulic parameters from sand, clay and organic
// matter fractions using the Saxton & Rawls (2006) regressions.
func SaxtonRawls(sand, clay, om float64) (Hydraulics, error) {
	for _, f := range []struct {
		name string
		v    float64
	}{{"sand", sand}, {"clay", clay}, {"om", om}} {
		if math.IsNaN(f.v) || f.v < 0 || f.v > 1 {
			return Hydraulics{}, eris.Errorf("soil: saxton-rawls %s fraction %v outside [0,1]", f.name, f.v)
		}
	}

	S, C, OM := sand, clay, om

	t1500 := -0.024*S + 0.487*C + 0.006*OM + 0.005*S*OM - 0.013*C*OM + 0.068*S*C + 0.031
	ll15 := t1500 + (0.14*t1500 - 0.02)

	t33 := -0.251*S + 0.195*C + 0.011*OM + 0.006*S*OM - 0.027*C*OM + 0.452*S*C + 0.299
	dul := t33 + (1.283*t33*t33 - 0.374*t33 - 0.015)

	ts33t := 0.278*S + 0.034*C + 0.022*OM - 0.018*S*OM - 0.027*C*OM - 0.584*S*C + 0.078
	ts33 := ts33t + (0.636*ts33t - 0.107)
	sat := dul + ts33 - 0.097*S + 0.043

	if ll15 <= 0 || dul <= ll15 {
		return Hydraulics{}, eris.Errorf("soil: saxton-rawls retention curve undefined for sand=%v clay=%v om=%v", sand, clay, om)
	}

	b := (math.Log(1500) - math.Log(33)) / (math.Log(dul) - math.Log(ll15))
	lambda := 1 / b
	ks := 1930 * math.Pow(sat-ll15, 3-lambda)

	return Hydraulics{
		LL15: ll15,
		DUL:  dul,
		SAT:  sat,
		BD:   (1 - sat) * 2.65,
		KS:   ks,
	}, nil
}

// SWIM drainage "hole": fixed KS for the layers around the tile depth.
const (
	swimKSUpper = 1.0
	swimKSLower = 0.01
)

// ApplySWIMOverride overwrites per-layer KS values so layers starting in
// 100-150 cm read 1.0 and layers starting in 150-200 cm read 0.01. ks must
// be aligned with Layers.
func ApplySWIMOverride(ks []float64) {
	for i, l := range Layers {
		if i >= len(ks) {
			return
		}
		switch {
		case l.Min >= 100 && l.Min < 150:
			ks[i] = swimKSUpper
		case l.Min >= 150 && l.Min < 200:
			ks[i] = swimKSLower
		}
	}
}
