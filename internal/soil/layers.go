// Package soil builds APSIM soil profiles from SSURGO horizon records.
package soil

// Layer is one fixed APSIM depth interval in centimetres, [Min, Max).
type Layer struct {
	Min float64
	Max float64
}

// Depth returns the layer depth span in cm.
func (l Layer) Depth() float64 { return l.Max - l.Min }

// Thickness returns the layer thickness in mm as APSIM expects it.
func (l Layer) Thickness() float64 { return 10 * (l.Max - l.Min) }

// Layers is the fixed 0-200 cm APSIM layer grid every derived variable is
// resampled onto.
var Layers = []Layer{
	{0, 2}, {2, 4}, {4, 6}, {6, 8}, {8, 10},
	{10, 15}, {15, 20}, {20, 25}, {25, 30}, {30, 35},
	{35, 40}, {40, 50}, {50, 75}, {75, 100}, {100, 150},
	{150, 200},
}

// ProfileDepth is the bottom of the layer grid in cm.
func ProfileDepth() float64 { return Layers[len(Layers)-1].Max }

// Thicknesses returns the thickness of every layer in mm.
func Thicknesses() []float64 {
	out := make([]float64, len(Layers))
	for i, l := range Layers {
		out[i] = l.Thickness()
	}
	return out
}
