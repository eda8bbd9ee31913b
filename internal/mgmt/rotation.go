package mgmt

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/apsimxml"
)

// Crop is a crop that owns a management plan.
type Crop string

// Crops with management plans.
const (
	Corn    Crop = "corn"
	Soybean Crop = "soybean"
)

// Rotation is a crop sequence ending in the simulation's target year.
type Rotation string

// Supported rotations.
const (
	CornAfterSoy   Rotation = "cfs"
	SoyAfterCorn   Rotation = "sfc"
	ContinuousCorn Rotation = "cc"
	// RotationOther marks crop histories outside the supported set.
	RotationOther Rotation = "other"
)

// ParseRotation validates a rotation code.
func ParseRotation(s string) (Rotation, error) {
	r := Rotation(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case CornAfterSoy, SoyAfterCorn, ContinuousCorn:
		return r, nil
	}
	return "", eris.Errorf("mgmt: unknown rotation %q", s)
}

// CropFor returns the crop grown in year for a rotation targeting endYear.
// The target year grows the rotation's named crop and the sequence alternates
// backwards from it.
func (r Rotation) CropFor(year, endYear int) Crop {
	back := endYear - year
	if back < 0 {
		back = -back
	}
	switch r {
	case CornAfterSoy:
		if back%2 == 0 {
			return Corn
		}
		return Soybean
	case SoyAfterCorn:
		if back%2 == 0 {
			return Soybean
		}
		return Corn
	}
	return Corn
}

// Opposite returns the rotation the previous year belongs to.
func (r Rotation) Opposite() Rotation {
	switch r {
	case CornAfterSoy:
		return SoyAfterCorn
	case SoyAfterCorn:
		return CornAfterSoy
	}
	return r
}

// YearPlan is one year of a schedule before expansion.
type YearPlan struct {
	Year int
	Crop Crop
	Dict *Dict
}

// YearOps is one expanded year.
type YearOps struct {
	Year       int
	Crop       Crop
	Operations []Operation
}

// Schedule is a multi-year operations schedule.
type Schedule struct {
	Rotation Rotation
	Years    []YearOps
}

// Operations flattens the schedule in year order.
func (s *Schedule) Operations() []Operation {
	var out []Operation
	for _, y := range s.Years {
		out = append(out, y.Operations...)
	}
	return out
}

// XML renders the schedule as an <operations> element.
func (s *Schedule) XML() *apsimxml.Node {
	return OperationsXML(s.Operations())
}

// Chain expands each year plan and appends the years in ascending order.
func (e *Expander) Chain(plans []YearPlan) (*Schedule, error) {
	sorted := make([]YearPlan, len(plans))
	copy(sorted, plans)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	s := &Schedule{}
	for _, p := range sorted {
		if p.Dict == nil {
			return nil, eris.Errorf("mgmt: no management plan for %s in %d", p.Crop, p.Year)
		}
		ops, err := e.Year(p.Dict, p.Year)
		if err != nil {
			return nil, eris.Wrapf(err, "mgmt: expand %d", p.Year)
		}
		s.Years = append(s.Years, YearOps{Year: p.Year, Crop: p.Crop, Operations: ops})
	}
	return s, nil
}

// Schedule builds a window-year schedule ending in endYear, picking the
// corn or soybean plan for each year from the rotation.
func (e *Expander) Schedule(r Rotation, endYear, window int, plans map[Crop]*Dict) (*Schedule, error) {
	if window < 1 {
		return nil, eris.Errorf("mgmt: window %d must be positive", window)
	}

	years := make([]YearPlan, 0, window)
	for y := endYear - window + 1; y <= endYear; y++ {
		c := r.CropFor(y, endYear)
		years = append(years, YearPlan{Year: y, Crop: c, Dict: plans[c]})
	}

	s, err := e.Chain(years)
	if err != nil {
		return nil, eris.Wrapf(err, "mgmt: %s schedule ending %d", r, endYear)
	}
	s.Rotation = r

	zap.L().Debug("mgmt: schedule built",
		zap.String("rotation", string(r)),
		zap.Int("end_year", endYear),
		zap.Int("operations", len(s.Operations())),
	)
	return s, nil
}

// CropYear is one observed year of a field's crop history.
type CropYear struct {
	Year int
	Crop string
}

// DetectRotation classifies a crop history (e.g. from the Cropland Data
// Layer). A mixed corn/soybean history is named by its latest crop.
func DetectRotation(history []CropYear) Rotation {
	if len(history) == 0 {
		return RotationOther
	}
	sorted := make([]CropYear, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	var corn, soy bool
	for _, h := range sorted {
		switch normalizeCrop(h.Crop) {
		case Corn:
			corn = true
		case Soybean:
			soy = true
		}
	}
	last := normalizeCrop(sorted[len(sorted)-1].Crop)

	switch {
	case corn && soy && last == Soybean:
		return SoyAfterCorn
	case corn && soy && last == Corn:
		return CornAfterSoy
	case corn:
		return ContinuousCorn
	}
	return RotationOther
}

func normalizeCrop(s string) Crop {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "corn", "maize":
		return Corn
	case "soybean", "soybeans", "soy":
		return Soybean
	}
	return ""
}
