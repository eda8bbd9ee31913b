package soil

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrNoHorizons is returned when a map unit has no horizon records.
var ErrNoHorizons = eris.New("soil: no horizons")

// Soil organic matter and surface constants shared by every profile.
const (
	RootCN    = 40
	RootWt    = 1000
	SoilCN    = 12
	EnrACoeff = 7.4
	EnrBCoeff = 0.2
	Salb      = 0.13
)

// DefaultCrops are the crops that get a SoilCrop block.
var DefaultCrops = []string{"maize", "soybean", "wheat"}

// Options selects how water parameters are derived.
type Options struct {
	SWIM        bool     // emit a Swim block and force the drainage KS values
	SaxtonRawls bool     // derive water parameters from texture instead of SSURGO
	Crops       []string // SoilCrop names; DefaultCrops when empty
}

// band assigns value to horizons whose top lies in [min, max). When open is
// set it instead matches horizons whose bottom reaches min.
type band struct {
	min, max float64
	open     bool
	value    float64
}

var (
	fbiomBands = []band{
		{0, 15, false, 0.035}, {15, 30, false, 0.02}, {30, 60, false, 0.015},
		{60, 90, false, 0.015}, {90, 120, false, 0.01}, {120, 0, true, 0.01},
	}
	finertBands = []band{
		{0, 15, false, 0.40}, {15, 30, false, 0.48}, {30, 60, false, 0.68},
		{60, 90, false, 0.80}, {90, 120, false, 0.80}, {120, 0, true, 0.90},
	}
	airDrySSURGO = []band{{0, 15, false, 0.5}, {15, 30, false, 0.8}, {30, 0, true, 1.0}}
	airDrySR     = []band{{0, 15, false, 0.5}, {15, 30, false, 0.75}, {30, 0, true, 1.0}}
)

// byDepth applies bands in order; later matches win.
func byDepth(h Interval, bands []band) float64 {
	var v float64
	for _, b := range bands {
		if b.open {
			if h.Bottom >= b.min {
				v = b.value
			}
			continue
		}
		if h.Top >= b.min && h.Top < b.max {
			v = b.value
		}
	}
	return v
}

// texture classes used by the entrapped-air, SWCON and diffusivity rules.
const (
	textureLoam = iota
	textureClay
	textureSand
)

func textureOf(clay, sand float64) int {
	switch {
	case sand >= 85:
		return textureSand
	case clay >= 55:
		return textureClay
	}
	return textureLoam
}

// horizon holds the per-horizon values derived from one SSURGO record.
type horizon struct {
	span Interval

	clay, sand, om, ph float64
	fbiom, finert      float64
	swcon              float64

	bd, ll15, dul, sat, ks, airDry float64
}

// LayerValues holds every per-layer parameter of a profile, aligned with Layers.
type LayerValues struct {
	BD     []float64
	AirDry []float64
	LL15   []float64
	DUL    []float64
	SAT    []float64
	KS     []float64
	SWCON  []float64
	OC     []float64
	FBiom  []float64
	FInert []float64
	PH     []float64
	NO3    []float64
	NH4    []float64
	Clay   []float64
}

// Profile is a soil map unit resampled onto the APSIM layer grid.
type Profile struct {
	Mukey   string
	Options Options

	DiffusConst float64
	DiffusSlope float64
	CN2Bare     float64

	Values LayerValues

	horizons []horizon
}

// NewProfile derives APSIM soil parameters for one map unit.
func NewProfile(mukey string, horizons []Horizon, opts Options) (*Profile, error) {
	if len(horizons) == 0 {
		return nil, eris.Wrapf(ErrNoHorizons, "soil: mukey %s", mukey)
	}
	if err := checkAttributes(horizons, opts.SaxtonRawls); err != nil {
		return nil, err
	}
	if len(opts.Crops) == 0 {
		opts.Crops = DefaultCrops
	}

	sorted := make([]Horizon, len(horizons))
	copy(sorted, horizons)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Top < sorted[j].Top })

	p := &Profile{Mukey: mukey, Options: opts}
	for _, h := range sorted {
		d, err := derive(h, opts.SaxtonRawls)
		if err != nil {
			return nil, eris.Wrapf(err, "soil: mukey %s horizon %v-%v", mukey, h.Top, h.Bottom)
		}
		p.horizons = append(p.horizons, d)
	}

	top := p.horizons[0]
	switch textureOf(top.clay, top.sand) {
	case textureClay:
		p.DiffusConst, p.DiffusSlope, p.CN2Bare = 40, 16, 73
	case textureSand:
		p.DiffusConst, p.DiffusSlope, p.CN2Bare = 250, 22, 68
	default:
		p.DiffusConst, p.DiffusSlope, p.CN2Bare = 88, 35, 73
	}

	p.Values = p.resample()
	if opts.SWIM {
		ApplySWIMOverride(p.Values.KS)
	}

	zap.L().Debug("soil: profile built",
		zap.String("mukey", mukey),
		zap.Int("horizons", len(p.horizons)),
		zap.Bool("swim", opts.SWIM),
		zap.Bool("saxton_rawls", opts.SaxtonRawls),
	)
	return p, nil
}

// derive computes the per-horizon parameters of one SSURGO record.
func derive(h Horizon, saxtonRawls bool) (horizon, error) {
	d := horizon{
		span: h.Interval(),
		clay: val(h.Clay),
		sand: val(h.Sand),
		om:   val(h.OM),
		ph:   val(h.PH),
	}
	d.fbiom = byDepth(d.span, fbiomBands)
	d.finert = byDepth(d.span, finertBands)

	satE := 0.05
	d.swcon = 0.5
	switch textureOf(d.clay, d.sand) {
	case textureClay:
		satE, d.swcon = 0.03, 0.3
	case textureSand:
		satE, d.swcon = 0.07, 0.7
	}

	if saxtonRawls {
		hy, err := SaxtonRawls(d.sand*0.01, d.clay*0.01, d.om*0.01)
		if err != nil {
			return horizon{}, err
		}
		d.bd, d.ll15, d.dul, d.sat, d.ks = hy.BD, hy.LL15, hy.DUL, hy.SAT, hy.KS
		d.airDry = hy.LL15 * byDepth(d.span, airDrySR)
		return d, nil
	}

	d.bd = val(h.BD)
	d.ll15 = 0.01 * val(h.WFifteenBar)
	d.dul = 0.01 * val(h.WThirdBar)
	d.ks = 0.001 * 3600 * 24 * val(h.KSat)
	d.sat = 1 - d.bd/2.65 - satE
	d.airDry = 0.01 * val(h.WFifteenBar) * byDepth(d.span, airDrySSURGO)
	return d, nil
}

// column resamples one derived horizon value onto every layer.
func (p *Profile) column(get func(horizon) float64) []float64 {
	spans := make([]Interval, len(p.horizons))
	values := make([]float64, len(p.horizons))
	for i, h := range p.horizons {
		spans[i] = h.span
		values[i] = get(h)
	}
	return ResampleAll(spans, values, 0)
}

func (p *Profile) resample() LayerValues {
	return LayerValues{
		BD:     p.column(func(h horizon) float64 { return h.bd }),
		AirDry: p.column(func(h horizon) float64 { return h.airDry }),
		LL15:   p.column(func(h horizon) float64 { return h.ll15 }),
		DUL:    p.column(func(h horizon) float64 { return h.dul }),
		SAT:    p.column(func(h horizon) float64 { return h.sat }),
		KS:     p.column(func(h horizon) float64 { return h.ks }),
		SWCON:  p.column(func(h horizon) float64 { return h.swcon }),
		OC:     p.column(func(h horizon) float64 { return h.om / 1.724 }),
		FBiom:  p.column(func(h horizon) float64 { return h.fbiom }),
		FInert: p.column(func(h horizon) float64 { return h.finert }),
		PH:     p.column(func(h horizon) float64 { return h.ph }),
		NO3:    p.column(func(h horizon) float64 { return h.om }),
		NH4:    p.column(func(h horizon) float64 { return h.om }),
		Clay:   p.column(func(h horizon) float64 { return h.clay }),
	}
}

// CropLL returns the crop lower limit: LL15 halved in the top four layers.
func (p *Profile) CropLL() []float64 {
	out := make([]float64, len(Layers))
	for i, v := range p.Values.LL15 {
		if i < 4 {
			v *= 0.5
		}
		out[i] = v
	}
	return out
}

// CropKL returns the root water extraction rate for every layer.
func CropKL() []float64 {
	out := make([]float64, len(Layers))
	for i, l := range Layers {
		out[i] = 0.08 * math.Exp(-0.00654*l.Min)
	}
	return out
}

// AverageClay returns the depth-weighted clay percentage over the profile.
func (p *Profile) AverageClay() float64 {
	var tot float64
	for i, l := range Layers {
		tot += l.Depth() * p.Values.Clay[i]
	}
	return tot / ProfileDepth()
}
