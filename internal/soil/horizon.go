package soil

import (
	"github.com/rotisserie/eris"
)

// ErrMissingAttribute is returned when a horizon lacks an attribute the
// requested derivation needs.
var ErrMissingAttribute = eris.New("soil: missing horizon attribute")

// Horizon is one SSURGO component horizon. Attributes are pointers because
// SSURGO leaves many of them null.
type Horizon struct {
	Mukey  string  `json:"mukey" db:"mukey"`
	Top    float64 `json:"hzdept_r" db:"hzdept_r"`
	Bottom float64 `json:"hzdepb_r" db:"hzdepb_r"`

	Clay        *float64 `json:"claytotal_r" db:"claytotal_r"`
	Sand        *float64 `json:"sandtotal_r" db:"sandtotal_r"`
	Silt        *float64 `json:"silttotal_r" db:"silttotal_r"`
	OM          *float64 `json:"om_r" db:"om_r"`
	BD          *float64 `json:"dbthirdbar_r" db:"dbthirdbar_r"`
	WFifteenBar *float64 `json:"wfifteenbar_r" db:"wfifteenbar_r"`
	WThirdBar   *float64 `json:"wthirdbar_r" db:"wthirdbar_r"`
	KSat        *float64 `json:"ksat_r" db:"ksat_r"`
	PH          *float64 `json:"ph1to1h2o_r" db:"ph1to1h2o_r"`
}

// Interval returns the horizon's depth span.
func (h Horizon) Interval() Interval {
	return Interval{Top: h.Top, Bottom: h.Bottom}
}

// attribute pairs an SSURGO column name with its accessor.
type attribute struct {
	column string
	get    func(Horizon) *float64
}

var (
	attrClay        = attribute{"claytotal_r", func(h Horizon) *float64 { return h.Clay }}
	attrSand        = attribute{"sandtotal_r", func(h Horizon) *float64 { return h.Sand }}
	attrOM          = attribute{"om_r", func(h Horizon) *float64 { return h.OM }}
	attrBD          = attribute{"dbthirdbar_r", func(h Horizon) *float64 { return h.BD }}
	attrWFifteenBar = attribute{"wfifteenbar_r", func(h Horizon) *float64 { return h.WFifteenBar }}
	attrWThirdBar   = attribute{"wthirdbar_r", func(h Horizon) *float64 { return h.WThirdBar }}
	attrKSat        = attribute{"ksat_r", func(h Horizon) *float64 { return h.KSat }}
	attrPH          = attribute{"ph1to1h2o_r", func(h Horizon) *float64 { return h.PH }}
)

// requiredAttributes lists the columns a profile needs for the chosen
// water-parameter source.
func requiredAttributes(saxtonRawls bool) []attribute {
	base := []attribute{attrClay, attrSand, attrOM, attrPH}
	if saxtonRawls {
		return base
	}
	return append(base, attrBD, attrWFifteenBar, attrWThirdBar, attrKSat)
}

// checkAttributes reports the first required attribute missing from any horizon.
func checkAttributes(horizons []Horizon, saxtonRawls bool) error {
	for _, a := range requiredAttributes(saxtonRawls) {
		for _, h := range horizons {
			if a.get(h) == nil {
				return eris.Wrapf(ErrMissingAttribute, "soil: mukey %s horizon %v-%v has no %s", h.Mukey, h.Top, h.Bottom, a.column)
			}
		}
	}
	return nil
}

// val dereferences an attribute already validated by checkAttributes.
func val(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// F returns a pointer to v. It keeps horizon literals short.
func F(v float64) *float64 { return &v }
