package mgmt

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// KeySet names the dictionary fields read for each operation column. An
// empty name leaves the column to its default.
type KeySet struct {
	TillageImplement string `yaml:"tillage_implement" mapstructure:"tillage_implement"`
	TillageDepth     string `yaml:"tillage_depth" mapstructure:"tillage_depth"`
	TillageIncorp    string `yaml:"tillage_incorp" mapstructure:"tillage_incorp"`
	TillageDate      string `yaml:"tillage_date" mapstructure:"tillage_date"`

	FertAmount  string `yaml:"fert_amount" mapstructure:"fert_amount"`
	FertFormula string `yaml:"fert_formula" mapstructure:"fert_formula"`
	FertDepth   string `yaml:"fert_depth" mapstructure:"fert_depth"`
	FertDate    string `yaml:"fert_date" mapstructure:"fert_date"`

	ManureType string `yaml:"manure_type" mapstructure:"manure_type"`
	ManureName string `yaml:"manure_name" mapstructure:"manure_name"`
	ManureMass string `yaml:"manure_mass" mapstructure:"manure_mass"`
	ManureCNR  string `yaml:"manure_cnr" mapstructure:"manure_cnr"`
	ManureCPR  string `yaml:"manure_cpr" mapstructure:"manure_cpr"`
	ManureDate string `yaml:"manure_date" mapstructure:"manure_date"`

	SowCrop    string `yaml:"sow_crop" mapstructure:"sow_crop"`
	Cultivar   string `yaml:"cultivar" mapstructure:"cultivar"`
	Density    string `yaml:"density" mapstructure:"density"`
	SowDepth   string `yaml:"sow_depth" mapstructure:"sow_depth"`
	RowSpacing string `yaml:"row_spacing" mapstructure:"row_spacing"`
	PlantDate  string `yaml:"plant_date" mapstructure:"plant_date"`

	HarvestCrop string `yaml:"harvest_crop" mapstructure:"harvest_crop"`
	HarvestDate string `yaml:"harvest_date" mapstructure:"harvest_date"`
}

// DefaultKeys returns the field names used by field management files.
func DefaultKeys() KeySet {
	return KeySet{
		TillageImplement: "tillage_implement",
		TillageDepth:     "tillage_depth",
		TillageIncorp:    "fract_residue_incorp",
		TillageDate:      "tillage_date",
		FertAmount:       "kg_n_ha",
		FertFormula:      "n_fertilizer",
		FertDepth:        "fert_depth",
		FertDate:         "fertilize_n_on",
		ManureType:       "manure_type",
		ManureName:       "manure_name",
		ManureMass:       "manure_mass",
		ManureCNR:        "manure_cnr",
		ManureCPR:        "manure_cpr",
		ManureDate:       "manure_date",
		SowCrop:          "sow_crop",
		Cultivar:         "cultivar",
		Density:          "sowing_density",
		SowDepth:         "sowing_depth",
		RowSpacing:       "row_spacing",
		PlantDate:        "planting_date",
		HarvestCrop:      "harvest_crop",
		HarvestDate:      "harvest_date",
	}
}

// TaskKeys returns the field names of single-row design tasks, which carry
// no fertilizer depth and no harvest date.
func TaskKeys() KeySet {
	return KeySet{
		TillageImplement: "implement",
		TillageDepth:     "depth",
		TillageIncorp:    "residue_incorporation",
		TillageDate:      "timing",
		FertAmount:       "kg_n_ha",
		FertFormula:      "n_fertilizer",
		FertDate:         "fertilize_n_on",
		SowCrop:          "sow_crop",
		Cultivar:         "cultivar",
		Density:          "sowing_density",
		SowDepth:         "sowing_depth",
		RowSpacing:       "row_spacing",
		PlantDate:        "planting_dates",
		HarvestCrop:      "harvest",
	}
}

// HarvestDefaults gives the harvest date used when a plan names none.
var HarvestDefaults = map[string]string{
	"maize":   "15-oct",
	"soybean": "1-oct",
}

const defaultFertDepth = "0.0"

// column is one zipped field: a dictionary key and the value used when the
// key is unset.
type column struct {
	key string
	def Value
}

// zip returns rows of matched values, one per position, truncated to the
// shortest keyed column.
func zip(d *Dict, mode MatchMode, cols ...column) [][]Value {
	vals := make([][]Value, len(cols))
	n := -1
	for i, c := range cols {
		if c.key == "" {
			continue
		}
		vals[i] = d.Values(c.key, mode)
		if n < 0 || len(vals[i]) < n {
			n = len(vals[i])
		}
	}
	if n <= 0 {
		return nil
	}

	out := make([][]Value, n)
	for r := 0; r < n; r++ {
		row := make([]Value, len(cols))
		for i, c := range cols {
			if c.key == "" {
				row[i] = c.def
				continue
			}
			row[i] = vals[i][r]
		}
		out[r] = row
	}
	return out
}

// Expander turns one year of management dictionary into operations.
type Expander struct {
	Keys  KeySet
	Match MatchMode
}

// NewExpander creates an Expander.
func NewExpander(keys KeySet, match MatchMode) *Expander {
	return &Expander{Keys: keys, Match: match}
}

// positive reports whether v is a number greater than zero. Missing values
// are not positive; non-numeric text is an error.
func positive(v Value, field string) (bool, error) {
	if v.Null {
		return false, nil
	}
	f, ok := v.Float()
	if !ok {
		return false, eris.Errorf("mgmt: %s value %q is not numeric", field, v.Raw)
	}
	return f > 0, nil
}

func date(v Value, year int) (string, error) {
	if v.Null {
		return "", eris.Wrap(ErrBadDate, "mgmt: missing date")
	}
	return FormatDate(v.Raw, year)
}

// Year expands one crop-year. Operations come out ordered tillage,
// fertilizer, manure, planting, harvest; rows that are no-ops are skipped.
func (e *Expander) Year(d *Dict, year int) ([]Operation, error) {
	log := zap.L().With(zap.String("component", "mgmt"), zap.Int("year", year))
	k := e.Keys
	var ops []Operation

	for _, r := range zip(d, e.Match,
		column{key: k.TillageImplement}, column{key: k.TillageDepth},
		column{key: k.TillageIncorp}, column{key: k.TillageDate}) {
		ok, err := positive(r[2], k.TillageIncorp)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		dt, err := date(r[3], year)
		if err != nil {
			return nil, eris.Wrap(err, "mgmt: tillage")
		}
		ops = append(ops, TillageOp(dt, r[0].String(), r[2].String(), r[1].String()))
	}

	for _, r := range zip(d, e.Match,
		column{key: k.FertAmount}, column{key: k.FertFormula},
		column{key: k.FertDepth, def: Value{Raw: defaultFertDepth}}, column{key: k.FertDate}) {
		ok, err := positive(r[0], k.FertAmount)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		dt, err := date(r[3], year)
		if err != nil {
			return nil, eris.Wrap(err, "mgmt: fertilizer")
		}
		ops = append(ops, FertilizerOp(dt, r[0].String(), r[2].String(), r[1].String()))
	}

	for _, r := range zip(d, e.Match,
		column{key: k.ManureType}, column{key: k.ManureName}, column{key: k.ManureMass},
		column{key: k.ManureCNR}, column{key: k.ManureCPR}, column{key: k.ManureDate}) {
		ok, err := positive(r[2], k.ManureMass)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		dt, err := date(r[5], year)
		if err != nil {
			return nil, eris.Wrap(err, "mgmt: manure")
		}
		ops = append(ops, ManureOp(dt, r[0].String(), r[1].String(), r[2].String(), r[3].String(), r[4].String()))
	}

	var sown []string
	for _, r := range zip(d, e.Match,
		column{key: k.SowCrop}, column{key: k.Cultivar}, column{key: k.Density},
		column{key: k.SowDepth}, column{key: k.RowSpacing}, column{key: k.PlantDate}) {
		if r[1].Null {
			log.Warn("mgmt: cultivar missing, planting skipped", zap.String("crop", r[0].String()))
			continue
		}
		dt, err := date(r[5], year)
		if err != nil {
			return nil, eris.Wrap(err, "mgmt: planting")
		}
		sown = append(sown, r[0].String())
		ops = append(ops, PlantingOp(dt, r[0].String(), r[2].String(), r[3].String(), r[1].String(), r[4].String()))
	}

	harvest := zip(d, e.Match, column{key: k.HarvestCrop}, column{key: k.HarvestDate})
	for i, r := range harvest {
		if r[0].Null {
			log.Warn("mgmt: crop to harvest not specified, harvest skipped")
			continue
		}
		dv := r[1]
		if k.HarvestDate == "" {
			crop := r[0].String()
			if i < len(sown) {
				crop = sown[i]
			}
			def, ok := HarvestDefaults[crop]
			if !ok {
				return nil, eris.Errorf("mgmt: no default harvest date for %s", crop)
			}
			dv = Value{Raw: def}
		}
		dt, err := date(dv, year)
		if err != nil {
			return nil, eris.Wrap(err, "mgmt: harvest")
		}
		ops = append(ops, HarvestOp(dt, r[0].String()))
	}

	log.Debug("mgmt: year expanded", zap.Int("operations", len(ops)))
	return ops, nil
}
