package output

import (
	"math"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

// Agg is a yearly reduction of a daily column.
type Agg int

// Reductions.
const (
	Max Agg = iota
	Sum
	First
	Last
)

// Rule reduces one column to one summary value. Optional rules are skipped
// when the column is absent.
type Rule struct {
	Name     string // summary key
	Column   string
	Agg      Agg
	Optional bool
}

func maxRule(c string) Rule { return Rule{Name: c, Column: c, Agg: Max} }
func sumRule(c string) Rule { return Rule{Name: c, Column: c, Agg: Sum} }

// DefaultRules reports the season peak of yields and biomass, seasonal
// totals of nitrogen and water fluxes, and the surface carbon at the start
// and end of the year. SWIM runs add tile drainage totals.
func DefaultRules(swim bool) []Rule {
	rules := []Rule{
		maxRule("soybean_yield"),
		maxRule("maize_yield"),
		maxRule("soy_mktyd"),
		maxRule("maz_mktyd"),
		maxRule("soy_ymgha"),
		maxRule("maz_ymgha"),
		maxRule("corn_buac"),
		maxRule("soy_buac"),
		maxRule("soybean_biomass"),
		maxRule("maize_biomass"),
		sumRule("fertiliser"),
		sumRule("leach_no3"),
		sumRule("Rain"),
		sumRule("drain"),
		{Name: "surfaceom_c_init", Column: "surfaceom_c", Agg: First, Optional: true},
		{Name: "surfaceom_c_end", Column: "surfaceom_c", Agg: Last, Optional: true},
	}
	if swim {
		rules = append(rules, sumRule("subsurface_drain"), sumRule("subsurface_drain_no3"))
	}
	return rules
}

// Summary is one yearly row of a simulation.
type Summary struct {
	FileName string
	IDs      Identifiers
	Year     int
	Values   map[string]float64 // keyed by Rule.Name; NaN when no data
}

func present(vs []float64) []float64 {
	out := make([]float64, 0, len(vs))
	for _, v := range vs {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func reduce(agg Agg, vs []float64) float64 {
	vs = present(vs)
	switch agg {
	case Sum:
		return floats.Sum(vs)
	case Max:
		if len(vs) == 0 {
			return math.NaN()
		}
		return floats.Max(vs)
	case First:
		if len(vs) == 0 {
			return math.NaN()
		}
		return vs[0]
	case Last:
		if len(vs) == 0 {
			return math.NaN()
		}
		return vs[len(vs)-1]
	}
	return math.NaN()
}

// Summarize reduces a file to one summary per year. A zero year summarizes
// every year in the file; a requested year with no rows is an error.
func Summarize(f *File, year int, rules []Rule) ([]Summary, error) {
	years, err := f.yearColumn()
	if err != nil {
		return nil, err
	}

	targets, err := f.Years()
	if err != nil {
		return nil, err
	}
	if year != 0 {
		found := false
		for _, y := range targets {
			if y == year {
				found = true
				break
			}
		}
		if !found {
			return nil, eris.Errorf("output: year %d not found in %s", year, f.IDs.Title)
		}
		targets = []int{year}
	}

	cols := make(map[string][]float64)
	for _, r := range rules {
		if _, ok := cols[r.Column]; ok {
			continue
		}
		if !f.Has(r.Column) {
			if r.Optional {
				continue
			}
			return nil, eris.Errorf("output: %s has no column %q", f.IDs.Title, r.Column)
		}
		c, err := f.Column(r.Column)
		if err != nil {
			return nil, err
		}
		cols[r.Column] = c
	}

	name := ""
	if f.Path != "" {
		name = filepath.Base(f.Path)
	}

	out := make([]Summary, 0, len(targets))
	for _, y := range targets {
		s := Summary{FileName: name, IDs: f.IDs, Year: y, Values: make(map[string]float64, len(rules))}
		for _, r := range rules {
			col, ok := cols[r.Column]
			if !ok {
				s.Values[r.Name] = math.NaN()
				continue
			}
			var vs []float64
			for i, v := range col {
				if years[i] == y {
					vs = append(vs, v)
				}
			}
			s.Values[r.Name] = reduce(r.Agg, vs)
		}
		out = append(out, s)
	}
	return out, nil
}
