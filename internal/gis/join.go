package gis

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/output"
	"github.com/foresite-ag/foresite-cli/internal/weather"
)

// Feature is one zone joined with one yearly simulation summary.
type Feature struct {
	Zone    Zone
	Summary output.Summary
}

// Joined is a zone layer merged with simulation summaries and, optionally,
// the field's precipitation digest for the summary year.
type Joined struct {
	ZoneFields []string
	Rules      []output.Rule
	Precip     *weather.PrecipSummary
	Features   []Feature
}

// Join attaches summaries to zones by mukey. Every zone gets one feature
// per matching summary; zones and summaries without a partner are dropped
// and reported.
func Join(zs *Zones, sums []output.Summary, rules []output.Rule, precip *weather.PrecipSummary) *Joined {
	byMukey := make(map[string][]output.Summary)
	for _, s := range sums {
		byMukey[s.IDs.Mukey] = append(byMukey[s.IDs.Mukey], s)
	}

	j := &Joined{ZoneFields: zs.Fields, Rules: rules, Precip: precip}
	used := make(map[string]bool)
	var missing []string
	for _, z := range zs.Zones {
		matches, ok := byMukey[z.Mukey()]
		if !ok {
			missing = append(missing, z.Mukey())
			continue
		}
		used[z.Mukey()] = true
		for _, s := range matches {
			j.Features = append(j.Features, Feature{Zone: z, Summary: s})
		}
	}

	var orphans []string
	for k := range byMukey {
		if !used[k] {
			orphans = append(orphans, k)
		}
	}
	sort.Strings(orphans)

	if len(missing) > 0 || len(orphans) > 0 {
		zap.L().Warn("gis: mukeys differ between zones and summaries",
			zap.String("component", "gis"),
			zap.Strings("zones_without_summary", missing),
			zap.Strings("summaries_without_zone", orphans),
		)
	}
	return j
}

// Column is one attribute of the joined layer.
type Column struct {
	Name    string
	Numeric bool
}

var summaryIDs = []string{"file_name", "rotation", "sim", "year"}

func precipColumns() []string {
	cols := []string{"yearly_precip", "top_precip_event_1", "top_precip_event_2"}
	for _, m := range weather.SeasonMonths {
		cols = append(cols, "precip_"+strings.ToLower(m.String()[:3]))
	}
	return cols
}

// zonePrefix marks a zone attribute whose name a joined column already uses.
const zonePrefix = "zone_"

// Columns lists the joined attributes: zone fields, precipitation, run
// identifiers, then one column per rule. A zone field named like a joined
// column is renamed with a "zone_" prefix.
func (j *Joined) Columns() []Column {
	var joined []Column
	if j.Precip != nil {
		for _, c := range precipColumns() {
			joined = append(joined, Column{Name: c, Numeric: true})
		}
	}
	for _, c := range summaryIDs {
		joined = append(joined, Column{Name: c, Numeric: c == "year"})
	}
	for _, r := range j.Rules {
		joined = append(joined, Column{Name: r.Name, Numeric: true})
	}

	taken := make(map[string]bool, len(joined)+len(j.ZoneFields))
	for _, c := range joined {
		taken[strings.ToLower(c.Name)] = true
	}
	cols := make([]Column, 0, len(j.ZoneFields)+len(joined))
	for _, f := range j.ZoneFields {
		name := f
		for taken[strings.ToLower(name)] {
			name = zonePrefix + name
		}
		taken[strings.ToLower(name)] = true
		cols = append(cols, Column{Name: name})
	}
	return append(cols, joined...)
}

// Values returns a feature's attributes aligned with Columns. Text is
// string, numbers are float64 and missing values are nil.
func (j *Joined) Values(f Feature) []any {
	var vals []any
	for _, name := range j.ZoneFields {
		vals = append(vals, f.Zone.Attrs[name])
	}
	if p := j.Precip; p != nil {
		vals = append(vals, p.Annual, eventRain(p, 0), eventRain(p, 1))
		for _, m := range weather.SeasonMonths {
			vals = append(vals, p.Monthly[m])
		}
	}
	vals = append(vals, f.Summary.FileName, f.Summary.IDs.Rotation, f.Summary.IDs.Sim, float64(f.Summary.Year))
	for _, r := range j.Rules {
		v, ok := f.Summary.Values[r.Name]
		if !ok || math.IsNaN(v) {
			vals = append(vals, nil)
			continue
		}
		vals = append(vals, v)
	}
	return vals
}

func eventRain(p *weather.PrecipSummary, i int) any {
	if i >= len(p.Events) {
		return nil
	}
	return p.Events[i].Rain
}

// dbfNames shortens a column name to the 10 characters a DBF header holds,
// numbering collisions.
func dbfNames(cols []Column) []string {
	const width = 10
	out := make([]string, len(cols))
	taken := make(map[string]bool, len(cols))
	for i, c := range cols {
		name := c.Name
		if len(name) > width {
			name = name[:width]
		}
		for n := 1; taken[name]; n++ {
			suffix := strconv.Itoa(n)
			base := c.Name
			if len(base) > width-len(suffix) {
				base = base[:width-len(suffix)]
			}
			name = base + suffix
		}
		taken[name] = true
		out[i] = name
	}
	return out
}
