package weather

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
)

// SeasonMonths are the growing-season months reported by PrecipStats.
var SeasonMonths = []time.Month{time.April, time.May, time.June, time.July, time.August, time.September}

const topDays = 10

// Event is a precipitation event of one day or two adjacent days.
type Event struct {
	FirstDay int
	LastDay  int
	Rain     float64
}

// PrecipSummary is a field-level precipitation digest for one year.
type PrecipSummary struct {
	Year    int
	Annual  float64
	Monthly map[time.Month]float64 // growing season only
	Events  []Event                // largest first, at most two
}

// PrecipStats totals rain for year, per growing-season month, and finds the
// two largest events among the ten wettest days, merging adjacent days.
func (m *Met) PrecipStats(year int) PrecipSummary {
	s := PrecipSummary{Year: year, Monthly: make(map[time.Month]float64, len(SeasonMonths))}
	for _, mon := range SeasonMonths {
		s.Monthly[mon] = 0
	}

	var days []Day
	var rain []float64
	for _, d := range m.Days {
		if d.Year != year {
			continue
		}
		days = append(days, d)
		rain = append(rain, d.Rain)
		if _, ok := s.Monthly[d.Date().Month()]; ok {
			s.Monthly[d.Date().Month()] += d.Rain
		}
	}
	if len(days) == 0 {
		return s
	}
	s.Annual = floats.Sum(rain)
	s.Events = topEvents(days)
	return s
}

func topEvents(days []Day) []Event {
	wet := make([]Day, 0, len(days))
	for _, d := range days {
		if d.Rain > 0 {
			wet = append(wet, d)
		}
	}
	sort.SliceStable(wet, func(i, j int) bool { return wet[i].Rain > wet[j].Rain })
	if len(wet) > topDays {
		wet = wet[:topDays]
	}
	sort.Slice(wet, func(i, j int) bool { return wet[i].Day < wet[j].Day })

	var events []Event
	for i := 0; i < len(wet); i++ {
		if i+1 < len(wet) && wet[i+1].Day-wet[i].Day == 1 {
			events = append(events, Event{FirstDay: wet[i].Day, LastDay: wet[i+1].Day, Rain: wet[i].Rain + wet[i+1].Rain})
			i++
			continue
		}
		events = append(events, Event{FirstDay: wet[i].Day, LastDay: wet[i].Day, Rain: wet[i].Rain})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Rain > events[j].Rain })
	if len(events) > 2 {
		events = events[:2]
	}
	return events
}
