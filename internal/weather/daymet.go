// Package weather converts Daymet daily records into APSIM weather and reads
// and writes APSIM .met files.
package weather

import (
	"context"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/ingest"
)

// DaymetRecord is one day of a Daymet single-pixel extraction, in Daymet
// units: dayl s, prcp mm/day, srad W/m², swe kg/m², tmax/tmin °C, vp Pa.
type DaymetRecord struct {
	Year int     `db:"year"`
	YDay int     `db:"yday"`
	DayL float64 `db:"dayl"`
	Prcp float64 `db:"prcp"`
	Srad float64 `db:"srad"`
	SWE  float64 `db:"swe"`
	TMax float64 `db:"tmax"`
	TMin float64 `db:"tmin"`
	VP   float64 `db:"vp"`
}

// Daymet is a single-pixel time series with its location.
type Daymet struct {
	Latitude  float64
	Longitude float64
	Records   []DaymetRecord
}

var latLonRe = regexp.MustCompile(`(?i)latitude:\s*(-?[0-9.]+)\s+longitude:\s*(-?[0-9.]+)`)

// daymetColumns maps the leading token of a Daymet header cell to a setter.
var daymetColumns = map[string]func(*DaymetRecord, float64){
	"dayl": func(r *DaymetRecord, v float64) { r.DayL = v },
	"prcp": func(r *DaymetRecord, v float64) { r.Prcp = v },
	"srad": func(r *DaymetRecord, v float64) { r.Srad = v },
	"swe":  func(r *DaymetRecord, v float64) { r.SWE = v },
	"tmax": func(r *DaymetRecord, v float64) { r.TMax = v },
	"tmin": func(r *DaymetRecord, v float64) { r.TMin = v },
	"vp":   func(r *DaymetRecord, v float64) { r.VP = v },
}

// ReadDaymetCSV parses a Daymet single-pixel CSV download: free-form
// metadata lines (one carries "Latitude: .. Longitude: .."), a
// "year,yday,dayl (s),..." header and one row per day.
func ReadDaymetCSV(ctx context.Context, r io.Reader) (*Daymet, error) {
	rowCh, errCh := ingest.StreamCSV(ctx, r, ingest.CSVOptions{LazyQuotes: true, TrimSpace: true})

	d := &Daymet{}
	var header []string
	line := 0
	for rec := range rowCh {
		line++
		if header == nil {
			if len(rec) > 1 && strings.EqualFold(rec[0], "year") {
				header = rec
				continue
			}
			if m := latLonRe.FindStringSubmatch(strings.Join(rec, ",")); m != nil {
				lat, lon, err := parseLatLon(m[1], m[2])
				if err != nil {
					for range rowCh {
					}
					return nil, eris.Wrapf(err, "weather: daymet line %d", line)
				}
				d.Latitude, d.Longitude = lat, lon
			}
			continue
		}

		row, err := parseDaymetRow(header, rec)
		if err != nil {
			// keep draining so the reader goroutine can exit
			for range rowCh {
			}
			return nil, eris.Wrapf(err, "weather: daymet line %d", line)
		}
		d.Records = append(d.Records, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, eris.Wrap(err, "weather: read daymet csv")
		}
	}
	if header == nil {
		return nil, eris.New("weather: daymet csv has no year,yday header")
	}

	zap.L().Debug("weather: daymet parsed",
		zap.Int("records", len(d.Records)),
		zap.Float64("lat", d.Latitude),
		zap.Float64("lon", d.Longitude),
	)
	return d, nil
}

func parseLatLon(latText, lonText string) (lat, lon float64, err error) {
	lat, err = strconv.ParseFloat(latText, 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "weather: latitude %q", latText)
	}
	lon, err = strconv.ParseFloat(lonText, 64)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "weather: longitude %q", lonText)
	}
	return lat, lon, nil
}

func parseDaymetRow(header, rec []string) (DaymetRecord, error) {
	var row DaymetRecord
	if len(rec) != len(header) {
		return row, eris.Errorf("weather: %d fields, header has %d", len(rec), len(header))
	}
	for i, h := range header {
		fields := strings.Fields(h)
		if len(fields) == 0 {
			continue
		}
		key := strings.ToLower(fields[0])
		switch key {
		case "year", "yday":
			n, err := strconv.Atoi(rec[i])
			if err != nil {
				return row, eris.Wrapf(err, "weather: %s", key)
			}
			if key == "year" {
				row.Year = n
			} else {
				row.YDay = n
			}
			continue
		}
		set, ok := daymetColumns[key]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return row, eris.Wrapf(err, "weather: %s", key)
		}
		set(&row, v)
	}
	return row, nil
}

// Day is one row of an APSIM .met file.
type Day struct {
	Year int
	Day  int
	Radn float64 // MJ/m²
	MaxT float64 // °C
	MinT float64 // °C
	Rain float64 // mm
	Snow float64 // mm
	VP   float64 // kPa
	DayL float64 // hours
}

// Met is an APSIM weather file.
type Met struct {
	Station   string
	Latitude  float64
	Longitude float64
	// Tav and Amp are set by ReadMet; WriteMet recomputes them from Days.
	Tav  float64
	Amp  float64
	Days []Day
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// FromDaymet converts Daymet records to APSIM units. Daymet drops 31
// December in leap years, so day 365 is repeated as day 366. Precipitation
// falls as snow when the snow-water equivalent is building or holding above
// zero into the next day; the first and last days always count as rain.
func FromDaymet(d *Daymet) *Met {
	recs := make([]DaymetRecord, 0, len(d.Records)+len(d.Records)/365+1)
	recs = append(recs, d.Records...)

	has366 := make(map[int]bool)
	for _, r := range recs {
		if r.YDay == 366 {
			has366[r.Year] = true
		}
	}
	for _, r := range d.Records {
		if r.YDay == 365 && IsLeap(r.Year) && !has366[r.Year] {
			r.YDay = 366
			recs = append(recs, r)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Year != recs[j].Year {
			return recs[i].Year < recs[j].Year
		}
		return recs[i].YDay < recs[j].YDay
	})

	m := &Met{
		Station:   "Daymet weather",
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		Days:      make([]Day, len(recs)),
	}
	for i, r := range recs {
		day := Day{
			Year: r.Year,
			Day:  r.YDay,
			DayL: round1(r.DayL / 3600),
			Radn: round1(r.Srad * r.DayL / 3600 * 0.0036),
			MaxT: round1(r.TMax),
			MinT: round1(r.TMin),
			VP:   round1(r.VP * 0.001),
			Rain: r.Prcp,
		}
		if i > 0 && i < len(recs)-1 {
			cur, next := r.SWE, recs[i+1].SWE
			if next > cur || (next > 0 && next == cur) {
				day.Snow, day.Rain = r.Prcp, 0
			}
		}
		m.Days[i] = day
	}
	return m
}
