package weather

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const crlf = "\r\n"

var (
	metColumns = []string{"year", "day", "radn", "maxt", "mint", "rain", "snow", "vp", "dayL"}
	metUnits   = []string{"()", "()", "(MJ/m^2)", "(oC)", "(oC)", "(mm)", "(mm)", "(kPa)", "(hours)"}
)

// Date returns the calendar date of a met row.
func (d Day) Date() time.Time {
	return time.Date(d.Year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d.Day-1)
}

type yearMonth struct {
	year  int
	month time.Month
}

// TavAmp returns the annual average ambient temperature (mean of the monthly
// mean temperatures) and the annual amplitude (mean over complete years of
// the warmest minus the coldest monthly mean).
func (m *Met) TavAmp() (tav, amp float64) {
	if len(m.Days) == 0 {
		return 0, 0
	}

	daily := make(map[yearMonth][]float64)
	var order []yearMonth
	for _, d := range m.Days {
		k := yearMonth{d.Year, d.Date().Month()}
		if _, ok := daily[k]; !ok {
			order = append(order, k)
		}
		daily[k] = append(daily[k], (d.MaxT+d.MinT)/2)
	}

	monthly := make([]float64, 0, len(order))
	byYear := make(map[int][]float64)
	var years []int
	for _, k := range order {
		mean := stat.Mean(daily[k], nil)
		monthly = append(monthly, mean)
		if _, ok := byYear[k.year]; !ok {
			years = append(years, k.year)
		}
		byYear[k.year] = append(byYear[k.year], mean)
	}
	tav = stat.Mean(monthly, nil)

	var amps []float64
	for _, y := range years {
		if ms := byYear[y]; len(ms) == 12 {
			amps = append(amps, floats.Max(ms)-floats.Min(ms))
		}
	}
	if len(amps) == 0 {
		return tav, floats.Max(monthly) - floats.Min(monthly)
	}
	return tav, stat.Mean(amps, nil)
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WriteMet writes m as an APSIM .met file with CRLF line endings.
func WriteMet(w io.Writer, m *Met) error {
	tav, amp := m.TavAmp()
	station := m.Station
	if station == "" {
		station = "Daymet weather"
	}

	bw := bufio.NewWriter(w)
	lines := []string{
		"[weather.met.weather]",
		"stationname = " + station,
		fmt.Sprintf("latitude = %s (DECIMAL DEGREES)", num(m.Latitude)),
		fmt.Sprintf("longitude = %s (DECIMAL DEGREES)", num(m.Longitude)),
		fmt.Sprintf("tav = %s (oC) ! annual average ambient temperature", num(round1(tav))),
		fmt.Sprintf("amp = %s (oC) ! annual amplitude in mean monthly temperature", num(round1(amp))),
		"!Weather generated using Foresite",
		strings.Join(metColumns, " "),
		strings.Join(metUnits, " "),
	}
	for _, l := range lines {
		if _, err := bw.WriteString(l + crlf); err != nil {
			return eris.Wrap(err, "weather: write met header")
		}
	}

	for _, d := range m.Days {
		row := strings.Join([]string{
			strconv.Itoa(d.Year), strconv.Itoa(d.Day),
			num(d.Radn), num(d.MaxT), num(d.MinT), num(d.Rain), num(d.Snow), num(d.VP), num(d.DayL),
		}, " ")
		if _, err := bw.WriteString(row + crlf); err != nil {
			return eris.Wrap(err, "weather: write met row")
		}
	}
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "weather: flush met")
	}
	return nil
}

// ReadMet parses an APSIM .met file. Constants before the column header
// fill the station metadata; columns are located by name so files written
// by other tools (e.g. with a CO2 column) also load.
func ReadMet(r io.Reader) (*Met, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	m := &Met{}
	var cols map[string]int
	unitsSkipped := false
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(strings.TrimRight(sc.Text(), "\r"))
		if text == "" || strings.HasPrefix(text, "!") || strings.HasPrefix(text, "[") {
			continue
		}

		if cols == nil {
			if k, v, ok := strings.Cut(text, "="); ok {
				setConstant(m, strings.TrimSpace(k), strings.TrimSpace(v))
				continue
			}
			cols = make(map[string]int)
			for i, f := range strings.Fields(text) {
				cols[strings.ToLower(f)] = i
			}
			for _, need := range []string{"year", "day"} {
				if _, ok := cols[need]; !ok {
					return nil, eris.Errorf("weather: met header missing %q column", need)
				}
			}
			continue
		}
		if !unitsSkipped && strings.HasPrefix(text, "(") {
			unitsSkipped = true
			continue
		}

		d, err := parseMetRow(cols, strings.Fields(text))
		if err != nil {
			return nil, eris.Wrapf(err, "weather: met line %d", line)
		}
		m.Days = append(m.Days, d)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "weather: scan met")
	}
	if cols == nil {
		return nil, eris.New("weather: met file has no column header")
	}
	return m, nil
}

func setConstant(m *Met, key, value string) {
	// "latitude = 42.1 (DECIMAL DEGREES)" keeps only the leading number
	first := value
	if f := strings.Fields(value); len(f) > 0 {
		first = f[0]
	}
	n, err := strconv.ParseFloat(first, 64)
	switch strings.ToLower(key) {
	case "stationname", "station name", "stateionname":
		m.Station = value
	case "latitude":
		if err == nil {
			m.Latitude = n
		}
	case "longitude":
		if err == nil {
			m.Longitude = n
		}
	case "tav":
		if err == nil {
			m.Tav = n
		}
	case "amp":
		if err == nil {
			m.Amp = n
		}
	}
}

func parseMetRow(cols map[string]int, fields []string) (Day, error) {
	var d Day
	get := func(name string) (float64, error) {
		i, ok := cols[strings.ToLower(name)]
		if !ok {
			return 0, nil
		}
		if i >= len(fields) {
			return 0, eris.Errorf("weather: row has no %s value", name)
		}
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return 0, eris.Wrapf(err, "weather: %s", name)
		}
		return v, nil
	}

	targets := []struct {
		name string
		dst  *float64
	}{
		{"radn", &d.Radn}, {"maxt", &d.MaxT}, {"mint", &d.MinT}, {"rain", &d.Rain},
		{"snow", &d.Snow}, {"vp", &d.VP}, {"dayL", &d.DayL},
	}
	year, err := get("year")
	if err != nil {
		return d, err
	}
	day, err := get("day")
	if err != nil {
		return d, err
	}
	d.Year, d.Day = int(year), int(day)
	for _, t := range targets {
		if *t.dst, err = get(t.name); err != nil {
			return d, err
		}
	}
	return d, nil
}
