// Package output parses APSIM daily .out files and reduces them to yearly
// summaries for export.
package output

import (
	"bufio"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Missing is the APSIM placeholder for an unavailable value.
const Missing = "?"

// ErrNoTitle is returned when a file carries no run title to identify it.
var ErrNoTitle = eris.New("output: no title")

// Identifiers are the run keys encoded in a simulation title.
type Identifiers struct {
	Title    string
	Field    string
	Mukey    string
	Rotation string
	County   string
	FIPS     string
	Sim      string
}

var (
	fieldRe    = regexp.MustCompile(`name_(.*?)_mukey`)
	mukeyRe    = regexp.MustCompile(`mukey_(.*?)_rot`)
	rotationRe = regexp.MustCompile(`rot_(.*?)_sim`)
	countyRe   = regexp.MustCompile(`County_(.*?)_fips`)
	fipsRe     = regexp.MustCompile(`fips_(.*?)_mukey`)
	simRe      = regexp.MustCompile(`_sim_([^_]+)`)
)

func group(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// ParseIdentifiers extracts run keys from a title such as
// "name_field1_mukey_411278_rot_cfs_sim_2020". Absent keys are left empty.
func ParseIdentifiers(title string) Identifiers {
	return Identifiers{
		Title:    title,
		Field:    group(fieldRe, title),
		Mukey:    group(mukeyRe, title),
		Rotation: group(rotationRe, title),
		County:   group(countyRe, title),
		FIPS:     group(fipsRe, title),
		Sim:      group(simRe, title),
	}
}

// File is one parsed .out file. Rows hold raw cells aligned with Columns.
type File struct {
	Path    string
	Meta    map[string]string
	Columns []string
	Units   []string
	Rows    [][]string
	IDs     Identifiers

	index map[string]int
}

// Parse reads a whitespace-delimited .out file: "key = value" metadata
// lines, a column header, a units row and one row per day.
func Parse(r io.Reader) (*File, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	f := &File{Meta: make(map[string]string)}
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)

		switch {
		case f.Columns == nil:
			if k, v, ok := strings.Cut(text, "="); ok {
				f.Meta[strings.TrimSpace(k)] = strings.TrimSpace(v)
				continue
			}
			f.Columns = fields
		case f.Units == nil && strings.HasPrefix(text, "("):
			f.Units = fields
		default:
			if len(fields) != len(f.Columns) {
				return nil, eris.Errorf("output: line %d has %d fields, header has %d", line, len(fields), len(f.Columns))
			}
			f.Rows = append(f.Rows, fields)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "output: scan")
	}
	if f.Columns == nil {
		return nil, eris.New("output: no column header")
	}

	f.index = make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		f.index[c] = i
	}

	title := f.Meta["Title"]
	if i, ok := f.index["title"]; ok && len(f.Rows) > 0 {
		title = f.Rows[0][i]
	}
	if title == "" {
		return nil, ErrNoTitle
	}
	f.IDs = ParseIdentifiers(title)
	return f, nil
}

// ParseFile parses the .out file at path.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "output: open %s", path)
	}
	defer fh.Close() //nolint:errcheck

	f, err := Parse(fh)
	if err != nil {
		return nil, eris.Wrapf(err, "output: parse %s", filepath.Base(path))
	}
	f.Path = path
	return f, nil
}

// Has reports whether the file has a column.
func (f *File) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns a column as numbers; missing values become NaN.
func (f *File) Column(name string) ([]float64, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, eris.Errorf("output: no column %q", name)
	}
	out := make([]float64, len(f.Rows))
	for r, row := range f.Rows {
		if row[i] == Missing {
			out[r] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "output: %s row %d", name, r+1)
		}
		out[r] = v
	}
	return out, nil
}

// Years returns the distinct simulation years in file order.
func (f *File) Years() ([]int, error) {
	col, err := f.yearColumn()
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var out []int
	for _, y := range col {
		if !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	return out, nil
}

func (f *File) yearColumn() ([]int, error) {
	i, ok := f.index["year"]
	if !ok {
		return nil, eris.New("output: no year column")
	}
	out := make([]int, len(f.Rows))
	for r, row := range f.Rows {
		y, err := strconv.Atoi(row[i])
		if err != nil {
			return nil, eris.Wrapf(err, "output: year row %d", r+1)
		}
		out[r] = y
	}
	return out, nil
}
