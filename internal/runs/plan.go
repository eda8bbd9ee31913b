// Package runs turns a batch plan of field runs into .apsim files, one per
// map unit, laid out for the APSIM runner.
package runs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/foresite-ag/foresite-cli/internal/ingest"
	"github.com/foresite-ag/foresite-cli/internal/mgmt"
)

// DefaultWindow is the number of simulated years ending in the run year.
const DefaultWindow = 4

// Run is one field, rotation and target year.
type Run struct {
	Rotation   string   `yaml:"rotation"`
	RunsFolder string   `yaml:"runs_folder"` // output folder name; defaults to Field
	Field      string   `yaml:"field"`       // management file prefix and title name
	MetFile    string   `yaml:"met_file"`
	EndYear    int      `yaml:"end_year"`
	Shapefile  string   `yaml:"shapefile"` // zone layer under <root>/ssurgo
	Mukeys     []string `yaml:"mukeys"`    // used when Shapefile is empty
	MgmtFolder string   `yaml:"mgmt_folder"`
}

// String identifies the run in logs and reports.
func (r Run) String() string {
	return fmt.Sprintf("%s/%s/%d", r.Field, r.Rotation, r.EndYear)
}

// Folder is the output folder name.
func (r Run) Folder() string {
	if r.RunsFolder != "" {
		return r.RunsFolder
	}
	return r.Field
}

// Plan is a batch of runs sharing a project root.
type Plan struct {
	Root        string            `yaml:"root"`
	MetFolder   string            `yaml:"met_folder"` // under <root>/met_files
	Window      int               `yaml:"window"`
	SWIM        bool              `yaml:"swim"`
	SaxtonRawls bool              `yaml:"saxton_rawls"`
	Crops       map[string]string `yaml:"crops"` // crop module name -> XML template
	Runs        []Run             `yaml:"runs"`
}

// Validate checks every run and fills defaults.
func (p *Plan) Validate() error {
	if p.Root == "" {
		return eris.New("runs: plan has no root")
	}
	if p.Window == 0 {
		p.Window = DefaultWindow
	}
	if p.Window < 2 {
		return eris.Errorf("runs: window %d must cover at least two years", p.Window)
	}
	if len(p.Runs) == 0 {
		return eris.New("runs: plan has no runs")
	}
	for i, r := range p.Runs {
		rot, err := mgmt.ParseRotation(r.Rotation)
		if err != nil {
			return eris.Wrapf(err, "runs: run %d", i+1)
		}
		p.Runs[i].Rotation = string(rot)
		switch {
		case r.Field == "":
			return eris.Errorf("runs: run %d has no field", i+1)
		case r.MetFile == "":
			return eris.Errorf("runs: run %s has no met file", r)
		case r.EndYear < 1900:
			return eris.Errorf("runs: run %s has no end year", r)
		case r.Shapefile == "" && len(r.Mukeys) == 0:
			return eris.Errorf("runs: run %s has neither shapefile nor mukeys", r)
		}
	}
	return nil
}

// StartYear is the first simulated year of a run.
func (p *Plan) StartYear(r Run) int { return r.EndYear - p.Window + 1 }

// OutDir is where a run's .apsim files are written.
func (p *Plan) OutDir(r Run) string {
	return filepath.Join(p.Root, "apsim_files", r.Folder(), strconv.Itoa(r.EndYear), r.Rotation)
}

// MetSource is the met file copied into a run's output directory.
func (p *Plan) MetSource(r Run) string {
	return filepath.Join(p.Root, "met_files", p.MetFolder, r.MetFile)
}

// ShapefilePath resolves a run's zone layer.
func (p *Plan) ShapefilePath(r Run) string {
	if filepath.IsAbs(r.Shapefile) {
		return r.Shapefile
	}
	return filepath.Join(p.Root, "ssurgo", r.Shapefile)
}

// MgmtFile names the management file of a field for a rotation and year.
func MgmtFile(field string, rot mgmt.Rotation, year int) string {
	return fmt.Sprintf("%s_%s_%d.json", field, rot, year)
}

// MgmtFiles returns the plan file for each crop of a run: the run year comes
// from the run's own rotation and the prior year from the opposite one.
func (p *Plan) MgmtFiles(r Run) map[mgmt.Crop]string {
	rot := mgmt.Rotation(r.Rotation)
	dir := filepath.Join(p.Root, r.MgmtFolder)
	out := map[mgmt.Crop]string{
		rot.CropFor(r.EndYear, r.EndYear): filepath.Join(dir, MgmtFile(r.Field, rot, r.EndYear)),
	}
	if prior := rot.CropFor(r.EndYear-1, r.EndYear); prior != rot.CropFor(r.EndYear, r.EndYear) {
		out[prior] = filepath.Join(dir, MgmtFile(r.Field, rot.Opposite(), r.EndYear-1))
	}
	return out
}

// LoadPlan reads a plan. YAML files hold the whole plan; .csv and .xlsx
// tables hold one run per row and take root and met folder from defaults.
func LoadPlan(ctx context.Context, path string, defaults Plan) (*Plan, error) {
	var p Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "runs: read plan %s", path)
		}
		p = defaults
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, eris.Wrapf(err, "runs: parse plan %s", path)
		}
	default:
		tbl, err := ingest.ReadTable(ctx, path)
		if err != nil {
			return nil, eris.Wrap(err, "runs: read plan table")
		}
		p = defaults
		p.Runs = nil
		for i := range tbl.Rows {
			r, err := runFromRow(tbl, i)
			if err != nil {
				return nil, eris.Wrapf(err, "runs: %s row %d", filepath.Base(path), i+2)
			}
			p.Runs = append(p.Runs, r)
		}
	}

	if p.Root == "" {
		p.Root = filepath.Dir(path)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func runFromRow(t *ingest.Table, i int) (Run, error) {
	r := Run{
		Rotation:   t.Get(i, "rotation"),
		RunsFolder: t.Get(i, "runs_folder"),
		Field:      t.Get(i, "field"),
		MetFile:    t.Get(i, "met_file"),
		Shapefile:  t.Get(i, "shapefile"),
		MgmtFolder: t.Get(i, "mgmt_folder"),
	}
	if y := t.Get(i, "end_year"); y != "" {
		// Excel renders whole numbers as "2020" but may carry "2020.0".
		f, err := strconv.ParseFloat(y, 64)
		if err != nil {
			return r, eris.Wrapf(err, "end_year %q", y)
		}
		r.EndYear = int(f)
	}
	for _, m := range strings.FieldsFunc(t.Get(i, "mukeys"), func(c rune) bool { return c == ';' || c == ' ' }) {
		r.Mukeys = append(r.Mukeys, m)
	}
	return r, nil
}
