// Package apsimfile assembles complete APSIM classic (.apsim) documents from
// a soil profile, a weather file and an operations schedule.
package apsimfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/foresite-ag/foresite-cli/internal/apsimxml"
	"github.com/foresite-ag/foresite-cli/internal/mgmt"
	"github.com/foresite-ag/foresite-cli/internal/soil"
)

const (
	version    = "36"
	creator    = "Apsim_Wrapper"
	folderName = "S1"
	metName    = "foresite_weather"
	dateXAxis  = "Date"
)

// DefaultVariables are the daily output variables written for every run.
// The yield conversions come from the manager script.
var DefaultVariables = []string{
	"dd/mm/yyyy as date",
	"title",
	"day",
	"year",
	"soybean.yield as soybean_yield",
	"maize.yield as maize_yield",
	"soy_mktyd",
	"maz_mktyd",
	"soy_ymgha",
	"maz_ymgha",
	"soybean.biomass as soybean_biomass",
	"maize.biomass as maize_biomass",
	"fertiliser",
	"surfaceom_c",
	"leach_no3",
	"corn_buac",
	"soy_buac",
	"Rain",
	"drain",
}

// SWIMVariables are appended to the output when the SWIM water module runs.
var SWIMVariables = []string{"subsurface_drain", "subsurface_drain_no3"}

// Graph is an XY chart attached to the output file.
type Graph struct {
	Title string
	X     string
	Y     []string
}

// DefaultGraphs chart nitrate losses, yields and everything together.
var DefaultGraphs = []Graph{
	{Title: "no3", X: dateXAxis, Y: []string{
		"Cumulative subsurface_drain",
		"Cumulative subsurface_drain_no3",
		"Cumulative leach_no3",
	}},
	{Title: "yield", X: dateXAxis, Y: []string{"yield", "biomass", "corn_buac"}},
	{Title: "all outputs", X: dateXAxis, Y: []string{
		"yield",
		"biomass",
		"fertiliser",
		"surfaceom_c",
		"Cumulative subsurface_drain",
		"Cumulative subsurface_drain_no3",
		"Cumulative leach_no3",
		"corn_buac",
		"soy_buac",
	}},
}

// SurfaceOM is the initial surface residue pool.
type SurfaceOM struct {
	Pool             string
	Type             string
	Mass             float64 // kg/ha
	CNR              float64
	StandingFraction float64
}

// DefaultSurfaceOM is 3.5 t/ha of maize residue.
var DefaultSurfaceOM = SurfaceOM{Pool: "maize", Type: "maize", Mass: 3500, CNR: 65}

// DefaultCrops are the crop modules added to the paddock.
var DefaultCrops = []string{"maize", "soybean", "wheat"}

// Simulation holds everything needed to render one .apsim file.
type Simulation struct {
	Name      string // simulation name
	Title     string // output title, also the .out file stem
	MetFile   string // path relative to the .apsim file
	StartDate string // dd/mm/yyyy
	EndDate   string // dd/mm/yyyy

	Soil      *soil.Profile
	SurfaceOM SurfaceOM

	// Crops lists crop module names; CropXML overrides a name with a
	// complete element, e.g. one loaded with LoadCrop.
	Crops   []string
	CropXML map[string]*apsimxml.Node

	Variables []string
	Graphs    []Graph

	Schedule *mgmt.Schedule
	Drainage *mgmt.Drainage
}

// Clock returns the first and last simulated day for a year range.
func Clock(startYear, endYear int) (start, end string) {
	return fmt.Sprintf("01/01/%d", startYear), fmt.Sprintf("31/12/%d", endYear)
}

// Title encodes the run identifiers recovered later from .out files.
func Title(field, mukey string, rotation mgmt.Rotation, endYear int) string {
	return fmt.Sprintf("name_%s_mukey_%s_rot_%s_sim_%d", field, mukey, rotation, endYear)
}

// Build renders the simulation as a <folder> document.
func Build(s Simulation) (*apsimxml.Node, error) {
	switch {
	case s.Soil == nil:
		return nil, eris.New("apsimfile: simulation has no soil profile")
	case s.Schedule == nil:
		return nil, eris.New("apsimfile: simulation has no operations schedule")
	case s.Title == "":
		return nil, eris.New("apsimfile: simulation has no title")
	case s.MetFile == "":
		return nil, eris.New("apsimfile: simulation has no met file")
	}

	name := s.Name
	if name == "" {
		name = s.Title
	}
	crops := s.Crops
	if crops == nil {
		crops = DefaultCrops
	}
	vars := s.Variables
	if vars == nil {
		vars = DefaultVariables
		if s.Soil.Options.SWIM {
			vars = append(append([]string{}, DefaultVariables...), SWIMVariables...)
		}
	}
	graphs := s.Graphs
	if graphs == nil {
		graphs = DefaultGraphs
	}
	drain := s.Drainage
	if drain == nil && s.Soil.Options.SWIM {
		drain = &mgmt.DefaultDrainage
	}

	area := apsimxml.Elem("area",
		s.Soil.XML(),
		surfaceOM(s.SurfaceOM),
		apsimxml.Elem("fertiliser"),
	).Set("name", "paddock")
	for _, c := range crops {
		if n, ok := s.CropXML[c]; ok {
			area.Add(n)
			continue
		}
		area.Add(apsimxml.Elem(c))
	}
	area.Add(
		OutputFile(s.Title+".out", vars, graphs),
		mgmt.ManagerFolder(s.Schedule, drain),
	)

	sim := apsimxml.Elem("simulation",
		apsimxml.Elem("metfile",
			apsimxml.Text("filename", s.MetFile).Set("name", "filename").Set("input", "yes"),
		).Set("name", metName),
		apsimxml.Elem("clock",
			dateNode("start_date", s.StartDate, "Enter the start date of the simulation"),
			dateNode("end_date", s.EndDate, "Enter the end date of the simulation"),
		),
		apsimxml.Elem("summaryfile"),
		area,
	).Set("name", name)

	return apsimxml.Elem("folder", sim).
		Set("version", version).
		Set("creator", creator).
		Set("name", folderName), nil
}

func dateNode(name, value, desc string) *apsimxml.Node {
	return apsimxml.Text(name, value).Set("type", "date").Set("description", desc)
}

func described(name, desc, value string) *apsimxml.Node {
	return apsimxml.Text(name, value).Set("description", desc).Set("type", "text")
}

func surfaceOM(om SurfaceOM) *apsimxml.Node {
	if om.Pool == "" {
		om = DefaultSurfaceOM
	}
	return apsimxml.Elem("surfaceom",
		described("PoolName", "Organic Matter pool name", om.Pool),
		described("type", "Organic Matter type", om.Type),
		described("mass", "Initial surface residue (kg/ha)", apsimxml.Num(om.Mass)),
		described("cnr", "C:N ratio of initial residue", apsimxml.Num(om.CNR)),
		described("standing_fraction", "Fraction of residue standing", apsimxml.Num(om.StandingFraction)),
	).Set("name", "SurfaceOrganicMatter")
}

// OutputFile renders the daily output file component with its graphs.
func OutputFile(filename string, vars []string, graphs []Graph) *apsimxml.Node {
	variables := apsimxml.Elem("variables").Set("name", "Output Variables")
	for _, v := range vars {
		variables.Add(apsimxml.Text("variable", v))
	}
	variables.Add(apsimxml.Elem("constants",
		apsimxml.Text("constant", "5").Set("name", "precision"),
	))

	out := apsimxml.Elem("outputfile",
		apsimxml.Text("filename", filename).Set("name", "filename").Set("output", "yes"),
		apsimxml.Text("title", strings.SplitN(filename, ".", 2)[0]),
		variables,
		apsimxml.Elem("events",
			apsimxml.Text("event", "daily"),
		).Set("name", "Output variable events"),
	)
	for _, g := range graphs {
		out.Add(g.XML())
	}
	return out
}

// XML renders the graph as a <Graph> element.
func (g Graph) XML() *apsimxml.Node {
	plot := apsimxml.Elem("Plot",
		apsimxml.Text("SeriesType", "Solid line"),
		apsimxml.Text("PointType", "Circle"),
		apsimxml.Elem("colour"),
		apsimxml.Text("X", g.X),
	)
	for _, y := range g.Y {
		plot.Add(apsimxml.Text("Y", y))
	}
	plot.Add(apsimxml.Elem("GDApsimFileReader").Set("name", "ApsimFileReader"))

	return apsimxml.Elem("Graph",
		apsimxml.Elem("Legend", apsimxml.Elem("CheckedTitles")),
		plot,
	).Set("name", g.Title)
}

// LoadCrop reads a crop module element (e.g. a customised maize with extra
// cultivars) from an XML file.
func LoadCrop(path string) (*apsimxml.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "apsimfile: open crop %s", path)
	}
	defer f.Close() //nolint:errcheck

	n, err := apsimxml.Decode(f)
	if err != nil {
		return nil, eris.Wrapf(err, "apsimfile: crop %s", path)
	}
	return n, nil
}

// Write writes doc to path with an XML header, creating parent directories.
func Write(path string, doc *apsimxml.Node) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "apsimfile: create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "apsimfile: create %s", path)
	}
	if err := apsimxml.Encode(f, doc, true); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "apsimfile: write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "apsimfile: close %s", path)
	}
	return nil
}
