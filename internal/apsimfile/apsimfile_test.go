package apsimfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/apsimxml"
	"github.com/foresite-ag/foresite-cli/internal/mgmt"
	"github.com/foresite-ag/foresite-cli/internal/soil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testProfile(t *testing.T, swim bool) *soil.Profile {
	t.Helper()
	f := soil.F
	p, err := soil.NewProfile("411278", []soil.Horizon{
		{Mukey: "411278", Top: 0, Bottom: 30, Clay: f(25), Sand: f(30), OM: f(3), BD: f(1.3), WFifteenBar: f(15), WThirdBar: f(30), KSat: f(9), PH: f(6.2)},
		{Mukey: "411278", Top: 30, Bottom: 200, Clay: f(30), Sand: f(25), OM: f(1), BD: f(1.45), WFifteenBar: f(18), WThirdBar: f(32), KSat: f(5), PH: f(6.8)},
	}, soil.Options{SWIM: swim})
	require.NoError(t, err)
	return p
}

func testSchedule(t *testing.T) *mgmt.Schedule {
	t.Helper()
	corn := mgmt.NewDict(
		"kg_n_ha", "168", "n_fertilizer", "UAN_N", "fert_depth", "50", "fertilize_n_on", "25-apr",
		"sow_crop", "maize", "cultivar", "B_110", "sowing_density", "8", "sowing_depth", "50",
		"row_spacing", "760", "planting_date", "5-may", "harvest_crop", "maize", "harvest_date", "15-oct",
	)
	s, err := mgmt.NewExpander(mgmt.DefaultKeys(), mgmt.MatchPrefix).
		Schedule(mgmt.ContinuousCorn, 2020, 2, map[mgmt.Crop]*mgmt.Dict{mgmt.Corn: corn})
	require.NoError(t, err)
	return s
}

func testSimulation(t *testing.T, swim bool) Simulation {
	start, end := Clock(2017, 2020)
	return Simulation{
		Name:      "field1",
		Title:     Title("field1", "411278", mgmt.ContinuousCorn, 2020),
		MetFile:   "met_files/field1.met",
		StartDate: start,
		EndDate:   end,
		Soil:      testProfile(t, swim),
		Schedule:  testSchedule(t),
	}
}

func names(n *apsimxml.Node) []string {
	out := make([]string, len(n.Nodes))
	for i, c := range n.Nodes {
		out[i] = c.Name()
	}
	return out
}

func TestTitleAndClock(t *testing.T) {
	assert.Equal(t, "name_field1_mukey_411278_rot_cfs_sim_2020", Title("field1", "411278", mgmt.CornAfterSoy, 2020))

	start, end := Clock(2017, 2020)
	assert.Equal(t, "01/01/2017", start)
	assert.Equal(t, "31/12/2020", end)
}

func TestBuild_Structure(t *testing.T) {
	doc, err := Build(testSimulation(t, false))
	require.NoError(t, err)

	assert.Equal(t, "folder", doc.Name())
	assert.Equal(t, "36", doc.Attr("version"))
	assert.Equal(t, "Apsim_Wrapper", doc.Attr("creator"))
	assert.Equal(t, "S1", doc.Attr("name"))

	sim := doc.Child("simulation")
	require.NotNil(t, sim)
	assert.Equal(t, "field1", sim.Attr("name"))
	assert.Equal(t, []string{"metfile", "clock", "summaryfile", "area"}, names(sim))

	met := sim.Child("metfile")
	assert.Equal(t, "foresite_weather", met.Attr("name"))
	assert.Equal(t, "met_files/field1.met", met.Child("filename").Text)
	assert.Equal(t, "yes", met.Child("filename").Attr("input"))

	clock := sim.Child("clock")
	assert.Equal(t, "01/01/2017", clock.Child("start_date").Text)
	assert.Equal(t, "date", clock.Child("start_date").Attr("type"))
	assert.Equal(t, "31/12/2020", clock.Child("end_date").Text)

	area := sim.Child("area")
	assert.Equal(t, "paddock", area.Attr("name"))
	assert.Equal(t, []string{"Soil", "surfaceom", "fertiliser", "maize", "soybean", "wheat", "outputfile", "folder"}, names(area))
}

func TestBuild_SurfaceOMDefaults(t *testing.T) {
	doc, err := Build(testSimulation(t, false))
	require.NoError(t, err)

	om := doc.Find("simulation", "area", "surfaceom")
	require.NotNil(t, om)
	assert.Equal(t, "SurfaceOrganicMatter", om.Attr("name"))
	assert.Equal(t, "maize", om.Child("PoolName").Text)
	assert.Equal(t, "3500", om.Child("mass").Text)
	assert.Equal(t, "65", om.Child("cnr").Text)
	assert.Equal(t, "0", om.Child("standing_fraction").Text)
	assert.Equal(t, "Initial surface residue (kg/ha)", om.Child("mass").Attr("description"))
	assert.Equal(t, "text", om.Child("mass").Attr("type"))
}

func TestBuild_OutputFile(t *testing.T) {
	doc, err := Build(testSimulation(t, false))
	require.NoError(t, err)

	out := doc.Find("simulation", "area", "outputfile")
	require.NotNil(t, out)
	assert.Equal(t, "name_field1_mukey_411278_rot_cc_sim_2020.out", out.Child("filename").Text)
	assert.Equal(t, "name_field1_mukey_411278_rot_cc_sim_2020", out.Child("title").Text)

	vars := out.Child("variables")
	assert.Equal(t, "Output Variables", vars.Attr("name"))
	assert.Len(t, vars.Children("variable"), len(DefaultVariables))
	assert.Equal(t, "5", vars.Child("constants").Child("constant").Text)
	assert.Equal(t, "daily", out.Child("events").Child("event").Text)

	graphs := out.Children("Graph")
	require.Len(t, graphs, 3)
	assert.Equal(t, "no3", graphs[0].Attr("name"))
	plot := graphs[1].Child("Plot")
	assert.Equal(t, "Date", plot.Child("X").Text)
	assert.Len(t, plot.Children("Y"), 3)
	assert.Equal(t, "ApsimFileReader", plot.Child("GDApsimFileReader").Attr("name"))
}

func TestBuild_SWIMAddsDrainOutputs(t *testing.T) {
	doc, err := Build(testSimulation(t, true))
	require.NoError(t, err)

	vars := doc.Find("simulation", "area", "outputfile", "variables").Children("variable")
	assert.Len(t, vars, len(DefaultVariables)+len(SWIMVariables))
	assert.Equal(t, "subsurface_drain_no3", vars[len(vars)-1].Text)

	assert.NotNil(t, doc.Find("simulation", "area", "Soil", "Swim"))

	script := doc.Find("simulation", "area", "folder", "manager").Children("script")[1].Child("text").Text
	assert.Contains(t, script, "\nbbc_potential = 200 - 100")
}

func TestBuild_CropTemplates(t *testing.T) {
	sim := testSimulation(t, false)
	sim.Crops = []string{"maize", "soybean"}
	sim.CropXML = map[string]*apsimxml.Node{
		"maize": apsimxml.Elem("maize", apsimxml.Text("ini", "custom")),
	}

	doc, err := Build(sim)
	require.NoError(t, err)
	area := doc.Find("simulation", "area")
	assert.Equal(t, "custom", area.Child("maize").Child("ini").Text)
	assert.NotNil(t, area.Child("soybean"))
	assert.Nil(t, area.Child("wheat"))
}

func TestBuild_Validation(t *testing.T) {
	sim := testSimulation(t, false)
	sim.Soil = nil
	_, err := Build(sim)
	assert.Error(t, err)

	sim = testSimulation(t, false)
	sim.Schedule = nil
	_, err = Build(sim)
	assert.Error(t, err)

	sim = testSimulation(t, false)
	sim.MetFile = ""
	_, err = Build(sim)
	assert.Error(t, err)
}

func TestWriteAndLoadCrop(t *testing.T) {
	doc, err := Build(testSimulation(t, false))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cc", "run.apsim")
	require.NoError(t, Write(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, string(data), `<folder version="36" creator="Apsim_Wrapper" name="S1">`)
	assert.Contains(t, string(data), "<action>maize end_crop</action>")

	cropPath := filepath.Join(t.TempDir(), "maize.xml")
	require.NoError(t, os.WriteFile(cropPath, []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n<maize><cultivar>B_110</cultivar></maize>"), 0o644))
	crop, err := LoadCrop(cropPath)
	require.NoError(t, err)
	assert.Equal(t, "maize", crop.Name())
	assert.Equal(t, "B_110", crop.Child("cultivar").Text)

	_, err = LoadCrop(filepath.Join(t.TempDir(), "nope.xml"))
	assert.Error(t, err)
}
