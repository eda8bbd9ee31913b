package mgmt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/apsimxml"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

const cornPlan = `{
	"tillage_implement": "chisel",
	"tillage_depth": 150,
	"fract_residue_incorp": 0.3,
	"tillage_date": "20-apr",
	"kg_n_ha": 168,
	"n_fertilizer": "UAN_N",
	"fert_depth": 50,
	"fertilize_n_on": "25-apr",
	"sow_crop": "maize",
	"cultivar": "B_110",
	"sowing_density": 8,
	"sowing_depth": 50,
	"row_spacing": 760,
	"planting_date": "5-may",
	"harvest_crop": "maize",
	"harvest_date": "15-oct"
}`

const soyPlan = `{
	"tillage_implement": "disk",
	"tillage_depth": 100,
	"fract_residue_incorp": 0,
	"tillage_date": "1-may",
	"kg_n_ha": 0,
	"n_fertilizer": "NO3N",
	"fert_depth": 0,
	"fertilize_n_on": "1-may",
	"sow_crop": "soybean",
	"cultivar": "MG_2",
	"sowing_density": 35,
	"sowing_depth": 40,
	"row_spacing": 380,
	"planting_date": "12-may",
	"harvest_crop": "soybean",
	"harvest_date": "1-oct"
}`

func mustDict(t *testing.T, s string) *Dict {
	t.Helper()
	d, err := DecodeDict([]byte(s))
	require.NoError(t, err)
	return d
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in   string
		year int
		want string
	}{
		{"23-apr", 2018, "23/4/2018"},
		{"1-oct", 2019, "1/10/2019"},
		{"01-oct", 2019, "1/10/2019"},
		{"15-Oct", 2020, "15/10/2020"},
		{"3-june", 2021, "3/6/2021"},
	}
	for _, tt := range tests {
		got, err := FormatDate(tt.in, tt.year)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "apr-23", "23/4", "32-apr", "5-xyz", "5-apr-2018"} {
		_, err := FormatDate(in, 2018)
		require.Error(t, err, in)
		assert.True(t, eris.Is(err, ErrBadDate), in)
	}
}

func TestDecodeDict_JSONKeepsOrder(t *testing.T) {
	d := mustDict(t, `{"b_x": 1, "a_x": 2.50, "c_x": null, "d_x": "txt", "e": true}`)
	require.Len(t, d.Entries, 5)
	assert.Equal(t, "b_x", d.Entries[0].Key)
	assert.Equal(t, "a_x", d.Entries[1].Key)
	assert.Equal(t, "2.50", d.Entries[1].Value.Raw)
	assert.True(t, d.Entries[2].Value.Null)
	assert.Equal(t, "txt", d.Entries[3].Value.String())
	assert.Equal(t, "true", d.Entries[4].Value.Raw)
}

func TestDecodeDict_YAML(t *testing.T) {
	d := mustDict(t, "kg_n_ha: 50\ncultivar: ~\nplanting_date: 5-may\n")
	require.Len(t, d.Entries, 3)
	assert.Equal(t, "kg_n_ha", d.Entries[0].Key)
	assert.True(t, d.Entries[1].Value.Null)
	assert.Equal(t, "5-may", d.Entries[2].Value.Raw)
}

func TestDecodeDict_Errors(t *testing.T) {
	for _, in := range []string{"", "[1,2]", `{"a": {"b": 1}}`, "- a\n- b\n", "a:\n  b: 1\n"} {
		_, err := DecodeDict([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestLoadDict(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field_cfs_2020.json")
	require.NoError(t, os.WriteFile(path, []byte(cornPlan), 0o644))

	d, err := LoadDict(path)
	require.NoError(t, err)
	v, ok := d.Get("cultivar")
	require.True(t, ok)
	assert.Equal(t, "B_110", v.Raw)

	_, err = LoadDict(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValues_PrefixVersusSubstring(t *testing.T) {
	d := NewDict(
		"tillage_depth", "150",
		"fall_tillage_depth", "200",
		"tillage_depth_2", "100",
		"sowing_depth", "50",
	)

	prefix := d.Values("tillage_depth", MatchPrefix)
	require.Len(t, prefix, 2)
	assert.Equal(t, "150", prefix[0].Raw)
	assert.Equal(t, "100", prefix[1].Raw)

	sub := d.Values("tillage_depth", MatchSubstring)
	assert.Len(t, sub, 3)

	assert.Len(t, d.Values("depth", MatchSubstring), 4)
	assert.Empty(t, d.Values("depth", MatchPrefix))
}

func TestParseMatchMode(t *testing.T) {
	m, err := ParseMatchMode("substring")
	require.NoError(t, err)
	assert.Equal(t, MatchSubstring, m)

	m, err = ParseMatchMode("")
	require.NoError(t, err)
	assert.Equal(t, MatchPrefix, m)

	_, err = ParseMatchMode("regex")
	assert.Error(t, err)
}

func TestExpanderYear_OrderAndActions(t *testing.T) {
	e := NewExpander(DefaultKeys(), MatchPrefix)
	ops, err := e.Year(mustDict(t, cornPlan), 2020)
	require.NoError(t, err)
	require.Len(t, ops, 4)

	assert.Equal(t, []Kind{Tillage, Fertilizer, Planting, Harvest},
		[]Kind{ops[0].Kind, ops[1].Kind, ops[2].Kind, ops[3].Kind})

	assert.Equal(t, "20/4/2020", ops[0].Date)
	assert.Equal(t, "SurfaceOrganicMatter tillage type = chisel, f_incorp = 0.3 (0-1), tillage_depth = 150 (mm)", ops[0].Action)
	assert.Equal(t, "Fertiliser apply amount = 168 (kg/ha), depth = 50 (mm), type = UAN_N ()", ops[1].Action)
	assert.Equal(t, "maize sow plants = 8 (plants/m2), sowing_depth = 50 (mm), cultivar = B_110, row_spacing = 760 (mm), crop_class = plant", ops[2].Action)
	assert.Equal(t, "5/5/2020", ops[2].Date)
	assert.Equal(t, "maize end_crop", ops[3].Action)
	assert.Equal(t, "15/10/2020", ops[3].Date)
}

func TestExpanderYear_FertilizerSkipRule(t *testing.T) {
	e := NewExpander(DefaultKeys(), MatchPrefix)
	count := func(rate string) int {
		d := NewDict("kg_n_ha", rate, "n_fertilizer", "UAN_N", "fert_depth", "0", "fertilize_n_on", "1-may")
		ops, err := e.Year(d, 2019)
		require.NoError(t, err)
		n := 0
		for _, o := range ops {
			if o.Kind == Fertilizer {
				n++
			}
		}
		return n
	}

	assert.Equal(t, 0, count("0"))
	assert.Equal(t, 0, count("-5"))
	assert.Equal(t, 0, count("null"))
	assert.Equal(t, 1, count("50"))
}

func TestExpanderYear_TillageAndPlantingSkips(t *testing.T) {
	e := NewExpander(DefaultKeys(), MatchPrefix)
	ops, err := e.Year(mustDict(t, soyPlan), 2019)
	require.NoError(t, err)

	// no incorporation and no N: only planting and harvest remain
	require.Len(t, ops, 2)
	assert.Equal(t, Planting, ops[0].Kind)
	assert.Equal(t, Harvest, ops[1].Kind)

	d := NewDict("sow_crop", "maize", "cultivar", "null", "sowing_density", "8",
		"sowing_depth", "50", "row_spacing", "760", "planting_date", "5-may",
		"harvest_crop", "null", "harvest_date", "15-oct")
	ops, err = e.Year(d, 2019)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestExpanderYear_MultipleRowsZipToShortest(t *testing.T) {
	d := NewDict(
		"kg_n_ha", "40", "n_fertilizer", "NH3", "fert_depth", "100", "fertilize_n_on", "10-apr",
		"kg_n_ha_2", "60", "n_fertilizer_2", "UAN_N", "fert_depth_2", "0", "fertilize_n_on_2", "15-jun",
		"kg_n_ha_3", "30",
	)
	ops, err := NewExpander(DefaultKeys(), MatchPrefix).Year(d, 2020)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "10/4/2020", ops[0].Date)
	assert.Equal(t, "15/6/2020", ops[1].Date)
	assert.Contains(t, ops[1].Action, "type = UAN_N")
}

func TestExpanderYear_Manure(t *testing.T) {
	d := NewDict(
		"manure_type", "manure", "manure_name", "swine", "manure_mass", "5000",
		"manure_cnr", "10", "manure_cpr", "40", "manure_date", "1-nov",
		"sow_crop", "maize", "cultivar", "B_110", "sowing_density", "8",
		"sowing_depth", "50", "row_spacing", "760", "planting_date", "5-may",
	)
	ops, err := NewExpander(DefaultKeys(), MatchPrefix).Year(d, 2020)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, Manure, ops[0].Kind)
	assert.Equal(t, "SurfaceOrganicMatter add_surfaceom type = manure, name = swine, mass = 5000 (kg/ha), cnr = 10, cpr = 40", ops[0].Action)
	assert.Equal(t, Planting, ops[1].Kind)
}

func TestExpanderYear_Errors(t *testing.T) {
	e := NewExpander(DefaultKeys(), MatchPrefix)

	_, err := e.Year(NewDict("kg_n_ha", "lots", "n_fertilizer", "UAN_N", "fert_depth", "0", "fertilize_n_on", "1-may"), 2020)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not numeric")

	_, err = e.Year(NewDict("kg_n_ha", "50", "n_fertilizer", "UAN_N", "fert_depth", "0", "fertilize_n_on", "may-1"), 2020)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrBadDate))
}

func TestExpanderYear_TaskKeysDefaults(t *testing.T) {
	task := NewDict(
		"implement", "user_defined", "depth", "100", "residue_incorporation", "0.5", "timing", "15-apr",
		"kg_n_ha", "150", "n_fertilizer", "NO3N", "fertilize_n_on", "20-apr",
		"sow_crop", "soybean", "cultivar", "MG_2", "sowing_density", "35", "sowing_depth", "40",
		"row_spacing", "380", "planting_dates", "10-may", "harvest", "soybean",
	)
	ops, err := NewExpander(TaskKeys(), MatchPrefix).Year(task, 2019)
	require.NoError(t, err)
	require.Len(t, ops, 4)
	assert.Contains(t, ops[1].Action, "depth = 0.0 (mm)")
	assert.Equal(t, "1/10/2019", ops[3].Date)
	assert.Equal(t, "soybean end_crop", ops[3].Action)
}

func TestRotation_CropFor(t *testing.T) {
	assert.Equal(t, Corn, CornAfterSoy.CropFor(2018, 2020))
	assert.Equal(t, Soybean, CornAfterSoy.CropFor(2019, 2020))
	assert.Equal(t, Corn, CornAfterSoy.CropFor(2020, 2020))

	assert.Equal(t, Soybean, SoyAfterCorn.CropFor(2018, 2020))
	assert.Equal(t, Corn, SoyAfterCorn.CropFor(2019, 2020))
	assert.Equal(t, Soybean, SoyAfterCorn.CropFor(2020, 2020))

	for y := 2018; y <= 2020; y++ {
		assert.Equal(t, Corn, ContinuousCorn.CropFor(y, 2020))
	}

	assert.Equal(t, SoyAfterCorn, CornAfterSoy.Opposite())
	assert.Equal(t, CornAfterSoy, SoyAfterCorn.Opposite())
	assert.Equal(t, ContinuousCorn, ContinuousCorn.Opposite())
}

func TestParseRotation(t *testing.T) {
	r, err := ParseRotation(" CFS ")
	require.NoError(t, err)
	assert.Equal(t, CornAfterSoy, r)

	_, err = ParseRotation("other")
	assert.Error(t, err)
}

func TestSchedule_CornAfterSoyAlternates(t *testing.T) {
	e := NewExpander(DefaultKeys(), MatchPrefix)
	plans := map[Crop]*Dict{Corn: mustDict(t, cornPlan), Soybean: mustDict(t, soyPlan)}

	s, err := e.Schedule(CornAfterSoy, 2020, 3, plans)
	require.NoError(t, err)
	require.Len(t, s.Years, 3)

	assert.Equal(t, 2018, s.Years[0].Year)
	assert.Equal(t, Corn, s.Years[0].Crop)
	assert.Equal(t, 2019, s.Years[1].Year)
	assert.Equal(t, Soybean, s.Years[1].Crop)
	assert.Equal(t, 2020, s.Years[2].Year)
	assert.Equal(t, Corn, s.Years[2].Crop)

	ops := s.Operations()
	require.Len(t, ops, 4+2+4)
	assert.Equal(t, "20/4/2018", ops[0].Date)
	assert.Equal(t, "soybean sow plants = 35 (plants/m2), sowing_depth = 40 (mm), cultivar = MG_2, row_spacing = 380 (mm), crop_class = plant", ops[4].Action)
	assert.Equal(t, "15/10/2020", ops[len(ops)-1].Date)
}

func TestSchedule_MissingPlan(t *testing.T) {
	e := NewExpander(DefaultKeys(), MatchPrefix)
	_, err := e.Schedule(SoyAfterCorn, 2020, 3, map[Crop]*Dict{Corn: mustDict(t, cornPlan)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no management plan for soybean")

	_, err = e.Schedule(ContinuousCorn, 2020, 0, nil)
	assert.Error(t, err)
}

func TestChain_SortsYears(t *testing.T) {
	e := NewExpander(DefaultKeys(), MatchPrefix)
	s, err := e.Chain([]YearPlan{
		{Year: 2019, Crop: Corn, Dict: mustDict(t, cornPlan)},
		{Year: 2017, Crop: Corn, Dict: mustDict(t, cornPlan)},
		{Year: 2018, Crop: Soybean, Dict: mustDict(t, soyPlan)},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2017, 2018, 2019}, []int{s.Years[0].Year, s.Years[1].Year, s.Years[2].Year})
}

func TestDetectRotation(t *testing.T) {
	tests := []struct {
		name    string
		history []CropYear
		want    Rotation
	}{
		{"ends in soy", []CropYear{{2018, "Corn"}, {2019, "Soybean"}, {2017, "Soybean"}}, SoyAfterCorn},
		{"ends in corn", []CropYear{{2019, "Soybean"}, {2020, "Corn"}}, CornAfterSoy},
		{"all corn", []CropYear{{2019, "Corn"}, {2020, "Corn"}}, ContinuousCorn},
		{"corn with other", []CropYear{{2019, "Alfalfa"}, {2020, "Corn"}}, ContinuousCorn},
		{"no corn", []CropYear{{2019, "Soybean"}, {2020, "Wheat"}}, RotationOther},
		{"empty", nil, RotationOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectRotation(tt.history))
		})
	}
}

func TestManagerFolder(t *testing.T) {
	e := NewExpander(DefaultKeys(), MatchPrefix)
	s, err := e.Schedule(ContinuousCorn, 2020, 1, map[Crop]*Dict{Corn: mustDict(t, cornPlan)})
	require.NoError(t, err)

	folder := ManagerFolder(s, nil)
	assert.Equal(t, "Manager folder", folder.Attr("name"))
	require.Len(t, folder.Nodes, 2)

	mgr := folder.Nodes[0]
	assert.Equal(t, "Empty manager", mgr.Attr("name"))
	scripts := mgr.Children("script")
	require.Len(t, scripts, 3)
	assert.Equal(t, "init", scripts[0].Child("event").Text)
	assert.Equal(t, "start_of_day", scripts[1].Child("event").Text)
	assert.Equal(t, "end_of_day", scripts[2].Child("event").Text)

	sod := scripts[1].Child("text").Text
	assert.Contains(t, sod, "corn_buac   = maize.yield * 0.0159 * 1.155")
	assert.Contains(t, sod, "@ 15.5% moisture")
	assert.Contains(t, sod, "!bbc_potential = 200 - 100")

	opsNode := folder.Nodes[1]
	assert.Equal(t, "Operations Schedule", opsNode.Attr("name"))
	first := opsNode.Children("operation")[0]
	assert.Equal(t, "start_of_day", first.Attr("condition"))
	assert.Equal(t, "20/4/2020", first.Child("date").Text)

	out, err := apsimxml.Marshal(folder)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `<operation condition="start_of_day">`))
}

func TestEmptyManager_SWIMDrainage(t *testing.T) {
	mgr := EmptyManager(&Drainage{ProfileDepth: 200, TileDepth: 120})
	text := mgr.Children("script")[1].Child("text").Text
	assert.Contains(t, text, "\nbbc_potential = 200 - 120")
	assert.NotContains(t, text, "!bbc_potential")
}
