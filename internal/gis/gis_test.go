package gis

import (
	"archive/zip"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonas-p/go-shp"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/output"
	"github.com/foresite-ag/foresite-cli/internal/weather"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// square returns a clockwise unit-degree cell with its lower-left corner at
// (lon, lat).
func square(lon, lat float64) *shp.Polygon {
	pl := shp.NewPolyLine([][]shp.Point{{
		{X: lon, Y: lat},
		{X: lon, Y: lat + 1},
		{X: lon + 1, Y: lat + 1},
		{X: lon + 1, Y: lat},
		{X: lon, Y: lat},
	}})
	p := shp.Polygon(*pl)
	return &p
}

func writeZones(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{
		shp.StringField("MUKEY", 12),
		shp.FloatField("mean_twi", 10, 3),
	})
	for i, z := range []struct {
		mukey string
		twi   float64
		lon   float64
	}{
		{"411278", 7.5, -94},
		{"411279", 9.25, -93},
		{"999999", 1, -92},
	} {
		row := int(w.Write(square(z.lon, 42)))
		require.Equal(t, i, row)
		require.NoError(t, w.WriteAttribute(row, 0, z.mukey))
		require.NoError(t, w.WriteAttribute(row, 1, z.twi))
	}
	w.Close()
	require.NoError(t, renameDBF(strings.TrimSuffix(path, ".shp")))
}

func zipDir(t *testing.T, src, dst string) {
	t.Helper()
	out, err := os.Create(dst)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	entries, err := os.ReadDir(src)
	require.NoError(t, err)
	for _, e := range entries {
		in, err := os.Open(filepath.Join(src, e.Name()))
		require.NoError(t, err)
		fw, err := zw.Create(e.Name())
		require.NoError(t, err)
		_, err = io.Copy(fw, in)
		require.NoError(t, err)
		require.NoError(t, in.Close())
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}

func TestReadZones(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.shp")
	writeZones(t, path)

	zs, err := ReadZones(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"mukey", "mean_twi"}, zs.Fields)
	require.Len(t, zs.Zones, 3)
	assert.Equal(t, "411278", zs.Zones[0].Mukey())
	assert.Equal(t, []string{"411278", "411279", "999999"}, zs.Mukeys())
}

func TestReadZones_Zip(t *testing.T) {
	src := t.TempDir()
	writeZones(t, filepath.Join(src, "zones.shp"))
	archive := filepath.Join(t.TempDir(), "zones.zip")
	zipDir(t, src, archive)

	zs, err := ReadZones(archive)
	require.NoError(t, err)
	assert.Len(t, zs.Zones, 3)
}

func TestReadZones_Missing(t *testing.T) {
	_, err := ReadZones(filepath.Join(t.TempDir(), "nope.shp"))
	assert.Error(t, err)
}

func TestLayerCentroid(t *testing.T) {
	lat, lon, err := LayerCentroid(&Zones{Zones: []Zone{{Shape: square(-94, 42)}}})
	require.NoError(t, err)
	assert.InDelta(t, 42.5, lat, 1e-9)
	assert.InDelta(t, -93.5, lon, 1e-9)

	_, _, err = LayerCentroid(&Zones{Zones: []Zone{{}}})
	assert.Error(t, err)

	zs := &Zones{Zones: []Zone{{Shape: square(-94, 42)}, {Shape: square(-93, 42)}}}
	lat, lon, err = LayerCentroid(zs)
	require.NoError(t, err)
	assert.InDelta(t, 42.5, lat, 1e-9)
	assert.InDelta(t, -93, lon, 1e-9)

	_, _, err = LayerCentroid(&Zones{})
	assert.Error(t, err)
}

func TestEncodeEWKB(t *testing.T) {
	b, err := EncodeEWKB(square(-94, 42))
	require.NoError(t, err)
	require.NotEmpty(t, b)
	assert.Equal(t, byte(1), b[0]) // NDR

	b, err = EncodeEWKB(nil)
	assert.NoError(t, err)
	assert.Nil(t, b)

	short := &shp.Polygon{NumParts: 1, Parts: []int32{0}, Points: []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}}
	assert.Nil(t, MultiPolygon(short))
}

var joinRules = []output.Rule{
	{Name: "maize_yield", Column: "maize_yield", Agg: output.Max},
	{Name: "surfaceom_c_init", Column: "surfaceom_c", Agg: output.First, Optional: true},
	{Name: "surfaceom_c_end", Column: "surfaceom_c", Agg: output.Last, Optional: true},
}

func summaries() []output.Summary {
	mk := func(mukey string, year int, y float64) output.Summary {
		return output.Summary{
			FileName: "f_" + mukey + ".out",
			IDs:      output.ParseIdentifiers("name_north40_mukey_" + mukey + "_rot_cfs_sim_2020"),
			Year:     year,
			Values:   map[string]float64{"maize_yield": y, "surfaceom_c_init": math.NaN(), "surfaceom_c_end": 10},
		}
	}
	return []output.Summary{mk("411278", 2020, 9000), mk("411279", 2020, 8000), mk("411279", 2019, 7000), mk("123", 2020, 1)}
}

func zonesFixture() *Zones {
	return &Zones{
		Fields: []string{"mukey", "mean_twi"},
		Zones: []Zone{
			{Attrs: map[string]string{"mukey": "411278", "mean_twi": "7.5"}, Shape: square(-94, 42)},
			{Attrs: map[string]string{"mukey": "411279", "mean_twi": "9.25"}, Shape: square(-93, 42)},
			{Attrs: map[string]string{"mukey": "999999", "mean_twi": "1"}, Shape: square(-92, 42)},
		},
	}
}

func TestJoin(t *testing.T) {
	j := Join(zonesFixture(), summaries(), joinRules, nil)
	require.Len(t, j.Features, 3)
	assert.Equal(t, "411278", j.Features[0].Zone.Mukey())
	assert.Equal(t, 2019, j.Features[2].Summary.Year)

	cols := j.Columns()
	require.Len(t, cols, 2+4+3)
	assert.Equal(t, "mukey", cols[0].Name)
	assert.Equal(t, Column{Name: "year", Numeric: true}, cols[5])

	vals := j.Values(j.Features[0])
	require.Len(t, vals, len(cols))
	assert.Equal(t, "411278", vals[0])
	assert.Equal(t, float64(2020), vals[5])
	assert.Equal(t, 9000.0, vals[6])
	assert.Nil(t, vals[7])
}

func TestJoin_WithPrecip(t *testing.T) {
	p := &weather.PrecipSummary{
		Year:    2020,
		Annual:  850,
		Monthly: map[time.Month]float64{time.June: 120},
		Events:  []weather.Event{{FirstDay: 150, LastDay: 151, Rain: 70}},
	}
	j := Join(zonesFixture(), summaries(), joinRules, p)
	cols := j.Columns()
	assert.Equal(t, "yearly_precip", cols[2].Name)
	assert.Equal(t, "precip_apr", cols[5].Name)

	vals := j.Values(j.Features[0])
	assert.Equal(t, 850.0, vals[2])
	assert.Equal(t, 70.0, vals[3])
	assert.Nil(t, vals[4])
	assert.Equal(t, 120.0, vals[7]) // June
}

func TestColumns_ZoneFieldCollision(t *testing.T) {
	zs := zonesFixture()
	zs.Fields = append(zs.Fields, "Rotation", "sim")
	for _, z := range zs.Zones {
		z.Attrs["Rotation"] = "cs"
		z.Attrs["sim"] = "legacy"
	}
	j := Join(zs, summaries(), joinRules, nil)

	cols := j.Columns()
	seen := make(map[string]bool)
	for _, c := range cols {
		lower := strings.ToLower(c.Name)
		assert.False(t, seen[lower], "duplicate column %s", c.Name)
		seen[lower] = true
	}
	assert.Equal(t, "zone_Rotation", cols[2].Name)
	assert.Equal(t, "zone_sim", cols[3].Name)
	assert.Equal(t, "rotation", cols[5].Name)

	vals := j.Values(j.Features[0])
	require.Len(t, vals, len(cols))
	assert.Equal(t, "cs", vals[2])
	assert.Equal(t, "cfs", vals[5])
}

func TestDBFNames(t *testing.T) {
	names := dbfNames([]Column{{Name: "mukey"}, {Name: "surfaceom_c_init"}, {Name: "surfaceom_c_end"}, {Name: "surfaceom_x"}})
	assert.Equal(t, []string{"mukey", "surfaceom_", "surfaceom1", "surfaceom2"}, names)
}

func TestWriteShapefile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "joined.shp")
	j := Join(zonesFixture(), summaries(), joinRules, nil)

	require.NoError(t, WriteShapefile(path, j))
	// a second write replaces the first
	require.NoError(t, WriteShapefile(path, j))

	zs, err := ReadZones(path)
	require.NoError(t, err)
	require.Len(t, zs.Zones, 3)
	assert.Equal(t, []string{"mukey", "mean_twi", "file_name", "rotation", "sim", "year", "maize_yiel", "surfaceom_", "surfaceom1"}, zs.Fields)
	assert.Equal(t, "411279", zs.Zones[2].Mukey())
	assert.Equal(t, "cfs", zs.Zones[2].Attrs["rotation"])

	_, err = os.Stat(filepath.Join(dir, "out", "joined.prj"))
	assert.NoError(t, err)
}

func TestWriteShapefile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joined.shp")
	j := Join(zonesFixture(), summaries(), joinRules, nil)
	require.NoError(t, WriteShapefile(path, j))

	base := strings.TrimSuffix(path, ".shp")
	_, err := os.Stat(base + ".dbf")
	require.NoError(t, err)
	_, err = os.Stat(base + "dbf")
	assert.True(t, os.IsNotExist(err))

	zs, err := ReadZones(path)
	require.NoError(t, err)
	require.Len(t, zs.Zones, len(j.Features))

	cols := j.Columns()
	names := dbfNames(cols)
	require.Equal(t, names, zs.Fields)
	for i, f := range j.Features {
		got := zs.Zones[i].Attrs
		for c, want := range j.Values(f) {
			switch v := want.(type) {
			case nil:
				assert.Empty(t, got[names[c]], "feature %d %s", i, cols[c].Name)
			case string:
				assert.Equal(t, v, got[names[c]], "feature %d %s", i, cols[c].Name)
			case float64:
				n, err := strconv.ParseFloat(got[names[c]], 64)
				require.NoError(t, err, "feature %d %s", i, cols[c].Name)
				assert.InDelta(t, v, n, 1e-6, "feature %d %s", i, cols[c].Name)
			}
		}
	}
}

func TestLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	j := Join(zonesFixture(), summaries(), joinRules, nil)
	var names []string
	for _, c := range j.Columns() {
		names = append(names, c.Name)
	}
	names = append(names, "geom")
	mock.ExpectCopyFrom(pgx.Identifier{"apsim", "zone_summary"}, names).WillReturnResult(3)

	n, err := Load(context.Background(), mock, "apsim.zone_summary", j)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
