package gis

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/db"
)

// wgs84 is written as the .prj of joined layers.
const wgs84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

var shapefileParts = []string{".shp", ".shx", ".dbf", ".prj", ".cpg"}

// WriteShapefile writes the joined layer to path. Sidecar files of an
// earlier layer with the same base name are removed first.
func WriteShapefile(path string, j *Joined) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return eris.Wrapf(err, "gis: create dir for %s", path)
	}
	for _, ext := range shapefileParts {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "gis: remove stale %s", base+ext)
		}
	}
	if err := os.Remove(base + "dbf"); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "gis: remove stale %sdbf", base)
	}

	cols := j.Columns()
	names := dbfNames(cols)
	fields := make([]shp.Field, len(cols))
	for i, c := range cols {
		if c.Numeric {
			fields[i] = shp.FloatField(names[i], 18, 6)
		} else {
			fields[i] = shp.StringField(names[i], 80)
		}
	}

	w, err := shp.Create(base+".shp", shp.POLYGON)
	if err != nil {
		return eris.Wrapf(err, "gis: create %s", path)
	}
	w.SetFields(fields)

	for _, f := range j.Features {
		row := int(w.Write(f.Zone.Shape))
		for i, v := range j.Values(f) {
			if v == nil {
				continue
			}
			if err := w.WriteAttribute(row, i, v); err != nil {
				w.Close()
				return eris.Wrapf(err, "gis: write attribute %s", cols[i].Name)
			}
		}
	}
	w.Close()
	if err := renameDBF(base); err != nil {
		return err
	}

	if err := os.WriteFile(base+".prj", []byte(wgs84), 0o644); err != nil {
		return eris.Wrap(err, "gis: write prj")
	}

	zap.L().Info("gis: joined layer written",
		zap.String("component", "gis"),
		zap.String("path", base+".shp"),
		zap.Int("features", len(j.Features)),
	)
	return nil
}

// renameDBF moves the attribute table go-shp writes as "<base>dbf" to
// "<base>.dbf", where shapefile readers look for it.
func renameDBF(base string) error {
	undotted := base + "dbf"
	if _, err := os.Stat(undotted); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "gis: stat %s", undotted)
	}
	if err := os.Rename(undotted, base+".dbf"); err != nil {
		return eris.Wrapf(err, "gis: rename %s", undotted)
	}
	return nil
}

// Load copies the joined layer into a PostGIS table whose columns are the
// joined attribute names followed by a "geom" geometry column.
func Load(ctx context.Context, pool db.Pool, table string, j *Joined) (int64, error) {
	cols := j.Columns()
	names := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		names = append(names, c.Name)
	}
	names = append(names, "geom")

	rows := make([][]any, 0, len(j.Features))
	skipped := 0
	for _, f := range j.Features {
		g, err := EncodeEWKB(f.Zone.Shape)
		if err != nil || g == nil {
			skipped++
			continue
		}
		rows = append(rows, append(j.Values(f), g))
	}
	if skipped > 0 {
		zap.L().Warn("gis: features without geometry skipped", zap.Int("skipped", skipped))
	}

	n, err := db.CopyFrom(ctx, pool, table, names, rows)
	if err != nil {
		return 0, eris.Wrap(err, "gis: load")
	}
	return n, nil
}
