// Package gis reads field-zone shapefiles and joins them with simulation
// summaries and field weather statistics.
package gis

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/ingest"
)

// MukeyField is the zone attribute holding the SSURGO map unit key.
const MukeyField = "mukey"

// Zone is one polygon of a field-zone layer. Attribute names are lower case.
type Zone struct {
	Attrs map[string]string
	Shape *shp.Polygon
}

// Mukey returns the zone's map unit key.
func (z Zone) Mukey() string { return z.Attrs[MukeyField] }

// Zones is a field-zone layer: attributes in file order plus polygons.
type Zones struct {
	Fields []string
	Zones  []Zone
}

// Mukeys returns the distinct map unit keys in layer order.
func (zs *Zones) Mukeys() []string {
	seen := make(map[string]bool)
	var out []string
	for _, z := range zs.Zones {
		k := z.Mukey()
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// ReadZones reads a polygon shapefile. A .zip path is extracted to a
// temporary directory first and must contain exactly one .shp.
func ReadZones(path string) (*Zones, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		tmp, err := os.MkdirTemp("", "foresite-zones-*")
		if err != nil {
			return nil, eris.Wrap(err, "gis: create temp dir")
		}
		defer os.RemoveAll(tmp) //nolint:errcheck

		files, err := ingest.ExtractZIP(path, tmp)
		if err != nil {
			return nil, eris.Wrapf(err, "gis: extract %s", path)
		}
		var shps []string
		for _, f := range files {
			if strings.EqualFold(filepath.Ext(f), ".shp") {
				shps = append(shps, f)
			}
		}
		if len(shps) != 1 {
			return nil, eris.Errorf("gis: %s holds %d shapefiles, want 1", filepath.Base(path), len(shps))
		}
		return readShapefile(shps[0])
	}
	return readShapefile(path)
}

func readShapefile(path string) (*Zones, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gis: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	zs := &Zones{Fields: make([]string, len(fields))}
	for i, f := range fields {
		zs.Fields[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
	}

	skipped := 0
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil || poly.NumParts == 0 {
			skipped++
			continue
		}
		z := Zone{Attrs: make(map[string]string, len(fields)), Shape: poly}
		for i, name := range zs.Fields {
			z.Attrs[name] = strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
		}
		zs.Zones = append(zs.Zones, z)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "gis: read %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("gis: skipped non-polygon records",
			zap.String("file", filepath.Base(path)),
			zap.Int("skipped", skipped),
		)
	}
	return zs, nil
}
