package gis

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// SRID of zone geometry; layers are expected in WGS84.
const SRID = 4326

// MultiPolygon converts a shapefile polygon to a geom.MultiPolygon with one
// polygon per part. Malformed parts are dropped; nil means nothing usable.
func MultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(SRID)
	for i := int32(0); i < p.NumParts; i++ {
		start, end := p.Parts[i], int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			zap.L().Debug("gis: skipping short ring", zap.Int32("part", i))
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for _, pt := range p.Points[start:end] {
			flat = append(flat, pt.X, pt.Y)
		}
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("gis: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("gis: skipping malformed part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// LayerCentroid is the area-weighted centroid of every zone in a layer
// combined, as (lat, lon). It places a field's weather sample.
func LayerCentroid(zs *Zones) (lat, lon float64, err error) {
	all := geom.NewMultiPolygon(geom.XY)
	for _, z := range zs.Zones {
		mp := MultiPolygon(z.Shape)
		if mp == nil {
			continue
		}
		for i := 0; i < mp.NumPolygons(); i++ {
			if err := all.Push(mp.Polygon(i)); err != nil {
				return 0, 0, eris.Wrap(err, "gis: layer centroid")
			}
		}
	}
	if all.NumPolygons() == 0 {
		return 0, 0, eris.New("gis: layer centroid: no polygons")
	}
	c, err := xy.Centroid(all)
	if err != nil {
		return 0, 0, eris.Wrap(err, "gis: layer centroid")
	}
	return c.Y(), c.X(), nil
}

// EncodeEWKB serialises a zone polygon as little-endian EWKB with SRID
// 4326. It returns nil, nil when the zone has no usable geometry.
func EncodeEWKB(p *shp.Polygon) ([]byte, error) {
	mp := MultiPolygon(p)
	if mp == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "gis: encode EWKB")
	}
	return data, nil
}
