// Package ssurgo loads SSURGO horizons and stored Daymet series for the
// soil and weather builders.
package ssurgo

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/foresite-ag/foresite-cli/internal/soil"
)

// Source returns the horizons of each requested map unit.
type Source interface {
	Horizons(ctx context.Context, mukeys []string) (map[string][]soil.Horizon, error)
}

// horizonColumns is the select list shared by every source; order matches
// scanHorizon.
var horizonColumns = []string{
	"mukey", "hzdept_r", "hzdepb_r",
	"claytotal_r", "sandtotal_r", "silttotal_r", "om_r",
	"dbthirdbar_r", "wfifteenbar_r", "wthirdbar_r", "ksat_r", "ph1to1h2o_r",
}

func selectList() string { return strings.Join(horizonColumns, ", ") }

func scanHorizon(scan func(dest ...any) error) (soil.Horizon, error) {
	var h soil.Horizon
	err := scan(&h.Mukey, &h.Top, &h.Bottom,
		&h.Clay, &h.Sand, &h.Silt, &h.OM,
		&h.BD, &h.WFifteenBar, &h.WThirdBar, &h.KSat, &h.PH)
	return h, err
}

// group buckets horizons by mukey, each bucket sorted by top depth.
func group(hs []soil.Horizon) map[string][]soil.Horizon {
	out := make(map[string][]soil.Horizon)
	for _, h := range hs {
		out[h.Mukey] = append(out[h.Mukey], h)
	}
	for _, b := range out {
		sort.SliceStable(b, func(i, j int) bool { return b[i].Top < b[j].Top })
	}
	return out
}

// Profiles builds a soil profile for every mukey. A mukey without horizons
// or whose profile cannot be derived is reported in the error map and left
// out of the result.
func Profiles(ctx context.Context, src Source, mukeys []string, opts soil.Options) (map[string]*soil.Profile, map[string]error, error) {
	byMukey, err := src.Horizons(ctx, mukeys)
	if err != nil {
		return nil, nil, err
	}

	profiles := make(map[string]*soil.Profile, len(mukeys))
	failed := make(map[string]error)
	for _, mk := range mukeys {
		hs, ok := byMukey[mk]
		if !ok {
			failed[mk] = eris.Wrapf(soil.ErrNoHorizons, "ssurgo: mukey %s", mk)
			continue
		}
		p, err := soil.NewProfile(mk, hs, opts)
		if err != nil {
			failed[mk] = eris.Wrapf(err, "ssurgo: mukey %s", mk)
			continue
		}
		profiles[mk] = p
	}
	return profiles, failed, nil
}
