package ssurgo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/db"
	"github.com/foresite-ag/foresite-cli/internal/soil"
	"github.com/foresite-ag/foresite-cli/internal/weather"
)

// DefaultWeatherTable holds stored Daymet series keyed by weather_sample_id.
const DefaultWeatherTable = "design_weather"

// PostgresSource reads horizons through the api.get_soil_properties
// function and Daymet series from a weather table.
type PostgresSource struct {
	pool         db.Pool
	weatherTable string
}

// NewPostgresSource returns a source over pool. An empty weatherTable uses
// DefaultWeatherTable.
func NewPostgresSource(pool db.Pool, weatherTable string) *PostgresSource {
	if weatherTable == "" {
		weatherTable = DefaultWeatherTable
	}
	return &PostgresSource{pool: pool, weatherTable: weatherTable}
}

// Horizons implements Source.
func (s *PostgresSource) Horizons(ctx context.Context, mukeys []string) (map[string][]soil.Horizon, error) {
	if len(mukeys) == 0 {
		return map[string][]soil.Horizon{}, nil
	}

	q := fmt.Sprintf("SELECT %s FROM api.get_soil_properties($1::text[])", selectList())
	rows, err := db.Retry(ctx, db.DefaultRetry, "soil properties", func(ctx context.Context) (pgx.Rows, error) {
		return s.pool.Query(ctx, q, mukeys)
	})
	if err != nil {
		return nil, eris.Wrap(err, "ssurgo: query soil properties")
	}
	defer rows.Close()

	var hs []soil.Horizon
	for rows.Next() {
		h, err := scanHorizon(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "ssurgo: scan horizon")
		}
		hs = append(hs, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "ssurgo: iterate horizons")
	}

	zap.L().Debug("ssurgo: horizons loaded",
		zap.String("component", "ssurgo"),
		zap.Int("mukeys", len(mukeys)),
		zap.Int("horizons", len(hs)),
	)
	return group(hs), nil
}

// Daymet loads the stored Daymet series of one weather sample.
func (s *PostgresSource) Daymet(ctx context.Context, sampleID string, lat, lon float64) (*weather.Daymet, error) {
	q := fmt.Sprintf(
		"SELECT year, yday, dayl, prcp, srad, swe, tmax, tmin, vp FROM %s WHERE weather_sample_id = $1 ORDER BY year, yday",
		db.Ident(s.weatherTable).Sanitize(),
	)
	rows, err := db.Retry(ctx, db.DefaultRetry, "design weather", func(ctx context.Context) (pgx.Rows, error) {
		return s.pool.Query(ctx, q, sampleID)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ssurgo: query weather sample %s", sampleID)
	}
	defer rows.Close()

	d := &weather.Daymet{Latitude: lat, Longitude: lon}
	for rows.Next() {
		var r weather.DaymetRecord
		if err := rows.Scan(&r.Year, &r.YDay, &r.DayL, &r.Prcp, &r.Srad, &r.SWE, &r.TMax, &r.TMin, &r.VP); err != nil {
			return nil, eris.Wrap(err, "ssurgo: scan weather")
		}
		d.Records = append(d.Records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "ssurgo: iterate weather")
	}
	if len(d.Records) == 0 {
		return nil, eris.Errorf("ssurgo: weather sample %s has no rows", sampleID)
	}
	return d, nil
}
