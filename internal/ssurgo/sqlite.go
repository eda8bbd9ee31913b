package ssurgo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/foresite-ag/foresite-cli/internal/soil"
)

// DefaultHorizonTable is the horizon table of a local SSURGO extract.
const DefaultHorizonTable = "horizons"

// SQLiteSource reads horizons from a local SSURGO extract.
type SQLiteSource struct {
	db    *sql.DB
	table string
}

// OpenSQLite opens the extract at dsn.
func OpenSQLite(dsn, table string) (*SQLiteSource, error) {
	if table == "" {
		table = DefaultHorizonTable
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSource{db: conn, table: table}, nil
}

// Close releases the database.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Horizons implements Source.
func (s *SQLiteSource) Horizons(ctx context.Context, mukeys []string) (map[string][]soil.Horizon, error) {
	if len(mukeys) == 0 {
		return map[string][]soil.Horizon{}, nil
	}

	args := make([]any, len(mukeys))
	for i, m := range mukeys {
		args[i] = m
	}
	q := fmt.Sprintf(`SELECT %s FROM "%s" WHERE mukey IN (?%s) ORDER BY mukey, hzdept_r`,
		selectList(), strings.ReplaceAll(s.table, `"`, `""`), strings.Repeat(", ?", len(mukeys)-1))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query horizons")
	}
	defer rows.Close() //nolint:errcheck

	var hs []soil.Horizon
	for rows.Next() {
		h, err := scanHorizon(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan horizon")
		}
		hs = append(hs, h)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate horizons")
	}
	return group(hs), nil
}
