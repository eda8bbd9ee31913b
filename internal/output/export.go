package output

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/foresite-ag/foresite-cli/internal/db"
)

// idColumns lead every exported row.
var idColumns = []string{"file_name", "title", "field", "mukey", "rotation", "county", "fips", "sim", "year"}

// Header returns the export columns for rules.
func Header(rules []Rule) []string {
	h := append([]string(nil), idColumns...)
	for _, r := range rules {
		h = append(h, r.Name)
	}
	return h
}

func (s Summary) ids() []string {
	return []string{s.FileName, s.IDs.Title, s.IDs.Field, s.IDs.Mukey, s.IDs.Rotation,
		s.IDs.County, s.IDs.FIPS, s.IDs.Sim, strconv.Itoa(s.Year)}
}

// Record formats a summary as text cells aligned with Header. Missing
// values are empty.
func (s Summary) Record(rules []Rule) []string {
	rec := s.ids()
	for _, r := range rules {
		v, ok := s.Values[r.Name]
		if !ok || math.IsNaN(v) {
			rec = append(rec, "")
			continue
		}
		rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return rec
}

// Row returns the summary as database values; missing values are NULL.
func (s Summary) Row(rules []Rule) []any {
	row := []any{s.FileName, s.IDs.Title, s.IDs.Field, s.IDs.Mukey, s.IDs.Rotation,
		s.IDs.County, s.IDs.FIPS, s.IDs.Sim, s.Year}
	for _, r := range rules {
		v, ok := s.Values[r.Name]
		if !ok || math.IsNaN(v) {
			row = append(row, nil)
			continue
		}
		row = append(row, v)
	}
	return row
}

// WriteCSV writes summaries as CSV with a header row.
func WriteCSV(w io.Writer, sums []Summary, rules []Rule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(rules)); err != nil {
		return eris.Wrap(err, "output: write csv header")
	}
	for _, s := range sums {
		if err := cw.Write(s.Record(rules)); err != nil {
			return eris.Wrapf(err, "output: write csv row %s", s.FileName)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "output: flush csv")
	}
	return nil
}

// WriteXLSX saves summaries to a workbook with a single "summary" sheet.
func WriteXLSX(path string, sums []Summary, rules []Rule) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "output: add sheet")
	}

	hdr := sheet.AddRow()
	for _, h := range Header(rules) {
		hdr.AddCell().SetString(h)
	}

	for _, s := range sums {
		row := sheet.AddRow()
		for _, id := range s.ids()[:len(idColumns)-1] {
			row.AddCell().SetString(id)
		}
		row.AddCell().SetInt(s.Year)
		for _, r := range rules {
			c := row.AddCell()
			if v, ok := s.Values[r.Name]; ok && !math.IsNaN(v) {
				c.SetFloat(v)
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "output: save %s", path)
	}
	return nil
}

// Load writes summaries to table. With upsert set, rows are merged on
// (file_name, year); otherwise they are appended with COPY.
func Load(ctx context.Context, pool db.Pool, table string, sums []Summary, rules []Rule, upsert bool) (int64, error) {
	rows := make([][]any, len(sums))
	for i, s := range sums {
		rows[i] = s.Row(rules)
	}

	var (
		n   int64
		err error
	)
	if upsert {
		n, err = db.BulkUpsert(ctx, pool, db.UpsertConfig{
			Table:        table,
			Columns:      Header(rules),
			ConflictKeys: []string{"file_name", "year"},
		}, rows)
	} else {
		n, err = db.CopyFrom(ctx, pool, table, Header(rules), rows)
	}
	if err != nil {
		return 0, eris.Wrap(err, "output: load")
	}

	zap.L().Info("output: summaries loaded",
		zap.String("component", "output"),
		zap.String("table", table),
		zap.Int64("rows", n),
		zap.Bool("upsert", upsert),
	)
	return n, nil
}
