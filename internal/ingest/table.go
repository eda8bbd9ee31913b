package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a header row plus records keyed by it.
type Table struct {
	Header []string
	Rows   [][]string
}

// Get returns the cell of row i under column name, or "" if absent.
func (t *Table) Get(i int, name string) string {
	for j, h := range t.Header {
		if strings.EqualFold(h, name) {
			if j < len(t.Rows[i]) {
				return t.Rows[i][j]
			}
			return ""
		}
	}
	return ""
}

// ReadTable reads a .csv or .xlsx file whose first row is a header. Blank
// rows are dropped.
func ReadTable(ctx context.Context, path string) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err = ReadCSV(ctx, f, CSVOptions{TrimSpace: true, Comment: '#'})
	case ".xlsx":
		rows, err = ReadXLSX(path, XLSXOptions{})
	default:
		return nil, eris.Errorf("ingest: unsupported table %s", filepath.Base(path))
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", filepath.Base(path))
	}

	t := &Table{}
	for _, r := range rows {
		if blank(r) {
			continue
		}
		if t.Header == nil {
			for i := range r {
				r[i] = strings.TrimSpace(r[i])
			}
			t.Header = r
			continue
		}
		t.Rows = append(t.Rows, r)
	}
	if t.Header == nil {
		return nil, eris.Errorf("ingest: %s is empty", filepath.Base(path))
	}
	return t, nil
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
