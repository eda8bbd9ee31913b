package output

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FileResult is the outcome for one .out file.
type FileResult struct {
	Path      string
	Summaries []Summary
	Err       error
}

// DirReport collects the per-file results of a directory summary.
type DirReport struct {
	Results []FileResult
}

// Summaries returns every successful summary in file order.
func (r *DirReport) Summaries() []Summary {
	var out []Summary
	for _, res := range r.Results {
		out = append(out, res.Summaries...)
	}
	return out
}

// Failed counts files that could not be summarized.
func (r *DirReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// DirOptions configures SummarizeDir.
type DirOptions struct {
	Year        int // 0 = all years
	Rules       []Rule
	Concurrency int
}

// SummarizeDir summarizes every *.out file in dir concurrently. A file that
// fails is recorded in its result and does not stop the others.
func SummarizeDir(ctx context.Context, dir string, opts DirOptions) (*DirReport, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.out"))
	if err != nil {
		return nil, eris.Wrapf(err, "output: list %s", dir)
	}
	if len(files) == 0 {
		return nil, eris.Errorf("output: no .out files in %s", dir)
	}
	sort.Strings(files)

	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Rules == nil {
		opts.Rules = DefaultRules(false)
	}

	log := zap.L().With(zap.String("component", "output"), zap.String("dir", dir))

	report := &DirReport{Results: make([]FileResult, len(files))}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, path := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res := FileResult{Path: path}
			f, err := ParseFile(path)
			if err == nil {
				res.Summaries, err = Summarize(f, opts.Year, opts.Rules)
			}
			if err != nil {
				res.Err = err
				log.Warn("output: summarize failed", zap.String("file", filepath.Base(path)), zap.Error(err))
			}
			report.Results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, eris.Wrap(err, "output: summarize dir")
	}

	log.Info("output: directory summarized",
		zap.Int("files", len(files)),
		zap.Int("failed", report.Failed()),
	)
	return report, nil
}
