package runs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foresite-ag/foresite-cli/internal/apsimfile"
	"github.com/foresite-ag/foresite-cli/internal/apsimxml"
	"github.com/foresite-ag/foresite-cli/internal/gis"
	"github.com/foresite-ag/foresite-cli/internal/mgmt"
	"github.com/foresite-ag/foresite-cli/internal/soil"
	"github.com/foresite-ag/foresite-cli/internal/ssurgo"
)

// Result is the outcome of one .apsim file. Run-level failures (missing
// management or met files, unreadable zones) carry an empty Mukey.
type Result struct {
	Run   Run
	Mukey string
	Path  string
	Err   error
}

// Report collects every result of a batch.
type Report struct {
	BatchID string
	Results []Result
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Written counts the files generated.
func (r *Report) Written() int {
	return len(r.Results) - len(r.Failed())
}

// Generator builds .apsim files for a plan.
type Generator struct {
	Source      ssurgo.Source
	Expander    *mgmt.Expander
	SimName     string
	Variables   []string // nil uses the apsimfile defaults
	SoilCrops   []string // SoilCrop blocks; nil uses soil.DefaultCrops
	Concurrency int
}

// job is one run prepared for per-mukey generation.
type job struct {
	run      Run
	schedule *mgmt.Schedule
	profiles map[string]*soil.Profile
	failed   map[string]error
	mukeys   []string
}

// Generate writes every run of the plan. Item failures are recorded in the
// report and logged; only cancellation aborts the batch.
func (g *Generator) Generate(ctx context.Context, plan *Plan) (*Report, error) {
	if g.Source == nil {
		return nil, eris.New("runs: generator has no soil source")
	}
	exp := g.Expander
	if exp == nil {
		exp = mgmt.NewExpander(mgmt.DefaultKeys(), mgmt.MatchPrefix)
	}
	limit := g.Concurrency
	if limit < 1 {
		limit = 1
	}

	report := &Report{BatchID: uuid.New().String()}
	log := zap.L().With(zap.String("component", "runs"), zap.String("batch_id", report.BatchID))

	cropXML, err := loadCrops(plan.Crops)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	record := func(res Result) {
		if res.Err != nil {
			log.Error("runs: item failed",
				zap.String("field", res.Run.Field),
				zap.String("rotation", res.Run.Rotation),
				zap.Int("end_year", res.Run.EndYear),
				zap.String("mukey", res.Mukey),
				zap.Error(res.Err),
			)
		}
		mu.Lock()
		report.Results = append(report.Results, res)
		mu.Unlock()
	}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	// Runs sharing an output directory are cleaned once, by the first.
	held := make(map[string]bool)
	var releases []func()
	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	for _, run := range plan.Runs {
		if err := gCtx.Err(); err != nil {
			break
		}
		out := plan.OutDir(run)
		first := !held[out]
		if first {
			release, err := claimDir(out, report.BatchID)
			if err != nil {
				record(Result{Run: run, Err: err})
				continue
			}
			held[out] = true
			releases = append(releases, release)
		}
		j, err := g.prepare(gCtx, plan, run, exp, first)
		if err != nil {
			record(Result{Run: run, Err: err})
			continue
		}
		for _, mk := range j.mukeys {
			if err, ok := j.failed[mk]; ok {
				record(Result{Run: run, Mukey: mk, Err: err})
				continue
			}
			profile := j.profiles[mk]
			eg.Go(func() error {
				if err := gCtx.Err(); err != nil {
					return err
				}
				path, err := g.write(plan, j, profile, cropXML)
				record(Result{Run: j.run, Mukey: profile.Mukey, Path: path, Err: err})
				return nil
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return report, eris.Wrap(err, "runs: generate")
	}
	if err := ctx.Err(); err != nil {
		return report, eris.Wrap(err, "runs: generate")
	}

	sort.SliceStable(report.Results, func(a, b int) bool {
		ra, rb := report.Results[a], report.Results[b]
		if ra.Run.String() != rb.Run.String() {
			return ra.Run.String() < rb.Run.String()
		}
		return ra.Mukey < rb.Mukey
	})

	log.Info("runs: batch complete",
		zap.Int("runs", len(plan.Runs)),
		zap.Int("written", report.Written()),
		zap.Int("failed", len(report.Failed())),
	)
	return report, nil
}

// prepare does the per-run work shared by every mukey: directory cleanup
// when clean is set, met copy, schedule expansion and soil profiles.
func (g *Generator) prepare(ctx context.Context, plan *Plan, run Run, exp *mgmt.Expander, clean bool) (*job, error) {
	rot := mgmt.Rotation(run.Rotation)
	out := plan.OutDir(run)

	if clean {
		if _, err := Clean(out); err != nil {
			return nil, err
		}
	}
	if err := copyFile(plan.MetSource(run), filepath.Join(out, "met_files", run.MetFile)); err != nil {
		return nil, err
	}

	plans := make(map[mgmt.Crop]*mgmt.Dict)
	for crop, path := range plan.MgmtFiles(run) {
		d, err := mgmt.LoadDict(path)
		if err != nil {
			return nil, eris.Wrapf(err, "runs: %s management", crop)
		}
		plans[crop] = d
	}
	schedule, err := exp.Schedule(rot, run.EndYear, plan.Window, plans)
	if err != nil {
		return nil, err
	}

	mukeys := run.Mukeys
	if run.Shapefile != "" {
		zs, err := gis.ReadZones(plan.ShapefilePath(run))
		if err != nil {
			return nil, err
		}
		mukeys = zs.Mukeys()
	}
	if len(mukeys) == 0 {
		return nil, eris.Errorf("runs: %s has no mukeys", run)
	}

	profiles, failed, err := ssurgo.Profiles(ctx, g.Source, mukeys, soil.Options{SWIM: plan.SWIM, SaxtonRawls: plan.SaxtonRawls, Crops: g.SoilCrops})
	if err != nil {
		return nil, err
	}
	return &job{run: run, schedule: schedule, profiles: profiles, failed: failed, mukeys: mukeys}, nil
}

func (g *Generator) write(plan *Plan, j *job, p *soil.Profile, cropXML map[string]*apsimxml.Node) (string, error) {
	run := j.run
	title := apsimfile.Title(run.Field, p.Mukey, mgmt.Rotation(run.Rotation), run.EndYear)
	start, end := apsimfile.Clock(plan.StartYear(run), run.EndYear)

	doc, err := apsimfile.Build(apsimfile.Simulation{
		Name:      g.SimName,
		Title:     title,
		MetFile:   filepath.ToSlash(filepath.Join("met_files", run.MetFile)),
		StartDate: start,
		EndDate:   end,
		Soil:      p,
		SurfaceOM: apsimfile.DefaultSurfaceOM,
		CropXML:   cropXML,
		Variables: g.Variables,
		Schedule:  j.schedule,
	})
	if err != nil {
		return "", err
	}

	path := filepath.Join(plan.OutDir(run), title+".apsim")
	if err := apsimfile.Write(path, doc); err != nil {
		return "", err
	}
	return path, nil
}

func loadCrops(paths map[string]string) (map[string]*apsimxml.Node, error) {
	out := make(map[string]*apsimxml.Node, len(paths))
	for name, path := range paths {
		n, err := apsimfile.LoadCrop(path)
		if err != nil {
			return nil, eris.Wrapf(err, "runs: crop template %s", name)
		}
		out[name] = n
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "runs: open met file %s", src)
	}
	defer in.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "runs: create %s", filepath.Dir(dst))
	}
	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrapf(err, "runs: create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return eris.Wrapf(err, "runs: copy met file to %s", dst)
	}
	return eris.Wrapf(out.Close(), "runs: close %s", dst)
}
