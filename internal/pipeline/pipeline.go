// Package pipeline runs one bridge workbook end to end: load, reduce,
// summarise, persist and report.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bridge-cli/internal/config"
	"github.com/sells-group/bridge-cli/internal/ingest"
	"github.com/sells-group/bridge-cli/internal/model"
	"github.com/sells-group/bridge-cli/internal/profile"
	"github.com/sells-group/bridge-cli/internal/reduce"
	"github.com/sells-group/bridge-cli/internal/report"
	"github.com/sells-group/bridge-cli/internal/resilience"
	"github.com/sells-group/bridge-cli/internal/store"
)

// Pipeline analyses bridge workbooks against a set of profile tables.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	tables *profile.Tables
	opts   reduce.Options
	load   func(ctx context.Context, path string, opts ingest.Options) (*model.RunInput, error)

	// OutPath overrides the Results workbook path. Empty writes
	// "<report.dir>/<name>_results.xlsx"; "-" writes no workbook.
	OutPath string
}

// Result is the outcome of one analysed file.
type Result struct {
	Run        *model.Run
	Report     *report.Report
	ReportPath string
}

// New creates a Pipeline. tables may be nil when every run carries its own
// Parameters sheet.
func New(cfg *config.Config, st store.Store, tables *profile.Tables) (*Pipeline, error) {
	opts, err := reduce.OptionsFrom(cfg.Analysis)
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = profile.NewTables()
	}
	return &Pipeline{cfg: cfg, store: st, tables: tables, opts: opts, load: ingest.Load}, nil
}

// Run analyses the workbook or CSV export at path. A run that fails after
// its record was created is marked failed in the store and its error is
// returned along with the failed run.
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	log := zap.L().With(zap.String("file", path))
	log.Info("pipeline: starting analysis")

	in, err := p.load(ctx, path, ingest.Options{
		BlockSize: p.cfg.Analysis.BlockSize,
		RangeMode: p.opts.RangeMode,
		Charset:   p.cfg.Analysis.CSVCharset,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load")
	}

	tables, err := p.tablesFor(ctx, path)
	if err != nil {
		return nil, err
	}

	run, err := p.store.CreateRun(ctx, in.RunID, path)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run", run.ID), zap.String("run_id", in.RunID))
	res := &Result{Run: run}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
		run.Status = status
	}

	phase := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		duration := time.Since(start).Milliseconds()
		if err != nil {
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
			return err
		}
		log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
		)
		return nil
	}

	var a *reduce.Analysis
	fail := func(err error) (*Result, error) {
		var out *store.RunOutput
		if a != nil {
			out = &store.RunOutput{R1Name: a.R1Name, R2Name: a.R2Name, Outcomes: a.Outcomes}
		}
		// The run may have been cancelled; record the failure regardless.
		if failErr := p.store.FailRun(context.WithoutCancel(ctx), run.ID, err.Error(), out); failErr != nil {
			log.Warn("pipeline: failed to record failure", zap.Error(failErr))
		}
		run.Status = model.RunStatusFailed
		run.Error = err.Error()
		if out != nil {
			run.R1Name, run.R2Name, run.Outcomes = out.R1Name, out.R2Name, out.Outcomes
		}
		return res, err
	}

	setStatus(model.RunStatusReducing)
	reducer := reduce.New(tables, p.opts)
	if err := phase("begin", func() error {
		var err error
		a, err = reducer.Begin(in)
		return err
	}); err != nil {
		return fail(err)
	}
	if err := phase("reduce", func() error { return a.ReduceBlocks(ctx) }); err != nil {
		return fail(err)
	}

	setStatus(model.RunStatusFitting)
	if err := phase("summarize", a.Summarize); err != nil {
		return fail(err)
	}

	out := Output(a)
	if err := phase("persist", func() error {
		// CompleteRun replaces earlier rows, so a retry is safe.
		rc := resilience.RetryConfig{MaxAttempts: p.cfg.Store.RetryAttempts}
		if err := resilience.Do(ctx, rc, "complete run", func(ctx context.Context) error {
			return p.store.CompleteRun(ctx, run.ID, out)
		}); err != nil {
			return err
		}
		if a.NewProfile != nil {
			return resilience.Do(ctx, rc, "store profile", func(ctx context.Context) error {
				return p.store.UpsertResistorProfile(ctx, a.NewProfile)
			})
		}
		return nil
	}); err != nil {
		return fail(err)
	}
	run.Status = model.RunStatusComplete
	run.R1Name, run.R2Name, run.Outcomes, run.Coefficients = out.R1Name, out.R2Name, out.Outcomes, out.Coefficients

	res.Report = &report.Report{
		Run:          *run,
		Results:      out.Results,
		Summaries:    out.Summaries,
		Coefficients: out.Coefficients,
		NewProfile:   a.NewProfile,
	}
	if dest := p.reportPath(path); dest != "" {
		// The run is already stored; a report failure does not undo it.
		if err := report.WriteXLSX(dest, res.Report); err != nil {
			log.Error("pipeline: failed to write report", zap.String("path", dest), zap.Error(err))
			return res, err
		}
		res.ReportPath = dest
	}

	c := run.Counts()
	log.Info("pipeline: analysis complete",
		zap.Int("results", len(out.Results)),
		zap.Int("skipped", c[model.BlockStatusSkipped]),
		zap.Int("excluded", c[model.BlockStatusExcluded]),
		zap.Bool("new_profile", a.NewProfile != nil),
	)
	return res, nil
}

// Output snapshots a finished analysis for persistence.
func Output(a *reduce.Analysis) *store.RunOutput {
	out := &store.RunOutput{
		R1Name:   a.R1Name,
		R2Name:   a.R2Name,
		Outcomes: a.Outcomes,
	}
	for _, r := range a.Results {
		out.Results = append(out.Results, r.Row(a.Input.RunID))
	}
	for _, s := range a.Summaries {
		out.Summaries = append(out.Summaries, s.Row(a.Input.RunID))
	}
	if a.Coefficients != nil {
		c := a.Coefficients.Quantities()
		out.Coefficients = &c
	}
	return out
}

// tablesFor assembles the profile tables of one run. Later sources replace
// earlier ones: the workbook's own Parameters sheet, then profiles
// characterised by earlier runs, then the configured tables.
func (p *Pipeline) tablesFor(ctx context.Context, path string) (*profile.Tables, error) {
	t := profile.NewTables()

	if p.cfg.Profiles.UseWorkbook && strings.EqualFold(filepath.Ext(path), ".xlsx") {
		wb, err := profile.LoadXLSX(path)
		if err != nil {
			zap.L().Debug("pipeline: no usable Parameters sheet", zap.String("file", path), zap.Error(err))
		} else {
			t.Merge(wb)
		}
	}

	stored, err := p.store.ListResistorProfiles(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list stored profiles")
	}
	for i := range stored {
		t.AddResistor(&stored[i])
	}

	t.Merge(p.tables)
	return t, nil
}

func (p *Pipeline) reportPath(source string) string {
	switch p.OutPath {
	case "-":
		return ""
	case "":
		return report.OutputPath(p.cfg.Report.Dir, source)
	}
	return p.OutPath
}
