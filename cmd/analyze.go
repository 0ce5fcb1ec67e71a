package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bridge-cli/internal/pipeline"
	"github.com/sells-group/bridge-cli/internal/profile"
	"github.com/sells-group/bridge-cli/internal/report"
)

var (
	analyzeProfiles    string
	analyzeOut         string
	analyzeRangeMode   string
	analyzeConcurrency int
	analyzeLocale      string
)

var analyzeCmd = &cobra.Command{
	Use:         "analyze <workbook>...",
	Short:       "Reduce bridge workbooks to calibrated resistances",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{modeAnnotation: "analyze"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if analyzeOut != "" && analyzeOut != "-" && len(args) > 1 {
			return eris.New("--out names a single workbook; use report.dir for several runs")
		}
		if analyzeRangeMode != "" {
			cfg.Analysis.RangeMode = analyzeRangeMode
		}
		if analyzeConcurrency > 0 {
			cfg.Analysis.MaxConcurrentRuns = analyzeConcurrency
		}
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		path := analyzeProfiles
		if path == "" {
			path = cfg.Profiles.Path
		}
		var tables *profile.Tables
		if path != "" {
			t, err := profile.Load(path)
			if err != nil {
				return eris.Wrap(err, "analyze: load profiles")
			}
			tables = t
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := pipeline.New(cfg, st, tables)
		if err != nil {
			return err
		}
		p.OutPath = analyzeOut

		return analyzeFiles(ctx, args, cfg.Analysis.MaxConcurrentRuns, os.Stdout, report.NewPrinter(analyzeLocale), p.Run)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProfiles, "profiles", "", "resistor and instrument tables (.yaml or .xlsx, default from config)")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", `results workbook path for a single run ("-" writes none)`)
	analyzeCmd.Flags().StringVar(&analyzeRangeMode, "range-mode", "", "DVM range mode: AUTO or FIXED (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "runs analysed at once (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeLocale, "locale", "en", "language used to format numbers")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeFunc analyses one file.
type analyzeFunc func(ctx context.Context, path string) (*pipeline.Result, error)

// analyzeFiles runs analyze over paths concurrently and prints a text report
// for each. A failed file does not stop the others; the returned error
// counts the failures.
func analyzeFiles(ctx context.Context, paths []string, concurrency int, out io.Writer, pr report.Printer, analyze analyzeFunc) error {
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		mu       sync.Mutex
		failed   atomic.Int32
		complete atomic.Int32
	)
	for _, path := range paths {
		g.Go(func() error {
			res, err := analyze(gctx, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed.Add(1)
				zap.L().Error("analysis failed", zap.String("file", path), zap.Error(err))
				_, _ = fmt.Fprintf(out, "%s: %v\n", path, err)
				if res != nil && res.Run != nil {
					_, _ = fmt.Fprintf(out, "  run %s marked failed\n", res.Run.ID)
				}
				return nil
			}
			complete.Add(1)
			pr.WriteText(out, res.Report)
			if res.ReportPath != "" {
				_, _ = fmt.Fprintf(out, "Results written to %s\n", res.ReportPath)
			}
			_, _ = fmt.Fprintln(out)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("analysis finished",
		zap.Int("files", len(paths)),
		zap.Int32("complete", complete.Load()),
		zap.Int32("failed", failed.Load()),
	)
	if n := failed.Load(); n > 0 {
		return eris.Errorf("%d of %d runs failed", n, len(paths))
	}
	return nil
}
