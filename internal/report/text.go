package report

import (
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/bridge-cli/internal/budget"
	"github.com/sells-group/bridge-cli/internal/model"
)

// Printer formats report numbers with digit grouping for a language.
type Printer struct {
	p *message.Printer
}

// NewPrinter returns a Printer for tag. An empty tag means English.
func NewPrinter(tag string) Printer {
	t := language.English
	if tag != "" {
		if parsed, err := language.Parse(tag); err == nil {
			t = parsed
		}
	}
	return Printer{p: message.NewPrinter(t)}
}

// WriteText writes the results, summaries and coefficients of rep as
// aligned tables.
func (pr Printer) WriteText(out io.Writer, rep *Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	p := pr.p

	_, _ = p.Fprintf(w, "Run %s (%s): %s\n", rep.Run.Label, rep.Run.Source, rep.Run.Status)
	_, _ = p.Fprintf(w, "R1 %s, R2 %s\n", rep.Run.R1Name, rep.Run.R2Name)
	if len(rep.Run.Outcomes) > 0 {
		c := rep.Run.Counts()
		_, _ = p.Fprintf(w, "Blocks: %d ok, %d skipped, %d excluded\n",
			c[model.BlockStatusOK], c[model.BlockStatusSkipped], c[model.BlockStatusExcluded])
	}
	if rep.Run.Error != "" {
		_, _ = p.Fprintf(w, "Error: %s\n", rep.Run.Error)
	}

	if len(rep.Results) > 0 {
		_, _ = p.Fprintln(w)
		_, _ = p.Fprintln(w, "BLOCK\tLEVEL\tTIME\tR (Ω)\tU(R)\tk\tT (°C)\tV (V)")
		for _, r := range rep.Results {
			_, _ = p.Fprintf(w, "%d\t%s\t%s\t%.3f\t%.3f\t%.2f\t%.3f\t%.3f\n",
				r.Block, r.Level, r.Time.Format("2006-01-02 15:04"),
				r.R.Value, r.ExpandedU, r.K, r.T.Value, r.V.Value)
		}
	}

	if len(rep.Summaries) > 0 {
		_, _ = p.Fprintln(w)
		_, _ = p.Fprintln(w, "LEVEL\tN\tR (Ω)\tU(R)\tk\tT (°C)\tV (V)\tCMC (ppm)")
		for _, s := range rep.Summaries {
			fit := ""
			if !s.Fitted {
				fit = " (mean)"
			}
			_, _ = p.Fprintf(w, "%s%s\t%d\t%.3f\t%.3f\t%.2f\t%.3f\t%.3f\t%.2f\n",
				s.Level, fit, s.N, s.R.Value, s.ExpandedU, s.K, s.T.Value, s.V.Value, s.CMCppm)
		}
	}

	if c := rep.Coefficients; c != nil {
		_, _ = p.Fprintln(w)
		_, _ = p.Fprintf(w, "alpha\t%.4g\t± %.2g /°C\n", c.Alpha.Value, c.Alpha.Uncertainty)
		_, _ = p.Fprintf(w, "gamma\t%.4g\t± %.2g /V\n", c.Gamma.Value, c.Gamma.Uncertainty)
	}
	_ = w.Flush()
}

// WriteBudget writes budget lines, largest contribution first as stored.
func (pr Printer) WriteBudget(out io.Writer, lines []budget.Line) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	p := pr.p
	_, _ = p.Fprintln(w, "QUANTITY\tVALUE\tU\tDOF\tSENSITIVITY\tCONTRIBUTION")
	for _, l := range lines {
		_, _ = p.Fprintf(w, "%s\t%.6g\t%.3g\t%s\t%.3g\t%.3g\n",
			l.Label, l.Value, l.Uncertainty, l.DoF.Round(), l.Sensitivity, l.Contribution)
	}
	_ = w.Flush()
}
