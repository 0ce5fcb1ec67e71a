// Package report renders analysis results: the Results workbook written next
// to each analysed run and the plain-text tables printed by the CLI.
package report

import (
	"github.com/sells-group/bridge-cli/internal/model"
)

// Report is everything known about one finished run.
type Report struct {
	Run          model.Run
	Results      []model.ResultRow
	Summaries    []model.SummaryRow
	Coefficients *model.CoefficientsRow
	// NewProfile is set when the run characterised a resistor that had no
	// profile.
	NewProfile *model.ResistorProfile
}

// Result returns the result of block, or nil.
func (r *Report) Result(block int) *model.ResultRow {
	for i := range r.Results {
		if r.Results[i].Block == block {
			return &r.Results[i]
		}
	}
	return nil
}
