package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/bridge-cli/internal/gum"
	"github.com/sells-group/bridge-cli/internal/profile"
)

// Sheet names of the Results workbook.
const (
	SheetResults    = "Results"
	SheetBudgets    = "Budgets"
	SheetSummary    = "Summary"
	SheetParameters = profile.SheetName
)

var resultHeader = []string{
	"Block", "Name", "Level", "Time",
	"R (Ω)", "u(R)", "dof", "U(R)", "k",
	"T (°C)", "u(T)", "V (V)", "u(V)",
}

var budgetHeader = []string{"Block", "Quantity", "Value", "u", "dof", "Sensitivity", "Contribution"}

var summaryHeader = []string{
	"Level", "N", "Fitted", "Time",
	"R (Ω)", "u(R)", "dof", "U(R)", "k",
	"T (°C)", "U(T)", "V (V)", "U(V)",
	"CMC (ppm)", "CMC (Ω)",
}

// Workbook builds the Results workbook for rep.
func Workbook(rep *Report) (*xlsx.File, error) {
	f := xlsx.NewFile()

	results, err := f.AddSheet(SheetResults)
	if err != nil {
		return nil, eris.Wrap(err, "report: add results sheet")
	}
	addStrings(results.AddRow(), "Run", rep.Run.Label, rep.Run.Source, string(rep.Run.Status))
	addStrings(results.AddRow(), "R1", rep.Run.R1Name, "R2", rep.Run.R2Name)
	addStrings(results.AddRow(), resultHeader...)
	for _, r := range rep.Results {
		row := results.AddRow()
		row.AddCell().SetInt(r.Block)
		addStrings(row, r.Name, string(r.Level))
		row.AddCell().SetDateTime(r.Time)
		addQuantity(row, r.R)
		row.AddCell().SetFloat(r.ExpandedU)
		row.AddCell().SetFloat(r.K)
		addValueU(row, r.T)
		addValueU(row, r.V)
	}

	budgets, err := f.AddSheet(SheetBudgets)
	if err != nil {
		return nil, eris.Wrap(err, "report: add budgets sheet")
	}
	addStrings(budgets.AddRow(), budgetHeader...)
	for _, r := range rep.Results {
		for _, l := range r.Budget {
			row := budgets.AddRow()
			row.AddCell().SetInt(r.Block)
			row.AddCell().SetString(l.Label)
			row.AddCell().SetFloat(l.Value)
			row.AddCell().SetFloat(l.Uncertainty)
			row.AddCell().SetString(l.DoF.Round().String())
			row.AddCell().SetFloat(l.Sensitivity)
			row.AddCell().SetFloat(l.Contribution)
		}
	}

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return nil, eris.Wrap(err, "report: add summary sheet")
	}
	addStrings(summary.AddRow(), summaryHeader...)
	for _, s := range rep.Summaries {
		row := summary.AddRow()
		row.AddCell().SetString(string(s.Level))
		row.AddCell().SetInt(s.N)
		row.AddCell().SetBool(s.Fitted)
		row.AddCell().SetDateTime(s.Time)
		addQuantity(row, s.R)
		row.AddCell().SetFloat(s.ExpandedU)
		row.AddCell().SetFloat(s.K)
		row.AddCell().SetFloat(s.T.Value)
		row.AddCell().SetFloat(s.TExpanded)
		row.AddCell().SetFloat(s.V.Value)
		row.AddCell().SetFloat(s.VExpanded)
		row.AddCell().SetFloat(s.CMCppm)
		row.AddCell().SetFloat(s.CMCOhm)
	}
	if c := rep.Coefficients; c != nil {
		addStrings(summary.AddRow(), "Coefficient", "Value", "u", "dof")
		for _, q := range []struct {
			name string
			q    gum.Quantity
		}{{"alpha (/°C)", c.Alpha}, {"beta (/°C²)", c.Beta}, {"gamma (/V)", c.Gamma}} {
			row := summary.AddRow()
			row.AddCell().SetString(q.name)
			addQuantity(row, q.q)
		}
	}

	if p := rep.NewProfile; p != nil {
		params, err := f.AddSheet(SheetParameters)
		if err != nil {
			return nil, eris.Wrap(err, "report: add parameters sheet")
		}
		for _, r := range profile.Rows(p, rep.Run.Label, rep.Run.Source) {
			addStrings(params.AddRow(), r...)
		}
	}
	return f, nil
}

// WriteXLSX saves the Results workbook for rep to path.
func WriteXLSX(path string, rep *Report) error {
	f, err := Workbook(rep)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "report: save %s", path)
}

// OutputPath is the default Results workbook path for an analysed file:
// "<dir>/<base>_results.xlsx".
func OutputPath(dir, source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, fmt.Sprintf("%s_results.xlsx", base))
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// addQuantity writes value, u and dof.
func addQuantity(row *xlsx.Row, q gum.Quantity) {
	addValueU(row, q)
	row.AddCell().SetString(q.DoF.Round().String())
}

func addValueU(row *xlsx.Row, q gum.Quantity) {
	row.AddCell().SetFloat(q.Value)
	row.AddCell().SetFloat(q.Uncertainty)
}
