// Package report renders workflow results as text tables and plots.
//
// Tables are written with tablewriter to any io.Writer; plots are built
// with gonum/plot and written with Save, the format following the file
// extension (png, svg, pdf).
package report

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/YuminosukeSato/modelflow/core/model"
	"github.com/YuminosukeSato/modelflow/metrics"
	"github.com/YuminosukeSato/modelflow/pkg/errors"
	"github.com/YuminosukeSato/modelflow/tune"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 5, 64)
}

func render(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(lo.ToAnySlice(header)...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return errors.Wrap(err, "append table row")
		}
	}
	return errors.Wrap(table.Render(), "render table")
}

// CoefficientTable writes one row per term. NaN inference columns are
// printed as NaN.
func CoefficientTable(w io.Writer, coefs []model.Coefficient) error {
	rows := lo.Map(coefs, func(c model.Coefficient, _ int) []string {
		return []string{c.Term, formatFloat(c.Estimate), formatFloat(c.StdError), formatFloat(c.Statistic), formatFloat(c.PValue)}
	})
	return render(w, []string{"term", "estimate", "std_error", "statistic", "p_value"}, rows)
}

// ConfusionTable writes the counts with truth in rows and predictions in
// columns.
func ConfusionTable(w io.Writer, c *metrics.Confusion) error {
	if c == nil {
		return errors.NewValidationError("confusion", "must not be nil", nil)
	}
	header := append([]string{"truth \\ estimate"}, c.Levels...)
	rows := make([][]string, len(c.Levels))
	for i, level := range c.Levels {
		rows[i] = append([]string{level}, lo.Map(c.Counts[i], func(n int, _ int) string { return strconv.Itoa(n) })...)
	}
	return render(w, header, rows)
}

// MetricTable writes the evaluation estimates of a last fit.
func MetricTable(w io.Writer, estimates []tune.Estimate) error {
	rows := lo.Map(estimates, func(e tune.Estimate, _ int) []string {
		return []string{e.Metric, formatFloat(e.Value)}
	})
	return render(w, []string{"metric", "estimate"}, rows)
}

// TuningTable writes one row per summary with a column per tuning
// parameter.
func TuningTable(w io.Writer, summaries []tune.Summary, params []string) error {
	header := append([]string{"#"}, params...)
	header = append(header, "metric", "mean", "std_err", "n")
	rows := lo.Map(summaries, func(s tune.Summary, _ int) []string {
		row := []string{strconv.Itoa(s.Candidate + 1)}
		for _, p := range params {
			row = append(row, formatFloat(s.Params[p]))
		}
		return append(row, s.Metric, formatFloat(s.Mean), formatFloat(s.StdErr), strconv.Itoa(s.N))
	})
	return render(w, header, rows)
}
