// Package report renders the evaluation results table as text, CSV or XLSX.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/entailgraph/internal/model"
)

// Header is the column order shared by every format.
var Header = []string{"run_id", "setting", "threshold", "recall", "precision", "f1"}

const sheetName = "results"

// WriteTable prints results as an aligned text table.
func WriteTable(w io.Writer, results []model.EvaluationResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SETTING\tTHRESHOLD\tRECALL\tPRECISION\tF1")
	fmt.Fprintln(tw, "-------\t---------\t------\t---------\t--")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.2f\t%.4f\t%.4f\t%.4f\n", r.Setting, r.Threshold, r.Recall, r.Precision, r.F1)
	}
	return eris.Wrap(tw.Flush(), "report: flush table")
}

func record(r model.EvaluationResult) []string {
	return []string{
		r.RunID,
		r.Setting,
		strconv.FormatFloat(r.Threshold, 'f', -1, 64),
		strconv.FormatFloat(r.Recall, 'f', 6, 64),
		strconv.FormatFloat(r.Precision, 'f', 6, 64),
		strconv.FormatFloat(r.F1, 'f', 6, 64),
	}
}

// WriteCSV writes results with a header row.
func WriteCSV(w io.Writer, results []model.EvaluationResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, r := range results {
		if err := cw.Write(record(r)); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// NewWorkbook builds an XLSX workbook with one results sheet.
func NewWorkbook(results []model.EvaluationResult) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}
	for _, r := range results {
		row := sheet.AddRow()
		row.AddCell().SetString(r.RunID)
		row.AddCell().SetString(r.Setting)
		row.AddCell().SetFloat(r.Threshold)
		row.AddCell().SetFloatWithFormat(r.Recall, "0.0000")
		row.AddCell().SetFloatWithFormat(r.Precision, "0.0000")
		row.AddCell().SetFloatWithFormat(r.F1, "0.0000")
	}
	return f, nil
}

// WriteXLSX writes results as an XLSX workbook.
func WriteXLSX(w io.Writer, results []model.EvaluationResult) error {
	f, err := NewWorkbook(results)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "xlsx: write")
}

// Export writes results to path, choosing CSV or XLSX by extension.
func Export(path string, results []model.EvaluationResult) error {
	var write func(io.Writer, []model.EvaluationResult) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = WriteCSV
	case ".xlsx":
		write = WriteXLSX
	default:
		return eris.Errorf("report: unsupported export format %q (want .csv or .xlsx)", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	if err := write(f, results); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "report: close %s", path)
}

// Best returns the result with the highest F1. ok is false for no results.
func Best(results []model.EvaluationResult) (best model.EvaluationResult, ok bool) {
	for _, r := range results {
		if !ok || r.F1 > best.F1 {
			best, ok = r, true
		}
	}
	return best, ok
}
