package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ironsheep/omr-grader-mcp/internal/grading"
)

// ResultsSheet is the worksheet WriteXLSX fills.
const ResultsSheet = "Results"

var xlsxHeader = []string{
	"sheet", "status", "score", "total",
	"correct", "wrong", "unanswered", "ambiguous",
	"zone_source", "warnings", "error",
}

// WriteXLSX writes the summary as a workbook with one row per sheet,
// followed by one column per question holding what was read there. An
// ambiguous question lists its asserted options joined by "/".
func (s *Summary) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return err
	}

	questions := 0
	for _, row := range s.Items {
		if row.Result != nil && row.Result.Report != nil && row.Result.Report.Total > questions {
			questions = row.Result.Report.Total
		}
	}

	header := make([]interface{}, 0, len(xlsxHeader)+questions)
	for _, h := range xlsxHeader {
		header = append(header, h)
	}
	for q := 1; q <= questions; q++ {
		header = append(header, fmt.Sprintf("Q%d", q))
	}
	if err := f.SetSheetRow(ResultsSheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ResultsSheet, "A1", last, bold); err != nil {
		return err
	}

	for i, row := range s.Items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := xlsxRow(row)
		if err := f.SetSheetRow(ResultsSheet, cell, &values); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func xlsxRow(row SummaryRow) []interface{} {
	if row.Result == nil || row.Result.Report == nil {
		status := "failed"
		if row.Stage != "" {
			status = "failed: " + row.Stage
		}
		return []interface{}{row.Path, status, "", "", "", "", "", "", "", "", row.Error}
	}

	res := row.Result
	rep := res.Report
	values := []interface{}{
		row.Path, "graded", rep.Score, rep.Total,
		rep.Counts[grading.StatusCorrect],
		rep.Counts[grading.StatusWrong],
		rep.Counts[grading.StatusUnanswered],
		rep.Counts[grading.StatusAmbiguous],
		string(res.ZoneSource), len(res.Warnings), "",
	}
	for _, d := range rep.Details {
		values = append(values, readAs(d))
	}
	return values
}

// readAs is the text shown for one question.
func readAs(d grading.Detail) string {
	if d.Marked != nil {
		return string(*d.Marked)
	}
	if len(d.Asserted) > 1 {
		opts := make([]string, len(d.Asserted))
		for i, a := range d.Asserted {
			opts[i] = string(a.Option)
		}
		return strings.Join(opts, "/")
	}
	return ""
}
