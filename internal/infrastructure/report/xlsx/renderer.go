package xlsx

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/lease-lens/internal/core/domain"
)

const (
	SummarySheet = "Summary"
	ClausesSheet = "Clauses"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var clauseHeader = []any{"#", "Clause", "Risk level", "Severity", "Explanation"}

// Renderer writes a presented analysis as an XLSX workbook with a summary
// sheet and one row per clause in presentation order.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) Render(w io.Writer, view domain.ResultView) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(ClausesSheet); err != nil {
		return fmt.Errorf("create clauses sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(f, view, bold); err != nil {
		return err
	}
	if err := writeClauses(f, view.Clauses, bold); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, view domain.ResultView, bold int) error {
	rows := [][]any{
		{"Document", view.Document},
		{"High risk", view.Counts.High},
		{"Medium risk", view.Counts.Medium},
		{"Low risk", view.Counts.Low},
		{"Total clauses", view.Counts.Total},
	}
	if s := view.Summary; !s.IsEmpty() {
		rows = append(rows,
			[]any{"Rent", s.RentAmount},
			[]any{"Security deposit", s.SecurityDeposit},
			[]any{"Lease term", s.LeaseTerm},
			[]any{"Key terms", strings.Join(s.KeyTerms, "; ")},
		)
	}
	for i, row := range rows {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	last := fmt.Sprintf("A%d", len(rows))
	if err := f.SetCellStyle(SummarySheet, "A1", last, bold); err != nil {
		return fmt.Errorf("style summary labels: %w", err)
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 20); err != nil {
		return fmt.Errorf("size summary column: %w", err)
	}
	return f.SetColWidth(SummarySheet, "B", "B", 60)
}

func writeClauses(f *excelize.File, clauses []domain.ClauseRow, bold int) error {
	if err := setRow(f, ClausesSheet, 1, clauseHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(ClausesSheet, "A1", "E1", bold); err != nil {
		return fmt.Errorf("style clause header: %w", err)
	}
	for i, row := range clauses {
		values := []any{row.Index + 1, row.Clause, string(row.RiskLevel), string(row.Severity), row.Explanation}
		if err := setRow(f, ClausesSheet, i+2, values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(ClausesSheet, "B", "B", 48); err != nil {
		return fmt.Errorf("size clause column: %w", err)
	}
	return f.SetColWidth(ClausesSheet, "E", "E", 64)
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
