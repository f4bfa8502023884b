package interfaces

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	history "paygo-cloud/internal/history/domain"
)

const dayLayout = "2006-01-02"

// BuildTableCSV renders the unit×day table as CSV: one header row of days,
// one row per unit, cells as rendered by DayStatus.Cell.
func BuildTableCSV(table *history.HistoryTable) ([]byte, error) {
	if table == nil {
		return nil, errors.New("history export: nil table")
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	days := table.Axis().Days()
	header := make([]string, 0, len(days)+1)
	header = append(header, "unit_id")
	for _, day := range days {
		header = append(header, day.Format(dayLayout))
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	row := make([]string, len(header))
	for _, unitID := range table.Units() {
		column, ok := table.Unit(unitID)
		if !ok {
			continue
		}
		row[0] = unitID
		for i := 0; i < column.Len(); i++ {
			row[i+1] = column.At(i).Cell()
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildTableXLSX renders the table as a single-sheet workbook. In-credit and
// out-of-credit cells are written as numbers so spreadsheet formulas work on
// them; stock and unlocked days stay text.
func BuildTableXLSX(table *history.HistoryTable) ([]byte, error) {
	if table == nil {
		return nil, errors.New("history export: nil table")
	}

	f := excelize.NewFile()
	sheet := "history"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "unit_id")
	for i, day := range table.Axis().Days() {
		cell, err := excelize.CoordinatesToCellName(i+2, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, day.Format(dayLayout))
	}

	for rowIdx, unitID := range table.Units() {
		column, ok := table.Unit(unitID)
		if !ok {
			continue
		}
		row := rowIdx + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), unitID)
		for i := 0; i < column.Len(); i++ {
			cell, err := excelize.CoordinatesToCellName(i+2, row)
			if err != nil {
				return nil, err
			}
			status := column.At(i)
			if value, ok := status.Number(); ok {
				_ = f.SetCellValue(sheet, cell, value)
			} else {
				_ = f.SetCellValue(sheet, cell, status.Cell())
			}
		}
	}

	_ = f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildTableSummaryPDF renders a one-page summary of the table: axis bounds,
// unit count, day totals per status kind, and the longest out-of-credit
// streaks. The full grid stays in the CSV and XLSX exports.
func BuildTableSummaryPDF(table *history.HistoryTable) ([]byte, error) {
	if table == nil {
		return nil, errors.New("history export: nil table")
	}

	axis := table.Axis()
	totals := map[history.StatusKind]int{}
	type unitStreak struct {
		unitID string
		days   int
	}
	var streaks []unitStreak
	for _, unitID := range table.Units() {
		column, ok := table.Unit(unitID)
		if !ok {
			continue
		}
		longest := 0
		for i := 0; i < column.Len(); i++ {
			status := column.At(i)
			totals[status.Kind]++
			if status.Kind == history.KindOutOfCredit && status.StreakDays+1 > longest {
				longest = status.StreakDays + 1
			}
		}
		if longest > 0 {
			streaks = append(streaks, unitStreak{unitID: unitID, days: longest})
		}
	}
	sort.Slice(streaks, func(i, j int) bool {
		if streaks[i].days != streaks[j].days {
			return streaks[i].days > streaks[j].days
		}
		return streaks[i].unitID < streaks[j].unitID
	})
	if len(streaks) > 10 {
		streaks = streaks[:10]
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Unit History Table")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Range: %s to %s", axis.Start().Format(dayLayout), axis.End().Format(dayLayout)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Units: %d", table.Len()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Days: %d", axis.Len()))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Unit-days", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, entry := range []struct {
		label string
		kind  history.StatusKind
	}{
		{"Stock", history.KindStock},
		{"In credit", history.KindInCredit},
		{"Out of credit", history.KindOutOfCredit},
		{"Unlocked", history.KindUnlocked},
	} {
		pdf.CellFormat(60, 6, entry.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%d", totals[entry.kind]), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	if len(streaks) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(60, 6, "Unit", "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, "Longest streak", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, entry := range streaks {
			pdf.CellFormat(60, 6, entry.unitID, "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, fmt.Sprintf("%d days", entry.days), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
