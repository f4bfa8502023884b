package interfaces

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	history "paygo-cloud/internal/history/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustColumn(t *testing.T, unitID string, axis history.DayAxis, statuses []history.DayStatus) *history.UnitHistory {
	t.Helper()
	column, err := history.NewUnitHistory(unitID, axis, statuses)
	if err != nil {
		t.Fatalf("new unit history for %s: %v", unitID, err)
	}
	return column
}

func fixtureTable(t *testing.T) *history.HistoryTable {
	t.Helper()
	axis, err := history.NewDayAxis(day(2026, time.March, 1), day(2026, time.March, 4))
	if err != nil {
		t.Fatalf("new axis: %v", err)
	}
	table, err := history.NewHistoryTable(axis)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	columns := []*history.UnitHistory{
		mustColumn(t, "UNIT-A", axis, []history.DayStatus{
			history.InCredit(7), history.InCredit(6), history.InCredit(5), history.InCredit(4),
		}),
		mustColumn(t, "UNIT-B", axis, []history.DayStatus{
			history.Stock(), history.Stock(), history.OutOfCredit(0), history.OutOfCredit(1),
		}),
		mustColumn(t, "UNIT-C", axis, []history.DayStatus{
			history.Unlocked(), history.Unlocked(), history.Unlocked(), history.Unlocked(),
		}),
	}
	for _, column := range columns {
		if err := table.Add(column); err != nil {
			t.Fatalf("add column %s: %v", column.UnitID(), err)
		}
	}
	return table
}

func TestBuildTableCSV(t *testing.T) {
	data, err := BuildTableCSV(fixtureTable(t))
	if err != nil {
		t.Fatalf("build csv: %v", err)
	}

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 unit rows, got %d rows", len(rows))
	}

	wantHeader := []string{"unit_id", "2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04"}
	for i, want := range wantHeader {
		if rows[0][i] != want {
			t.Fatalf("header[%d]: expected %q, got %q", i, want, rows[0][i])
		}
	}

	wantRows := map[string][]string{
		"UNIT-A": {"7", "6", "5", "4"},
		"UNIT-B": {"S", "S", "0", "-1"},
		"UNIT-C": {"U", "U", "U", "U"},
	}
	for _, row := range rows[1:] {
		want, ok := wantRows[row[0]]
		if !ok {
			t.Fatalf("unexpected unit row %q", row[0])
		}
		for i, cell := range want {
			if row[i+1] != cell {
				t.Fatalf("%s cell %d: expected %q, got %q", row[0], i, cell, row[i+1])
			}
		}
	}
}

func TestBuildTableXLSX(t *testing.T) {
	data, err := BuildTableXLSX(fixtureTable(t))
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("history")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "unit_id" || rows[0][1] != "2026-03-01" {
		t.Fatalf("unexpected header row %v", rows[0])
	}
	if rows[1][0] != "UNIT-A" || rows[1][1] != "7" || rows[1][4] != "4" {
		t.Fatalf("unexpected UNIT-A row %v", rows[1])
	}
	if rows[2][3] != "0" || rows[2][4] != "-1" {
		t.Fatalf("unexpected UNIT-B row %v", rows[2])
	}
	if rows[3][1] != "U" {
		t.Fatalf("unexpected UNIT-C row %v", rows[3])
	}
}

func TestBuildTableSummaryPDF(t *testing.T) {
	data, err := BuildTableSummaryPDF(fixtureTable(t))
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected PDF magic, got %q", data[:8])
	}
}

func TestBuildersRejectNilTable(t *testing.T) {
	if _, err := BuildTableCSV(nil); err == nil {
		t.Fatal("expected csv builder to reject nil table")
	}
	if _, err := BuildTableXLSX(nil); err == nil {
		t.Fatal("expected xlsx builder to reject nil table")
	}
	if _, err := BuildTableSummaryPDF(nil); err == nil {
		t.Fatal("expected pdf builder to reject nil table")
	}
}
