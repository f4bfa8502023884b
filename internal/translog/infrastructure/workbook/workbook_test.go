package workbook

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	translog "paygo-cloud/internal/translog/domain"
)

func buildWorkbook(t *testing.T, columns [][]string, values [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", SheetColumns)
	if _, err := f.NewSheet(SheetValues); err != nil {
		t.Fatalf("new sheet: %v", err)
	}

	write := func(sheet string, rows [][]string) {
		for r, row := range rows {
			for c, cell := range row {
				name, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					t.Fatalf("cell name: %v", err)
				}
				if err := f.SetCellValue(sheet, name, cell); err != nil {
					t.Fatalf("set cell: %v", err)
				}
			}
		}
	}
	write(SheetColumns, columns)
	write(SheetValues, values)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return &buf
}

func TestParseMappingWorkbook(t *testing.T) {
	buf := buildWorkbook(t,
		[][]string{
			{"As_loaded", "Operating"},
			{"Scratchcard Serial", "unit_id"},
			{"Transaction Date", "timestamp"},
			{"Success", "success"},
			{"Function Code", "function_code"},
			{"", "ignored"},
		},
		[][]string{
			{"functioncode", "value"},
			{"3", "1"},
			{"4", "4"},
			{"6", "0.5"},
			{"5", ""},
		},
	)

	table, err := Parse(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := table.Columns.Operating("Scratchcard Serial"); got != translog.ColumnUnitID {
		t.Fatalf("expected unit_id mapping, got %s", got)
	}
	if got := table.Columns.Operating("Function Code"); got != translog.ColumnFunctionCode {
		t.Fatalf("expected function_code mapping, got %s", got)
	}
	if table.Values.Weeks(3) != 1 || table.Values.Weeks(4) != 4 {
		t.Fatalf("unexpected top-up values: %+v", table.Values)
	}
	if table.Values.Weeks(6) != 0.5 {
		t.Fatalf("expected fractional value 0.5, got %v", table.Values.Weeks(6))
	}
	if table.UnlockCode != 5 {
		t.Fatalf("expected unlock code 5 from empty value row, got %d", table.UnlockCode)
	}
	if table.Values.Weeks(5) != 0 {
		t.Fatalf("expected unlock code to carry no value, got %v", table.Values.Weeks(5))
	}
}

func TestParseDefaultsUnlockCodeWhenUnmarked(t *testing.T) {
	buf := buildWorkbook(t,
		[][]string{{"As_loaded", "Operating"}},
		[][]string{
			{"functioncode", "value"},
			{"3", "1"},
		},
	)

	table, err := Parse(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if table.UnlockCode != translog.DefaultUnlockCode {
		t.Fatalf("expected default unlock code, got %d", table.UnlockCode)
	}
}

func TestParseMissingSheet(t *testing.T) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", SheetColumns)
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	if _, err := Parse(&buf); err == nil {
		t.Fatal("expected error for missing topupvalues sheet")
	}
}
