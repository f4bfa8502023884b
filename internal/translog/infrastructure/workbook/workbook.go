package workbook

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	translog "paygo-cloud/internal/translog/domain"
)

// Sheet names in the mapping workbook. The first sheet maps as-loaded
// column names to operating names, the second maps function codes to
// their top-up value in weeks; a code row with an empty value marks the
// unlock code.
const (
	SheetColumns = "translog"
	SheetValues  = "topupvalues"
)

// Load reads a mapping workbook from disk.
func Load(path string) (translog.MappingTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return translog.MappingTable{}, fmt.Errorf("open mapping workbook: %w", err)
	}
	defer f.Close()
	return parse(f)
}

// Parse reads a mapping workbook from a reader.
func Parse(r io.Reader) (translog.MappingTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return translog.MappingTable{}, fmt.Errorf("open mapping workbook: %w", err)
	}
	defer f.Close()
	return parse(f)
}

func parse(f *excelize.File) (translog.MappingTable, error) {
	table := translog.MappingTable{
		Columns: translog.ColumnMapping{},
		Values:  translog.TopUpValues{},
	}

	colRows, err := f.GetRows(SheetColumns)
	if err != nil {
		return translog.MappingTable{}, fmt.Errorf("read sheet %s: %w", SheetColumns, err)
	}
	for i, row := range colRows {
		if i == 0 || len(row) < 2 {
			continue
		}
		raw := strings.TrimSpace(row[0])
		operating := strings.TrimSpace(row[1])
		if raw == "" || operating == "" {
			continue
		}
		table.Columns[raw] = operating
	}

	valRows, err := f.GetRows(SheetValues)
	if err != nil {
		return translog.MappingTable{}, fmt.Errorf("read sheet %s: %w", SheetValues, err)
	}
	for i, row := range valRows {
		if i == 0 || len(row) == 0 {
			continue
		}
		code, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		var value string
		if len(row) > 1 {
			value = strings.TrimSpace(row[1])
		}
		if value == "" {
			// The first code without a value is the unlock code.
			if table.UnlockCode == 0 {
				table.UnlockCode = code
			}
			continue
		}
		weeks, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		table.Values[code] = weeks
	}

	return table.Normalize(), nil
}
