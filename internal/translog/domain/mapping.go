package translog

import "strings"

// Canonical operating column names the feed loader understands. Raw
// feed headers are translated to these before any row is interpreted.
const (
	ColumnUnitID       = "unit_id"
	ColumnTimestamp    = "timestamp"
	ColumnSuccess      = "success"
	ColumnFunctionCode = "function_code"
)

// DefaultUnlockCode is the function code treated as a permanent unlock
// when the mapping workbook does not declare one.
const DefaultUnlockCode = 5

// ColumnMapping maps as-loaded header names to operating column names.
type ColumnMapping map[string]string

// Operating resolves a raw header to its operating name. Unmapped
// headers fall back to their trimmed, lowercased form so feeds that
// already use operating names need no mapping at all.
func (m ColumnMapping) Operating(raw string) string {
	key := strings.TrimSpace(raw)
	if v, ok := m[key]; ok {
		return v
	}
	return strings.ToLower(key)
}

// TopUpValues maps a function code to its top-up value in weeks. The
// unlock code never appears here; it carries no value.
type TopUpValues map[int]float64

// Weeks resolves a function code to its value. Unknown codes are worth
// nothing.
func (v TopUpValues) Weeks(code int) float64 { return v[code] }

// MappingTable is the injected lookup pack resolved once at load time:
// column renames, the function-code value table and the unlock code.
type MappingTable struct {
	Columns    ColumnMapping
	Values     TopUpValues
	UnlockCode int
}

// DefaultMappingTable returns the built-in mapping used when no workbook
// is configured: code 3 buys one week, code 4 four weeks, code 5 unlocks.
func DefaultMappingTable() MappingTable {
	return MappingTable{
		Columns:    ColumnMapping{},
		Values:     TopUpValues{3: 1, 4: 4},
		UnlockCode: DefaultUnlockCode,
	}
}

// Normalize fills unset parts of a mapping table with the defaults.
func (t MappingTable) Normalize() MappingTable {
	if t.Columns == nil {
		t.Columns = ColumnMapping{}
	}
	if t.Values == nil {
		t.Values = DefaultMappingTable().Values
	}
	if t.UnlockCode == 0 {
		t.UnlockCode = DefaultUnlockCode
	}
	return t
}
