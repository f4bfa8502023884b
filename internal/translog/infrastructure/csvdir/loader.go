package csvdir

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	translog "paygo-cloud/internal/translog/domain"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04",
}

// Config tunes a feed directory loader.
type Config struct {
	// Dir is the directory scanned for *.csv feed files.
	Dir string
	// Mapping translates raw headers and function codes; unset parts
	// fall back to the defaults.
	Mapping translog.MappingTable
	// IncludeFailed keeps rows whose success flag is not set. The
	// default drops them, matching the upstream transaction export.
	IncludeFailed bool
	Logger        *log.Logger
}

// Loader reads every CSV file in a directory and produces the cleaned
// transaction feed: headers mapped to operating names, rows filtered to
// successful transactions, unit ids normalized, duplicates dropped and
// function codes resolved to top-up weeks. Malformed rows are counted
// and skipped, never fatal.
type Loader struct {
	dir           string
	mapping       translog.MappingTable
	includeFailed bool
	logger        *log.Logger
}

// NewLoader constructs a Loader.
func NewLoader(cfg Config) (*Loader, error) {
	if cfg.Dir == "" {
		return nil, errors.New("csvdir: empty feed directory")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Loader{
		dir:           cfg.Dir,
		mapping:       cfg.Mapping.Normalize(),
		includeFailed: cfg.IncludeFailed,
		logger:        cfg.Logger,
	}, nil
}

// Load implements translog.FeedSource.
func (l *Loader) Load(ctx context.Context) ([]translog.TransactionEvent, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read feed dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			files = append(files, filepath.Join(l.dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", l.dir, translog.ErrNoFeedFiles)
	}

	seen := make(map[string]struct{})
	var events []translog.TransactionEvent
	var filtered, duplicates, malformed int

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileEvents, stats, err := l.loadFile(path)
		if err != nil {
			return nil, err
		}
		filtered += stats.filtered
		malformed += stats.malformed
		for _, ev := range fileEvents {
			key := ev.DedupeKey()
			if _, ok := seen[key]; ok {
				duplicates++
				continue
			}
			seen[key] = struct{}{}
			events = append(events, ev)
		}
	}

	l.logger.Printf("csvdir: loaded %d events from %d files filtered=%d duplicates=%d malformed=%d",
		len(events), len(files), filtered, duplicates, malformed)
	if len(events) == 0 {
		return nil, fmt.Errorf("%s: %w", l.dir, translog.ErrEmptyFeed)
	}
	return events, nil
}

type fileStats struct {
	filtered  int
	malformed int
}

func (l *Loader) loadFile(path string) ([]translog.TransactionEvent, fileStats, error) {
	var stats fileStats

	file, err := os.Open(path)
	if err != nil {
		return nil, stats, fmt.Errorf("open feed file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, stats, fmt.Errorf("read header of %s: %w", filepath.Base(path), err)
	}

	index := make(map[string]int, len(header))
	for i, raw := range header {
		index[l.mapping.Columns.Operating(raw)] = i
	}
	required := []string{translog.ColumnUnitID, translog.ColumnTimestamp, translog.ColumnFunctionCode}
	if !l.includeFailed {
		required = append(required, translog.ColumnSuccess)
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, stats, fmt.Errorf("%s: %s: %w", filepath.Base(path), col, translog.ErrMissingColumn)
		}
	}

	var events []translog.TransactionEvent
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			stats.malformed++
			continue
		}

		if !l.includeFailed && !isSuccess(field(record, index[translog.ColumnSuccess])) {
			stats.filtered++
			continue
		}

		unitID := translog.NormalizeUnitID(field(record, index[translog.ColumnUnitID]))
		at, tsErr := parseTimestamp(field(record, index[translog.ColumnTimestamp]))
		code, codeErr := strconv.Atoi(strings.TrimSpace(field(record, index[translog.ColumnFunctionCode])))
		if unitID == "" || tsErr != nil || codeErr != nil {
			stats.malformed++
			continue
		}

		var weeks float64
		if code != l.mapping.UnlockCode {
			weeks = l.mapping.Values.Weeks(code)
		}
		events = append(events, translog.TransactionEvent{
			UnitID: unitID,
			At:     at,
			Code:   code,
			Weeks:  weeks,
		})
	}
	return events, stats, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func isSuccess(value string) bool {
	v := strings.TrimSpace(value)
	return v == "1" || strings.EqualFold(v, "true")
}

func parseTimestamp(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, translog.ErrInvalidTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", translog.ErrInvalidTimestamp, v)
}
