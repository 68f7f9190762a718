package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNoSymbolColumn is returned when the header row has no symbol column.
	ErrNoSymbolColumn = errors.New("universe: symbol column not found")
	// ErrMarkerMissing is returned when a remote body lacks the expected header marker.
	ErrMarkerMissing = errors.New("universe: response marker missing")
	// ErrEmptyList is returned when a list parses but yields no symbols.
	ErrEmptyList = errors.New("universe: no symbols")
)

// ParseSymbols reads a CSV index listing and returns the values of column with suffix appended.
// Blank cells are skipped and duplicates dropped, keeping first-seen order.
func ParseSymbols(r io.Reader, column, suffix string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoSymbolColumn
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if strings.EqualFold(name, column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNoSymbolColumn
	}

	seen := make(map[string]struct{})
	var symbols []string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if idx >= len(row) {
			continue
		}
		sym := strings.TrimSpace(row[idx])
		if sym == "" {
			continue
		}
		if !strings.HasSuffix(sym, suffix) {
			sym += suffix
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	if len(symbols) == 0 {
		return nil, ErrEmptyList
	}
	return symbols, nil
}

// DisplayTicker strips the exchange suffix for presentation.
func DisplayTicker(symbol, suffix string) string {
	if suffix == "" {
		return symbol
	}
	return strings.TrimSuffix(symbol, suffix)
}
