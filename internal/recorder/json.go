package recorder

import (
	"encoding/json"
	"fmt"
	"os"

	"PivotScreener/internal/fileutil"
	"PivotScreener/internal/model"
)

// JSONRecorder overwrites a single report document on every scan.
type JSONRecorder struct {
	path string
}

func NewJSONRecorder(path string) *JSONRecorder { return &JSONRecorder{path: path} }

func (r *JSONRecorder) RecordScan(res *model.ScanResult) error {
	if res == nil || res.Report == nil {
		return nil
	}
	data, err := json.MarshalIndent(res.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := fileutil.WriteAtomic(r.path, data); err != nil {
		return fmt.Errorf("write report %s: %w", r.path, err)
	}
	return nil
}

func (r *JSONRecorder) Close() error { return nil }

// LoadReport reads a document written by JSONRecorder.
func LoadReport(path string) (*model.ScanReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report model.ScanReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	if report.Stocks == nil {
		report.Stocks = []model.StrategyMatch{}
	}
	return &report, nil
}
