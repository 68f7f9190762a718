package recorder

import (
	"errors"

	"PivotScreener/internal/model"
)

// Recorder persists completed scan results.
type Recorder interface {
	RecordScan(res *model.ScanResult) error
	Close() error
}

// MultiRecorder fans a scan out to several sinks. Every sink is attempted.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordScan(res *model.ScanResult) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordScan(res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopRecorder is used when no sink is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(_ *model.ScanResult) error { return nil }
func (n *NoopRecorder) Close() error                         { return nil }
