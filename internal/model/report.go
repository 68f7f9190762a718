package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ReportTimeLayout is the wire format of ScanReport.LastUpdated.
const ReportTimeLayout = "2006-01-02 15:04:05"

// ScanReport is the externally visible artifact of one scan cycle.
type ScanReport struct {
	RunID        string          `json:"run_id"`
	LastUpdated  string          `json:"last_updated"`
	TotalScanned int             `json:"total_scanned"`
	Stocks       []StrategyMatch `json:"stocks"`
}

// NewScanReport stamps a report with its generation time.
func NewScanReport(runID string, generatedAt time.Time, total int, stocks []StrategyMatch) *ScanReport {
	if stocks == nil {
		stocks = []StrategyMatch{}
	}
	return &ScanReport{
		RunID:        runID,
		LastUpdated:  generatedAt.Format(ReportTimeLayout),
		TotalScanned: total,
		Stocks:       stocks,
	}
}

// Filter returns the matches carrying tag, in report order.
func (r *ScanReport) Filter(tag StrategyTag) []StrategyMatch {
	out := []StrategyMatch{}
	for _, s := range r.Stocks {
		if s.Has(tag) {
			out = append(out, s)
		}
	}
	return out
}

// OutcomeStatus is the typed per-ticker result of an evaluation.
type OutcomeStatus string

const (
	OutcomeMatched             OutcomeStatus = "matched"
	OutcomeNoMatch             OutcomeStatus = "no_match"
	OutcomeMissingData         OutcomeStatus = "missing_data"
	OutcomeInsufficientHistory OutcomeStatus = "insufficient_history"
	OutcomeAggregationFailed   OutcomeStatus = "aggregation_failed"
	OutcomeIndicatorFailed     OutcomeStatus = "indicator_failed"
	OutcomePanic               OutcomeStatus = "panic"
)

// TickerOutcome replaces silent per-ticker exception swallowing.
type TickerOutcome struct {
	Ticker string
	Status OutcomeStatus
	Match  *StrategyMatch
	Reason string
}

// ScanStatus tells the caller whether the data source was reachable.
type ScanStatus string

const (
	ScanStatusOK                    ScanStatus = "ok"
	ScanStatusDataSourceUnavailable ScanStatus = "data_source_unavailable"
)

// ScanDiagnostics aggregates per-ticker outcomes for observability.
type ScanDiagnostics struct {
	Provenance Provenance            `json:"provenance"`
	Universe   int                   `json:"universe"`
	Outcomes   map[OutcomeStatus]int `json:"outcomes"`
	Duration   time.Duration         `json:"duration"`
	Error      string                `json:"error,omitempty"`
}

// Count adds one outcome.
func (d *ScanDiagnostics) Count(status OutcomeStatus) {
	if d.Outcomes == nil {
		d.Outcomes = make(map[OutcomeStatus]int)
	}
	d.Outcomes[status]++
}

// String renders counts like "insufficient_history: 12, matched: 3" sorted by status name.
func (d *ScanDiagnostics) String() string {
	if len(d.Outcomes) == 0 {
		return "no tickers evaluated"
	}
	keys := make([]string, 0, len(d.Outcomes))
	for k := range d.Outcomes {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, d.Outcomes[OutcomeStatus(k)]))
	}
	return strings.Join(parts, ", ")
}

// ScanResult bundles the report with cycle-level status and diagnostics.
type ScanResult struct {
	Report      *ScanReport
	Diagnostics ScanDiagnostics
	Status      ScanStatus
	GeneratedAt time.Time
}
