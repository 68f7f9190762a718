package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PivotScreener/internal/model"
)

func TestSQLiteRecorder(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	first := time.Date(2025, time.March, 3, 15, 45, 0, 0, time.UTC)
	require.NoError(t, rec.RecordScan(sampleResult("run-1", first)))
	require.NoError(t, rec.RecordScan(sampleResult("run-2", first.Add(24*time.Hour))))
	require.NoError(t, rec.RecordScan(nil))

	runs, err := rec.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.Equal(t, "ok", runs[0].Status)
	assert.Equal(t, "remote", runs[0].Provenance)
	assert.Equal(t, 3, runs[0].TotalScanned)
	assert.Equal(t, 1, runs[0].Matches)
	assert.Equal(t, int64(1500), runs[0].DurationMS)

	history, err := rec.TickerHistory("RELIANCE", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "run-2", history[0].RunID)
	assert.Equal(t, []string{"Doji_Setup", "Inside_Camarilla"}, history[0].Strategies)

	var outcomes int
	require.NoError(t, rec.db.QueryRow(`SELECT SUM(count) FROM scan_outcomes WHERE run_id = ?`, "run-1").Scan(&outcomes))
	assert.Equal(t, 3, outcomes)
}

func TestSQLiteRecorder_DuplicateRunRollsBack(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	res := sampleResult("run-1", time.Now())
	require.NoError(t, rec.RecordScan(res))
	assert.Error(t, rec.RecordScan(res))

	var n int
	require.NoError(t, rec.db.QueryRow(`SELECT COUNT(*) FROM scan_matches`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSQLiteRecorder_OutageRunHasNoMatches(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	res := &model.ScanResult{
		Report:      model.NewScanReport("down", time.Now(), 0, nil),
		Status:      model.ScanStatusDataSourceUnavailable,
		Diagnostics: model.ScanDiagnostics{Error: "unreachable"},
		GeneratedAt: time.Now(),
	}
	require.NoError(t, rec.RecordScan(res))
	runs, err := rec.RecentRuns(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "data_source_unavailable", runs[0].Status)
	assert.Zero(t, runs[0].Matches)
}
