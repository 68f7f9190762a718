package collector

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PivotScreener/internal/model"
)

const chartJSON = `{"chart":{"result":[{"timestamp":[1740114000,1740027600,1740373200],
"indicators":{"quote":[{"open":[101,100,null],"high":[103,102,null],"low":[99,98,null],
"close":[102,101,null],"volume":[5000,4000,null]}]}}],"error":null}}`

func yahooServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestYahooFetcher_DecodesChart(t *testing.T) {
	var path, query atomic.Value
	srv := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		query.Store(r.URL.RawQuery)
		_, _ = w.Write([]byte(chartJSON))
	})
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	f := NewYahooFetcher(Options{BaseURL: srv.URL, Location: ist, Workers: 2})
	got, err := f.FetchDailyBars(context.Background(), []string{"RELIANCE.NS"})
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/RELIANCE.NS", path.Load())
	assert.Equal(t, "interval=1d&range=6mo", query.Load())

	bars := got["RELIANCE.NS"]
	require.Len(t, bars, 3)
	assert.True(t, bars[0].Time.Before(bars[1].Time), "bars sorted ascending")
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, ist, bars[0].Time.Location())
	assert.True(t, math.IsNaN(bars[2].Close), "null close becomes NaN")
	assert.False(t, bars[2].Valid())
	assert.Len(t, model.CleanBars(bars), 2)
}

func TestYahooFetcher_PartialAndTotalFailure(t *testing.T) {
	srv := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "GOOD") {
			_, _ = w.Write([]byte(chartJSON))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	})
	f := NewYahooFetcher(Options{BaseURL: srv.URL, Workers: 4})

	got, err := f.FetchDailyBars(context.Background(), []string{"GOOD.NS", "GONE.NS"})
	require.NoError(t, err)
	assert.Contains(t, got, "GOOD.NS")
	assert.NotContains(t, got, "GONE.NS")

	_, err = f.FetchDailyBars(context.Background(), []string{"GONE.NS", "ALSO_GONE.NS"})
	assert.ErrorIs(t, err, ErrAllSymbolsFailed)
}

func TestYahooFetcher_BreakerOpensOnOutage(t *testing.T) {
	var hits atomic.Int32
	srv := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	f := NewYahooFetcher(Options{BaseURL: srv.URL, Workers: 1})

	symbols := make([]string, 30)
	for i := range symbols {
		symbols[i] = "SYM" + string(rune('A'+i)) + ".NS"
	}
	_, err := f.FetchDailyBars(context.Background(), symbols)
	require.ErrorIs(t, err, ErrAllSymbolsFailed)
	assert.Equal(t, int32(10), hits.Load(), "breaker stops calling the source after ten straight failures")
}

func TestRESTFetcher(t *testing.T) {
	var auth atomic.Value
	srv := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		if r.URL.Path != "/api/v1/bars/daily" || r.URL.Query().Get("range") != "6mo" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("symbol") != "TCS.NS" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"timestamp": 1740114000, "open": 10, "high": 12, "low": 9, "close": 11, "volume": 1},
			{"timestamp": 1740027600, "open": 9, "high": 11, "low": 8, "close": 10, "volume": 1},
			{"timestamp": 1740200400, "open": nil, "high": 12, "low": 9, "close": 11, "volume": 1},
		})
	})
	f := NewRESTFetcher(Options{BaseURL: srv.URL, APIKey: "secret", Workers: 2})

	got, err := f.FetchDailyBars(context.Background(), []string{"TCS.NS", "INFY.NS"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth.Load())
	require.Len(t, got["TCS.NS"], 3)
	assert.Equal(t, 9.0, got["TCS.NS"][0].Open)
	assert.True(t, math.IsNaN(got["TCS.NS"][2].Open))
	assert.NotContains(t, got, "INFY.NS")
}

func TestFetchAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fetchAll(ctx, "test", []string{"A", "B"}, 2, func(ctx context.Context, _ string) ([]model.OHLCV, error) {
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, ErrAllSymbolsFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestYahooFetcher_DeadlineLeavesFetchIncomplete(t *testing.T) {
	srv := yahooServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "FAST") {
			_, _ = w.Write([]byte(chartJSON))
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	f := NewYahooFetcher(Options{BaseURL: srv.URL, Workers: 4})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	got, err := f.FetchDailyBars(ctx, []string{"FAST.NS", "SLOW1.NS", "SLOW2.NS", "SLOW3.NS"})
	require.ErrorIs(t, err, ErrIncomplete)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "1 of 4 symbols")
	assert.Nil(t, got, "a cut-off batch is not returned as partial data")
}

func TestFetchAll_CompleteBatchSurvivesLateDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	got, err := fetchAll(ctx, "test", []string{"A", "B"}, 1, func(_ context.Context, sym string) ([]model.OHLCV, error) {
		if sym == "B" {
			defer cancel()
		}
		return []model.OHLCV{{Close: 1}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFetchAll_EmptyInput(t *testing.T) {
	got, err := fetchAll(context.Background(), "test", nil, 2, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMockFetcher(t *testing.T) {
	end := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	m := &MockFetcher{End: end, Days: 60}

	got, err := m.FetchDailyBars(context.Background(), []string{"A.NS", "B.NS"})
	require.NoError(t, err)
	require.Len(t, got["A.NS"], 60)
	assert.Equal(t, end, got["A.NS"][59].Time)
	assert.Len(t, model.CleanBars(got["A.NS"]), 60)
	assert.NotEqual(t, got["A.NS"][0].Close, got["B.NS"][0].Close)

	m.Err = errors.New("down")
	_, err = m.FetchDailyBars(context.Background(), []string{"A.NS"})
	assert.Error(t, err)
	assert.Equal(t, 2, m.Calls)
}
