package recorder

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRecorder_SetsAndPublishes(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rec := NewRedisRecorder(db, "nse", time.Hour)

	res := sampleResult("run-7", time.Date(2025, time.March, 3, 15, 45, 0, 0, time.UTC))
	payload, err := json.Marshal(res.Report)
	require.NoError(t, err)

	mock.ExpectSet("nse:latest", payload, time.Hour).SetVal("OK")
	mock.ExpectPublish("nse:scans", "run-7").SetVal(1)

	require.NoError(t, rec.RecordScan(res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRecorder_SetFailureSkipsPublish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rec := NewRedisRecorder(db, "", 0)
	assert.Equal(t, "screener:latest", rec.LatestKey())

	res := sampleResult("run-8", time.Now())
	payload, err := json.Marshal(res.Report)
	require.NoError(t, err)

	mock.ExpectSet("screener:latest", payload, 0).SetErr(errors.New("connection refused"))

	err = rec.RecordScan(res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screener:latest")
	assert.NoError(t, mock.ExpectationsWereMet())
}
