package services

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/config"
	"github.com/ratecast/ratecast/internal/logging"
	"github.com/ratecast/ratecast/internal/metrics"
	"github.com/ratecast/ratecast/internal/queue"
	"github.com/ratecast/ratecast/internal/resultstore"
)

var testBaseTime = time.Date(2015, 4, 1, 0, 0, 0, 0, time.UTC)

func rateSeries(n int) analytics.Series {
	s := make(analytics.Series, n)
	for i := range s {
		x := float64(i)
		s[i] = analytics.TimeSeriesPoint{
			Time:  testBaseTime.AddDate(0, 0, i),
			Value: 60 + 0.02*x + 1.5*math.Sin(2*math.Pi*x/30) + 0.4*math.Sin(0.7*x),
		}
	}
	return s
}

// testConfig uses ridge so runs finish quickly
func testConfig() config.Config {
	cfg := *config.DefaultConfig()
	cfg.Model.Type = "ridge"
	cfg.Model.RidgeAlpha = 1e-4
	cfg.Data.AnomalyDetector = ""
	return cfg
}

type recordingEvents struct {
	mu     sync.Mutex
	events []queue.RunCompleted
	err    error
}

func (r *recordingEvents) RunCompleted(_ context.Context, ev queue.RunCompleted) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func newTestService(t *testing.T, cfg config.Config, events EventPublisher) (*ForecastService, resultstore.Store) {
	t.Helper()
	store := resultstore.NewMemoryStore(0)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := NewForecastService(logging.Nop(), cfg, store, events, metrics.New())
	require.NoError(t, err)
	return svc, store
}

func TestNewForecastService_InvalidModel(t *testing.T) {
	cfg := testConfig()
	cfg.Model.Type = "lstm"
	_, err := NewForecastService(logging.Nop(), cfg, resultstore.NewMemoryStore(0), nil, nil)
	assert.Error(t, err)
}

func TestForecastService_RunDirect(t *testing.T) {
	events := &recordingEvents{}
	svc, store := newTestService(t, testConfig(), events)

	rec, err := svc.Run(context.Background(), &ForecastRequest{
		Strategy: "direct",
		Horizon:  5,
		Points:   rateSeries(300),
	})
	require.NoError(t, err)

	assert.Equal(t, resultstore.StatusSucceeded, rec.Status)
	assert.Equal(t, "direct", rec.Strategy)
	assert.Equal(t, 0, rec.Step)
	assert.Equal(t, "ridge", rec.Model)
	require.Len(t, rec.Points, 5)
	assert.True(t, rec.Points[4].Time.Equal(testBaseTime.AddDate(0, 0, 299)))
	assert.Greater(t, rec.MAE, 0.0)
	assert.NotEmpty(t, rec.Columns)

	stored, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.MAE, stored.MAE)

	require.Len(t, events.events, 1)
	assert.Equal(t, rec.ID, events.events[0].RunID)
	assert.Equal(t, queue.StatusSucceeded, events.events[0].Status)
}

func TestForecastService_RunRecursive(t *testing.T) {
	svc, _ := newTestService(t, testConfig(), nil)

	rec, err := svc.Run(context.Background(), &ForecastRequest{
		Strategy: "recursive",
		Horizon:  7,
		Step:     3,
		Points:   rateSeries(300),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, rec.Step)
	require.Len(t, rec.Points, 7)
	require.Len(t, rec.Steps, 3)
	assert.Equal(t, 1, rec.Steps[2].Size)
	assert.True(t, rec.Steps[2].Final)
}

func TestForecastService_Defaults(t *testing.T) {
	cfg := testConfig()
	cfg.Forecast.Strategy = "recursive"
	cfg.Forecast.Horizon = 7
	cfg.Forecast.Step = 7
	svc, _ := newTestService(t, cfg, nil)

	resolved, err := svc.resolve(&ForecastRequest{Horizon: 3})
	require.NoError(t, err)
	assert.Equal(t, "recursive", resolved.Strategy)
	assert.Equal(t, 3, resolved.Step)
	require.NotNil(t, resolved.FeatureSelection)
	assert.False(t, *resolved.FeatureSelection)
}

func TestForecastService_RequestErrors(t *testing.T) {
	svc, _ := newTestService(t, testConfig(), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *ForecastRequest
		code string
	}{
		{"negative horizon", &ForecastRequest{Horizon: -1, Points: rateSeries(50)}, CodeInvalidRequest},
		{"step above horizon", &ForecastRequest{Strategy: "recursive", Horizon: 3, Step: 5, Points: rateSeries(50)}, CodeInvalidRequest},
		{"unknown strategy", &ForecastRequest{Strategy: "hybrid", Points: rateSeries(50)}, CodeInvalidStrategy},
		{"no dataset", &ForecastRequest{Horizon: 3}, CodeNoData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Run(ctx, tt.req)
			var se *ServiceError
			require.True(t, errors.As(err, &se), "expected ServiceError, got %v", err)
			assert.Equal(t, tt.code, se.Code)
		})
	}

	list, err := svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list, "rejected requests must not be stored")
}

func TestForecastService_FailedRunIsStored(t *testing.T) {
	events := &recordingEvents{}
	svc, _ := newTestService(t, testConfig(), events)
	ctx := context.Background()

	rec, err := svc.Run(ctx, &ForecastRequest{Strategy: "direct", Horizon: 7, Points: rateSeries(12)})
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, CodeInsufficientHistory, se.Code)
	require.NotNil(t, rec)
	assert.Equal(t, rec.ID, se.Details["run_id"])

	got, err := svc.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, resultstore.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "insufficient history")

	require.Len(t, events.events, 1)
	assert.Equal(t, queue.StatusFailed, events.events[0].Status)
}

func TestForecastService_PublishFailureDoesNotFailRun(t *testing.T) {
	events := &recordingEvents{err: errors.New("broker down")}
	svc, _ := newTestService(t, testConfig(), events)

	_, err := svc.Run(context.Background(), &ForecastRequest{Horizon: 3, Points: rateSeries(200)})
	assert.NoError(t, err)
}

func TestForecastService_GetListDelete(t *testing.T) {
	svc, _ := newTestService(t, testConfig(), nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, CodeNotFound, se.Code)

	first, err := svc.Run(ctx, &ForecastRequest{Horizon: 3, Points: rateSeries(200)})
	require.NoError(t, err)
	svc.now = func() time.Time { return first.CreatedAt.Add(time.Minute) }
	second, err := svc.Run(ctx, &ForecastRequest{Horizon: 4, Points: rateSeries(200)})
	require.NoError(t, err)

	list, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, svc.Delete(ctx, first.ID))
	err = svc.Delete(ctx, first.ID)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, CodeNotFound, se.Code)
}

func TestForecastService_DatasetAndScreening(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.csv")
	var content []byte
	content = append(content, "date;exrate\n"...)
	series := rateSeries(200)
	series[120].Value += 25
	for _, p := range series {
		content = append(content, p.Time.Format("02.01.2006")+";"+formatComma(p.Value)+"\n"...)
	}
	require.NoError(t, os.WriteFile(path, content, 0644))

	cfg := testConfig()
	cfg.Data.Path = path
	cfg.Data.AnomalyDetector = "iqr"
	svc, _ := newTestService(t, cfg, nil)

	rec, err := svc.Run(context.Background(), &ForecastRequest{Horizon: 3})
	require.NoError(t, err)
	require.NotEmpty(t, rec.Anomalies)
	assert.True(t, rec.Anomalies[0].Time.Equal(series[120].Time))
}

func TestForecastService_ConcurrencyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Forecast.MaxConcurrentRuns = 1
	svc, _ := newTestService(t, cfg, nil)

	require.NoError(t, svc.runs.Acquire(context.Background(), 1))
	defer svc.runs.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Run(ctx, &ForecastRequest{Horizon: 3, Points: rateSeries(200)})
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, CodeUnavailable, se.Code)
}

func TestForecastService_Strategies(t *testing.T) {
	svc, _ := newTestService(t, testConfig(), nil)
	assert.Equal(t, []string{"direct", "recursive"}, svc.Strategies())
	assert.Equal(t, "direct", svc.DefaultStrategy())
}

func formatComma(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}
