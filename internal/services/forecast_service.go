package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/ratecast/ratecast/internal/analytics"
	"github.com/ratecast/ratecast/internal/analytics/anomaly"
	"github.com/ratecast/ratecast/internal/analytics/features"
	"github.com/ratecast/ratecast/internal/analytics/forecast"
	"github.com/ratecast/ratecast/internal/analytics/model"
	"github.com/ratecast/ratecast/internal/analytics/selection"
	"github.com/ratecast/ratecast/internal/config"
	"github.com/ratecast/ratecast/internal/ingest"
	"github.com/ratecast/ratecast/internal/logging"
	"github.com/ratecast/ratecast/internal/metrics"
	"github.com/ratecast/ratecast/internal/queue"
	"github.com/ratecast/ratecast/internal/resultstore"
)

// EventPublisher announces finished runs
type EventPublisher interface {
	RunCompleted(ctx context.Context, ev queue.RunCompleted) error
}

// ForecastService handles forecasting business logic
type ForecastService struct {
	logger   *logging.Logger
	cfg      config.Config
	deps     forecast.Deps
	store    resultstore.Store
	events   EventPublisher    // optional
	recorder *metrics.Recorder // optional
	runs     *semaphore.Weighted
	now      func() time.Time
}

// NewForecastService creates a new ForecastService. events and recorder may be nil.
func NewForecastService(
	logger *logging.Logger,
	cfg config.Config,
	store resultstore.Store,
	events EventPublisher,
	recorder *metrics.Recorder,
) (*ForecastService, error) {
	deps, err := BuildDeps(cfg.Forecast, cfg.Model)
	if err != nil {
		return nil, err
	}

	limit := cfg.Forecast.MaxConcurrentRuns
	if limit < 1 {
		limit = 1
	}

	return &ForecastService{
		logger:   logger,
		cfg:      cfg,
		deps:     deps,
		store:    store,
		events:   events,
		recorder: recorder,
		runs:     semaphore.NewWeighted(int64(limit)),
		now:      time.Now,
	}, nil
}

// BuildDeps wires the assembler, model factory and selector from config.
// The selector is always present; requests decide whether to use it.
func BuildDeps(fc config.ForecastConfig, mc config.ModelConfig) (forecast.Deps, error) {
	assembler := features.NewAssembler(fc.AssemblerConfig(), nil)
	if err := assembler.Config().StationarityWindows.Validate(); err != nil {
		return forecast.Deps{}, err
	}

	newModel, err := model.NewFactory(mc.Params(fc.Seed))
	if err != nil {
		return forecast.Deps{}, fmt.Errorf("model config: %w", err)
	}

	selector := selection.WithTimeout(
		selection.NewModelSelector(fc.Seed, fc.SelectionShortMax),
		fc.SelectionTimeout,
	)

	return forecast.Deps{
		Assembler: assembler,
		NewModel:  newModel,
		Selector:  selector,
	}, nil
}

// ForecastRequest represents a forecast request
type ForecastRequest struct {
	Strategy         string           // empty uses the configured strategy
	Horizon          int              // zero uses the configured horizon
	Step             int              // zero uses the configured step, capped at Horizon
	FeatureSelection *bool            // nil uses the configured default
	Points           analytics.Series // empty uses the configured dataset
}

// Strategies returns the names of the registered strategies
func (s *ForecastService) Strategies() []string {
	return forecast.ListStrategies()
}

// DefaultStrategy returns the strategy used when a request names none
func (s *ForecastService) DefaultStrategy() string {
	return s.cfg.Forecast.Strategy
}

// Run executes one backtest, stores its record and announces it. Failed runs
// are stored too; the returned error carries the run ID in its details.
func (s *ForecastService) Run(ctx context.Context, req *ForecastRequest) (*resultstore.Record, error) {
	resolved, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	strategy, err := forecast.NewStrategy(resolved.Strategy, s.deps)
	if err != nil {
		return nil, NewServiceErrorWithDetails(CodeInvalidStrategy, err.Error(), map[string]interface{}{
			"available_strategies": forecast.ListStrategies(),
		})
	}

	series, err := s.loadSeries(resolved.Points)
	if err != nil {
		return nil, classify(err)
	}

	if err := s.runs.Acquire(ctx, 1); err != nil {
		return nil, &ServiceError{Code: CodeUnavailable, Message: "run slot not acquired: " + err.Error(), Err: err}
	}
	defer s.runs.Release(1)

	if s.recorder != nil {
		defer s.recorder.RunStarted()()
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	log := s.logger.WithContext(ctx)

	record := &resultstore.Record{
		ID:               runID,
		Strategy:         resolved.Strategy,
		Horizon:          resolved.Horizon,
		FeatureSelection: *resolved.FeatureSelection,
		CreatedAt:        s.now().UTC(),
	}
	if resolved.Strategy == forecast.StrategyRecursive {
		record.Step = resolved.Step
	}
	record.Anomalies = s.screen(log, series)

	log.Info("Forecast started",
		"strategy", resolved.Strategy,
		"horizon", resolved.Horizon,
		"step", record.Step,
		"observations", len(series),
		"feature_selection", record.FeatureSelection)

	result, runErr := strategy.Forecast(series, forecast.Request{
		Horizon:          resolved.Horizon,
		Step:             resolved.Step,
		FeatureSelection: record.FeatureSelection,
	})
	record.CompletedAt = s.now().UTC()
	record.ElapsedMS = record.CompletedAt.Sub(record.CreatedAt).Milliseconds()

	if runErr != nil {
		record.Status = resultstore.StatusFailed
		record.Error = runErr.Error()
		log.Error("Forecast failed", "strategy", resolved.Strategy, "error", runErr)
	} else {
		record.Status = resultstore.StatusSucceeded
		FillRecord(record, result)
		s.logResult(log, result)
	}

	if err := s.store.Put(ctx, record); err != nil {
		log.Error("Failed to store run", "error", err)
		return nil, &ServiceError{Code: CodeInternal, Message: "failed to store run", Err: err}
	}

	if s.recorder != nil {
		s.recorder.RunFinished(record.Strategy, record.Status, record.CompletedAt.Sub(record.CreatedAt), record.MAE)
		if record.Selection != nil && record.Selection.Error != "" {
			s.recorder.SelectionFallback()
		}
	}
	s.announce(ctx, log, record)

	if runErr != nil {
		se := classify(runErr)
		se.Details = map[string]interface{}{"run_id": runID}
		return record, se
	}
	return record, nil
}

// Get returns a stored run
func (s *ForecastService) Get(ctx context.Context, id string) (*resultstore.Record, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return r, nil
}

// List returns up to limit stored runs, newest first
func (s *ForecastService) List(ctx context.Context, limit int) ([]*resultstore.Record, error) {
	runs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, classify(err)
	}
	return runs, nil
}

// Delete removes a stored run
func (s *ForecastService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return classify(err)
	}
	return nil
}

// resolve fills request defaults from config and checks the ranges
func (s *ForecastService) resolve(req *ForecastRequest) (*ForecastRequest, error) {
	out := *req
	fc := s.cfg.Forecast

	if out.Strategy == "" {
		out.Strategy = fc.Strategy
	}
	if out.Horizon == 0 {
		out.Horizon = fc.Horizon
	}
	if out.Step == 0 {
		out.Step = min(fc.Step, out.Horizon)
	}
	if out.FeatureSelection == nil {
		enabled := fc.FeatureSelection
		out.FeatureSelection = &enabled
	}

	if out.Horizon < 1 {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, "horizon must be at least 1",
			map[string]interface{}{"horizon": out.Horizon})
	}
	if out.Strategy == forecast.StrategyRecursive && (out.Step < 1 || out.Step > out.Horizon) {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, "step must be between 1 and horizon",
			map[string]interface{}{"step": out.Step, "horizon": out.Horizon})
	}
	return &out, nil
}

// loadSeries returns the inline points, or the configured dataset
func (s *ForecastService) loadSeries(points analytics.Series) (analytics.Series, error) {
	if len(points) > 0 {
		return ingest.Normalize(points, time.Time{})
	}
	if s.cfg.Data.Path == "" {
		return nil, NewServiceError(CodeNoData, "no points in request and no dataset configured")
	}
	opts, err := ingest.OptionsFromConfig(s.cfg.Data)
	if err != nil {
		return nil, err
	}
	return ingest.LoadCSV(s.cfg.Data.Path, opts)
}

// screen flags suspicious input observations. Screening never fails a run.
func (s *ForecastService) screen(log *logging.Logger, series analytics.Series) []anomaly.Anomaly {
	dc := s.cfg.Data
	found, err := ScreenSeries(dc, series)
	if err != nil {
		log.Warn("Input screening skipped", "detector", dc.AnomalyDetector, "error", err)
		return nil
	}
	if len(found) > 0 {
		log.Warn("Suspicious observations in input",
			"detector", dc.AnomalyDetector,
			"count", len(found),
			"first", found[0].Time.Format(time.DateOnly))
		if s.recorder != nil {
			s.recorder.InputAnomalies(len(found))
		}
	}
	return found
}

func (s *ForecastService) logResult(log *logging.Logger, res *forecast.Result) {
	if res.Selection != nil && res.Selection.Err != nil {
		log.Warn("Feature selection failed, all columns kept",
			"columns", res.Selection.Requested,
			"error", res.Selection.Err)
	}
	for _, b := range res.Skipped {
		log.Debug("Stationarity block skipped",
			"window", b.Window, "start", b.Start, "end", b.End, "reason", b.Reason)
	}
	for _, st := range res.Steps {
		log.Debug("Recursive step finished",
			"index", st.Index,
			"size", st.Size,
			"final", st.Final,
			"mae", st.MAE,
			"train_rows", st.TrainRows)
	}
	log.Info("Forecast completed",
		"strategy", res.Strategy,
		"horizon", res.Horizon,
		"mae", res.MAE,
		"rmse", res.RMSE,
		"columns", len(res.Columns),
		"elapsed_ms", res.Elapsed.Milliseconds())
}

func (s *ForecastService) announce(ctx context.Context, log *logging.Logger, r *resultstore.Record) {
	if s.events == nil {
		return
	}
	ev := queue.RunCompleted{
		RunID:       r.ID,
		Status:      r.Status,
		Strategy:    r.Strategy,
		Horizon:     r.Horizon,
		Step:        r.Step,
		MAE:         r.MAE,
		RMSE:        r.RMSE,
		ElapsedMS:   r.ElapsedMS,
		Error:       r.Error,
		CompletedAt: r.CompletedAt,
	}
	if err := s.events.RunCompleted(ctx, ev); err != nil {
		log.Warn("Failed to publish run event", "error", err)
	}
}

// ScreenSeries runs the configured anomaly detector over series. It returns
// nil when screening is disabled.
func ScreenSeries(dc config.DataConfig, series analytics.Series) ([]anomaly.Anomaly, error) {
	if dc.AnomalyDetector == "" {
		return nil, nil
	}
	cfg := anomaly.DefaultConfig()
	cfg.Threshold = dc.AnomalyThreshold
	cfg.StaleRun = dc.StaleRun
	return anomaly.Scan(series, dc.AnomalyDetector, cfg)
}

// FillRecord copies a successful result into r
func FillRecord(r *resultstore.Record, res *forecast.Result) {
	r.Points = make([]resultstore.Point, len(res.Predictions))
	for i := range res.Predictions {
		r.Points[i] = resultstore.Point{
			Time:      res.Index[i],
			Predicted: res.Predictions[i],
			Actual:    res.Actual[i],
		}
	}
	r.MAE = res.MAE
	r.RMSE = res.RMSE
	r.MAPE = res.MAPE
	r.Columns = res.Columns
	r.SkippedBlocks = len(res.Skipped)
	if res.Model != nil {
		r.Model = res.Model.Name()
	}

	if res.Selection != nil {
		r.Selection = &resultstore.Selection{
			Requested: res.Selection.Requested,
			Selected:  res.Selection.Selected,
		}
		if res.Selection.Err != nil {
			r.Selection.Error = res.Selection.Err.Error()
		}
	}

	for _, st := range res.Steps {
		r.Steps = append(r.Steps, resultstore.Step{
			Index:     st.Index,
			Size:      st.Size,
			Final:     st.Final,
			Start:     st.Start,
			MAE:       st.MAE,
			TrainRows: st.TrainRows,
		})
	}
}
