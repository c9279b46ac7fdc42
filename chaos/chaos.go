package chaos

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Experiment defines one chaos engineering test: a hypothesis about
// how the system behaves under a fault, the fault itself, and how to
// judge the outcome.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Metric
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	Duration    time.Duration
	BlastRadius float64 // 0.0 to 1.0, share of the system affected
}

// Metric is a measurable system property sampled during a run.
type Metric struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action injects a fault or undoes one.
type Action struct {
	Type       string
	Target     string
	Parameters map[string]interface{}
	Execute    func(context.Context) error
}

// Assertion judges the final observation of a metric.
type Assertion struct {
	Metric    string
	Condition func(float64) bool
	Message   string
}

// Result captures one experiment execution.
type Result struct {
	ExperimentName   string                 `json:"experiment_name"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []MetricViolation      `json:"violations"`
	Observations     map[string][]DataPoint `json:"observations"`
	ErrorEvents      []ErrorEvent           `json:"error_events"`
	MTTR             *time.Duration         `json:"mttr,omitempty"`
}

type MetricViolation struct {
	MetricName string    `json:"metric_name"`
	Expected   float64   `json:"expected"`
	Actual     float64   `json:"actual"`
	Timestamp  time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Engine orchestrates chaos experiments against a running deployment.
type Engine struct {
	tracer      trace.Tracer
	db          *sql.DB
	logger      *zap.Logger
	experiments []Experiment
	results     []Result
	mu          sync.Mutex
}

func NewEngine(db *sql.DB, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		tracer:      otel.Tracer("retailnexus/chaos"),
		db:          db,
		logger:      logger,
		experiments: make([]Experiment, 0),
		results:     make([]Result, 0),
	}
}

// Register adds an experiment to the suite.
func (e *Engine) Register(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

// Experiments returns the registered suite.
func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.experiments
}

// Run executes a single experiment through its five phases: steady
// state check, fault injection, observation, rollback, validation.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(
			attribute.String("experiment.name", exp.Name),
		),
	)
	defer span.End()

	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		Observations:   make(map[string][]DataPoint),
		ErrorEvents:    make([]ErrorEvent, 0),
	}

	span.AddEvent("validating_steady_state")
	if valid, violations := e.validateSteadyState(ctx, exp.SteadyState); !valid {
		result.SteadyStateValid = false
		result.Violations = violations
		return result, errors.New("steady state invalid, aborting experiment")
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
				Timestamp: time.Now(),
				Error:     err.Error(),
				Component: action.Target,
			})
			span.RecordError(err)
		}
	}

	span.AddEvent("observing_system")
	observationCtx, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()

	recoveryStart := time.Time{}
	systemRecovered := false

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

observe:
	for {
		select {
		case <-observationCtx.Done():
			break observe
		case <-ticker.C:
			for _, metric := range exp.SteadyState {
				value, err := metric.Query(ctx)
				if err != nil {
					result.ErrorEvents = append(result.ErrorEvents, ErrorEvent{
						Timestamp: time.Now(),
						Error:     err.Error(),
						Component: metric.Name,
					})
					continue
				}

				result.Observations[metric.Name] = append(
					result.Observations[metric.Name],
					DataPoint{Timestamp: time.Now(), Value: value},
				)

				if !evaluateThreshold(value, metric.Threshold) {
					if recoveryStart.IsZero() {
						recoveryStart = time.Now()
					}
					result.Violations = append(result.Violations, MetricViolation{
						MetricName: metric.Name,
						Expected:   metric.Threshold.Value,
						Actual:     value,
						Timestamp:  time.Now(),
					})
				} else if !recoveryStart.IsZero() && !systemRecovered {
					mttr := time.Since(recoveryStart)
					result.MTTR = &mttr
					systemRecovered = true
				}
			}
		}
	}

	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			span.RecordError(err)
		}
	}

	span.AddEvent("validating_assertions")
	result.HypothesisHeld = validateAssertions(exp.Validation, result)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)

	return result, nil
}

func (e *Engine) validateSteadyState(ctx context.Context, metrics []Metric) (bool, []MetricViolation) {
	violations := make([]MetricViolation, 0)

	for _, metric := range metrics {
		value, err := metric.Query(ctx)
		if err != nil {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     -1,
				Timestamp:  time.Now(),
			})
			continue
		}

		if !evaluateThreshold(value, metric.Threshold) {
			violations = append(violations, MetricViolation{
				MetricName: metric.Name,
				Expected:   metric.Threshold.Value,
				Actual:     value,
				Timestamp:  time.Now(),
			})
		}
	}

	return len(violations) == 0, violations
}

func evaluateThreshold(value float64, threshold Threshold) bool {
	switch threshold.Operator {
	case ">":
		return value > threshold.Value
	case "<":
		return value < threshold.Value
	case ">=":
		return value >= threshold.Value
	case "<=":
		return value <= threshold.Value
	case "==":
		return value == threshold.Value
	default:
		return false
	}
}

func validateAssertions(assertions []Assertion, result *Result) bool {
	for _, assertion := range assertions {
		observations, exists := result.Observations[assertion.Metric]
		if !exists || len(observations) == 0 {
			return false
		}

		finalValue := observations[len(observations)-1].Value
		if !assertion.Condition(finalValue) {
			return false
		}
	}

	return true
}

// GameDay runs a series of experiments back to back.
type GameDay struct {
	Name         string
	Date         time.Time
	Scenarios    []Experiment
	Participants []string
	Runbooks     map[string]string
}

func (e *Engine) ExecuteGameDay(ctx context.Context, gameDay GameDay) error {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(
			attribute.String("gameday.name", gameDay.Name),
		),
	)
	defer span.End()

	e.logger.Info("starting game day",
		zap.String("name", gameDay.Name),
		zap.Time("date", gameDay.Date),
		zap.Strings("participants", gameDay.Participants),
	)

	for i, scenario := range gameDay.Scenarios {
		e.logger.Info("running experiment",
			zap.Int("index", i+1),
			zap.Int("total", len(gameDay.Scenarios)),
			zap.String("name", scenario.Name),
			zap.String("hypothesis", scenario.Hypothesis),
		)

		result, err := e.Run(ctx, scenario)
		if err != nil {
			e.logger.Error("experiment failed", zap.String("name", scenario.Name), zap.Error(err))
			continue
		}
		e.logResult(result)

		// Let the system settle between experiments.
		time.Sleep(30 * time.Second)
	}

	return nil
}

func (e *Engine) logResult(result *Result) {
	fields := []zap.Field{
		zap.String("experiment", result.ExperimentName),
		zap.Bool("hypothesis_held", result.HypothesisHeld),
		zap.Int("violations", len(result.Violations)),
		zap.Duration("duration", result.Duration),
	}
	if result.MTTR != nil {
		fields = append(fields, zap.Duration("mttr", *result.MTTR))
	}

	if result.HypothesisHeld {
		e.logger.Info("hypothesis held", fields...)
	} else {
		e.logger.Warn("hypothesis violated", fields...)
	}
	for _, v := range result.Violations {
		e.logger.Warn("metric violation",
			zap.String("metric", v.MetricName),
			zap.Float64("expected", v.Expected),
			zap.Float64("actual", v.Actual),
		)
	}
}
