package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/dispatch"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/sensor"
	"github.com/shaiso/Cascade/internal/stage"
	"github.com/shaiso/Cascade/internal/telemetry"
)

// DefaultWorkflowID — идентификатор родительского workflow по умолчанию.
const DefaultWorkflowID = "cascade_main"

// ConfigLoader — загрузка и проверка конфигурации (реализует *config.Loader).
type ConfigLoader interface {
	Load(ctx context.Context, uri string) (domain.RunConfig, error)
}

// LandingSensor — ожидание входных данных (реализует *sensor.Sensor).
type LandingSensor interface {
	AwaitLanding(ctx context.Context, container, prefix string, poke, timeout time.Duration) (sensor.Result, error)
}

// StageRunner — запуск одной стадии (реализует *stage.Controller).
type StageRunner interface {
	RunStage(ctx context.Context, req stage.Request) (domain.StageRun, error)
}

// Dispatcher — финальные callback'и (реализует *dispatch.Dispatcher).
type Dispatcher interface {
	Dispatch(ctx context.Context, rc dispatch.RunContext, status domain.EventStatus) domain.RunEvent
}

// Config — зависимости и настройки Orchestrator.
type Config struct {
	Loader     ConfigLoader
	Sensor     LandingSensor
	Stages     StageRunner
	Dispatcher Dispatcher

	// WorkflowID — идентификатор родительского workflow в событиях.
	WorkflowID string

	// OnStage вызывается после завершения каждой стадии (успешной или нет).
	OnStage func(ctx context.Context, runID string, run domain.StageRun)

	Logger *slog.Logger
}

// RunRequest — запрос на выполнение одного run.
type RunRequest struct {
	// RunID — id run; если пуст, генерируется.
	RunID string

	// WorkflowID переопределяет Config.WorkflowID.
	WorkflowID string

	ConfigURI       string
	DecisionTraceID string

	// BatchDate — дата batch'а для шаблонов (по умолчанию — текущая дата UTC).
	BatchDate string
}

// Result — итог run.
type Result struct {
	RunID       string
	Status      domain.RunStatus
	Cause       domain.FailureCause
	FailedStage domain.StageKey

	// Err — ошибка, приведшая к FAILED (nil для SUCCEEDED).
	Err error

	Stages []domain.StageRun
	Event  domain.RunEvent
	Trace  []Transition

	StartedAt  time.Time
	FinishedAt time.Time
}

// Orchestrator выполняет run: конфигурация → landing → стадии → dispatch.
//
// Не хранит состояния между run: один Orchestrator можно использовать
// для нескольких независимых run одновременно.
type Orchestrator struct {
	loader     ConfigLoader
	sensor     LandingSensor
	stages     StageRunner
	dispatcher Dispatcher
	workflowID string
	onStage    func(ctx context.Context, runID string, run domain.StageRun)
	logger     *slog.Logger
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	workflowID := cfg.WorkflowID
	if workflowID == "" {
		workflowID = DefaultWorkflowID
	}

	return &Orchestrator{
		loader:     cfg.Loader,
		sensor:     cfg.Sensor,
		stages:     cfg.Stages,
		dispatcher: cfg.Dispatcher,
		workflowID: workflowID,
		onStage:    cfg.OnStage,
		logger:     logger,
	}
}

// Run выполняет run до финального состояния.
//
// Dispatcher вызывается ровно один раз на любом пути завершения, включая
// отмену ctx: dispatch выполняется на контексте без отмены.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) Result {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.WorkflowID == "" {
		req.WorkflowID = o.workflowID
	}
	if req.BatchDate == "" {
		req.BatchDate = time.Now().UTC().Format(time.DateOnly)
	}

	state := NewRunState(req.RunID, req.WorkflowID, time.Now())
	logger := telemetry.WithRunID(o.logger, req.RunID).With("workflow_id", req.WorkflowID)
	ctx = telemetry.WithLogger(ctx, logger)

	telemetry.ActiveRuns.Inc()
	defer telemetry.ActiveRuns.Dec()

	logger.Info("run started", "config_uri", req.ConfigURI, "batch_date", req.BatchDate)

	o.execute(ctx, state, req, logger)

	// Dispatched: на любом пути, без отмены
	if err := state.MarkDispatched(); err != nil {
		logger.Error("dispatch state", "error", err)
	}
	event := o.dispatcher.Dispatch(context.WithoutCancel(ctx), dispatch.RunContext{
		WorkflowID:      state.WorkflowID,
		RunID:           state.RunID,
		DecisionTraceID: req.DecisionTraceID,
		StartedAt:       state.StartedAt,
		Cause:           state.Cause,
		FailedStage:     state.FailedStage,
		Options:         state.Config.Options,
	}, state.Status().EventStatus())

	if err := state.Advance(StateTerminal, ""); err != nil {
		logger.Error("terminal state", "error", err)
	}

	res := Result{
		RunID:       state.RunID,
		Status:      state.Status(),
		Cause:       state.Cause,
		FailedStage: state.FailedStage,
		Err:         state.Err,
		Stages:      state.Stages,
		Event:       event,
		Trace:       state.Trace(),
		StartedAt:   state.StartedAt,
		FinishedAt:  time.Now(),
	}

	duration := res.FinishedAt.Sub(res.StartedAt)
	telemetry.ObserveRun(string(res.Status), string(res.Cause), duration)

	if res.Status == domain.RunStatusSucceeded {
		logger.Info("run succeeded", "duration", duration)
	} else {
		logger.Warn("run failed",
			"cause", res.Cause,
			"failed_stage", res.FailedStage,
			"duration", duration,
			"error", res.Err,
		)
	}

	return res
}

// execute проходит состояния от Init до AllStagesSucceeded или до первой ошибки.
// Ошибка фиксируется в state; dispatch выполняет вызывающий.
func (o *Orchestrator) execute(ctx context.Context, state *RunState, req RunRequest, logger *slog.Logger) {
	// 1. Конфигурация
	cfg, err := o.loader.Load(ctx, req.ConfigURI)
	if err != nil {
		cause := classifyConfigError(ctx, err)
		if cause == domain.CauseCancelled {
			err = fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		state.Fail(cause, "", err)
		logger.Error("config load failed", "cause", state.Cause, "error", err)
		return
	}
	state.Config = cfg
	o.advance(state, StateConfigLoaded, "", logger)

	vars := Vars{BatchDate: req.BatchDate, RunID: req.RunID, WorkflowID: req.WorkflowID}
	params, err := o.prepareStages(cfg, vars)
	if err != nil {
		state.Fail(domain.CauseConfigValidation, "", fmt.Errorf("%w: %w", config.ErrConfigValidation, err))
		logger.Error("stage params invalid", "error", err)
		return
	}
	o.advance(state, StateConfigValidated, "", logger)

	// 2. Landing
	o.advance(state, StateAwaitingLanding, "", logger)
	landing := cfg.Landing
	res, err := o.sensor.AwaitLanding(ctx, landing.Container, landing.Prefix, landing.PokeInterval, landing.Timeout)
	telemetry.ObserveLanding(res.Found, res.Elapsed)
	switch {
	case errors.Is(err, sensor.ErrCancelled):
		state.Fail(domain.CauseCancelled, "", fmt.Errorf("%w: %w", ErrCancelled, err))
		return
	case err != nil:
		state.Fail(domain.CauseConfigValidation, "", err)
		logger.Error("landing wait failed", "error", err)
		return
	case !res.Found:
		o.advance(state, StateLandingTimedOut, "", logger)
		state.Fail(domain.CauseLandingTimeout, "",
			fmt.Errorf("%w: %s/%s after %s", ErrLandingTimeout, landing.Container, landing.Prefix, res.Elapsed))
		return
	}
	o.advance(state, StateLandingFound, "", logger)

	// 3. Стадии: по одной, в порядке StageOrder, до первой ошибки
	for _, key := range domain.StageOrder {
		if ctx.Err() != nil {
			state.Fail(domain.CauseCancelled, "", fmt.Errorf("%w: %w", ErrCancelled, ctx.Err()))
			return
		}

		stageCfg, _ := cfg.Stage(key)
		o.advance(state, StateRunningStage, key, logger)

		run, err := o.stages.RunStage(ctx, stage.Request{
			Key:          key,
			WorkflowID:   stageCfg.WorkflowID,
			Params:       params[key],
			PollInterval: stageCfg.PollInterval,
		})
		state.AddStage(run)
		telemetry.ObserveStage(string(key), string(run.Status), run.Duration())
		if o.onStage != nil {
			o.onStage(ctx, state.RunID, run)
		}

		switch {
		case errors.Is(err, stage.ErrCancelled):
			state.Fail(domain.CauseCancelled, "", fmt.Errorf("%w: %w", ErrCancelled, err))
			return
		case err != nil || run.Status != domain.StageStatusSucceeded:
			o.advance(state, StateStageFailed, key, logger)
			state.Fail(domain.CauseStageFailed, key, &StageFailedError{
				StageKey:     key,
				ChildRunID:   run.ChildRunID,
				EngineStatus: run.EngineStatus,
				Err:          err,
			})
			return
		}
	}

	o.advance(state, StateAllStagesSucceeded, "", logger)
}

// prepareStages рендерит параметры всех стадий до начала ожидания,
// чтобы ошибка шаблона не всплыла посреди цепочки.
func (o *Orchestrator) prepareStages(cfg domain.RunConfig, vars Vars) (map[domain.StageKey]map[string]any, error) {
	out := make(map[domain.StageKey]map[string]any, len(domain.StageOrder))
	for _, key := range domain.StageOrder {
		stageCfg, ok := cfg.Stage(key)
		if !ok {
			return nil, fmt.Errorf("stage %s is not configured", key)
		}
		params, err := StageParams(stageCfg, cfg.Options, vars)
		if err != nil {
			return nil, err
		}
		out[key] = params
	}
	return out, nil
}

func (o *Orchestrator) advance(state *RunState, to State, key domain.StageKey, logger *slog.Logger) {
	if err := state.Advance(to, key); err != nil {
		logger.Error("state transition rejected", "error", err)
		return
	}
	logger.Debug("state", "state", to, "stage", key)
}

// classifyConfigError переводит ошибку загрузчика в причину.
func classifyConfigError(ctx context.Context, err error) domain.FailureCause {
	switch {
	case ctx.Err() != nil:
		return domain.CauseCancelled
	case errors.Is(err, config.ErrConfigValidation):
		return domain.CauseConfigValidation
	case errors.Is(err, config.ErrConfigParse):
		return domain.CauseConfigParse
	default:
		return domain.CauseConfigFetch
	}
}
