package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/telemetry"
)

// Engine — удалённый движок workflow.
type Engine interface {
	// Start запускает workflow и возвращает id дочернего run.
	Start(ctx context.Context, workflowID string, params map[string]any) (string, error)

	// Poll возвращает текущий статус дочернего run.
	Poll(ctx context.Context, runID string) (PollResult, error)
}

// PollResult — ответ движка на запрос статуса.
type PollResult struct {
	// Terminal — run завершён (дальше статус не изменится).
	Terminal bool

	// Status — статус в терминах движка.
	Status string
}

// Статусы движка, которые распознаются как финальные.
const (
	EngineStatusSucceeded = "succeeded"
	EngineStatusFailed    = "failed"
)

// MapTerminalStatus переводит финальный статус движка в статус стадии.
// Неизвестные статусы считаются ошибкой.
func MapTerminalStatus(status string) domain.StageStatus {
	if strings.EqualFold(strings.TrimSpace(status), EngineStatusSucceeded) {
		return domain.StageStatusSucceeded
	}
	return domain.StageStatusFailed
}

// Request — параметры запуска одной стадии.
type Request struct {
	Key          domain.StageKey
	WorkflowID   string
	Params       map[string]any
	PollInterval time.Duration
}

// Config — настройки Controller.
type Config struct {
	Logger *slog.Logger

	// OnPoll вызывается после каждого опроса (для метрик и тестов).
	OnPoll func(run domain.StageRun)
}

// Controller запускает стадию и ждёт её завершения.
//
// Не хранит состояния между вызовами.
type Controller struct {
	engine Engine
	logger *slog.Logger
	onPoll func(run domain.StageRun)
}

// New создаёт Controller.
func New(engine Engine, cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		engine: engine,
		logger: logger,
		onPoll: cfg.OnPoll,
	}
}

// RunStage запускает дочерний workflow и блокируется до его финального состояния.
//
// Возвращает запись StageRun в любом случае. Ошибка возвращается, если стадию
// не удалось довести до финального статуса движка (start/poll/отмена); при
// этом Status записи — failed. Если движок сам сообщил о падении, ошибка nil,
// а Status — failed.
func (c *Controller) RunStage(ctx context.Context, req Request) (domain.StageRun, error) {
	run := domain.StageRun{
		StageKey:    req.Key,
		WorkflowID:  req.WorkflowID,
		TriggeredAt: time.Now(),
		Status:      domain.StageStatusPending,
	}

	if req.WorkflowID == "" || req.PollInterval <= 0 {
		c.fail(&run, "invalid request")
		return run, fmt.Errorf("%w: workflow_id=%q poll_interval=%s", ErrInvalidRequest, req.WorkflowID, req.PollInterval)
	}

	logger := telemetry.WithStage(telemetry.Logger(ctx, c.logger), string(req.Key)).With("workflow_id", req.WorkflowID)

	// 1. Запускаем дочерний workflow
	childID, err := c.engine.Start(ctx, req.WorkflowID, req.Params)
	if err != nil {
		if ctx.Err() != nil {
			c.fail(&run, "cancelled")
			return run, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		c.fail(&run, err.Error())
		logger.Error("stage start failed", "error", err)
		return run, fmt.Errorf("%w: %s: %w", ErrStartFailed, req.WorkflowID, err)
	}
	run.ChildRunID = childID
	logger = logger.With("child_run_id", childID)
	logger.Info("stage triggered")

	// 2. Опрашиваем до финального статуса
	ticker := time.NewTicker(req.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.fail(&run, "cancelled")
			logger.Warn("stage wait cancelled")
			return run, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		case <-ticker.C:
		}

		res, err := c.engine.Poll(ctx, childID)
		if err != nil {
			if ctx.Err() != nil {
				c.fail(&run, "cancelled")
				return run, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			}
			c.fail(&run, err.Error())
			logger.Error("stage poll failed", "error", err)
			return run, fmt.Errorf("%w: %s: %w", ErrPollFailed, childID, err)
		}

		run.EngineStatus = res.Status
		if c.onPoll != nil {
			c.onPoll(run)
		}

		if !res.Terminal {
			logger.Debug("stage still running", "engine_status", res.Status)
			continue
		}

		// 3. Финальный статус: неизвестные значения — ошибка
		status := MapTerminalStatus(res.Status)
		run.MarkFinished(status, time.Now())
		if status == domain.StageStatusFailed && !strings.EqualFold(strings.TrimSpace(res.Status), EngineStatusFailed) {
			run.Error = "unrecognized terminal status: " + res.Status
			logger.Warn("unrecognized terminal status, treating as failed", "engine_status", res.Status)
		}

		logger.Info("stage finished", "status", status, "engine_status", res.Status, "duration", run.Duration())
		return run, nil
	}
}

func (c *Controller) fail(run *domain.StageRun, reason string) {
	run.MarkFinished(domain.StageStatusFailed, time.Now())
	run.Error = reason
}
