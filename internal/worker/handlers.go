package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/orchestrator"
	"github.com/shaiso/Cascade/internal/repo"
	"github.com/shaiso/Cascade/internal/scanner"
)

// handleRunRequested обрабатывает сообщение из очереди runs.requested.
func (w *Worker) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil {
		return mq.Permanent(err)
	}

	w.logger.Debug("received run.requested", "run_id", payload.RunID)

	// Остановленный воркер не берёт новые runs: сообщение вернётся в очередь
	if w.IsStopped() {
		return ErrWorkerStopped
	}

	if err := w.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer w.sem.Release(1)

	err = w.processRun(ctx, payload.RunID)
	switch {
	case err == nil, isSkippable(err):
		// Уже взят polling'ом или другим экземпляром — ack
		return nil
	case errors.Is(err, ErrRunNotFound):
		return mq.Permanent(err)
	default:
		return err
	}
}

// processRun забирает run из журнала, выполняет и записывает итог.
func (w *Worker) processRun(ctx context.Context, runID uuid.UUID) error {
	// 1. Загружаем run
	run, err := w.store.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}
	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}

	if err := w.addActiveRun(runID); err != nil {
		return err
	}
	defer w.removeActiveRun(runID)

	// 2. Забираем: PENDING → RUNNING
	claimed, err := w.store.Claim(ctx, run)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrRunNotPending
	}

	logger := w.logger.With("run_id", run.ID, "workflow_id", run.WorkflowID)
	logger.Info("run claimed", "config_uri", run.ConfigURI, "batch_date", run.BatchDate)

	// 3. Выполняем
	w.execute(ctx, run)

	// 4. Итог пишем даже при остановке воркера
	if err := w.store.Update(context.WithoutCancel(ctx), run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	logger.Info("run recorded", "status", run.Status, "cause", run.Cause)
	return nil
}

// execute выполняет run и переносит итог в запись журнала.
func (w *Worker) execute(ctx context.Context, run *domain.Run) {
	if run.ConfigURI != "" {
		res := w.orchestrator.Run(ctx, orchestrator.RunRequest{
			RunID:           run.ID.String(),
			WorkflowID:      run.WorkflowID,
			ConfigURI:       run.ConfigURI,
			DecisionTraceID: run.DecisionTraceID,
			BatchDate:       run.BatchDate,
		})
		applyResult(run, res)
		return
	}

	res, err := w.producer.ProduceRun(ctx, scanner.Request{
		RunID:           run.ID.String(),
		BatchDate:       run.BatchDate,
		DecisionTraceID: run.DecisionTraceID,
	})
	if err != nil {
		run.MarkFailed(domain.CauseProduce, err.Error())
		return
	}
	run.ConfigURI = res.ConfigURI
	applyResult(run, res.Run)
}

func applyResult(run *domain.Run, res orchestrator.Result) {
	run.Stages = res.Stages
	if res.Status == domain.RunStatusSucceeded {
		run.MarkSucceeded()
		return
	}

	errMsg := ""
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	run.MarkFailed(res.Cause, errMsg)
	run.FailedStage = res.FailedStage
}
