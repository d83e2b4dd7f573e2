package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — запись журнала запусков Cascade.
//
// Запись появляется по запросу из API/CLI либо от scanner'а. Пустой
// ConfigURI означает, что конфигурацию сначала собирает scanner.
type Run struct {
	ID              uuid.UUID `json:"id"` // он же run_id в RunEvent
	WorkflowID      string    `json:"workflow_id"`
	ConfigURI       string    `json:"config_uri,omitempty"`
	BatchDate       string    `json:"batch_date,omitempty"` // YYYY-MM-DD
	DecisionTraceID string    `json:"decision_trace_id,omitempty"`

	Status      RunStatus    `json:"status"`
	Cause       FailureCause `json:"cause,omitempty"`        // только для FAILED
	FailedStage StageKey     `json:"failed_stage,omitempty"` // только для CauseStageFailed
	Stages      []StageRun   `json:"stages,omitempty"`
	Error       string       `json:"error,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"` // переход в RUNNING
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Duration — время от перехода в RUNNING до итога; 0, пока run не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished сообщает, достиг ли run итогового статуса.
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning отмечает, что run забран на выполнение.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status, r.StartedAt = RunStatusRunning, &now
}

// MarkSucceeded фиксирует успешный итог.
func (r *Run) MarkSucceeded() {
	r.finish(RunStatusSucceeded)
}

// MarkFailed фиксирует неудачу с причиной и текстом ошибки.
func (r *Run) MarkFailed(cause FailureCause, err string) {
	r.Cause, r.Error = cause, err
	r.finish(RunStatusFailed)
}

func (r *Run) finish(status RunStatus) {
	now := time.Now()
	r.Status, r.FinishedAt = status, &now
}
