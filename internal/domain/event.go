package domain

import "time"

// EventKindRunCompleted — тип события завершения run.
const EventKindRunCompleted = "run.completed"

// EventProducer — идентификатор источника событий.
const EventProducer = "cascade.orchestrator"

// RunEvent — событие завершения run.
//
// Создаётся ровно один раз на run, на границе успеха или ошибки.
// Это значение: после создания не изменяется и не переотправляется.
type RunEvent struct {
	Kind            string       `json:"event"`
	Producer        string       `json:"producer"`
	WorkflowID      string       `json:"workflow_id"`
	RunID           string       `json:"run_id"`
	Status          EventStatus  `json:"status"`
	Timestamp       time.Time    `json:"ts"`
	DecisionTraceID string       `json:"decision_trace_id,omitempty"`
	Cause           FailureCause `json:"cause,omitempty"`

	// FailedStage — ключ упавшей стадии (только для CauseStageFailed).
	FailedStage StageKey `json:"failed_stage,omitempty"`

	// StartedAt — время начала run.
	StartedAt time.Time `json:"started_at"`
}

// StageRun — запись о запущенном дочернем workflow.
//
// Создаётся контроллером стадии при старте, меняется только его циклом опроса.
type StageRun struct {
	StageKey    StageKey    `json:"stage_key"`
	WorkflowID  string      `json:"workflow_id"`
	TriggeredAt time.Time   `json:"triggered_at"`
	Status      StageStatus `json:"status"`
	ChildRunID  string      `json:"child_run_id,omitempty"`

	// EngineStatus — статус в терминах удалённого движка (как он его вернул).
	EngineStatus string `json:"engine_status,omitempty"`

	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Duration возвращает время выполнения стадии.
// Возвращает 0, если стадия ещё не завершена.
func (s *StageRun) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.TriggeredAt)
}

// MarkFinished фиксирует финальный статус стадии.
func (s *StageRun) MarkFinished(status StageStatus, at time.Time) {
	s.Status = status
	s.FinishedAt = &at
}
