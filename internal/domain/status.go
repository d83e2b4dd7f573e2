package domain

// RunStatus — статус run в журнале запусков.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
type RunStatus string

const (
	// RunStatusPending — run зарегистрирован, но ещё не взят в работу.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run выполняется оркестратором.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все стадии завершились успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — run завершился с ошибкой (конфиг, landing, стадия или отмена).
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// EventStatus возвращает статус для RunEvent.
// Для нефинальных статусов возвращает пустую строку.
func (s RunStatus) EventStatus() EventStatus {
	switch s {
	case RunStatusSucceeded:
		return EventStatusSuccess
	case RunStatusFailed:
		return EventStatusFailed
	default:
		return ""
	}
}

// EventStatus — итоговый статус run в событии завершения.
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailed  EventStatus = "failed"
)

// StageStatus — статус запущенной стадии (дочернего workflow).
//
// Жизненный цикл:
//
//	pending → succeeded
//	        ↘ failed
type StageStatus string

const (
	// StageStatusPending — стадия запущена, дочерний workflow ещё не в финальном состоянии.
	StageStatusPending StageStatus = "pending"

	// StageStatusSucceeded — дочерний workflow завершился успешно.
	StageStatusSucceeded StageStatus = "succeeded"

	// StageStatusFailed — дочерний workflow упал, либо вернул неизвестный финальный статус.
	StageStatusFailed StageStatus = "failed"
)

// IsTerminal возвращает true, если стадия завершена.
func (s StageStatus) IsTerminal() bool {
	return s == StageStatusSucceeded || s == StageStatusFailed
}

// FailureCause — причина неуспешного завершения run.
type FailureCause string

const (
	CauseNone             FailureCause = ""
	CauseConfigFetch      FailureCause = "config_fetch"
	CauseConfigParse      FailureCause = "config_parse"
	CauseConfigValidation FailureCause = "config_validation"
	CauseLandingTimeout   FailureCause = "landing_timeout"
	CauseStageFailed      FailureCause = "stage_failed"
	CauseCancelled        FailureCause = "cancelled"

	// CauseProduce — scanner не смог собрать или сохранить конфигурацию.
	CauseProduce FailureCause = "produce"
)
