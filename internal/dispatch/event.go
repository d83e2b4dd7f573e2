package dispatch

import (
	"time"

	"github.com/shaiso/Cascade/internal/domain"
)

// RunContext — всё, что известно о run к моменту dispatch.
type RunContext struct {
	WorkflowID      string
	RunID           string
	DecisionTraceID string
	StartedAt       time.Time

	// Cause и FailedStage заполняются только для неуспешного run.
	Cause       domain.FailureCause
	FailedStage domain.StageKey

	// Options — callback-настройки из конфигурации.
	// Пустые, если конфигурация не загрузилась.
	Options domain.Options
}

// BuildEvent собирает событие завершения run.
// Не имеет побочных эффектов.
func BuildEvent(rc RunContext, status domain.EventStatus, at time.Time) domain.RunEvent {
	event := domain.RunEvent{
		Kind:            domain.EventKindRunCompleted,
		Producer:        domain.EventProducer,
		WorkflowID:      rc.WorkflowID,
		RunID:           rc.RunID,
		Status:          status,
		Timestamp:       at.UTC(),
		DecisionTraceID: rc.DecisionTraceID,
		StartedAt:       rc.StartedAt.UTC(),
	}

	if status == domain.EventStatusFailed {
		event.Cause = rc.Cause
		if rc.Cause == domain.CauseStageFailed {
			event.FailedStage = rc.FailedStage
		}
	}

	return event
}

// AuditFields — колонки строки аудита для события.
func AuditFields(event domain.RunEvent) map[string]any {
	fields := map[string]any{
		"workflow_id":       event.WorkflowID,
		"run_id":            event.RunID,
		"status":            string(event.Status),
		"started_at":        event.StartedAt,
		"ended_at":          event.Timestamp,
		"cause":             nilIfEmpty(string(event.Cause)),
		"failed_stage":      nilIfEmpty(string(event.FailedStage)),
		"decision_trace_id": nilIfEmpty(event.DecisionTraceID),
	}
	return fields
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
