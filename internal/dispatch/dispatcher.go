package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/telemetry"
)

// EventSink — получатель событий завершения (например, RabbitMQ).
type EventSink interface {
	Emit(ctx context.Context, event domain.RunEvent) error
}

// EventSinkFunc — адаптер функции к EventSink.
type EventSinkFunc func(ctx context.Context, event domain.RunEvent) error

// Emit вызывает f.
func (f EventSinkFunc) Emit(ctx context.Context, event domain.RunEvent) error {
	return f(ctx, event)
}

// AuditSink — запись строки аудита.
type AuditSink interface {
	InsertRow(ctx context.Context, table string, fields map[string]any) error
}

// Notifier — отправка уведомления.
type Notifier interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// Config — настройки Dispatcher.
type Config struct {
	Logger *slog.Logger

	// Sinks — дополнительные получатели события. Могут быть пустыми.
	Sinks []EventSink

	// Audit и Notifier могут быть nil: тогда соответствующий шаг
	// пропускается, даже если он включён в options.
	Audit    AuditSink
	Notifier Notifier

	// Now — источник времени для RunEvent.Timestamp.
	Now func() time.Time
}

// Dispatcher выполняет callback'и завершения run.
type Dispatcher struct {
	logger   *slog.Logger
	sinks    []EventSink
	audit    AuditSink
	notifier Notifier
	now      func() time.Time
}

// New создаёт Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		logger:   cfg.Logger,
		sinks:    cfg.Sinks,
		audit:    cfg.Audit,
		notifier: cfg.Notifier,
		now:      cfg.Now,
	}
}

// Dispatch строит событие, публикует его и выполняет best-effort действия.
//
// Всегда возвращает построенное событие; ошибки побочных действий
// не возвращаются и на событие не влияют.
func (d *Dispatcher) Dispatch(ctx context.Context, rc RunContext, status domain.EventStatus) domain.RunEvent {
	event := BuildEvent(rc, status, d.now())

	logger := d.logger.With("run_id", event.RunID, "workflow_id", event.WorkflowID)

	// 1. Лог — основной канал наблюдаемости
	logger.Info("run completed",
		"event", event.Kind,
		"producer", event.Producer,
		"status", event.Status,
		"cause", event.Cause,
		"failed_stage", event.FailedStage,
		"decision_trace_id", event.DecisionTraceID,
		"ts", event.Timestamp,
	)

	// 2. Внешние получатели события
	for _, sink := range d.sinks {
		d.safe(logger, KindEvent, func() error {
			return sink.Emit(ctx, event)
		})
	}

	// 3. Аудит
	if table := rc.Options.LogTable; table != "" && d.audit != nil {
		d.safe(logger, KindAudit, func() error {
			return d.audit.InsertRow(ctx, table, AuditFields(event))
		})
	}

	// 4. Уведомление
	if recipients := rc.Options.NotifyTo; len(recipients) > 0 && d.notifier != nil {
		d.safe(logger, KindNotify, func() error {
			subject, body, err := Notification(event)
			if err != nil {
				return err
			}
			return d.notifier.Send(ctx, recipients, subject, body)
		})
	}

	return event
}

// safe выполняет побочное действие; ошибка и паника только логируются.
func (d *Dispatcher) safe(logger *slog.Logger, kind SideEffectKind, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			d.report(logger, &SideEffectError{Kind: kind, Err: fmt.Errorf("%w: %v", ErrSideEffectPanic, r)})
		}
	}()
	if err := fn(); err != nil {
		d.report(logger, &SideEffectError{Kind: kind, Err: err})
	}
}

func (d *Dispatcher) report(logger *slog.Logger, err *SideEffectError) {
	telemetry.DispatchFailures.WithLabelValues(string(err.Kind)).Inc()
	logger.Warn("dispatch side effect failed", "kind", err.Kind, "error", err.Err)
}

// Notification формирует тему и HTML-тело уведомления.
func Notification(event domain.RunEvent) (subject, body string, err error) {
	payload, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal event: %w", err)
	}

	subject = fmt.Sprintf("[%s] %s", event.Status, event.WorkflowID)
	body = fmt.Sprintf("<p>Workflow %s status=%s at %s</p><pre>%s</pre>",
		html.EscapeString(event.WorkflowID),
		html.EscapeString(string(event.Status)),
		event.Timestamp.Format(time.RFC3339),
		html.EscapeString(string(payload)),
	)
	return subject, body, nil
}
