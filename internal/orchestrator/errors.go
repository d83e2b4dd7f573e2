package orchestrator

import (
	"errors"
	"fmt"

	"github.com/shaiso/Cascade/internal/domain"
)

// Ошибки оркестратора.
var (
	// ErrLandingTimeout — входные данные не появились до таймаута.
	ErrLandingTimeout = errors.New("landing timeout")

	// ErrCancelled — run прерван отменой контекста.
	ErrCancelled = errors.New("run cancelled")

	// ErrInvalidTransition — недопустимый переход конечного автомата.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyDispatched — dispatch для run уже выполнен.
	ErrAlreadyDispatched = errors.New("run already dispatched")

	// ErrTemplateParse — шаблон параметра стадии не разбирается.
	ErrTemplateParse = errors.New("param template parse failed")

	// ErrTemplateRender — шаблон параметра стадии не рендерится.
	ErrTemplateRender = errors.New("param template render failed")
)

// StageFailedError — стадия завершилась неуспешно.
type StageFailedError struct {
	StageKey   domain.StageKey
	ChildRunID string

	// EngineStatus — финальный статус движка, если он был получен.
	EngineStatus string

	// Err — ошибка контроллера (start/poll), если была.
	Err error
}

func (e *StageFailedError) Error() string {
	msg := fmt.Sprintf("stage %s failed", e.StageKey)
	if e.ChildRunID != "" {
		msg += " (child run " + e.ChildRunID + ")"
	}
	if e.EngineStatus != "" {
		msg += ": engine status " + e.EngineStatus
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageFailedError) Unwrap() error {
	return e.Err
}
