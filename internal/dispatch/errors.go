package dispatch

import (
	"errors"
	"fmt"
)

// ErrSideEffectPanic — побочное действие завершилось паникой.
var ErrSideEffectPanic = errors.New("side effect panicked")

// SideEffectKind — вид best-effort действия.
type SideEffectKind string

const (
	KindEvent  SideEffectKind = "event"
	KindAudit  SideEffectKind = "audit"
	KindNotify SideEffectKind = "notify"
)

// SideEffectError — ошибка best-effort действия dispatch.
// Только логируется, вызывающему коду не возвращается.
type SideEffectError struct {
	Kind SideEffectKind
	Err  error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Kind, e.Err)
}

func (e *SideEffectError) Unwrap() error {
	return e.Err
}
