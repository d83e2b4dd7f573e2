package sensor

import "errors"

var (
	// ErrCancelled — ожидание прервано отменой контекста.
	ErrCancelled = errors.New("landing wait cancelled")

	// ErrInvalidInterval — poke interval или timeout не положительные.
	ErrInvalidInterval = errors.New("invalid landing interval")
)
