package stage

import "errors"

var (
	// ErrCancelled — ожидание прервано отменой контекста.
	ErrCancelled = errors.New("stage wait cancelled")

	// ErrStartFailed — движок не смог запустить дочерний workflow.
	ErrStartFailed = errors.New("stage start failed")

	// ErrPollFailed — движок не ответил на запрос статуса.
	ErrPollFailed = errors.New("stage poll failed")

	// ErrInvalidRequest — некорректные параметры запуска стадии.
	ErrInvalidRequest = errors.New("invalid stage request")
)
