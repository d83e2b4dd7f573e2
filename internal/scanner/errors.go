package scanner

import "errors"

var (
	// ErrBuild — не удалось собрать конфигурацию.
	ErrBuild = errors.New("build run config")

	// ErrStore — не удалось сохранить конфигурацию.
	ErrStore = errors.New("store run config")

	// ErrInvalidBatchDate — дата batch'а не в формате YYYY-MM-DD.
	ErrInvalidBatchDate = errors.New("invalid batch date")
)
