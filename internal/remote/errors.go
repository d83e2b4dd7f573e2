package remote

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyRunID — движок не вернул id запущенного run.
	ErrEmptyRunID = errors.New("engine returned empty run id")

	// ErrDecode — ответ движка не удалось разобрать.
	ErrDecode = errors.New("failed to decode engine response")
)

// APIError — ошибка, возвращённая движком.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("engine error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("engine error %d: %s", e.StatusCode, e.Message)
}

// Temporary сообщает, имеет ли смысл повторить запрос.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
