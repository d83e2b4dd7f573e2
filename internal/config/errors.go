package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfigFetch — документ не удалось получить (неизвестная схема или ошибка чтения).
	ErrConfigFetch = errors.New("config fetch failed")

	// ErrConfigParse — документ не является корректным YAML-маппингом.
	ErrConfigParse = errors.New("config parse failed")

	// ErrConfigValidation — документ разобран, но нарушает схему.
	// Конкретные нарушения — в *ValidationError.
	ErrConfigValidation = errors.New("config validation failed")

	// ErrUnsupportedScheme — для схемы URI не зарегистрирован Fetcher.
	ErrUnsupportedScheme = errors.New("unsupported config URI scheme")
)

// Issue — одно нарушение схемы.
type Issue struct {
	Field   string `json:"field"`   // путь к полю: landing.container, stages.lnd_to_dq.workflow_id
	Message string `json:"message"` // описание нарушения
	Line    int    `json:"line,omitempty"`
}

// String возвращает "field: message".
func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// ValidationError — полный список нарушений схемы.
type ValidationError struct {
	Issues []Issue
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return ErrConfigValidation.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return fmt.Sprintf("%s: %d issue(s): %s", ErrConfigValidation, len(e.Issues), strings.Join(parts, "; "))
}

// Unwrap позволяет проверять errors.Is(err, ErrConfigValidation).
func (e *ValidationError) Unwrap() error {
	return ErrConfigValidation
}

// Add добавляет нарушение.
func (e *ValidationError) Add(field, message string, line int) {
	e.Issues = append(e.Issues, Issue{Field: field, Message: message, Line: line})
}

// Fields возвращает пути всех полей с нарушениями.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		out = append(out, issue.Field)
	}
	return out
}

// OrNil возвращает nil, если нарушений нет.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}
