package repo

import "errors"

// Ошибки журнала runs и аудита.
var (
	// ErrNotFound — run с таким ID нет в журнале.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — переход run невозможен из текущего статуса.
	ErrInvalidState = errors.New("invalid run state")

	// ErrInvalidTable — имя таблицы аудита не проходит проверку идентификатора.
	ErrInvalidTable = errors.New("invalid audit table name")

	// ErrInvalidColumn — имя поля аудита не проходит проверку идентификатора.
	ErrInvalidColumn = errors.New("invalid audit column name")

	// ErrEmptyRow — в строке аудита нет ни одного поля.
	ErrEmptyRow = errors.New("empty audit row")
)
