package repo

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var identPartRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// execer — то, что умеет выполнять запрос (pgxpool.Pool, pgx.Tx).
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditSink пишет строки аудита в произвольную таблицу.
//
// Запрос строится только из идентификаторов (экранируются через
// pgx.Identifier) и плейсхолдеров $n: значения никогда не попадают
// в текст SQL.
type AuditSink struct {
	db execer
}

// NewAuditSink создаёт AuditSink поверх пула или транзакции.
func NewAuditSink(db execer) *AuditSink {
	return &AuditSink{db: db}
}

// InsertRow вставляет строку fields в table.
func (s *AuditSink) InsertRow(ctx context.Context, table string, fields map[string]any) error {
	query, args, err := BuildInsert(table, fields)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert audit row into %s: %w", table, err)
	}
	return nil
}

// BuildInsert строит параметризованный INSERT.
//
// table — имя таблицы, допускается схема: "dbo.etl_logs".
// Колонки сортируются по имени, чтобы запрос был детерминированным.
func BuildInsert(table string, fields map[string]any) (string, []any, error) {
	ident, err := parseTable(table)
	if err != nil {
		return "", nil, err
	}
	if len(fields) == 0 {
		return "", nil, ErrEmptyRow
	}

	columns := make([]string, 0, len(fields))
	for col := range fields {
		if !identPartRe.MatchString(col) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidColumn, col)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		quoted[i] = pgx.Identifier{col}.Sanitize()
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = fields[col]
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ident.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "),
	)
	return query, args, nil
}

func parseTable(table string) (pgx.Identifier, error) {
	parts := strings.Split(strings.TrimSpace(table), ".")
	if len(parts) == 0 || len(parts) > 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	for _, p := range parts {
		if !identPartRe.MatchString(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
		}
	}
	return pgx.Identifier(parts), nil
}
