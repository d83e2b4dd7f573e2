package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/shaiso/Cascade/internal/domain"
)

// ProceduresParam — имя параметра, в котором стадии получают options.procedures.
const ProceduresParam = "procedures"

// Vars — переменные, доступные в шаблонах параметров стадии.
//
//	{{ .BatchDate }}        — дата batch'а, 2024-01-01
//	{{ .RunID }}            — id run
//	{{ .StageKey }}         — ключ текущей стадии
//	{{ nodash .BatchDate }} — 20240101
type Vars struct {
	BatchDate  string
	RunID      string
	WorkflowID string
	StageKey   domain.StageKey
}

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// json — сериализует значение в JSON строку
	"json": func(v any) string {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("error: %v", err)
		}
		return string(b)
	},

	// default — значение по умолчанию для пустой строки
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	"nodash":  func(s string) string { return strings.ReplaceAll(s, "-", "") },
	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
	"trim":    strings.TrimSpace,
	"replace": strings.ReplaceAll,
}

// Render рендерит строковый шаблон.
// Строки без "{{" возвращаются как есть.
func Render(tmpl string, vars Vars) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderValue рендерит произвольное значение.
// Рекурсивно обрабатывает map и slice; числа и bool возвращаются как есть.
func RenderValue(value any, vars Vars) (any, error) {
	switch v := value.(type) {
	case string:
		return Render(v, vars)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, vars)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			result[key] = rendered
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, vars)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			result[i] = rendered
		}
		return result, nil

	default:
		return value, nil
	}
}

// StageParams собирает параметры запуска стадии: рендерит шаблоны
// и добавляет options.procedures, если стадия не задала их сама.
// Исходная конфигурация не изменяется.
func StageParams(stage domain.StageConfig, opts domain.Options, vars Vars) (map[string]any, error) {
	vars.StageKey = stage.Key

	params := make(map[string]any, len(stage.Params)+1)
	for key, val := range stage.Params {
		rendered, err := RenderValue(val, vars)
		if err != nil {
			return nil, fmt.Errorf("stage %s param %s: %w", stage.Key, key, err)
		}
		params[key] = rendered
	}

	if _, ok := params[ProceduresParam]; !ok && len(opts.Procedures) > 0 {
		procs := make(map[string]any, len(opts.Procedures))
		for name, proc := range opts.Procedures {
			procs[name] = proc
		}
		params[ProceduresParam] = procs
	}

	return params, nil
}
