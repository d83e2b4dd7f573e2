package domain

import "time"

// StageKey — ключ стадии в фиксированной цепочке.
type StageKey string

const (
	// StageLandingToDQ — проверка качества поступивших данных.
	StageLandingToDQ StageKey = "lnd_to_dq"

	// StageDQToStaging — загрузка в staging.
	StageDQToStaging StageKey = "dq_to_stg"

	// StageStagingToRef — merge в reference-слой.
	StageStagingToRef StageKey = "stg_to_ref"
)

// StageOrder — порядок выполнения стадий.
// Порядок задаётся здесь, а не порядком ключей в документе конфигурации.
var StageOrder = []StageKey{StageLandingToDQ, StageDQToStaging, StageStagingToRef}

// IsKnownStage проверяет, входит ли ключ в цепочку.
func IsKnownStage(key StageKey) bool {
	for _, k := range StageOrder {
		if k == key {
			return true
		}
	}
	return false
}

// Default configuration values.
const (
	DefaultPokeInterval      = 60 * time.Second
	DefaultLandingTimeout    = 1800 * time.Second
	DefaultStagePollInterval = 30 * time.Second
)

// RunConfig — проверенная конфигурация одного run.
//
// Создаётся загрузчиком конфигурации и дальше только читается:
// ни один компонент после загрузки её не изменяет.
type RunConfig struct {
	// Landing — где и сколько ждать входные данные.
	Landing LandingConfig `json:"landing"`

	// Stages — стадии в порядке StageOrder.
	Stages []StageConfig `json:"stages"`

	// Options — необязательные настройки callback'ов.
	Options Options `json:"options"`
}

// Stage возвращает конфигурацию стадии по ключу.
func (c *RunConfig) Stage(key StageKey) (StageConfig, bool) {
	for _, s := range c.Stages {
		if s.Key == key {
			return s, true
		}
	}
	return StageConfig{}, false
}

// LandingConfig — параметры ожидания входных данных.
type LandingConfig struct {
	// Container — бакет/контейнер объектного хранилища.
	Container string `json:"container"`

	// Prefix — префикс объектов, появление которых ждём.
	Prefix string `json:"prefix"`

	// PokeInterval — интервал между проверками.
	PokeInterval time.Duration `json:"poke_interval"`

	// Timeout — жёсткая верхняя граница ожидания.
	Timeout time.Duration `json:"timeout"`
}

// StageConfig — настройки одной стадии.
type StageConfig struct {
	Key StageKey `json:"key"`

	// WorkflowID — идентификатор дочернего workflow в удалённом движке.
	WorkflowID string `json:"workflow_id"`

	// Params — параметры запуска дочернего workflow.
	// Строковые значения могут содержать шаблоны ({{ .BatchDate }}).
	Params map[string]any `json:"params,omitempty"`

	// PollInterval — интервал опроса статуса дочернего run.
	PollInterval time.Duration `json:"poll_interval"`
}

// Options — необязательные настройки.
type Options struct {
	// NotifyTo — адреса для уведомления о завершении run.
	NotifyTo []string `json:"notify_to,omitempty"`

	// LogTable — таблица аудита; пусто — аудит не пишется.
	LogTable string `json:"log_table,omitempty"`

	// Procedures — имена хранимых процедур, которые передаются стадиям.
	Procedures map[string]string `json:"procedures,omitempty"`
}
