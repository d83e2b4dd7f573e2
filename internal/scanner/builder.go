package scanner

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/shaiso/Cascade/internal/domain"
)

// BatchDateParam — параметр стадии с датой batch'а.
const BatchDateParam = "batch_date"

// Builder собирает конфигурацию run для даты batch'а.
type Builder interface {
	Build(ctx context.Context, batchDate string) (domain.RunConfig, error)
}

// Settings — исходные данные для StaticBuilder.
type Settings struct {
	Container    string
	Prefix       string
	PokeInterval time.Duration
	Timeout      time.Duration

	// WorkflowIDs — дочерние workflow по стадиям.
	WorkflowIDs map[domain.StageKey]string

	StagePollInterval time.Duration
	Options           domain.Options
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		Container:    "landing-container",
		Prefix:       "landing/path/",
		PokeInterval: domain.DefaultPokeInterval,
		Timeout:      domain.DefaultLandingTimeout,
		WorkflowIDs: map[domain.StageKey]string{
			domain.StageLandingToDQ:  "lnd_to_dq_template",
			domain.StageDQToStaging:  "dq_to_stg_template",
			domain.StageStagingToRef: "stg_to_ref_template",
		},
		StagePollInterval: domain.DefaultStagePollInterval,
	}
}

// SettingsFromEnv читает настройки из переменных окружения CASCADE_*.
// Незаданные переменные оставляют значения DefaultSettings.
//
//	CASCADE_LANDING_CONTAINER, CASCADE_LANDING_PREFIX,
//	CASCADE_POKE_INTERVAL, CASCADE_LANDING_TIMEOUT, CASCADE_STAGE_POLL_INTERVAL (time.Duration),
//	CASCADE_WORKFLOW_LND_TO_DQ, CASCADE_WORKFLOW_DQ_TO_STG, CASCADE_WORKFLOW_STG_TO_REF,
//	CASCADE_NOTIFY_TO (через запятую), CASCADE_LOG_TABLE
func SettingsFromEnv() Settings {
	s := DefaultSettings()

	if v := os.Getenv("CASCADE_LANDING_CONTAINER"); v != "" {
		s.Container = v
	}
	if v := os.Getenv("CASCADE_LANDING_PREFIX"); v != "" {
		s.Prefix = v
	}
	s.PokeInterval = envDuration("CASCADE_POKE_INTERVAL", s.PokeInterval)
	s.Timeout = envDuration("CASCADE_LANDING_TIMEOUT", s.Timeout)
	s.StagePollInterval = envDuration("CASCADE_STAGE_POLL_INTERVAL", s.StagePollInterval)

	for _, key := range domain.StageOrder {
		if v := os.Getenv("CASCADE_WORKFLOW_" + strings.ToUpper(string(key))); v != "" {
			s.WorkflowIDs[key] = v
		}
	}

	if v := os.Getenv("CASCADE_NOTIFY_TO"); v != "" {
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				s.Options.NotifyTo = append(s.Options.NotifyTo, addr)
			}
		}
	}
	s.Options.LogTable = os.Getenv("CASCADE_LOG_TABLE")

	return s
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// StaticBuilder строит конфигурацию из фиксированных Settings;
// каждая стадия получает параметр batch_date.
type StaticBuilder struct {
	Settings Settings
}

// Build реализует Builder.
func (b StaticBuilder) Build(ctx context.Context, batchDate string) (domain.RunConfig, error) {
	s := b.Settings

	cfg := domain.RunConfig{
		Landing: domain.LandingConfig{
			Container:    s.Container,
			Prefix:       s.Prefix,
			PokeInterval: s.PokeInterval,
			Timeout:      s.Timeout,
		},
		Options: s.Options,
	}

	for _, key := range domain.StageOrder {
		cfg.Stages = append(cfg.Stages, domain.StageConfig{
			Key:          key,
			WorkflowID:   s.WorkflowIDs[key],
			Params:       map[string]any{BatchDateParam: batchDate},
			PollInterval: s.StagePollInterval,
		})
	}

	return cfg, nil
}
