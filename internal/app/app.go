package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/dispatch"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/notify"
	"github.com/shaiso/Cascade/internal/objectstore"
	"github.com/shaiso/Cascade/internal/orchestrator"
	"github.com/shaiso/Cascade/internal/remote"
	"github.com/shaiso/Cascade/internal/repo"
	"github.com/shaiso/Cascade/internal/scanner"
	"github.com/shaiso/Cascade/internal/sensor"
	"github.com/shaiso/Cascade/internal/stage"
)

// Settings — окружение процесса, из которого собираются компоненты.
type Settings struct {
	// EngineURL — адрес движка дочерних workflow (ENGINE_URL).
	EngineURL string

	// ConfigBucket — bucket для конфигураций scanner'а (CASCADE_CONFIG_BUCKET).
	// Если пуст, конфигурации пишутся в ConfigDir.
	ConfigBucket string

	// ConfigDir — каталог для конфигураций scanner'а (CASCADE_CONFIG_DIR).
	ConfigDir string

	// WorkflowID — родительский workflow (CASCADE_WORKFLOW_ID).
	WorkflowID string

	ObjectStore objectstore.Config
	SMTP        notify.Config
	Scanner     scanner.Settings
}

// SettingsFromEnv читает Settings из переменных окружения.
func SettingsFromEnv() (Settings, error) {
	objCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		EngineURL:    envOr("ENGINE_URL", remote.DefaultURL),
		ConfigBucket: os.Getenv("CASCADE_CONFIG_BUCKET"),
		ConfigDir:    envOr("CASCADE_CONFIG_DIR", "./configs"),
		WorkflowID:   envOr("CASCADE_WORKFLOW_ID", orchestrator.DefaultWorkflowID),
		ObjectStore:  objCfg,
		SMTP:         notify.ConfigFromEnv(),
		Scanner:      scanner.SettingsFromEnv(),
	}, nil
}

// Deps — внешние подключения. Любое поле может быть nil:
// соответствующая функциональность отключается.
type Deps struct {
	Pool      *pgxpool.Pool
	Publisher *mq.Publisher
}

// Components — собранный граф компонентов.
type Components struct {
	Objects      *objectstore.Client
	Loader       *config.Loader
	Dispatcher   *dispatch.Dispatcher
	Orchestrator *orchestrator.Orchestrator
	Scanner      *scanner.Scanner
}

// Build собирает компоненты оркестрации.
//
// Порядок: хранилище → загрузчик → sensor и стадии → dispatcher → оркестратор → scanner.
func Build(ctx context.Context, s Settings, deps Deps, logger *slog.Logger) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// 1. Объектное хранилище: landing, s3:// конфигурации
	objects, err := objectstore.New(s.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("object store: %w", err)
	}

	loader := config.NewLoader(logger).Register("s3", config.ObjectFetcher{Getter: objects})

	// 2. Sensor и контроллер стадий
	landing := sensor.New(objects, sensor.Config{Logger: logger})
	engine := remote.New(remote.Config{BaseURL: s.EngineURL, Logger: logger})
	stages := stage.New(engine, stage.Config{Logger: logger})

	// 3. Dispatcher
	dcfg := dispatch.Config{Logger: logger}
	if deps.Publisher != nil {
		dcfg.Sinks = append(dcfg.Sinks, dispatch.EventSinkFunc(deps.Publisher.PublishRunCompleted))
	}
	if deps.Pool != nil {
		dcfg.Audit = repo.NewAuditSink(deps.Pool)
	}
	if s.SMTP.Enabled() {
		dcfg.Notifier = notify.NewSMTPNotifier(s.SMTP)
	} else {
		logger.Info("smtp not configured, notifications disabled")
	}
	dispatcher := dispatch.New(dcfg)

	// 4. Оркестратор
	orch := orchestrator.New(orchestrator.Config{
		Loader:     loader,
		Sensor:     landing,
		Stages:     stages,
		Dispatcher: dispatcher,
		WorkflowID: s.WorkflowID,
		Logger:     logger,
	})

	// 5. Scanner
	var store scanner.ConfigStore = config.FileStore{Dir: s.ConfigDir}
	if s.ConfigBucket != "" {
		if err := objects.EnsureBucket(ctx, s.ConfigBucket, s.ObjectStore.Region); err != nil {
			return nil, fmt.Errorf("config bucket: %w", err)
		}
		store = config.ObjectStore{Putter: objects, Bucket: s.ConfigBucket}
	}

	scan := scanner.New(scanner.Config{
		Builder: scanner.StaticBuilder{Settings: s.Scanner},
		Store:   store,
		Runner:  orch,
		Logger:  logger,
	})

	return &Components{
		Objects:      objects,
		Loader:       loader,
		Dispatcher:   dispatcher,
		Orchestrator: orch,
		Scanner:      scan,
	}, nil
}

// Port возвращает ":port" из переменной окружения или значение по умолчанию.
func Port(env string, def int) string {
	if v := os.Getenv(env); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			return ":" + v
		}
	}
	return ":" + strconv.Itoa(def)
}

// DurationEnv читает time.Duration из переменной окружения.
func DurationEnv(env string, def time.Duration) time.Duration {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
