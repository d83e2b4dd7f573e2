package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/orchestrator"
)

// DefaultLocationPrefix — каталог для сохранённых конфигураций.
const DefaultLocationPrefix = "runs"

// ConfigStore сохраняет документ и возвращает его URI
// (реализуют config.FileStore и config.ObjectStore).
type ConfigStore interface {
	Put(ctx context.Context, location string, doc []byte) (string, error)
}

// Runner выполняет run (реализует *orchestrator.Orchestrator).
type Runner interface {
	Run(ctx context.Context, req orchestrator.RunRequest) orchestrator.Result
}

// Config — зависимости Scanner.
type Config struct {
	Builder Builder
	Store   ConfigStore
	Runner  Runner

	// LocationPrefix — префикс пути конфигурации в хранилище.
	LocationPrefix string

	Logger *slog.Logger
	Now    func() time.Time
}

// Request — запрос на один run.
type Request struct {
	// RunID — id run; пустой генерируется, чтобы путь конфигурации был уникален.
	RunID           string
	BatchDate       string
	DecisionTraceID string
}

// Result — итог scanner'а.
type Result struct {
	// ConfigURI — где сохранена конфигурация (пусто, если до сохранения не дошло).
	ConfigURI string

	// Status — статус run оркестратора, либо FAILED, если run не запускался.
	Status domain.RunStatus
	Cause  domain.FailureCause

	// Run — итог оркестратора; нулевое значение, если run не запускался.
	Run orchestrator.Result
}

// Succeeded проверяет, завершился ли run успешно.
func (r Result) Succeeded() bool {
	return r.Status == domain.RunStatusSucceeded
}

// Scanner собирает, сохраняет и запускает run.
type Scanner struct {
	builder Builder
	store   ConfigStore
	runner  Runner
	prefix  string
	logger  *slog.Logger
	now     func() time.Time
}

// New создаёт Scanner.
func New(cfg Config) *Scanner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LocationPrefix == "" {
		cfg.LocationPrefix = DefaultLocationPrefix
	}
	return &Scanner{
		builder: cfg.Builder,
		store:   cfg.Store,
		runner:  cfg.Runner,
		prefix:  cfg.LocationPrefix,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}
}

// ProduceRun собирает конфигурацию, сохраняет её и блокируется до
// завершения run оркестратора.
//
// Ошибка возвращается только если run не удалось запустить (сборка или
// сохранение конфигурации); неуспешный run — это Result.Status == FAILED
// с nil ошибкой.
func (s *Scanner) ProduceRun(ctx context.Context, req Request) (Result, error) {
	now := s.now().UTC()
	if req.BatchDate == "" {
		req.BatchDate = now.Format(time.DateOnly)
	}
	if _, err := time.Parse(time.DateOnly, req.BatchDate); err != nil {
		return produceFailed(), fmt.Errorf("%w: %q", ErrInvalidBatchDate, req.BatchDate)
	}

	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	logger := s.logger.With("batch_date", req.BatchDate, "run_id", req.RunID)

	// 1. Сборка
	cfg, err := s.builder.Build(ctx, req.BatchDate)
	if err != nil {
		return produceFailed(), fmt.Errorf("%w: %w", ErrBuild, err)
	}
	doc, err := config.Encode(cfg)
	if err != nil {
		return produceFailed(), fmt.Errorf("%w: %w", ErrBuild, err)
	}

	// 2. Сохранение
	location := Location(s.prefix, req.BatchDate, req.RunID, now)
	uri, err := s.store.Put(ctx, location, doc)
	if err != nil {
		return produceFailed(), fmt.Errorf("%w: %s: %w", ErrStore, location, err)
	}
	logger.Info("run config stored", "config_uri", uri)

	// 3. Запуск и ожидание
	run := s.runner.Run(ctx, orchestrator.RunRequest{
		RunID:           req.RunID,
		ConfigURI:       uri,
		DecisionTraceID: req.DecisionTraceID,
		BatchDate:       req.BatchDate,
	})

	logger.Info("scanner run finished", "run_id", run.RunID, "status", run.Status, "cause", run.Cause)

	return Result{
		ConfigURI: uri,
		Status:    run.Status,
		Cause:     run.Cause,
		Run:       run,
	}, nil
}

// Location — путь конфигурации:
// <prefix>/config_<batch_date>_<YYYYMMDDTHHMMSS>_<run_id>.yaml.
// run_id различает runs одного batch'а, начатые в одну секунду.
func Location(prefix, batchDate, runID string, at time.Time) string {
	name := fmt.Sprintf("config_%s_%s_%s.yaml", batchDate, at.UTC().Format("20060102T150405"), runID)
	return path.Join(prefix, name)
}

func produceFailed() Result {
	return Result{Status: domain.RunStatusFailed, Cause: domain.CauseProduce}
}
