package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/repo"
)

// RunStore — журнал запусков (реализует *repo.RunRepo).
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
}

// RunPublisher — уведомление оркестратора о новом run (реализует *mq.Publisher).
type RunPublisher interface {
	PublishRunRequested(ctx context.Context, runID uuid.UUID) error
}

// ConfigLoader — загрузка конфигурации по URI (реализует *config.Loader).
type ConfigLoader interface {
	Load(ctx context.Context, uri string) (domain.RunConfig, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runRepo    RunStore
	publisher  RunPublisher
	loader     ConfigLoader
	workflowID string
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	RunRepo RunStore

	// Publisher может быть nil: оркестратор подхватит run polling'ом.
	Publisher RunPublisher

	// Loader может быть nil: тогда валидация по URI недоступна.
	Loader ConfigLoader

	// WorkflowID — workflow по умолчанию для новых runs.
	WorkflowID string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WorkflowID == "" {
		cfg.WorkflowID = "cascade_main"
	}
	return &Handler{
		runRepo:    cfg.RunRepo,
		publisher:  cfg.Publisher,
		loader:     cfg.Loader,
		workflowID: cfg.WorkflowID,
		logger:     cfg.Logger,
	}
}
