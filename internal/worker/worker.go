package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/orchestrator"
	"github.com/shaiso/Cascade/internal/scanner"
)

// Default configuration values.
const (
	defaultPollInterval  = 10 * time.Second
	defaultBatchSize     = 50
	defaultPrefetch      = 4
	defaultMaxConcurrent = 8
)

// RunStore — журнал запусков (реализует *repo.RunRepo).
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListPending(ctx context.Context, limit int) ([]domain.Run, error)
	Claim(ctx context.Context, run *domain.Run) (bool, error)
	Update(ctx context.Context, run *domain.Run) error
}

// Orchestrator — выполнение run по готовой конфигурации.
type Orchestrator interface {
	Run(ctx context.Context, req orchestrator.RunRequest) orchestrator.Result
}

// Producer — выполнение run без конфигурации: сборка, сохранение, запуск.
type Producer interface {
	ProduceRun(ctx context.Context, req scanner.Request) (scanner.Result, error)
}

// Worker выполняет runs из журнала.
//
// Worker:
//   - Получает запросы run.requested из RabbitMQ (event-driven)
//   - Периодически проверяет PENDING runs в БД (polling fallback)
//   - Атомарно забирает run (Claim), поэтому run не выполнится дважды,
//     даже если пришёл и из очереди, и из polling
//   - Выполняет run через Orchestrator (есть config_uri) или Producer (нет)
//   - Записывает итог в журнал
type Worker struct {
	store        RunStore
	orchestrator Orchestrator
	producer     Producer

	conn     *mq.Connection
	consumer *mq.Consumer

	// Active runs — runs в процессе выполнения в этом процессе
	activeRuns map[uuid.UUID]struct{}
	mu         sync.Mutex

	sem *semaphore.Weighted

	pollInterval time.Duration
	batchSize    int
	prefetch     int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Store        RunStore
	Orchestrator Orchestrator
	Producer     Producer

	// Conn — соединение с RabbitMQ; nil — только polling.
	Conn *mq.Connection

	PollInterval  time.Duration // интервал polling (default: 10s)
	BatchSize     int           // количество runs за один poll (default: 50)
	Prefetch      int           // prefetch consumer'а (default: 4)
	MaxConcurrent int           // максимум одновременных runs (default: 8)

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = defaultPrefetch
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Worker{
		store:        cfg.Store,
		orchestrator: cfg.Orchestrator,
		producer:     cfg.Producer,
		conn:         cfg.Conn,
		activeRuns:   make(map[uuid.UUID]struct{}),
		sem:          semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		prefetch:     cfg.Prefetch,
		logger:       cfg.Logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для runs.requested (если задан Conn)
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, mq.ConsumerConfig{
			Queue:      mq.QueueRunsRequested,
			Handler:    w.handleRunRequested,
			Prefetch:   w.prefetch,
			ExpectType: mq.MessageTypeRunRequested,
			Logger:     w.logger,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения выполняющихся runs.
// Runs завершаются как отменённые: dispatch и запись в журнал выполняются.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// ActiveRunsCount возвращает количество выполняющихся runs.
func (w *Worker) ActiveRunsCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.activeRuns)
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные пока были выключены)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling. Найденные runs запускаются в фоне.
func (w *Worker) poll(ctx context.Context) {
	runs, err := w.store.ListPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	w.logger.Debug("poll found pending runs", "count", len(runs))

	for i := range runs {
		runID := runs[i].ID
		if w.isRunActive(runID) {
			continue
		}

		if err := w.sem.Acquire(ctx, 1); err != nil {
			return
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer w.sem.Release(1)
			if err := w.processRun(ctx, runID); err != nil && !isSkippable(err) {
				w.logger.Error("failed to process run from poll", "run_id", runID, "error", err)
			}
		}()
	}
}

func (w *Worker) isRunActive(runID uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.activeRuns[runID]
	return ok
}

func (w *Worker) addActiveRun(runID uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.activeRuns[runID]; ok {
		return ErrRunAlreadyActive
	}
	w.activeRuns[runID] = struct{}{}
	return nil
}

func (w *Worker) removeActiveRun(runID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.activeRuns, runID)
}

// isSkippable — ситуации, когда run просто не наш (уже взят или завершён).
func isSkippable(err error) bool {
	return errors.Is(err, ErrRunNotPending) || errors.Is(err, ErrRunAlreadyActive)
}
