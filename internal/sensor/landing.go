package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Cascade/internal/telemetry"
)

// Lister — листинг объектов под префиксом.
// Используется только для проверки на непустоту.
type Lister interface {
	List(ctx context.Context, container, prefix string) ([]string, error)
}

// Result — итог ожидания.
type Result struct {
	// Found — найден хотя бы один объект.
	Found bool

	// Elapsed — сколько длилось ожидание.
	Elapsed time.Duration

	// Polls — сколько раз вызывался Lister.
	Polls int

	// FirstObject — имя первого найденного объекта.
	FirstObject string

	// LastError — последняя ошибка листинга (если была).
	LastError error
}

// Config — настройки Sensor.
type Config struct {
	Logger *slog.Logger
}

// Sensor ждёт появления объектов под префиксом.
//
// Не хранит состояния между вызовами: один Sensor можно использовать
// из нескольких независимых run одновременно.
type Sensor struct {
	lister Lister
	logger *slog.Logger
}

// New создаёт Sensor.
func New(lister Lister, cfg Config) *Sensor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sensor{
		lister: lister,
		logger: logger,
	}
}

// AwaitLanding блокируется, пока под prefix в container не появится объект,
// не истечёт timeout или не будет отменён ctx.
//
// Ошибки Lister'а логируются и считаются как "ещё не появилось":
// ожидание продолжается до таймаута.
func (s *Sensor) AwaitLanding(ctx context.Context, container, prefix string, poke, timeout time.Duration) (Result, error) {
	if poke <= 0 || timeout <= 0 {
		return Result{}, fmt.Errorf("%w: poke=%s timeout=%s", ErrInvalidInterval, poke, timeout)
	}

	start := time.Now()
	deadline := start.Add(timeout)

	logger := telemetry.Logger(ctx, s.logger).With("container", container, "prefix", prefix)
	logger.Info("waiting for landing", "poke_interval", poke, "timeout", timeout)

	var res Result
	timer := time.NewTimer(0)
	defer timer.Stop()

	cancelled := func() (Result, error) {
		res.Elapsed = time.Since(start)
		logger.Warn("landing wait cancelled", "elapsed", res.Elapsed, "polls", res.Polls)
		return res, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}

	for {
		select {
		case <-ctx.Done():
			return cancelled()
		case <-timer.C:
		}

		res.Polls++
		names, err := s.list(ctx, container, prefix, deadline, poke)
		if ctx.Err() != nil {
			return cancelled()
		}

		switch {
		case err != nil:
			res.LastError = err
			logger.Warn("landing list failed", "poll", res.Polls, "error", err)
		case len(names) > 0:
			res.Found = true
			res.FirstObject = names[0]
			res.Elapsed = time.Since(start)
			logger.Info("landing found", "object", names[0], "elapsed", res.Elapsed, "polls", res.Polls)
			return res, nil
		default:
			logger.Debug("landing not yet present", "poll", res.Polls)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			res.Elapsed = time.Since(start)
			logger.Warn("landing timeout", "elapsed", res.Elapsed, "polls", res.Polls)
			return res, nil
		}

		// Последняя проверка — ровно в момент дедлайна
		timer.Reset(min(poke, remaining))
	}
}

// list вызывает Lister с ограничением по времени, чтобы зависший
// листинг не продлевал ожидание дальше таймаута.
func (s *Sensor) list(ctx context.Context, container, prefix string, deadline time.Time, poke time.Duration) ([]string, error) {
	limit := deadline
	if floor := time.Now().Add(poke); floor.After(limit) {
		limit = floor
	}
	ctx, cancel := context.WithDeadline(ctx, limit)
	defer cancel()
	return s.lister.List(ctx, container, prefix)
}
