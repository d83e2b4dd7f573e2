// Cascade API — HTTP API журнала запусков.
//
// Принимает запросы run, отдаёт журнал и проверяет конфигурации.
// Запросы run публикуются в RabbitMQ; без брокера оркестратор
// подхватывает их polling'ом журнала.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Cascade/internal/api"
	"github.com/shaiso/Cascade/internal/app"
	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/objectstore"
	"github.com/shaiso/Cascade/internal/repo"
	"github.com/shaiso/Cascade/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting cascade-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cfg := api.Config{
		RunRepo:    repo.NewRunRepo(pool),
		WorkflowID: os.Getenv("CASCADE_WORKFLOW_ID"),
		Logger:     logger,
	}

	// RabbitMQ
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{URL: os.Getenv("RABBITMQ_URL"), Logger: logger})
	if err != nil {
		logger.Warn("RabbitMQ not available, runs will be picked up by polling", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		cfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	// Загрузчик для проверки конфигураций по URI: только s3://, локальный диск API закрыт
	loader := config.NewRemoteLoader(logger)
	if objCfg, err := objectstore.ConfigFromEnv(); err != nil {
		logger.Warn("object store not configured, s3:// validation disabled", "error", err)
	} else if objects, err := objectstore.New(objCfg); err != nil {
		logger.Warn("object store not available, s3:// validation disabled", "error", err)
	} else {
		loader.Register("s3", config.ObjectFetcher{Getter: objects})
	}
	cfg.Loader = loader

	handler := api.NewHandler(cfg)

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              app.Port("API_PORT", 8080),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
