// Cascade Scanner — одноразовый запуск batch'а.
//
// Собирает конфигурацию для даты batch'а, сохраняет её, запускает
// оркестратор и завершается с кодом 0 (SUCCEEDED) или 1 (FAILED).
//
// Использование:
//
//	cascade-scanner [--batch-date YYYY-MM-DD] [--trace-id ID]
//
// Журнал запусков и RabbitMQ необязательны: без DB_URL/RABBITMQ_URL
// audit и публикация событий отключаются.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/shaiso/Cascade/internal/app"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/repo"
	"github.com/shaiso/Cascade/internal/scanner"
	"github.com/shaiso/Cascade/internal/telemetry"
)

// errRunFailed — run завершился со статусом FAILED.
var errRunFailed = errors.New("run failed")

func main() {
	var req scanner.Request

	rootCmd := &cobra.Command{
		Use:           "cascade-scanner",
		Short:         "Build, store and run one batch",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), req)
		},
	}

	rootCmd.Flags().StringVar(&req.BatchDate, "batch-date", "", "Batch date (YYYY-MM-DD, today if empty)")
	rootCmd.Flags().StringVar(&req.DecisionTraceID, "trace-id", "", "Decision trace ID for correlation")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, req scanner.Request) error {
	logger := telemetry.SetupLogger()

	settings, err := app.SettingsFromEnv()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var deps app.Deps

	// Audit — только если задан DB_URL
	if os.Getenv("DB_URL") != "" {
		var pool *pgxpool.Pool
		pool, err = repo.NewPool(ctx)
		if err != nil {
			logger.Warn("database not available, audit disabled", "error", err)
		} else {
			defer pool.Close()
			deps.Pool = pool
		}
	}

	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		conn, err := mq.NewConnection(mq.ConnectionConfig{URL: url, Logger: logger})
		if err != nil {
			logger.Warn("RabbitMQ not available, events disabled", "error", err)
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			deps.Publisher = mq.NewPublisher(conn, logger)
		}
	}

	components, err := app.Build(ctx, settings, deps, logger)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}

	res, err := components.Scanner.ProduceRun(ctx, req)
	if err != nil {
		return fmt.Errorf("scanner: %w", err)
	}

	logger.Info("scanner finished",
		"run_id", res.Run.RunID,
		"config_uri", res.ConfigURI,
		"status", res.Status,
		"cause", res.Cause,
	)
	if !res.Succeeded() {
		return errRunFailed
	}
	return nil
}
