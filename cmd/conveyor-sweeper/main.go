// Conveyor Sweeper — периодическое самовосстановление.
//
// По расписанию SWEEP_CRON пересчитывает проекции незавершённых
// pipeline executions и снимает barrier завершённых.
// Проход выполняет только лидер (pg_try_advisory_lock).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Conveyor/internal/barrier"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/reconciler"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/sweeper"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-sweeper")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	workflowRepo := repo.NewWorkflowRepo(pool)
	peRepo := repo.NewPipelineExecutionRepo(pool)
	barrierRepo := repo.NewBarrierRepo(pool)

	syncCfg := barrier.Config{
		Store:     barrierRepo,
		Workflows: workflowRepo,
		Logger:    logger,
	}

	// RabbitMQ опционален: без него участники увидят снятие barrier при опросе
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{Logger: logger})
	if err != nil {
		logger.Warn("RabbitMQ not available, releases will not be pushed", "error", err)
	} else {
		defer mqConn.Close()
		syncCfg.Notifier = mq.NewPublisher(mqConn, logger)
	}

	rec := reconciler.New(reconciler.Config{
		Executions:         peRepo,
		StateExecutions:    repo.NewStateExecutionRepo(pool),
		Workflows:          workflowRepo,
		WorkflowExecutions: repo.NewWorkflowExecutionRepo(pool),
		Logger:             logger,
	})

	sw := sweeper.New(sweeper.Config{
		Executions: peRepo,
		Orphans:    barrierRepo,
		Refresher:  rec,
		Barriers:   barrier.New(syncCfg),
		Logger:     logger,
	})

	runner, err := sweeper.NewRunner(sweeper.RunnerConfig{
		Sweeper:  sw,
		Lock:     sweeper.NewAdvisoryLock(pool, sweeper.DefaultLockKey),
		Schedule: os.Getenv("SWEEP_CRON"),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create sweeper", "error", err)
		os.Exit(1)
	}
	runner.Start(ctx)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SWEEPER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	runner.Stop()
	logger.Info("conveyor-sweeper stopped")
}
