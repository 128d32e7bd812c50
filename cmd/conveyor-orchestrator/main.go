// Conveyor Orchestrator — обрабатывает события выполнения pipeline.
//
// Orchestrator:
//   - Пересчитывает проекцию pipeline execution на каждый переход state
//   - Находит barrier при старте pipeline execution
//   - Регистрирует прибытие участников и рассылает снятие barrier
//   - Снимает barrier отменённых pipeline executions
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
	"github.com/shaiso/Conveyor/internal/orchestrator"
	"github.com/shaiso/Conveyor/internal/reconciler"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting conveyor-orchestrator")

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

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	// Создаём репозитории
	workflowRepo := repo.NewWorkflowRepo(pool)
	peRepo := repo.NewPipelineExecutionRepo(pool)
	barrierRepo := repo.NewBarrierRepo(pool)

	// RabbitMQ: без брокера orchestrator не получает событий
	mqConn, err := mq.NewConnection(mq.ConnectionConfig{Logger: logger})
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}
	logger.Debug("topology declared", "topology", mq.TopologyInfo())

	publisher := mq.NewPublisher(mqConn, logger)

	wfExecRepo := repo.NewWorkflowExecutionRepo(pool)

	rec := reconciler.New(reconciler.Config{
		Executions:         peRepo,
		StateExecutions:    repo.NewStateExecutionRepo(pool),
		Workflows:          workflowRepo,
		WorkflowExecutions: wfExecRepo,
		Logger:             logger,
	})

	synchronizer := barrier.New(barrier.Config{
		Store:     barrierRepo,
		Workflows: workflowRepo,
		Notifier:  publisher,
		Logger:    logger,
	})

	// Создаём orchestrator
	orch := orchestrator.New(orchestrator.Config{
		Refresher:          rec,
		Barriers:           synchronizer,
		Pipelines:          workflowRepo,
		Executions:         peRepo,
		WorkflowExecutions: wfExecRepo,
		Notifier:           publisher,
		Conn:               mqConn,
		Logger:             logger,
	})

	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			http.Error(w, "rabbitmq disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("ORCH_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	orch.Stop()
	logger.Info("conveyor-orchestrator stopped")
}
