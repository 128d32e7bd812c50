package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Default configuration values.
const (
	defaultBatchSize = 100
)

// ActiveLister — выборка незавершённых pipeline executions.
type ActiveLister interface {
	ListActive(ctx context.Context, limit int) ([]domain.PipelineExecution, error)
}

// OrphanLister — выборка завершённых pipeline executions со стоящими barrier.
type OrphanLister interface {
	ListOrphanedExecutions(ctx context.Context, limit int) ([]string, error)
}

// Refresher пересчитывает проекцию pipeline execution.
type Refresher interface {
	Refresh(ctx context.Context, appID, workflowExecutionID string) error
}

// Abandoner снимает все стоящие barrier pipeline execution.
type Abandoner interface {
	Abandon(ctx context.Context, pipelineExecutionID string) (int, error)
}

// Sweeper — периодический проход по незавершённым выполнениям.
type Sweeper struct {
	executions ActiveLister
	orphans    OrphanLister
	refresher  Refresher
	barriers   Abandoner
	batchSize  int
	logger     *slog.Logger
}

// Config — конфигурация Sweeper.
type Config struct {
	Executions ActiveLister
	Orphans    OrphanLister
	Refresher  Refresher
	Barriers   Abandoner
	BatchSize  int // количество executions за один проход (default: 100)
	Logger     *slog.Logger
}

// Stats — итоги одного прохода.
type Stats struct {
	Refreshed int
	Failed    int
	Abandoned int
}

// New создаёт новый Sweeper.
func New(cfg Config) *Sweeper {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		executions: cfg.Executions,
		orphans:    cfg.Orphans,
		refresher:  cfg.Refresher,
		barriers:   cfg.Barriers,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Tick выполняет один проход.
//
// 1. Пересчитывает проекции незавершённых pipeline executions
// 2. Снимает barrier завершённых pipeline executions (reason ABANDONED)
//
// Ошибка одного execution не блокирует обработку остальных.
func (s *Sweeper) Tick(ctx context.Context) (Stats, error) {
	telemetry.SweepRuns.Inc()

	var stats Stats

	active, err := s.executions.ListActive(ctx, s.batchSize)
	if err != nil {
		return stats, fmt.Errorf("list active executions: %w", err)
	}

	for i := range active {
		pe := &active[i]
		err := s.refresher.Refresh(ctx, pe.AppID, pe.WorkflowExecutionID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			s.logger.Error("sweep refresh failed",
				"pipeline_execution_id", pe.ID,
				"workflow_execution_id", pe.WorkflowExecutionID,
				"error", err,
			)
			stats.Failed++
			continue
		}
		stats.Refreshed++
	}

	if s.orphans != nil && s.barriers != nil {
		ids, err := s.orphans.ListOrphanedExecutions(ctx, s.batchSize)
		if err != nil {
			return stats, fmt.Errorf("list orphaned barriers: %w", err)
		}

		for _, id := range ids {
			n, err := s.barriers.Abandon(ctx, id)
			if err != nil {
				s.logger.Error("sweep abandon failed", "pipeline_execution_id", id, "error", err)
				stats.Failed++
				continue
			}
			stats.Abandoned += n
		}
	}

	if stats.Refreshed > 0 || stats.Abandoned > 0 || stats.Failed > 0 {
		s.logger.Info("sweep completed",
			"refreshed", stats.Refreshed,
			"abandoned", stats.Abandoned,
			"failed", stats.Failed,
		)
	}
	return stats, nil
}
