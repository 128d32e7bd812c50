package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы refresh.
const (
	RefreshOutcomeUpdated  = "updated"
	RefreshOutcomeTerminal = "terminal"
	RefreshOutcomeError    = "error"
)

var (
	// RefreshTotal — количество refresh по исходу.
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_refresh_total",
		Help: "Pipeline execution refreshes by outcome",
	}, []string{"outcome"})

	// RefreshDuration — длительность refresh.
	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conveyor_refresh_duration_seconds",
		Help:    "Duration of pipeline execution refresh",
		Buckets: prometheus.DefBuckets,
	})

	// BarriersCreated — созданные barrier instances.
	BarriersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_barriers_created_total",
		Help: "Barrier instances created by discovery",
	})

	// BarrierConfigErrors — ошибки конфигурации barrier по коду.
	BarrierConfigErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_barrier_config_errors_total",
		Help: "Barrier discovery configuration errors by code",
	}, []string{"code"})

	// BarrierArrivals — прибытия участников по исходу.
	BarrierArrivals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_barrier_arrivals_total",
		Help: "Barrier arrivals by outcome",
	}, []string{"outcome"})

	// BarrierReleases — снятые barrier по причине.
	BarrierReleases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_barrier_releases_total",
		Help: "Barrier releases by reason",
	}, []string{"reason"})

	// EventsConsumed — обработанные сообщения по типу и результату.
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_events_consumed_total",
		Help: "Consumed messages by type and result",
	}, []string{"type", "result"})

	// SweepRuns — запуски sweeper.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conveyor_sweep_runs_total",
		Help: "Sweeper ticks executed",
	})
)
