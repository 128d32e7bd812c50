package sweeper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule — расписание sweeper по умолчанию.
const DefaultSchedule = "@every 30s"

// cronParser — парсер cron-выражений (пять полей или дескриптор @every/@hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule проверяет валидность расписания.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", expr, err)
	}
	return nil
}

// Locker — leader election между экземплярами sweeper.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Runner запускает Tick по расписанию, если экземпляр — лидер.
type Runner struct {
	sweeper  *Sweeper
	lock     Locker
	schedule string
	logger   *slog.Logger

	cron *cron.Cron
	ctx  context.Context
}

// RunnerConfig — конфигурация Runner.
type RunnerConfig struct {
	Sweeper  *Sweeper
	Lock     Locker // nil — лидер всегда этот экземпляр
	Schedule string // default: @every 30s
	Logger   *slog.Logger
}

// NewRunner создаёт Runner и регистрирует задачу в cron.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		sweeper:  cfg.Sweeper,
		lock:     cfg.Lock,
		schedule: schedule,
		logger:   logger,
		ctx:      context.Background(),
	}

	l := cronLogger{logger: logger}
	r.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := r.cron.AddFunc(schedule, func() { r.RunOnce(r.ctx) }); err != nil {
		return nil, fmt.Errorf("register sweep job: %w", err)
	}
	return r, nil
}

// Start запускает планировщик в фоне.
func (r *Runner) Start(ctx context.Context) {
	r.ctx = ctx
	r.cron.Start()
	r.logger.Info("sweeper started", "schedule", r.schedule)
}

// Stop останавливает планировщик, дожидается текущего прохода и освобождает lock.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()

	if r.lock != nil {
		if err := r.lock.Unlock(context.Background()); err != nil {
			r.logger.Warn("failed to release sweeper lock", "error", err)
		}
	}
	r.logger.Info("sweeper stopped")
}

// RunOnce выполняет один проход, если удалось стать (или остаться) лидером.
// Возвращает false, если тик пропущен.
func (r *Runner) RunOnce(ctx context.Context) bool {
	if r.lock != nil {
		ok, err := r.lock.TryLock(ctx)
		if err != nil {
			r.logger.Error("sweeper lock failed", "error", err)
			return false
		}
		if !ok {
			r.logger.Debug("not a leader, skipping sweep")
			return false
		}
	}

	if _, err := r.sweeper.Tick(ctx); err != nil {
		r.logger.Error("sweep failed", "error", err)
	}
	return true
}

// cronLogger направляет журнал cron в slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
