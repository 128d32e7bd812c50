// Package sweeper реализует периодическое самовосстановление.
//
// Sweeper по расписанию (SWEEP_CRON) выполняет два прохода:
//   - пересчитывает проекции незавершённых pipeline executions,
//     если событие перехода было потеряно
//   - снимает barrier, оставшиеся у завершённых pipeline executions
//
// Структура:
//   - sweeper.go — один проход (Tick)
//   - cron.go    — разбор расписания и запуск по cron
//   - leader.go  — leader election через pg_try_advisory_lock
//
// Использование:
//
//	sw := sweeper.New(sweeper.Config{
//	    Executions: peRepo,
//	    Orphans:    barrierRepo,
//	    Refresher:  rec,
//	    Barriers:   sync,
//	    Logger:     logger,
//	})
//
//	runner, err := sweeper.NewRunner(sweeper.RunnerConfig{
//	    Sweeper:  sw,
//	    Lock:     sweeper.NewAdvisoryLock(pool, sweeper.DefaultLockKey),
//	    Schedule: os.Getenv("SWEEP_CRON"),
//	    Logger:   logger,
//	})
//	runner.Start(ctx)
//	defer runner.Stop()
//
// Tick выполняет только лидер; остальные экземпляры пропускают тик.
package sweeper
