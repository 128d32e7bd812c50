// Conveyor CLI — инструмент оператора для проверки pipeline,
// пересчёта проекций и управления barrier.
//
// Использование:
//
//	conveyor [--db-url URL] [--amqp-url URL] [--json] <command> [flags]
//
// Команды:
//
//	validate   Офлайн-проверка pipeline и будущих barrier
//	pipeline   Регистрация и запуск pipeline
//	refresh    Пересчёт проекции pipeline execution
//	execution  Просмотр, запись state, отмена
//	barrier    Просмотр, прибытие, ожидание и снятие barrier
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/cli"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var dbURL, amqpURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "conveyor",
		Short:         "Conveyor CLI — pipeline execution tooling",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "PostgreSQL DSN (default: $DB_URL)")
	rootCmd.PersistentFlags().StringVar(&amqpURL, "amqp-url", os.Getenv("RABBITMQ_URL"), "RabbitMQ URL; empty runs operations directly")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	// логи CLI идут в stderr, чтобы не смешиваться с данными
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: telemetry.LogLevel()}))

	backendFn := func(ctx context.Context) (*cli.Backend, error) {
		return cli.NewBackend(ctx, cli.BackendConfig{DBURL: dbURL, AMQPURL: amqpURL, Logger: logger})
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewValidateCmd(outputFn),
		cli.NewPipelineCmd(backendFn, outputFn),
		cli.NewRefreshCmd(backendFn, outputFn),
		cli.NewExecutionCmd(backendFn, outputFn),
		cli.NewBarrierCmd(backendFn, outputFn),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
