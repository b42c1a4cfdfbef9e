// Command rolling-restart is both the Temporal worker process and the
// operator-facing CLI for the CrateDB rolling-restart orchestrator. Its
// command tree mirrors original_source/rr/cli.py's click group: restart,
// status, list-workflows, cancel, force-restart, maintenance, plus a worker
// subcommand that hosts original_source/rr/worker.py's WorkerManager.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crateops/rolling-restart/internal/buildinfo"
)

var (
	flagTemporalAddress string
	flagTaskQueue       string
	flagNamespace       string
	flagLogLevel        string

	logger *zap.SugaredLogger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rolling-restart",
	Short:   "Durable rolling-restart orchestrator for CrateDB clusters on Kubernetes",
	Version: buildinfo.Get().String(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(flagLogLevel)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagTemporalAddress, "temporal-address", "localhost:7233", "Temporal server address")
	rootCmd.PersistentFlags().StringVar(&flagTaskQueue, "task-queue", "cratedb-operations", "Temporal task queue name")
	rootCmd.PersistentFlags().StringVar(&flagNamespace, "namespace", "default", "Temporal namespace")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listWorkflowsCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(forceRestartCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(maintenanceCmd)
	rootCmd.AddCommand(workerCmd)
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = "ts"
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Sugar(), nil
}
