package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crateops/rolling-restart/internal/cliutil"
	"github.com/crateops/rolling-restart/internal/model"
	"github.com/crateops/rolling-restart/internal/temporalclient"
)

var (
	flagKubeconfig               string
	flagContext                  string
	flagDryRun                   bool
	flagAsync                    bool
	flagSkipHookWarning          bool
	flagOnlyOnSuspendedNodes     bool
	flagOutputFormat             string
	flagMaintenanceConfig        string
	flagIgnoreMaintenanceWindows bool
)

var restartCmd = &cobra.Command{
	Use:   "restart <cluster...|all>",
	Short: "Restart CrateDB clusters via the durable rolling-restart workflow",
	Long: `Restart CrateDB clusters with Temporal workflows.

CLUSTER_NAMES: space-separated list of CrateDB cluster names to restart.
Use 'all' to restart all clusters (requires confirmation unless --dry-run).

All options must come before the cluster names; any flag-looking token
found among the positional arguments is rejected as a misplaced option.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRestart,
}

func init() {
	restartCmd.Flags().SetInterspersed(false)
	restartCmd.Flags().StringVar(&flagKubeconfig, "kubeconfig", "", "Path to kubeconfig file")
	restartCmd.Flags().StringVar(&flagContext, "context", "", "Kubernetes context to use")
	restartCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Only show what would be done without making changes")
	restartCmd.Flags().BoolVar(&flagAsync, "async", false, "Start the workflow asynchronously and return immediately")
	restartCmd.Flags().BoolVar(&flagSkipHookWarning, "skip-hook-warning", false, "Skip warnings about missing prestop hook or decommission utility")
	restartCmd.Flags().BoolVar(&flagOnlyOnSuspendedNodes, "only-on-suspended-nodes", false, "Restart only pods scheduled on suspended nodes")
	restartCmd.Flags().StringVar(&flagOutputFormat, "output-format", "text", "Report output format: text, json or yaml")
	restartCmd.Flags().StringVar(&flagMaintenanceConfig, "maintenance-config", "", "Path to maintenance windows TOML config")
	restartCmd.Flags().BoolVar(&flagIgnoreMaintenanceWindows, "ignore-maintenance-windows", false, "Ignore maintenance windows and proceed immediately")
	_ = restartCmd.MarkFlagRequired("context")
}

func runRestart(cmd *cobra.Command, args []string) error {
	if bad, ok := cliutil.MisplacedOption(args); ok {
		return fmt.Errorf("misplaced option %q: all flags must come before cluster names (see --help)", bad)
	}

	restartAll := len(args) == 1 && strings.EqualFold(args[0], "all")
	if restartAll && !flagDryRun {
		if !confirm(cmd, "WARNING: you are about to restart ALL CrateDB clusters. Proceed?") {
			logger.Info("operation cancelled by user")
			return nil
		}
	}

	clusterNames := args
	if restartAll {
		clusterNames = nil
	}

	opts := model.DefaultRestartOptions()
	opts.Kubeconfig = flagKubeconfig
	opts.Context = flagContext
	opts.DryRun = flagDryRun
	opts.SkipHookWarning = flagSkipHookWarning
	opts.OutputFormat = flagOutputFormat
	opts.LogLevel = flagLogLevel
	opts.MaintenanceConfigPath = flagMaintenanceConfig
	opts.IgnoreMaintenanceWindows = flagIgnoreMaintenanceWindows
	opts.OnlyOnSuspendedNodes = flagOnlyOnSuspendedNodes

	tc, err := temporalclient.Connect(flagTemporalAddress, flagNamespace)
	if err != nil {
		return err
	}
	defer tc.Close()
	tc.TaskQueue = flagTaskQueue

	ctx := context.Background()
	logger.Infow("starting cluster restart workflow", "clusters", clusterNames, "dry_run", flagDryRun)
	run, err := tc.StartRestart(ctx, clusterNames, opts)
	if err != nil {
		return fmt.Errorf("start restart workflow: %w", err)
	}

	if flagAsync {
		fmt.Printf("Workflow started successfully!\nWorkflow ID: %s\n", run.GetID())
		fmt.Printf("You can check the status using: rolling-restart status %s\n", run.GetID())
		return nil
	}

	result, err := tc.AwaitRestart(ctx, run)
	if err != nil {
		return fmt.Errorf("restart workflow failed: %w", err)
	}

	if err := cliutil.WriteReport(os.Stdout, result, flagOutputFormat); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if result.FailureCount > 0 {
		return fmt.Errorf("%d cluster(s) failed to restart", result.FailureCount)
	}
	logger.Infow("successfully restarted clusters", "count", result.SuccessCount)
	return nil
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}
