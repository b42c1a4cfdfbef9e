package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crateops/rolling-restart/internal/temporalclient"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <workflow_id>",
	Short: "Cancel a running restart workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := temporalclient.Connect(flagTemporalAddress, flagNamespace)
		if err != nil {
			return err
		}
		defer tc.Close()
		tc.TaskQueue = flagTaskQueue

		if err := tc.Cancel(context.Background(), args[0]); err != nil {
			return fmt.Errorf("cancel workflow %s: %w", args[0], err)
		}
		fmt.Printf("Workflow %s cancelled successfully.\n", args[0])
		return nil
	},
}

var forceRestartReason string

var forceRestartCmd = &cobra.Command{
	Use:   "force-restart <workflow_id>",
	Short: "Override a maintenance window block and proceed with the restart",
	Long: `Send a signal to a waiting workflow to proceed with the restart
immediately, bypassing maintenance window restrictions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := temporalclient.Connect(flagTemporalAddress, flagNamespace)
		if err != nil {
			return err
		}
		defer tc.Close()
		tc.TaskQueue = flagTaskQueue

		if err := tc.ForceRestart(context.Background(), args[0], forceRestartReason); err != nil {
			return fmt.Errorf("force-restart workflow %s: %w", args[0], err)
		}
		fmt.Printf("Force restart signal sent to workflow %s.\nReason: %s\n", args[0], forceRestartReason)
		fmt.Printf("Use 'rolling-restart status %s' to monitor progress.\n", args[0])
		return nil
	},
}

func init() {
	forceRestartCmd.Flags().StringVar(&forceRestartReason, "reason", "Operator override via CLI", "Reason for forcing the restart")
}

var pauseReason string

var pauseCmd = &cobra.Command{
	Use:   "pause <workflow_id>",
	Short: "Pause a running cluster restart before its next pod",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := temporalclient.Connect(flagTemporalAddress, flagNamespace)
		if err != nil {
			return err
		}
		defer tc.Close()
		tc.TaskQueue = flagTaskQueue

		if err := tc.PauseRestart(context.Background(), args[0], pauseReason); err != nil {
			return fmt.Errorf("pause workflow %s: %w", args[0], err)
		}
		fmt.Printf("Pause signal sent to workflow %s.\n", args[0])
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <workflow_id>",
	Short: "Resume a paused cluster restart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := temporalclient.Connect(flagTemporalAddress, flagNamespace)
		if err != nil {
			return err
		}
		defer tc.Close()
		tc.TaskQueue = flagTaskQueue

		if err := tc.ResumeRestart(context.Background(), args[0]); err != nil {
			return fmt.Errorf("resume workflow %s: %w", args[0], err)
		}
		fmt.Printf("Resume signal sent to workflow %s.\n", args[0])
		return nil
	},
}

func init() {
	pauseCmd.Flags().StringVar(&pauseReason, "reason", "", "Reason for pausing the restart")
}
