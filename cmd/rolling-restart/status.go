package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crateops/rolling-restart/internal/temporalclient"
)

var statusCmd = &cobra.Command{
	Use:   "status <workflow_id>",
	Short: "Check the status of a restart workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := temporalclient.Connect(flagTemporalAddress, flagNamespace)
		if err != nil {
			return err
		}
		defer tc.Close()
		tc.TaskQueue = flagTaskQueue

		ctx := context.Background()
		st, err := tc.Status(ctx, args[0])
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintf(tw, "Workflow ID:\t%s\n", st.WorkflowID)
		fmt.Fprintf(tw, "Run ID:\t%s\n", st.RunID)
		fmt.Fprintf(tw, "Status:\t%s\n", st.Status)
		fmt.Fprintf(tw, "Workflow Type:\t%s\n", st.WorkflowType)
		fmt.Fprintf(tw, "Task Queue:\t%s\n", st.TaskQueue)
		fmt.Fprintf(tw, "Start Time:\t%s\n", st.StartTime)
		if st.CloseTime != nil {
			fmt.Fprintf(tw, "Close Time:\t%s\n", st.CloseTime)
		} else {
			fmt.Fprintln(tw, "Close Time:\tRunning")
		}

		// get_status is only meaningful while the workflow is still open;
		// only one of these queries will match st.WorkflowType.
		if st.CloseTime == nil {
			switch st.WorkflowType {
			case "Orchestrator":
				if ost, err := tc.GetOrchestratorStatus(ctx, args[0]); err == nil {
					fmt.Fprintf(tw, "Current Cluster:\t%s\n", ost.CurrentCluster)
					fmt.Fprintf(tw, "Clusters Done:\t%d/%d\n", ost.ClustersDone, ost.ClustersTotal)
					fmt.Fprintf(tw, "Success/Failure:\t%d/%d\n", ost.SuccessCount, ost.FailureCount)
					fmt.Fprintf(tw, "Paused:\t%v\n", ost.Paused)
				}
			case "ClusterRestart":
				if cs, err := tc.GetClusterRestartStatus(ctx, args[0]); err == nil {
					fmt.Fprintf(tw, "Current Pod:\t%s\n", cs.CurrentPod)
					fmt.Fprintf(tw, "Pods Completed:\t%d\n", len(cs.PodsCompleted))
					fmt.Fprintf(tw, "Pods Skipped:\t%d\n", len(cs.SkippedPods))
					fmt.Fprintf(tw, "Paused:\t%v\n", cs.Paused)
					fmt.Fprintf(tw, "Force Restart Active:\t%v\n", cs.ForceRestartActive)
				}
			}
		}
		return tw.Flush()
	},
}

var listWorkflowsCmd = &cobra.Command{
	Use:   "list-workflows",
	Short: "List recent restart workflows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		tc, err := temporalclient.Connect(flagTemporalAddress, flagNamespace)
		if err != nil {
			return err
		}
		defer tc.Close()
		tc.TaskQueue = flagTaskQueue

		workflows, err := tc.ListWorkflows(context.Background(), limit)
		if err != nil {
			return err
		}
		if len(workflows) == 0 {
			fmt.Println("No workflows found.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "WORKFLOW ID\tTYPE\tSTATUS\tSTART TIME")
		for _, wf := range workflows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", wf.WorkflowID, wf.WorkflowType, wf.Status, wf.StartTime.Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	},
}

func init() {
	listWorkflowsCmd.Flags().Int("limit", 10, "Maximum number of workflows to show")
}
