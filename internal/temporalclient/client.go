// Package temporalclient wraps go.temporal.io/sdk/client with the handful
// of operations the CLI needs, grounded on original_source/rr/
// temporal_client.py's TemporalClient (connect/restart/status/cancel/
// force-restart/list-workflows), reshaped around the Go SDK's client.Client
// instead of a hand-rolled connect/disconnect pair.
package temporalclient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/crateops/rolling-restart/internal/model"
	"github.com/crateops/rolling-restart/internal/workflow"
)

// TaskQueue is the default task queue name, mirroring the original tool's
// "cratedb-operations" default.
const TaskQueue = "cratedb-operations"

// Client is a thin facade over a Temporal client.Client.
type Client struct {
	SDK       client.Client
	TaskQueue string
}

// Connect dials the Temporal frontend at address.
func Connect(address, namespace string) (*Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  address,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to temporal at %s: %w", address, err)
	}
	return &Client{SDK: c, TaskQueue: TaskQueue}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.SDK.Close()
}

// StartRestart starts the Orchestrator workflow, returning its run as soon
// as Temporal accepts it (no wait for completion).
func (c *Client) StartRestart(ctx context.Context, clusterNames []string, opts model.RestartOptions) (client.WorkflowRun, error) {
	workflowID := "restart-clusters-" + uuid.NewString()[:8]
	return c.SDK.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.TaskQueue,
		WorkflowExecutionTimeout: 2 * time.Hour,
		RetryPolicy:              &temporal.RetryPolicy{MaximumAttempts: 1},
	}, workflow.Orchestrator, workflow.OrchestratorInput{
		ClusterNames: clusterNames,
		Options:      opts,
	})
}

// AwaitRestart blocks for the workflow run's terminal result.
func (c *Client) AwaitRestart(ctx context.Context, run client.WorkflowRun) (model.MultiClusterRestartRecord, error) {
	var record model.MultiClusterRestartRecord
	err := run.Get(ctx, &record)
	return record, err
}

// Status mirrors get_workflow_status.
type Status struct {
	WorkflowID   string
	RunID        string
	Status       string
	WorkflowType string
	TaskQueue    string
	StartTime    time.Time
	CloseTime    *time.Time
}

func (c *Client) Status(ctx context.Context, workflowID string) (Status, error) {
	desc, err := c.SDK.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return Status{}, fmt.Errorf("describe workflow %s: %w", workflowID, err)
	}
	info := desc.GetWorkflowExecutionInfo()
	st := Status{
		WorkflowID:   info.GetExecution().GetWorkflowId(),
		RunID:        info.GetExecution().GetRunId(),
		Status:       info.GetStatus().String(),
		WorkflowType: info.GetType().GetName(),
		TaskQueue:    c.TaskQueue,
	}
	if t := info.GetStartTime(); t != nil {
		st.StartTime = t.AsTime()
	}
	if t := info.GetCloseTime(); t != nil {
		ct := t.AsTime()
		st.CloseTime = &ct
	}
	return st, nil
}

// Cancel requests cancellation of a running workflow.
func (c *Client) Cancel(ctx context.Context, workflowID string) error {
	return c.SDK.CancelWorkflow(ctx, workflowID, "")
}

// ForceRestart signals a waiting Cluster-Restart or Maintenance-Gate
// workflow to override the maintenance window.
func (c *Client) ForceRestart(ctx context.Context, workflowID, reason string) error {
	return c.SDK.SignalWorkflow(ctx, workflowID, "", workflow.SignalForceRestart, reason)
}

// Pause/Resume/CancelRestart signal a running Cluster-Restart workflow.
func (c *Client) PauseRestart(ctx context.Context, workflowID, reason string) error {
	return c.SDK.SignalWorkflow(ctx, workflowID, "", workflow.SignalPauseRestart, reason)
}

func (c *Client) ResumeRestart(ctx context.Context, workflowID string) error {
	return c.SDK.SignalWorkflow(ctx, workflowID, "", workflow.SignalResumeRestart, "")
}

func (c *Client) CancelRestart(ctx context.Context, workflowID, reason string) error {
	return c.SDK.SignalWorkflow(ctx, workflowID, "", workflow.SignalCancelRestart, reason)
}

// GetOrchestratorStatus runs the get_status query against a running
// Orchestrator workflow.
func (c *Client) GetOrchestratorStatus(ctx context.Context, workflowID string) (workflow.OrchestratorStatus, error) {
	var status workflow.OrchestratorStatus
	resp, err := c.SDK.QueryWorkflow(ctx, workflowID, "", workflow.QueryGetStatus)
	if err != nil {
		return status, fmt.Errorf("query get_status on %s: %w", workflowID, err)
	}
	if err := resp.Get(&status); err != nil {
		return status, fmt.Errorf("decode get_status result: %w", err)
	}
	return status, nil
}

// GetClusterRestartStatus runs the get_status query against a running
// Cluster-Restart workflow (its deterministic ID is "cluster-restart-"
// followed by the cluster name).
func (c *Client) GetClusterRestartStatus(ctx context.Context, workflowID string) (workflow.ClusterRestartStatus, error) {
	var status workflow.ClusterRestartStatus
	resp, err := c.SDK.QueryWorkflow(ctx, workflowID, "", workflow.QueryGetStatus)
	if err != nil {
		return status, fmt.Errorf("query get_status on %s: %w", workflowID, err)
	}
	if err := resp.Get(&status); err != nil {
		return status, fmt.Errorf("decode get_status result: %w", err)
	}
	return status, nil
}

// WorkflowSummary is one row of a list-workflows result.
type WorkflowSummary struct {
	WorkflowID   string
	RunID        string
	WorkflowType string
	Status       string
	StartTime    time.Time
	CloseTime    *time.Time
}

// ListWorkflows mirrors list_workflows, most-recent first.
func (c *Client) ListWorkflows(ctx context.Context, limit int) ([]WorkflowSummary, error) {
	var summaries []WorkflowSummary
	req := &workflowservice.ListWorkflowExecutionsRequest{
		Query: "ORDER BY StartTime DESC",
	}
	for {
		resp, err := c.SDK.ListWorkflow(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("list workflows: %w", err)
		}
		for _, exec := range resp.GetExecutions() {
			ws := WorkflowSummary{
				WorkflowID:   exec.GetExecution().GetWorkflowId(),
				RunID:        exec.GetExecution().GetRunId(),
				WorkflowType: exec.GetType().GetName(),
				Status:       exec.GetStatus().String(),
			}
			if t := exec.GetStartTime(); t != nil {
				ws.StartTime = t.AsTime()
			}
			if t := exec.GetCloseTime(); t != nil {
				ct := t.AsTime()
				ws.CloseTime = &ct
			}
			summaries = append(summaries, ws)
			if len(summaries) >= limit {
				return summaries, nil
			}
		}
		if len(resp.GetNextPageToken()) == 0 {
			break
		}
		req.NextPageToken = resp.GetNextPageToken()
	}
	return summaries, nil
}
