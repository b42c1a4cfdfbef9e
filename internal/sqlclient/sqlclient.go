// Package sqlclient reaches the database's HTTPS SQL endpoint the only way
// §6.2 allows it to be reached: pod-exec of curl inside the target
// container. It mirrors the exact statement sequence in
// original_source/snippet-decommssion.py and rr/activities.py.
package sqlclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crateops/rolling-restart/internal/classify"
	"github.com/crateops/rolling-restart/internal/model"
)

// Execer is the minimal pod-exec capability this package needs; satisfied
// by *k8s.Clients, kept as an interface here so sqlclient has no import
// cycle back to k8s and is trivially fakeable in tests.
type Execer interface {
	Exec(ctx context.Context, namespace, pod, container string, command []string) (stdout, stderr string, err error)
}

// Client issues SQL statements against the local _sql endpoint inside a pod.
type Client struct {
	exec      Execer
	container string
}

func New(exec Execer) *Client {
	return &Client{exec: exec, container: "crate"}
}

const sqlEndpoint = "https://127.0.0.1:4200/_sql"

// stmtPayload marshals the way the original's curl -d '{"stmt": "..."}' does.
type stmtPayload struct {
	Stmt string `json:"stmt"`
}

// Exec runs one SQL statement via curl inside namespace/pod and returns an
// error classified Transient (network/HTTP failures are retryable per the
// routing_reset / decommission policy rows).
func (c *Client) Exec(ctx context.Context, namespace, pod, stmt string) error {
	payload, err := json.Marshal(stmtPayload{Stmt: stmt})
	if err != nil {
		return classify.New(classify.Configuration, "marshal SQL statement: %w", err)
	}
	cmd := []string{
		"curl", "--insecure", "-sS",
		"-H", "Content-Type: application/json",
		"-X", "POST", sqlEndpoint,
		"-d", string(payload),
	}
	stdout, stderr, err := c.exec.Exec(ctx, namespace, pod, c.container, cmd)
	if err != nil {
		return classify.New(classify.Transient, "exec SQL statement %q in %s/%s: %w (stderr=%s)", stmt, namespace, pod, err, stderr)
	}
	if strings.Contains(stdout, `"error"`) {
		return classify.New(classify.Transient, "SQL statement %q failed: %s", stmt, stdout)
	}
	return nil
}

// DecommissionStatements returns the first four SET GLOBAL TRANSIENT
// statements of the manual decommission protocol (§4.5, state DECOMMISSION).
func DecommissionStatements(dcUtilTimeoutSeconds int, minAvailability model.MinAvailability) []string {
	return []string{
		`set global transient "cluster.routing.allocation.enable" = "new_primaries"`,
		fmt.Sprintf(`set global transient "cluster.graceful_stop.timeout" = "%ds"`, dcUtilTimeoutSeconds),
		`set global transient "cluster.graceful_stop.force" = true`,
		fmt.Sprintf(`set global transient "cluster.graceful_stop.min_availability" = "%s"`, minAvailability),
	}
}

// DecommissionCommand builds the fifth step: the ALTER CLUSTER DECOMMISSION
// statement wrapped in a PID-1 busy-wait shell pipeline, exec'd directly
// rather than POSTed as a plain statement because the shell loop must run
// inside the container after the statement is issued.
func DecommissionCommand(podOrdinalSuffix string) []string {
	stmt := fmt.Sprintf(`alter cluster decommission $$data-hot-%s$$`, podOrdinalSuffix)
	payload, _ := json.Marshal(stmtPayload{Stmt: stmt})
	shell := fmt.Sprintf(
		`curl --insecure -sS -H "Content-Type: application/json" -X POST %s -d '%s'; while kill -0 1 2>/dev/null; do sleep 0.5; done`,
		sqlEndpoint, string(payload),
	)
	return []string{"/bin/sh", "-c", shell}
}

// ExecDecommission runs the fifth step directly through Execer (it is not a
// plain Exec call because its shell wrapper must outlive the HTTP response).
func (c *Client) ExecDecommission(ctx context.Context, namespace, pod, podOrdinalSuffix string) error {
	_, stderr, err := c.exec.Exec(ctx, namespace, pod, c.container, DecommissionCommand(podOrdinalSuffix))
	if err != nil {
		return classify.New(classify.Transient, "decommission exec in %s/%s: %w (stderr=%s)", namespace, pod, err, stderr)
	}
	return nil
}

// ResetRoutingAllocation issues the post-restart routing reset statement
// (§4.1 ResetClusterRoutingAllocation). Exported separately from Exec so
// callers can recognize the one statement that "must eventually succeed".
func (c *Client) ResetRoutingAllocation(ctx context.Context, namespace, pod string) error {
	return c.Exec(ctx, namespace, pod, `set global transient "cluster.routing.allocation.enable" = "all"`)
}
