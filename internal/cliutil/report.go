// Package cliutil renders operator-facing reports for the restart CLI
// (SPEC_FULL.md §6.4), grounded on original_source/rr/cli.py's
// generate_report: the same three output formats, reshaped into Go structs
// instead of ad hoc dicts.
package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crateops/rolling-restart/internal/model"
)

// restartReport is the serialization shape for json/yaml output. Field
// names are snake_case to match the original tool's report consumers.
type restartReport struct {
	Summary  reportSummary   `json:"summary" yaml:"summary"`
	Clusters []reportCluster `json:"clusters" yaml:"clusters"`
}

type reportSummary struct {
	TotalClusters      int       `json:"total_clusters" yaml:"total_clusters"`
	SuccessfulClusters int       `json:"successful_clusters" yaml:"successful_clusters"`
	FailedClusters     int       `json:"failed_clusters" yaml:"failed_clusters"`
	TotalDuration      float64   `json:"total_duration" yaml:"total_duration"`
	StartedAt          time.Time `json:"started_at" yaml:"started_at"`
	CompletedAt        time.Time `json:"completed_at" yaml:"completed_at"`
}

type reportCluster struct {
	ClusterName   string    `json:"cluster" yaml:"cluster"`
	Success       bool      `json:"success" yaml:"success"`
	Duration      float64   `json:"duration" yaml:"duration"`
	RestartedPods []string  `json:"restarted_pods" yaml:"restarted_pods"`
	SkippedPods   []string  `json:"skipped_pods" yaml:"skipped_pods"`
	TotalPods     int       `json:"total_pods" yaml:"total_pods"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
	Cancelled     bool      `json:"cancelled" yaml:"cancelled"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	CompletedAt   time.Time `json:"completed_at" yaml:"completed_at"`
}

func toReport(result model.MultiClusterRestartRecord) restartReport {
	r := restartReport{
		Summary: reportSummary{
			TotalClusters:      len(result.ClusterRecords),
			SuccessfulClusters: result.SuccessCount,
			FailedClusters:     result.FailureCount,
			TotalDuration:      result.TotalDuration.Seconds(),
			StartedAt:          result.StartedAt,
			CompletedAt:        result.CompletedAt,
		},
	}
	for _, c := range result.ClusterRecords {
		r.Clusters = append(r.Clusters, reportCluster{
			ClusterName:   c.ClusterName,
			Success:       c.Success,
			Duration:      c.Duration.Seconds(),
			RestartedPods: c.RestartedPods,
			SkippedPods:   c.SkippedPods,
			TotalPods:     c.TotalPodCount,
			Error:         c.Error,
			Cancelled:     c.Cancelled,
			StartedAt:     c.StartedAt,
			CompletedAt:   c.CompletedAt,
		})
	}
	return r
}

// WriteReport renders result to w in the requested format ("text", "json"
// or "yaml"); anything else falls back to "text".
func WriteReport(w io.Writer, result model.MultiClusterRestartRecord, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toReport(result))
	case "yaml":
		b, err := yaml.Marshal(toReport(result))
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		return writeTextReport(w, result)
	}
}

func writeTextReport(w io.Writer, result model.MultiClusterRestartRecord) error {
	fmt.Fprintln(w, "Restart Summary")
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "Total Clusters:\t%d\n", len(result.ClusterRecords))
	fmt.Fprintf(tw, "Successful:\t%d\n", result.SuccessCount)
	fmt.Fprintf(tw, "Failed:\t%d\n", result.FailureCount)
	fmt.Fprintf(tw, "Total Duration:\t%.2fs\n", result.TotalDuration.Seconds())
	fmt.Fprintf(tw, "Started At:\t%s\n", result.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "Completed At:\t%s\n", result.CompletedAt.Format(time.RFC3339))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Cluster Details")
	dtw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(dtw, "CLUSTER\tSUCCESS\tDURATION(s)\tPODS RESTARTED\tERROR")
	for _, c := range result.ClusterRecords {
		status := "yes"
		if !c.Success {
			status = "no"
		}
		fmt.Fprintf(dtw, "%s\t%s\t%.2f\t%d/%d\t%s\n",
			c.ClusterName, status, c.Duration.Seconds(), len(c.RestartedPods), c.TotalPodCount, c.Error)
	}
	return dtw.Flush()
}

// MisplacedOption reports whether args (the positional cluster-name
// operands collected after flag parsing) contains a value that looks like a
// flag that a user intended to place earlier, mirroring async_main's
// dry-run-variation and leading-dash checks in original_source/rr/cli.py.
func MisplacedOption(clusterNames []string) (string, bool) {
	suspect := []string{
		"--dry-run", "dry-run", "--dry", "dry", "--dryrun", "dryrun",
		"-dry-run", "-dry", "--test", "test", "--simulate", "simulate",
	}
	for _, name := range clusterNames {
		lower := strings.ToLower(name)
		for _, s := range suspect {
			if lower == s {
				return name, true
			}
		}
		if strings.HasPrefix(name, "-") {
			return name, true
		}
	}
	return "", false
}
