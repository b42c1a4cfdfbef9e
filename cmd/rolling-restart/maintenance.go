package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/crateops/rolling-restart/internal/maintenance"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Inspect and manage maintenance-window configuration",
}

var createConfigOutput string

var createConfigCmd = &cobra.Command{
	Use:   "create-config",
	Short: "Write a sample maintenance-windows TOML file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := maintenance.WriteSampleConfig(createConfigOutput); err != nil {
			return err
		}
		fmt.Printf("Sample maintenance configuration created: %s\n", createConfigOutput)
		fmt.Println("Edit this file to configure your maintenance windows, then pass it via --maintenance-config.")
		return nil
	},
}

var checkAtTime string

var checkCmd = &cobra.Command{
	Use:   "check <config_path> <cluster_name>",
	Short: "Check whether a cluster is currently in its maintenance window",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, clusterName := args[0], args[1]

		f, err := maintenance.Load(configPath)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if checkAtTime != "" {
			parsed, err := time.Parse(time.RFC3339, checkAtTime)
			if err != nil {
				return fmt.Errorf("invalid --time %q, expected RFC3339 (e.g. 2024-01-15T19:30:00Z): %w", checkAtTime, err)
			}
			now = parsed.UTC()
		}

		result, err := maintenance.NewChecker(f).Check(clusterName, now)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintf(tw, "Current Time:\t%s\n", now.Format("2006-01-02 15:04:05 UTC"))
		fmt.Fprintf(tw, "In Maintenance Window:\t%v\n", result.InWindow)
		fmt.Fprintf(tw, "Should Wait:\t%v\n", result.ShouldWait)
		fmt.Fprintf(tw, "Reason:\t%s\n", result.Reason)
		if result.NextWindowStart != nil {
			fmt.Fprintf(tw, "Next Window:\t%s\n", result.NextWindowStart.Format("2006-01-02 15:04:05 UTC"))
		} else {
			fmt.Fprintln(tw, "Next Window:\tNone found in the next 35 days")
		}
		return tw.Flush()
	},
}

var listWindowsCmd = &cobra.Command{
	Use:   "list-windows <config_path>",
	Short: "List every configured maintenance window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := maintenance.Load(args[0])
		if err != nil {
			return err
		}

		names := make([]string, 0, len(f.Clusters))
		for name := range f.Clusters {
			names = append(names, name)
		}
		sort.Strings(names)

		tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(tw, "CLUSTER\tWINDOW\tSCHEDULE\tDESCRIPTION")
		for _, name := range names {
			cc := f.Clusters[name]
			if len(cc.Windows) == 0 {
				fmt.Fprintf(tw, "%s\tno windows\t-\tno maintenance windows configured\n", name)
				continue
			}
			for i, w := range cc.Windows {
				var schedule []string
				if len(w.Weekdays) > 0 {
					schedule = append(schedule, "weekdays: "+strings.Join(w.Weekdays, ", "))
				}
				if len(w.OrdinalDays) > 0 {
					schedule = append(schedule, "ordinal: "+strings.Join(w.OrdinalDays, ", "))
				}
				sched := "every day"
				if len(schedule) > 0 {
					sched = strings.Join(schedule, "; ")
				}
				label := name
				if i > 0 {
					label = ""
				}
				fmt.Fprintf(tw, "%s\twindow %d (%s-%s)\t%s\t%s\n", label, i+1, w.Start, w.End, sched, w.Description)
			}
		}
		return tw.Flush()
	},
}

func init() {
	createConfigCmd.Flags().StringVarP(&createConfigOutput, "output", "o", "maintenance-windows.toml", "Output file path for the sample configuration")
	checkCmd.Flags().StringVar(&checkAtTime, "time", "", "Check the maintenance window at a specific RFC3339 time instead of now")

	maintenanceCmd.AddCommand(createConfigCmd)
	maintenanceCmd.AddCommand(checkCmd)
	maintenanceCmd.AddCommand(listWindowsCmd)
}
