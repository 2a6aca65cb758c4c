package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/store"
)

func newReleaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release listing commands",
	}

	cmd.AddCommand(newReleaseListCmd())
	cmd.AddCommand(newReleaseLatestCmd())
	return cmd
}

func newReleaseListCmd() *cobra.Command {
	var (
		configPath string
		tracker    string
		search     string
		limit      int
		noHistory  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List observed releases",
		Long:  "Lists releases newest first. Republish snapshots are included unless --no-history is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReleaseList(cmd, configPath, store.ReleaseFilter{
				Tracker:        tracker,
				Search:         search,
				IncludeHistory: !noHistory,
				Limit:          limit,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	cmd.Flags().StringVar(&tracker, "tracker", "", "filter by tracker name")
	cmd.Flags().StringVar(&search, "search", "", "filter by tracker, name, tag or version")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "hide republish snapshots")
	return cmd
}

func runReleaseList(cmd *cobra.Command, configPath string, filter store.ReleaseFilter) error {
	_, st, err := openStore(configPath)
	if err != nil {
		return err
	}

	releases, total, err := st.ListReleases(filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(releases) == 0 {
		fmt.Fprintln(out, "No releases found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRACKER\tTAG\tCHANNEL\tPUBLISHED\tFLAGS")
	for _, r := range releases {
		flags := ""
		if r.Prerelease {
			flags += "pre "
		}
		if r.IsHistorical {
			flags += "historical "
		} else if r.RepublishCount > 0 {
			flags += fmt.Sprintf("republished x%d ", r.RepublishCount)
		}
		if flags == "" {
			flags = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.TrackerName, r.TagName, dashIfEmpty(r.ChannelName),
			r.PublishedAt.Format("2006-01-02 15:04"), flags)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d of %d release(s)\n", len(releases), total)
	return nil
}

func newReleaseLatestCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the newest releases across all trackers",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(configPath)
			if err != nil {
				return err
			}

			releases, err := st.LatestReleases(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(releases) == 0 {
				fmt.Fprintln(out, "No releases found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TRACKER\tTAG\tCHANNEL\tPUBLISHED")
			for _, r := range releases {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					r.TrackerName, r.TagName, dashIfEmpty(r.ChannelName),
					r.PublishedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	cmd.Flags().IntVar(&limit, "limit", 5, "number of releases to show")
	return cmd
}
