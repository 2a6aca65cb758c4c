package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/models"
)

func newTrackerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Tracker management commands",
	}

	cmd.AddCommand(newTrackerListCmd())
	cmd.AddCommand(newTrackerShowCmd())
	cmd.AddCommand(newTrackerAddCmd())
	cmd.AddCommand(newTrackerEnableCmd())
	cmd.AddCommand(newTrackerDisableCmd())
	cmd.AddCommand(newTrackerRemoveCmd())
	return cmd
}

func newTrackerListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trackers",
		Long:  "Lists all trackers with their last check result. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrackerList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}

func runTrackerList(cmd *cobra.Command, configPath string) error {
	_, st, err := openStore(configPath)
	if err != nil {
		return err
	}

	trackers, err := st.ListTrackers()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(trackers) == 0 {
		fmt.Fprintln(out, "No trackers found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tSOURCE\tENABLED\tLAST VERSION\tLAST CHECK\tERROR")
	for _, t := range trackers {
		version, checked, checkErr := "-", "-", "-"
		if status, err := st.GetStatus(t.Name); err == nil {
			if status.LastVersion != "" {
				version = status.LastVersion
			}
			if status.LastCheck != nil {
				checked = status.LastCheck.Format("2006-01-02 15:04")
			}
			if status.Error != "" {
				checkErr = truncate(status.Error, 40)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			t.Name, t.Type, trackerSource(t), t.Enabled, version, checked, checkErr)
	}
	w.Flush()
	return nil
}

// trackerSource renders the upstream coordinate for display.
func trackerSource(t models.Tracker) string {
	switch t.Type {
	case "gitlab":
		return t.Project
	case "helm":
		return t.Repo + "/" + t.Chart
	default:
		return t.Repo
	}
}

func newTrackerShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show tracker details",
		Long:  "Displays full details of a tracker including its channels and last check status.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrackerShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}

func runTrackerShow(cmd *cobra.Command, configPath, name string) error {
	_, st, err := openStore(configPath)
	if err != nil {
		return err
	}

	t, err := st.GetTracker(name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:        %s\n", t.Name)
	fmt.Fprintf(out, "Type:        %s\n", t.Type)
	fmt.Fprintf(out, "Source:      %s\n", trackerSource(t))
	if t.Instance != "" {
		fmt.Fprintf(out, "Instance:    %s\n", t.Instance)
	}
	fmt.Fprintf(out, "Enabled:     %t\n", t.Enabled)
	if t.Schedule != "" {
		fmt.Fprintf(out, "Schedule:    %s\n", t.Schedule)
	} else {
		fmt.Fprintf(out, "Interval:    %dm\n", t.Interval)
	}
	if t.CredentialName != "" {
		fmt.Fprintf(out, "Credential:  %s\n", t.CredentialName)
	}
	if t.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", t.Description)
	}

	channels, err := models.ParseChannels(t.Channels)
	if err != nil {
		return err
	}
	if len(channels) > 0 {
		fmt.Fprintln(out, "\nChannels:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tTYPE\tINCLUDE\tEXCLUDE\tENABLED")
		for _, ch := range channels {
			chType := ch.Type
			if chType == "" {
				chType = "any"
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%t\n",
				ch.Name, chType, dashIfEmpty(ch.IncludePattern), dashIfEmpty(ch.ExcludePattern), ch.Enabled)
		}
		w.Flush()
	}

	if status, err := st.GetStatus(name); err == nil {
		fmt.Fprintln(out, "\nLast check:")
		if status.LastCheck != nil {
			fmt.Fprintf(out, "  Checked:  %s\n", status.LastCheck.Format("2006-01-02 15:04:05"))
		}
		if status.LastVersion != "" {
			fmt.Fprintf(out, "  Version:  %s\n", status.LastVersion)
		}
		if status.Error != "" {
			fmt.Fprintf(out, "  Error:    %s\n", status.Error)
		}
	}
	return nil
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newTrackerAddCmd() *cobra.Command {
	var (
		configPath  string
		trackerType string
		repo        string
		instance    string
		project     string
		chart       string
		credential  string
		interval    int
		schedule    string
		description string
		channels    []string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a tracker",
		Long: `Adds a tracker to the store. Channels are declared as name=pattern pairs,
where the pattern is a regular expression matched against tag names; use
"name=" for a catch-all channel. A channel named "prerelease" matches
prerelease versions only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrackerAdd(cmd, configPath, trackerAddOpts{
				Name:        args[0],
				Type:        trackerType,
				Repo:        repo,
				Instance:    instance,
				Project:     project,
				Chart:       chart,
				Credential:  credential,
				Interval:    interval,
				Schedule:    schedule,
				Description: description,
				Channels:    channels,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	cmd.Flags().StringVar(&trackerType, "type", "github", "tracker type (github, gitlab, helm)")
	cmd.Flags().StringVar(&repo, "repo", "", "repository (github: owner/name, helm: index URL)")
	cmd.Flags().StringVar(&instance, "instance", "", "GitLab instance URL (default https://gitlab.com)")
	cmd.Flags().StringVar(&project, "project", "", "GitLab project path (group/project)")
	cmd.Flags().StringVar(&chart, "chart", "", "Helm chart name within the index")
	cmd.Flags().StringVar(&credential, "credential", "", "credential name for authenticated checks")
	cmd.Flags().IntVar(&interval, "interval", 0, "minutes between checks (default from config)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule (overrides interval)")
	cmd.Flags().StringVar(&description, "description", "", "tracker description")
	cmd.Flags().StringSliceVar(&channels, "channel", []string{"stable="}, "channel as name=pattern (repeatable)")
	return cmd
}

type trackerAddOpts struct {
	Name        string
	Type        string
	Repo        string
	Instance    string
	Project     string
	Chart       string
	Credential  string
	Interval    int
	Schedule    string
	Description string
	Channels    []string
}

func runTrackerAdd(cmd *cobra.Command, configPath string, opts trackerAddOpts) error {
	cfg, st, err := openStore(configPath)
	if err != nil {
		return err
	}

	channels := make([]models.Channel, 0, len(opts.Channels))
	for _, spec := range opts.Channels {
		name, pattern, _ := strings.Cut(spec, "=")
		if name == "" {
			return fmt.Errorf("invalid channel %q: want name=pattern", spec)
		}
		ch := models.Channel{Name: name, IncludePattern: pattern, Enabled: true}
		if name == "prerelease" {
			ch.Type = "prerelease"
		}
		channels = append(channels, ch)
	}
	raw, err := models.MarshalChannels(channels)
	if err != nil {
		return err
	}

	interval := opts.Interval
	if interval == 0 {
		interval = cfg.Check.Interval
	}

	tracker := models.Tracker{
		Name:            opts.Name,
		Type:            opts.Type,
		Repo:            opts.Repo,
		Instance:        opts.Instance,
		Project:         opts.Project,
		Chart:           opts.Chart,
		CredentialName:  opts.Credential,
		Channels:        raw,
		Interval:        interval,
		Schedule:        opts.Schedule,
		RepublishOnBody: true,
		Enabled:         true,
		Description:     opts.Description,
	}
	if err := st.SaveTracker(&tracker); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added tracker %s (%s)\n", tracker.Name, trackerSource(tracker))
	return nil
}

func newTrackerEnableCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable a tracker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrackerSetEnabled(cmd, configPath, args[0], true)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}

func newTrackerDisableCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable a tracker",
		Long:  "Disables a tracker. It keeps its releases and history but is no longer scheduled.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrackerSetEnabled(cmd, configPath, args[0], false)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}

func runTrackerSetEnabled(cmd *cobra.Command, configPath, name string, enabled bool) error {
	_, st, err := openStore(configPath)
	if err != nil {
		return err
	}

	tracker, err := st.GetTracker(name)
	if err != nil {
		return err
	}
	tracker.Enabled = enabled
	if err := st.SaveTracker(&tracker); err != nil {
		return err
	}

	state := "Disabled"
	if enabled {
		state = "Enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s tracker %s\n", state, name)
	return nil
}

func newTrackerRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a tracker",
		Long:  "Deletes a tracker along with its status, releases, and history.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(configPath)
			if err != nil {
				return err
			}
			if err := st.DeleteTracker(args[0]); err != nil {
				if st.IsNotFound(err) {
					return fmt.Errorf("tracker %q not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed tracker %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}
