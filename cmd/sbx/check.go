package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/scheduler"
	"github.com/zulandar/signalbox/internal/secrets"
)

func newCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check <tracker>",
		Short: "Run one manual check for a tracker",
		Long:  "Fetches the tracker's upstream immediately, records any new or republished releases, and dispatches notifications. The deeper manual fetch window is used.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}

func runCheck(cmd *cobra.Command, configPath, name string) error {
	cfg, st, err := openStore(configPath)
	if err != nil {
		return err
	}

	dispatcher, err := notify.NewDispatcher(notify.DispatcherOpts{Store: st})
	if err != nil {
		return err
	}

	cipher := secrets.Passthrough{}
	sched, err := scheduler.New(scheduler.Opts{
		Store:      st,
		Dispatcher: dispatcher,
		Resolve:    secrets.NewResolver(st, cipher),
		Timeout:    time.Duration(cfg.Check.Timeout) * time.Second,
	})
	if err != nil {
		return err
	}

	status, err := sched.CheckNow(cmd.Context(), name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if status.Error != "" {
		return fmt.Errorf("check %s: %s", name, status.Error)
	}
	fmt.Fprintf(out, "Checked %s\n", name)
	if status.LastVersion != "" {
		fmt.Fprintf(out, "  Latest version: %s\n", status.LastVersion)
	} else {
		fmt.Fprintln(out, "  No releases matched any channel")
	}
	return nil
}
