package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables and seed config entries",
		Long:  "Runs schema migration, then upserts trackers and notifiers declared in the config file. Safe to run multiple times.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	cfg, st, err := openStore(configPath)
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(st.DB()); err != nil {
		return err
	}
	if err := db.SeedTrackers(st.DB(), cfg.Trackers); err != nil {
		return err
	}
	if err := db.SeedNotifiers(st.DB(), cfg.Notifiers); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Migration complete")
	fmt.Fprintf(out, "  Trackers seeded:  %d\n", len(cfg.Trackers))
	fmt.Fprintf(out, "  Notifiers seeded: %d\n", len(cfg.Notifiers))
	return nil
}
