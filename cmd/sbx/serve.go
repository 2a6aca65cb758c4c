package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/api"
	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/scheduler"
	"github.com/zulandar/signalbox/internal/secrets"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and API server",
		Long:  "Migrates the database, seeds trackers and notifiers from the config file, starts the per-tracker check loops, and serves the HTTP API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, listen)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath, listen string) error {
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

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	addr := listen
	if addr == "" {
		addr = cfg.Listen
	}

	if err := api.Start(ctx, api.StartOpts{
		Store:  st,
		Engine: sched,
		Tester: dispatcher,
		Cipher: cipher,
		Listen: addr,
		Out:    cmd.OutOrStdout(),
	}); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Signalbox stopped")
	return nil
}
