package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
)

func newNotifierCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifier",
		Short: "Notifier management commands",
	}

	cmd.AddCommand(newNotifierListCmd())
	cmd.AddCommand(newNotifierTestCmd())
	return cmd
}

func newNotifierListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(configPath)
			if err != nil {
				return err
			}

			notifiers, err := st.ListNotifiers()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(notifiers) == 0 {
				fmt.Fprintln(out, "No notifiers found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tEVENTS\tENABLED\tURL")
			for _, n := range notifiers {
				events, err := models.ParseEvents(n.Events)
				if err != nil {
					events = nil
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
					n.Name, n.Type, strings.Join(events, ","), n.Enabled, truncate(n.URL, 60))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}

func newNotifierTestCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "test <name>",
		Short: "Send a test notification",
		Long:  "Sends a single synthetic payload to the notifier's endpoint. One attempt, no retries.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(configPath)
			if err != nil {
				return err
			}

			notifier, err := st.GetNotifier(args[0])
			if err != nil {
				return err
			}

			dispatcher, err := notify.NewDispatcher(notify.DispatcherOpts{Store: st})
			if err != nil {
				return err
			}
			if err := dispatcher.Test(cmd.Context(), notifier); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Test notification delivered to %s\n", notifier.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}
