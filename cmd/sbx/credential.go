package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/secrets"
	"golang.org/x/term"
)

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Credential management commands",
	}

	cmd.AddCommand(newCredentialAddCmd())
	cmd.AddCommand(newCredentialListCmd())
	cmd.AddCommand(newCredentialRemoveCmd())
	return cmd
}

func newCredentialAddCmd() *cobra.Command {
	var (
		configPath  string
		credType    string
		description string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a credential",
		Long:  "Stores an API token under a name trackers can reference. The token is read from a hidden prompt, or from stdin when it is not a terminal.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCredentialAdd(cmd, configPath, args[0], credType, description)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	cmd.Flags().StringVar(&credType, "type", "github", "credential type (github, gitlab, helm)")
	cmd.Flags().StringVar(&description, "description", "", "credential description")
	return cmd
}

func runCredentialAdd(cmd *cobra.Command, configPath, name, credType, description string) error {
	_, st, err := openStore(configPath)
	if err != nil {
		return err
	}

	token, err := readToken(cmd)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}

	cipher := secrets.Passthrough{}
	stored, err := cipher.Encrypt(token)
	if err != nil {
		return err
	}

	cred := models.Credential{
		Name:        name,
		Type:        credType,
		Token:       stored,
		Description: description,
	}
	if err := st.SaveCredential(&cred); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved credential %s (%s)\n", name, secrets.Mask(token))
	return nil
}

// readToken reads the token without echo when stdin is a terminal, and as a
// single trimmed line otherwise (for piped input).
func readToken(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.OutOrStdout(), "Token: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	var line string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newCredentialListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials",
		Long:  "Lists credentials with masked tokens. Plaintext tokens are never printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(configPath)
			if err != nil {
				return err
			}

			creds, err := st.ListCredentials()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(creds) == 0 {
				fmt.Fprintln(out, "No credentials found.")
				return nil
			}

			cipher := secrets.Passthrough{}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTYPE\tTOKEN\tCREATED")
			for _, c := range creds {
				masked := "********"
				if plain, err := cipher.Decrypt(c.Token); err == nil {
					masked = secrets.Mask(plain)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					c.Name, c.Type, masked, c.CreatedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}

func newCredentialRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a credential",
		Long:  "Deletes a credential. Trackers referencing it fall back to anonymous access.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := openStore(configPath)
			if err != nil {
				return err
			}
			if err := st.DeleteCredential(args[0]); err != nil {
				if st.IsNotFound(err) {
					return fmt.Errorf("credential %q not found", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed credential %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "signalbox.yaml", "path to Signalbox config file")
	return cmd
}
