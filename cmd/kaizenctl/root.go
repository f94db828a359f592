package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jlynch25/kaizen_api/internal/client"
)

var errNotLoggedIn = errors.New("not logged in, run `kaizenctl login` first")

type cli struct {
	apiURL    string
	tokenFile string
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".kaizen-token"
	}
	return filepath.Join(dir, "kaizen", "token")
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "kaizenctl",
		Short:         "Command line client for the Kaizen events API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.apiURL, "api", client.BaseURLFromEnv(), "API base URL")
	root.PersistentFlags().StringVar(&c.tokenFile, "token-file", defaultTokenFile(), "where the session token is kept")

	root.AddCommand(
		c.healthCmd(),
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.eventsCmd(),
	)
	return root
}

// session restores the saved login, if any.
func (c *cli) session(cmd *cobra.Command) (*client.Session, error) {
	s := client.NewSession(client.New(c.apiURL), client.FileTokenStore{Path: c.tokenFile})
	if err := s.Restore(cmd.Context()); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := client.New(c.apiURL).Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
