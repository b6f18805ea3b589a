package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"narrate/internal/config"
)

type globalOptions struct {
	api    string
	config string
}

// baseURL resolves the daemon API address: the --api flag wins, otherwise
// the configured bind address is used.
func (g *globalOptions) baseURL() (string, error) {
	if g.api != "" {
		if strings.HasPrefix(g.api, "http://") || strings.HasPrefix(g.api, "https://") {
			return strings.TrimSuffix(g.api, "/"), nil
		}
		return "http://" + g.api, nil
	}
	cfg, _, _, err := config.Load(g.config)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return "http://" + cfg.Paths.APIBind, nil
}

func (g *globalOptions) client() (*apiClient, error) {
	base, err := g.baseURL()
	if err != nil {
		return nil, err
	}
	return newAPIClient(base), nil
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "narrate",
		Short:         "Narrate CLI for the narration daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.api, "api", "", "Daemon API address (host:port or URL)")
	rootCmd.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newSubmitCommand(opts))
	rootCmd.AddCommand(newStatusCommand(opts))
	rootCmd.AddCommand(newDownloadCommand(opts))
	rootCmd.AddCommand(newJobsCommand(opts))
	rootCmd.AddCommand(newRetryCommand(opts))
	rootCmd.AddCommand(newClearCommand(opts))
	rootCmd.AddCommand(newHealthCommand(opts))
	rootCmd.AddCommand(newConfigCommand(opts))

	return rootCmd
}
