package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"narrate/internal/config"
)

func newConfigCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the narrate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCommand(opts))
	cmd.AddCommand(newConfigShowCommand(opts))
	return cmd
}

func newConfigInitCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.config
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample config to %s\n", path)
			return nil
		},
	}
}

func newConfigShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(opts.config)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "config file: %s\n", path)
			} else {
				fmt.Fprintf(out, "config file: %s (not found, using defaults)\n", path)
			}
			fmt.Fprintf(out, "staging dir: %s\n", cfg.Paths.StagingDir)
			fmt.Fprintf(out, "output dir:  %s\n", cfg.Paths.OutputDir)
			fmt.Fprintf(out, "log dir:     %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "api bind:    %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "voice:       %s\n", cfg.TTS.Voice)
			fmt.Fprintf(out, "duck level:  %.2f\n", cfg.Audio.DuckLevel)
			fmt.Fprintf(out, "max speed:   %.2fx\n", cfg.Audio.MaxSpeedFactor)
			return nil
		},
	}
}
