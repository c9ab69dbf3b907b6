package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/sponsor-go/config"
)

func newInitCmd(app *app) *cobra.Command {
	var (
		force   bool
		backend string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file to the data directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.StoreBackend = backend
			}
			if err := config.ValidateConfig(cfg); err != nil {
				return err
			}

			path := config.ConfigPath(cfg.DataDir)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := config.SaveConfig(path, cfg); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&backend, "backend", "", "record store backend: bolt or file")
	return cmd
}
