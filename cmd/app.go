package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/sponsor-go/config"
	"github.com/bitfsorg/sponsor-go/sponsor"
)

// app carries the root flags shared by every subcommand.
type app struct {
	dataDir    string
	network    string
	gatewayURL string
	jsonOut    bool

	serviceOpts []sponsor.Option
}

func newApp(opts ...sponsor.Option) *app {
	return &app{serviceOpts: opts}
}

// loadConfig reads config.toml from the data directory, falling back to
// defaults plus SPONSOR_* variables when the file does not exist yet.
func (a *app) loadConfig() (config.Config, error) {
	dir := a.dataDir
	if dir == "" {
		dir = config.DefaultDataDir()
	}

	cfg, err := config.LoadConfig(config.ConfigPath(dir))
	if errors.Is(err, config.ErrConfigNotFound) {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return config.Config{}, err
	}

	if a.dataDir != "" && cfg.DataDir != a.dataDir {
		if cfg.WorkDir == config.DefaultConfig().WorkDir {
			cfg.WorkDir = filepath.Join(a.dataDir, "tmp")
		}
		cfg.DataDir = a.dataDir
	}
	if a.network != "" {
		cfg.Network = a.network
	}
	if a.gatewayURL != "" {
		cfg.GatewayURL = a.gatewayURL
	}
	if err := config.ApplyLogLevel(cfg.LogLevel); err != nil {
		return config.Config{}, err
	}
	return *cfg, nil
}

// withService opens the service for the duration of fn.
func (a *app) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *sponsor.Service) error) (err error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	svc, err := sponsor.Open(cfg, a.serviceOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(cmd.Context(), svc)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
