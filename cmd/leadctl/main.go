// Command leadctl drives the lead tracking API from a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phbpx/leadtrack/client"
	"github.com/phbpx/leadtrack/geo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	log, err := newLog()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(log).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Sync()
		os.Exit(1)
	}
}

func newLog() (*zap.SugaredLogger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	config.OutputPaths = []string{"stderr"}
	config.DisableStacktrace = true

	log, err := config.Build()
	if err != nil {
		return nil, err
	}
	return log.Sugar(), nil
}

// app is shared by every subcommand once the root flags are parsed.
type app struct {
	cfg    *Config
	client *client.Client
	log    *zap.SugaredLogger
	out    io.Writer
}

// geocoder is built on demand so commands that never geocode do not need an
// API key.
func (a *app) geocoder() (geo.Geocoder, error) {
	if a.cfg.MapsAPIKey == "" {
		return nil, fmt.Errorf("mapsAPIKey is not set in the config file")
	}
	return geo.NewGoogleGeocoder(a.cfg.MapsAPIKey)
}

func rootCmd(log *zap.SugaredLogger) *cobra.Command {
	var (
		configPath string
		baseURL    string
		timeout    time.Duration
	)
	a := &app{log: log}

	cmd := &cobra.Command{
		Use:           "leadctl",
		Short:         "Manage real-estate leads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			explicit := cmd.Flags().Changed("config")
			if !explicit {
				configPath = defaultConfigPath()
			}

			cfg, err := loadConfig(configPath, explicit)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			if timeout > 0 {
				cfg.Timeout = Duration(timeout)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			c, err := client.New(cfg.BaseURL, client.WithTimeout(time.Duration(cfg.Timeout)))
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.client = c
			a.out = cmd.OutOrStdout()
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML, default ~/.leadctl.yaml)")
	cmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL, overrides the config file")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout, overrides the config file")

	cmd.AddCommand(
		leadsCmd(a),
		uploadCmd(a),
		statsCmd(a),
		autofillCmd(a),
	)
	return cmd
}
