package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/KOPFJE/patientor/internal/config"
	"github.com/KOPFJE/patientor/internal/domain/entry"
	"github.com/KOPFJE/patientor/internal/domain/patient"
	"github.com/KOPFJE/patientor/internal/platform/apiclient"
	"github.com/KOPFJE/patientor/internal/platform/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "patientor",
		Short:        "Patient records front end for the patients API",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(patientsCmd())
	root.AddCommand(diagnosesCmd())
	root.AddCommand(entriesCmd())
	return root
}

// app is the wiring shared by the server and the CLI commands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	client   *apiclient.Client
	store    *store.Store
	registry *entry.Registry
	renderer *entry.Renderer
	patients *patient.Service
	entries  *entry.Service
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return logger.Level(cfg.Level())
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newApp(cfg, newLogger(cfg)), nil
}

func newApp(cfg *config.Config, logger zerolog.Logger) *app {
	client := apiclient.New(cfg.APIBaseURL, apiclient.Options{
		Timeout: cfg.APITimeout,
		RPS:     cfg.APIRateLimitRPS,
		Burst:   cfg.APIRateLimitBurst,
	}, logger.With().Str("component", "apiclient").Logger())

	st := store.New()
	reg := entry.DefaultRegistry()
	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		store:    st,
		registry: reg,
		renderer: entry.NewRenderer(reg),
		patients: patient.NewService(client, st, logger.With().Str("component", "patients").Logger()),
		entries:  entry.NewService(client, st, logger.With().Str("component", "entries").Logger()),
	}
}
