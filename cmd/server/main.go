package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"roster-service/internal/app"
	"roster-service/internal/config"
	"roster-service/internal/logger"
)

var configPath string

// newLogger is replaced in tests.
var newLogger = logger.New

var rootCmd = &cobra.Command{
	Use:   "roster-service",
	Short: "Team availability declarations, approvals and daily roster",
	// serve is the default action
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config/config.yaml or ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withApp runs fn against a freshly opened App, then closes the store and
// flushes the logger whatever fn returns.
func withApp(ctx context.Context, fn func(a *app.App, cfg *config.Config) error) error {
	a, cfg, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Store.Close()
	defer a.Log.Sync()
	return fn(a, cfg)
}

func openApp(ctx context.Context) (*app.App, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	log.Info("store opened", zap.String("driver", cfg.Store.Driver))

	a := &app.App{
		Store:  store,
		Log:    log,
		Tokens: app.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Calendar: app.NewGoogleCalendarConfig(
			cfg.Calendar.ClientID,
			cfg.Calendar.ClientSecret,
			cfg.Calendar.RedirectURL,
			cfg.Calendar.CalendarID,
			cfg.Calendar.TokenFile,
		),
	}
	if a.Calendar != nil {
		a.Publisher = a.Calendar.Publisher(log)
	}
	return a, cfg, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (app.Store, error) {
	switch cfg.Driver {
	case "memory":
		return app.NewMemoryStore(), nil
	case "csv":
		return app.NewCSVStore(cfg.Dir)
	case "postgres":
		return app.NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
