package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ogulcanaydogan/fare-guardian/internal/config"
	"github.com/ogulcanaydogan/fare-guardian/pkg/monitor"
	"github.com/ogulcanaydogan/fare-guardian/pkg/notify"
	"github.com/ogulcanaydogan/fare-guardian/pkg/providers"
	"github.com/ogulcanaydogan/fare-guardian/pkg/storage"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fg",
	Short: "Fare Guardian - flight price alerts",
	Long: `Fare Guardian watches saved flight searches and notifies you when the
cheapest fare drops to your target price. Run "fg serve" to scan on a schedule,
or "fg check" for a single pass.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.fg/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	store, err := storage.NewSQLite(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

// initRegistry registers the fare sources selected by provider.kind.
func initRegistry(cfg *config.Config, logger *slog.Logger) (*providers.Registry, error) {
	registry := providers.NewRegistry(logger)
	kind := cfg.Provider.Kind

	if kind == "http" || kind == "all" {
		p := providers.NewFlightOffers(providers.FlightOffersConfig{
			BaseURL:           cfg.Provider.BaseURL,
			ClientID:          cfg.Provider.ClientID,
			ClientSecret:      cfg.Provider.ClientSecret,
			MaxResults:        cfg.Provider.MaxResults,
			Timeout:           cfg.Provider.Timeout,
			RequestsPerSecond: cfg.Provider.RequestsPerSecond,
		})
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	if kind == "static" || kind == "all" {
		p, err := providers.NewStaticFromFile(cfg.Provider.FaresFile)
		if err != nil {
			return nil, fmt.Errorf("load fares: %w", err)
		}
		if err := registry.Register(p); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// initNotifiers creates notification channels from config.
func initNotifiers(cfg *config.Config) ([]notify.Notifier, error) {
	var notifiers []notify.Notifier

	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(
			cfg.Notify.Slack.WebhookURL,
			cfg.Notify.Slack.Channel,
		))
	}

	if cfg.Notify.Webhook.Enabled && cfg.Notify.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(
			cfg.Notify.Webhook.URL,
			cfg.Notify.Webhook.Secret,
		))
	}

	if cfg.Notify.Email.Enabled {
		email, err := notify.NewEmailNotifier(notify.EmailConfig{
			Host:       cfg.Notify.Email.Host,
			Port:       cfg.Notify.Email.Port,
			Username:   cfg.Notify.Email.Username,
			Password:   cfg.Notify.Email.Password,
			From:       cfg.Notify.Email.From,
			Recipients: cfg.Notify.Email.Recipients,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, email)
	}

	return notifiers, nil
}

// newGate builds the frequency gate from the configured thresholds.
func newGate(cfg *config.Config) *monitor.FrequencyGate {
	return monitor.NewFrequencyGate(monitor.Thresholds{
		Hourly: cfg.Monitor.Thresholds.Hourly,
		Daily:  cfg.Monitor.Thresholds.Daily,
		Weekly: cfg.Monitor.Thresholds.Weekly,
	})
}

// app is the fully wired monitor.
type app struct {
	logger    *slog.Logger
	store     storage.Storage
	registry  *providers.Registry
	scheduler *monitor.Scheduler
}

// newApp wires storage, providers, notifiers and the scan pipeline.
func newApp(cfg *config.Config) (*app, error) {
	logger := newLogger(cfg)

	registry, err := initRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	notifiers, err := initNotifiers(cfg)
	if err != nil {
		return nil, err
	}
	dispatcher := notify.NewDispatcher(logger, notifiers...)
	if len(notifiers) == 0 {
		logger.Warn("no notification channels enabled; triggered alerts will only be logged")
	} else {
		logger.Debug("notification channels enabled", "channels", dispatcher.Names())
	}

	store, err := initStorage(cfg)
	if err != nil {
		return nil, err
	}

	evaluator := monitor.NewEvaluator(store, registry, dispatcher, monitor.SystemClock, cfg.Monitor.HistoryCapacity, logger)
	runner := monitor.NewScanRunner(store, newGate(cfg), evaluator, monitor.RunnerOptions{
		Pacing: cfg.Monitor.Pacing,
		Logger: logger,
	})

	return &app{
		logger:    logger,
		store:     store,
		registry:  registry,
		scheduler: monitor.NewScheduler(runner, cfg.Monitor.RunOnStart, logger),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
