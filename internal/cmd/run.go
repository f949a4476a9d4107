package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clambin/adax-bridge/internal/adax"
	"github.com/clambin/adax-bridge/internal/bot"
	"github.com/clambin/adax-bridge/internal/collector"
	"github.com/clambin/adax-bridge/internal/health"
	"github.com/clambin/adax-bridge/internal/home"
	"github.com/clambin/adax-bridge/internal/mqtt"
	"github.com/clambin/adax-bridge/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var runCmd = cobra.Command{
	Use:   "run",
	Short: "Run the bridge",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return run(ctx, viper.GetViper(), slog.Default())
	},
}

type task interface {
	Run(context.Context) error
}

func run(ctx context.Context, cfg *viper.Viper, logger *slog.Logger) error {
	logger.Info("adax-bridge starting", "version", RootCmd.Version)
	defer logger.Info("adax-bridge stopped")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := newClient(cfg, registry, logger)
	tasks, err := makeTasks(cfg, client, registry, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		g.Go(func() error { return t.Run(ctx) })
	}
	return g.Wait()
}

// newClient returns an ADAX client. Calls to the ADAX API are recorded in the registry.
func newClient(cfg *viper.Viper, registry prometheus.Registerer, logger *slog.Logger) *adax.Client {
	m := adax.NewRequestMetrics("adax", "bridge", nil)
	registry.MustRegister(m)
	return adax.New(
		cfg.GetString("adax.clientId"),
		cfg.GetString("adax.secret"),
		adax.WithURL(cfg.GetString("adax.url")),
		adax.WithHTTPClient(adax.InstrumentedHTTPClient(http.DefaultTransport, m)),
		adax.WithLogger(logger.With("component", "adax")),
	)
}

func configuration(cfg *viper.Viper) home.Configuration {
	return home.Configuration{
		Tick:               cfg.GetDuration("adax.tick"),
		CacheTTL:           cfg.GetDuration("adax.cacheTTL"),
		MaxPollingInterval: time.Duration(cfg.GetInt("adax.maxPollingInterval")) * time.Second,
	}
}

func makeTasks(cfg *viper.Viper, client home.Client, registry *prometheus.Registry, logger *slog.Logger) ([]task, error) {
	var tasks []task

	// Reconciler
	r := home.New(client, configuration(cfg), logger.With("component", "reconciler"))
	tasks = append(tasks, r)

	// Collector
	coll := &collector.Collector{Source: r, Logger: logger.With("component", "collector")}
	if err := registry.Register(coll); err != nil {
		return nil, fmt.Errorf("collector: %w", err)
	}
	tasks = append(tasks, coll)

	// Health
	h := health.New(r, logger.With("component", "health"))
	tasks = append(tasks, h)

	// REST API, /health & /metrics
	metrics := promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	tasks = append(tasks, server.New(cfg.GetString("api.addr"), r, h, metrics, logger.With("component", "server")))

	// MQTT
	if broker := cfg.GetString("mqtt.broker"); broker != "" {
		tasks = append(tasks, &mqtt.Service{
			Config: mqtt.Config{
				Broker:   broker,
				Username: cfg.GetString("mqtt.username"),
				Password: cfg.GetString("mqtt.password"),
				Prefix:   cfg.GetString("mqtt.prefix"),
			},
			Controller: r,
			Logger:     logger.With("component", "mqtt"),
		})
	}

	// Slack bot
	if token, appToken := cfg.GetString("slack.token"), cfg.GetString("slack.appToken"); token != "" && appToken != "" {
		app := bot.NewSocketModeApp(token, appToken, logger.With("component", "slack"))
		tasks = append(tasks, bot.New(app, r, logger.With("component", "bot")))
	}

	return tasks, nil
}
