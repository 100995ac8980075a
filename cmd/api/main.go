// Command api serves the /vote resource and the server-rendered voting page.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Guizzs26/community_voting_system/internal/api"
	"github.com/Guizzs26/community_voting_system/internal/config"
	"github.com/Guizzs26/community_voting_system/internal/devserver"
	"github.com/Guizzs26/community_voting_system/internal/event"
	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/Guizzs26/community_voting_system/internal/metrics"
	"github.com/Guizzs26/community_voting_system/internal/page"
	"github.com/Guizzs26/community_voting_system/internal/server"
	"github.com/Guizzs26/community_voting_system/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "voting-api",
		Short: "Serve the community voting API and voting page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logging.New(cfg.Log.Level, cfg.Log.Format))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./voting.yaml)")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	votes, err := store.NewSQLiteStore(ctx, cfg.Database.Path)
	if err != nil {
		return err
	}
	defer votes.Close()

	var publisher event.VotePublisher = event.NopPublisher{}
	if cfg.Kafka.Enabled {
		kp, err := event.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		defer kp.Close()
		publisher = kp
		logger.WithField("topic", cfg.Kafka.Topic).Info("publishing vote events to kafka")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	apiHandler := api.NewHandler(votes, publisher, metrics.NewAPIMetrics(reg, "voting"),
		cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)

	votingPage, err := page.NewVotingPage(cfg.HTTP.Origin, nil, logger, metrics.NewLoaderMetrics(reg, "voting"))
	if err != nil {
		return err
	}

	var proxy http.Handler
	if cfg.Dev.Enabled && cfg.Dev.ViteURL != "" {
		p, err := devserver.NewProxy(cfg.Dev.ViteURL, logger)
		if err != nil {
			return err
		}
		proxy = p
	}

	router := server.NewRouter(server.RouterOptions{
		Logger:         logger,
		Gatherer:       reg,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		DevMode:        cfg.Dev.Enabled,
		AllowedHosts:   cfg.Dev.AllowedHosts,
		DevProxy:       proxy,
	}, apiHandler.Routes, votingPage.Routes)

	return server.New(cfg.HTTP.Addr, router, cfg.HTTP.ShutdownTimeout, logger).Serve(ctx)
}
