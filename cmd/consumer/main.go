// Command consumer applies vote events to the Redis tallies and streams
// them to WebSocket subscribers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Guizzs26/community_voting_system/internal/config"
	"github.com/Guizzs26/community_voting_system/internal/event"
	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/Guizzs26/community_voting_system/internal/metrics"
	"github.com/Guizzs26/community_voting_system/internal/processing"
	"github.com/Guizzs26/community_voting_system/internal/pubsub"
	"github.com/Guizzs26/community_voting_system/internal/server"
	"github.com/Guizzs26/community_voting_system/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
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
		Use:   "voting-consumer",
		Short: "Consume vote events into live tallies",
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
	logger.WithFields(logrus.Fields{
		"topic":    cfg.Kafka.Topic,
		"group_id": cfg.Kafka.GroupID,
	}).Info("starting vote consumer")

	consumer, err := event.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, logger)
	if err != nil {
		return fmt.Errorf("error creating kafka consumer: %w", err)
	}
	defer consumer.Close()

	tallies, err := store.NewRedisStore(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer tallies.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := pubsub.NewHub(logger)
	processor := processing.NewVoteProcessor(consumer, tallies,
		metrics.NewProcessorMetrics(reg, "voting", "processor"), hub, logger, cfg.Consumer.ReportInterval)

	router := server.NewRouter(server.RouterOptions{
		Logger:         logger,
		Gatherer:       reg,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, func(r chi.Router) {
		r.Get("/ws/votes/{project}", hub.ServeWS)
	})
	srv := server.New(cfg.Consumer.Addr, router, cfg.HTTP.ShutdownTimeout, logger)

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		hub.Run(egctx)
		return nil
	})
	eg.Go(func() error {
		return processor.Run(egctx)
	})
	eg.Go(func() error {
		return srv.Serve(egctx)
	})

	err = eg.Wait()
	logger.Info("consumer terminated")
	return err
}
