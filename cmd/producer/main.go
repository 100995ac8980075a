// Command producer drives the voting API with simulated traffic.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Guizzs26/community_voting_system/internal/config"
	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/Guizzs26/community_voting_system/internal/simulation"
	"github.com/Guizzs26/community_voting_system/internal/voteclient"
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
		Use:   "voting-producer",
		Short: "Generate simulated votes against the voting API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format)

			client, err := voteclient.New(cfg.Simulator.APIURL, &http.Client{Timeout: cfg.Simulator.RequestTimeout})
			if err != nil {
				return err
			}
			sim := simulation.New(client, simulation.Options{
				Interval:       cfg.Simulator.Interval,
				Projects:       cfg.Simulator.Projects,
				Users:          cfg.Simulator.Users,
				UpdateEvery:    cfg.Simulator.UpdateEvery,
				RequestTimeout: cfg.Simulator.RequestTimeout,
			}, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.WithField("api_url", cfg.Simulator.APIURL).Info("producer is running, press Ctrl+C to exit")
			err = sim.Run(ctx)
			logger.Info("producer terminated")
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: ./voting.yaml)")
	config.RegisterFlags(cmd.Flags())
	return cmd
}
