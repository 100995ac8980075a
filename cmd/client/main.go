// Command client prints the live tally of one project.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/Guizzs26/community_voting_system/internal/model"
	"github.com/coder/websocket"
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
	var (
		serverURL string
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "voting-client <project-title>",
		Short: "Watch live vote tallies for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return watch(ctx, serverURL, args[0], logging.New(logLevel, "text"))
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&serverURL, "server", "ws://localhost:8081", "consumer WebSocket base URL")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}

func watch(ctx context.Context, serverURL, project string, logger *logrus.Logger) error {
	endpoint := strings.TrimRight(serverURL, "/") + "/ws/votes/" + url.PathEscape(project)

	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "client exit")

	logger.WithField("project", project).Info("listening for updates")
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("connection closed")
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		var tally model.Tally
		if err := json.Unmarshal(msg, &tally); err != nil {
			logger.WithField("raw", string(msg)).Warn("unexpected message")
			continue
		}
		logger.WithFields(logrus.Fields{
			"project": tally.ProjectTitle,
			"counts":  tally.Counts,
		}).Info("updated score")
	}
}
