package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/movie-catalog/internal/queue"
)

func newConsumeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Append movie change events from RabbitMQ to the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := queue.NewConsumer(a.cfg.Events.AMQPURL, a.cfg.Events.AuditLog, a.log)
			a.log.Info().Str("queue", c.Queue).Str("audit_log", c.LogPath).Msg("consuming movie events")
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
