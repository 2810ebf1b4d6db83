/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cambosugarscan/apiserver/config"
	"github.com/cambosugarscan/apiserver/internal/events"
	"github.com/spf13/cobra"
)

// eventsCmd groups domain event commands.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log every event published on the configured channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		publisher, err := events.FromConfig(ctx, cfg.Events)
		if err != nil {
			return err
		}
		defer publisher.Close()
		if !publisher.Enabled() {
			return fmt.Errorf("EVENTS_BACKEND is not set")
		}

		log.Info(ctx, "tailing events", "backend", cfg.Events.Backend, "channel", cfg.Events.Channel)
		err = publisher.Subscribe(ctx, func(ctx context.Context, ev events.Event) error {
			log.Info(ctx, "event",
				"type", ev.Type,
				"entity_id", ev.EntityID,
				"occurred_at", ev.OccurredAt,
				"data", string(ev.Data),
			)
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
