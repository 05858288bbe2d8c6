/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/mindsight/journal/internal/mq"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect journal domain events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the event topic and log every event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		if cfg.MQ.Backend == "" {
			return errors.New("MQ_BACKEND is not set")
		}

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		defer broker.Close()

		logger.Info().Str("backend", cfg.MQ.Backend).Str("topic", cfg.MQ.Topic).Msg("tailing events")
		err = broker.Subscribe(cmd.Context(), cfg.MQ.Topic, func(ctx context.Context, msg mq.Message) error {
			event, err := mq.DecodeEvent(msg)
			if err != nil {
				logger.Warn().Err(err).Str("message_id", msg.ID).Msg("skipping undecodable event")
				return nil
			}
			logger.Info().
				Str("event_id", event.ID).
				Str("type", string(event.Type)).
				Int("user_id", event.UserID).
				Int("entry_id", event.EntryID).
				Time("occurred_at", event.OccurredAt).
				Msg("event")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
