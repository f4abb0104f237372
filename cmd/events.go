package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tasklane/apiserver/config"
	"github.com/tasklane/apiserver/internal/events"
	"github.com/tasklane/apiserver/internal/logging"
)

var tailChannel string

// eventsCmd groups event bus tools.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the domain event bus",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print events as JSON lines until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if tailChannel != "" {
			cfg.Events.Channel = tailChannel
		}
		log := logging.New(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bus, err := events.Open(ctx, cfg.Events, log)
		if err != nil {
			return err
		}
		defer bus.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		err = bus.Subscribe(ctx, func(_ context.Context, evt events.Event) error {
			return enc.Encode(evt)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)

	eventsTailCmd.Flags().StringVar(&tailChannel, "channel", "", "channel to read (defaults to EVENTS_CHANNEL)")
}
