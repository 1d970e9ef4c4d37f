package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"advisory-canvas/internal/relay"
	"advisory-canvas/internal/store"
	"advisory-canvas/internal/stream"
)

func newRelayCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the signaling relay",
		Long: `Serve the websocket relay that fans canvas messages out to every peer of a
session. The relay forwards opaque envelopes and never stores shapes; with a
journal path configured it records traffic metadata in SQLite.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config.Relay

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Addr = addr
			}
			if path, _ := cmd.Flags().GetString("journal"); path != "" {
				cfg.JournalPath = path
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			relayCfg := relay.Config{
				Addr: cfg.Addr,
				Hub: stream.HubConfig{
					BufferSize:                cfg.BufferSize,
					SubscriberBufferSize:      cfg.SubscriberBuffer,
					SlowConsumerDropThreshold: stream.DefaultHubConfig().SlowConsumerDropThreshold,
				},
				RateLimit:       cfg.RateLimit,
				RateBurst:       cfg.RateBurst,
				MaxMessageBytes: cfg.MaxMessageBytes,
				WriteTimeout:    cfg.WriteTimeout,
				Logger:          app.Logger,
			}

			if cfg.JournalPath != "" {
				journal, err := store.NewSQLiteJournal(cfg.JournalPath)
				if err != nil {
					return err
				}
				defer journal.Close()

				if cfg.JournalRetention > 0 {
					n, err := journal.Purge(ctx, time.Now().Add(-cfg.JournalRetention))
					if err != nil {
						app.Logger.Warn().Err(err).Msg("Journal purge failed")
					} else if n > 0 {
						app.Logger.Info().Int64("purged", n).Msg("Old journal entries removed")
					}
				}
				relayCfg.Journal = journal
			}

			if !output.IsJSON() {
				output.Info("Relay listening on %s", cfg.Addr)
				output.Dim("Peers connect to ws://%s/sessions/<session>/ws?peer=<id>", cfg.Addr)
			}
			return relay.NewServer(relayCfg).ListenAndServe(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default from config)")
	cmd.Flags().String("journal", "", "SQLite traffic journal path (default from config)")
	return cmd
}
