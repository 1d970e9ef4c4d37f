package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"advisory-canvas/internal/canvas"
	"advisory-canvas/internal/config"
	"advisory-canvas/internal/geometry"
	"advisory-canvas/internal/logging"
	"advisory-canvas/internal/models"
	"advisory-canvas/internal/security"
	"advisory-canvas/internal/transport"
	"advisory-canvas/pkg/utils"
)

// peerResult is the JSON shape of 'canvas peer --json'.
type peerResult struct {
	Session   string          `json:"session"`
	PeerID    string          `json:"peer_id"`
	Connected bool            `json:"connected"`
	Chart     string          `json:"chart"`
	Version   int64           `json:"version"`
	Shapes    []*models.Shape `json:"shapes"`
	Stats     canvas.Stats    `json:"stats"`
}

func newPeerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Join a session as a headless replica",
		Long: `Connect to a relay, join a session and replicate its shapes. The peer
requests a snapshot from the session, waits for it, then prints the shape list.
With --demo it first inserts one shape of every drawing tool; with --watch it
keeps running and logs every change until interrupted.`,
		Example: `  canvas peer --session desk --ticker MSFT --period 1W
  canvas peer --demo
  canvas peer --watch --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			session, _ := cmd.Flags().GetString("session")
			relayURL, _ := cmd.Flags().GetString("relay")
			peerID, _ := cmd.Flags().GetString("peer-id")
			ticker, _ := cmd.Flags().GetString("ticker")
			period, _ := cmd.Flags().GetString("period")
			demo, _ := cmd.Flags().GetBool("demo")
			watch, _ := cmd.Flags().GetBool("watch")
			wait, _ := cmd.Flags().GetDuration("wait")
			futureDays, _ := cmd.Flags().GetInt("future-days")

			if session == "" {
				session = cfg.Peer.Session
			}
			if relayURL == "" {
				relayURL = cfg.Peer.RelayURL
			}
			if peerID == "" {
				peerID = cfg.Peer.PeerID
			}
			chart := cfg.Chart()
			if ticker != "" || period != "" {
				if ticker != "" {
					chart.Ticker = ticker
				}
				if period != "" {
					chart.Period = period
				}
				chart = security.SanitizeChartKey(chart)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tr := transport.NewWebSocketTransport(transport.WebSocketConfig{
				RelayURL:   relayURL,
				Session:    session,
				PeerID:     peerID,
				MaxRetries: cfg.Peer.MaxRetries,
				BaseDelay:  cfg.Peer.BaseDelay,
				MaxDelay:   cfg.Peer.MaxDelay,
				Logger:     app.Logger,
			})
			if err := tr.Connect(ctx); err != nil {
				return err
			}
			defer tr.Close()

			logger := logging.WithSession(logging.WithPeer(app.Logger, tr.PeerID()), session)
			opts := peerOptions(cfg, chart)
			opts.Logger = logger
			if watch {
				opts.OnRender = func(prims []geometry.Primitive) {
					logger.Info().Int("primitives", len(prims)).Msg("Canvas changed")
				}
			}

			ctrl, err := canvas.Mount(tr, opts)
			if err != nil {
				return err
			}
			defer ctrl.Dispose()

			tr.OnReconnect(func() {
				if err := ctrl.Resume(); err != nil {
					logger.Warn().Err(err).Msg("Resume after reconnect failed")
				}
			})

			if err := utils.Sleep(ctx, wait); err != nil {
				if !output.IsJSON() {
					output.Warning("Interrupted before the session snapshot arrived")
				}
				return printPeer(output, session, tr, ctrl)
			}

			if futureDays > 0 {
				if err := ctrl.SetFutureDays(futureDays); err != nil {
					return err
				}
			}
			if demo {
				for _, tool := range models.ShapeTypes {
					if _, err := ctrl.AddShape(tool); err != nil {
						return fmt.Errorf("adding %s: %w", tool, err)
					}
				}
			}

			if watch {
				if !output.IsJSON() {
					output.Info("Watching %s in session %s as %s (Ctrl+C to stop)", ctrl.ActiveChart(), session, tr.PeerID())
				}
				<-ctx.Done()
			}

			return printPeer(output, session, tr, ctrl)
		},
	}

	cmd.Flags().String("session", "", "session room (default from config)")
	cmd.Flags().String("relay", "", "relay URL (default from config)")
	cmd.Flags().String("peer-id", "", "peer ID (default random)")
	cmd.Flags().String("ticker", "", "chart ticker (default from config)")
	cmd.Flags().String("period", "", "chart period (default from config)")
	cmd.Flags().Bool("demo", false, "insert one shape of every drawing tool")
	cmd.Flags().Bool("watch", false, "keep running and log every change")
	cmd.Flags().Duration("wait", time.Second, "time to wait for the session snapshot")
	cmd.Flags().Int("future-days", 0, "announce this many future days to the session")
	return cmd
}

// peerOptions builds controller options from configuration.
func peerOptions(cfg *config.Config, chart models.ChartKey) canvas.Options {
	return canvas.Options{
		Chart:              chart,
		Surface:            canvas.Surface{Width: cfg.Canvas.Width, Height: cfg.Canvas.Height},
		Tool:               models.ShapeType(cfg.Canvas.Tool),
		Style:              cfg.Style(),
		DrawingEnabled:     true,
		HitTolerance:       cfg.Canvas.HitTolerance,
		StrictEpoch:        cfg.Sync.StrictEpoch,
		FollowChartChanges: cfg.Sync.FollowChartChanges,
	}
}

func printPeer(output *Output, session string, tr *transport.WebSocketTransport, ctrl *canvas.Controller) error {
	stats := ctrl.Stats()
	shapes := ctrl.Shapes()

	if output.IsJSON() {
		return output.JSON(peerResult{
			Session:   session,
			PeerID:    tr.PeerID(),
			Connected: tr.IsConnected(),
			Chart:     stats.Chart.String(),
			Version:   stats.Version,
			Shapes:    shapes,
			Stats:     stats,
		})
	}

	output.Box("Peer "+tr.PeerID(), []string{
		fmt.Sprintf("Session:  %s", session),
		fmt.Sprintf("Relay:    %s", output.ConnectionState(tr.IsConnected())),
		fmt.Sprintf("Chart:    %s", stats.Chart),
		fmt.Sprintf("Version:  %d", stats.Version),
		fmt.Sprintf("Traffic:  %d sent, %d applied, %d dropped, %d ignored", stats.Sent, stats.Applied, stats.Dropped, stats.Ignored),
		fmt.Sprintf("Syncs:    %d adopted, %d rejected", stats.SyncsAdopted, stats.SyncsRejected),
	})
	output.Println()

	if len(shapes) == 0 {
		output.Dim("No shapes on %s", stats.Chart)
		return nil
	}

	table := NewTable(output, "ID", "TYPE", "ANCHORS", "STROKE", "TRANSFORM")
	for _, s := range shapes {
		table.AddRow(
			TruncateString(s.ID, 12),
			string(s.Type),
			FormatAnchors(s),
			fmt.Sprintf("%s %.0fpx", s.Style.Stroke, s.Style.StrokeWidth),
			FormatTransform(s.Transform),
		)
	}
	table.Render()
	return nil
}
