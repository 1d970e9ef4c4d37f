package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"advisory-canvas/internal/config"
	"advisory-canvas/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI. Configuration is loaded
// once flags are parsed so --config can point at another directory.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{Logger: logger}

	rootCmd := &cobra.Command{
		Use:   "canvas",
		Short: "Advisory Canvas - shared chart annotations",
		Long: `Advisory Canvas replicates chart drawings between everyone in a session.

Run 'canvas relay' to start a signaling relay, then 'canvas peer' on each
participant to join a session and replicate its shapes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			app.Config = cfg
			app.Logger = logging.NewLoggerWithConfig(cfg.LogConfig())

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/advisory-canvas)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	rootCmd.AddCommand(newRelayCmd(app))
	rootCmd.AddCommand(newPeerCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Advisory Canvas v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Path})
			} else {
				output.Println(app.Config.Path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Canvas")
	output.Printf("  Chart:           %s\n", cfg.Chart())
	output.Printf("  Tool:            %s\n", cfg.Canvas.Tool)
	output.Printf("  Stroke:          %s %.1fpx\n", cfg.Canvas.StrokeColor, cfg.Canvas.StrokeWidth)
	output.Printf("  Hit Tolerance:   %.1fpx\n", cfg.Canvas.HitTolerance)
	output.Printf("  Future Days:     %d\n", cfg.Canvas.FutureDays)
	output.Println()

	output.Bold("Sync")
	output.Printf("  Strict Epoch:    %v\n", cfg.Sync.StrictEpoch)
	output.Printf("  Follow Charts:   %v\n", cfg.Sync.FollowChartChanges)
	output.Println()

	output.Bold("Relay")
	output.Printf("  Address:         %s\n", cfg.Relay.Addr)
	output.Printf("  Rate Limit:      %.0f/s (burst %d)\n", cfg.Relay.RateLimit, cfg.Relay.RateBurst)
	output.Printf("  Max Frame:       %s\n", FormatBytes(cfg.Relay.MaxMessageBytes))
	journal := cfg.Relay.JournalPath
	if journal == "" {
		journal = "disabled"
	}
	output.Printf("  Journal:         %s\n", journal)
	output.Println()

	output.Bold("Peer")
	output.Printf("  Relay URL:       %s\n", cfg.Peer.RelayURL)
	output.Printf("  Session:         %s\n", cfg.Peer.Session)
	output.Printf("  Reconnect:       %d tries, %s..%s\n", cfg.Peer.MaxRetries, cfg.Peer.BaseDelay, cfg.Peer.MaxDelay)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %v\n", cfg.Logging.File)

	return nil
}
