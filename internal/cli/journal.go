package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"advisory-canvas/internal/store"
)

func newJournalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the relay traffic journal",
		Long: `Read the SQLite traffic journal written by 'canvas relay'. Entries hold
message metadata only: type, chart, sender and size.`,
	}
	cmd.PersistentFlags().String("path", "", "journal path (default from config)")

	cmd.AddCommand(newJournalRecentCmd(app))
	cmd.AddCommand(newJournalStatsCmd(app))
	cmd.AddCommand(newJournalSessionsCmd(app))
	cmd.AddCommand(newJournalPurgeCmd(app))
	return cmd
}

func openJournal(cmd *cobra.Command, app *App) (*store.SQLiteJournal, error) {
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		path = app.Config.Relay.JournalPath
	}
	if path == "" {
		return nil, fmt.Errorf("no journal configured: set relay.journal_path or pass --path")
	}
	return store.NewSQLiteJournal(path)
}

func newJournalRecentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent [session]",
		Short: "Show the newest journal entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			journal, err := openJournal(cmd, app)
			if err != nil {
				return err
			}
			defer journal.Close()

			filter := store.JournalFilter{}
			if len(args) == 1 {
				filter.Session = args[0]
			}
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			filter.Type, _ = cmd.Flags().GetString("type")
			filter.Sender, _ = cmd.Flags().GetString("sender")
			if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			entries, err := journal.Recent(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(entries)
			}
			if len(entries) == 0 {
				output.Dim("No journal entries")
				return nil
			}

			table := NewTable(output, "TIME", "SESSION", "TYPE", "CHART", "SENDER", "SIZE")
			for _, e := range entries {
				table.AddRow(
					FormatDateTime(e.At),
					e.Session,
					output.MessageType(e.Type),
					e.Chart,
					TruncateString(e.Sender, 16),
					FormatBytes(int64(e.Size)),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "maximum entries to show")
	cmd.Flags().String("type", "", "only this message type")
	cmd.Flags().String("sender", "", "only this sender")
	cmd.Flags().Duration("since", 0, "only entries newer than this")
	return cmd
}

func newJournalStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <session>",
		Short: "Count journal entries per message type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			journal, err := openJournal(cmd, app)
			if err != nil {
				return err
			}
			defer journal.Close()

			counts, err := journal.Counts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(counts)
			}

			types := make([]string, 0, len(counts))
			total := 0
			for t, n := range counts {
				types = append(types, t)
				total += n
			}
			sort.Strings(types)

			table := NewTable(output, "TYPE", "COUNT")
			for _, t := range types {
				table.AddRow(output.MessageType(t), strconv.Itoa(counts[t]))
			}
			table.AddRow(output.BoldText("total"), strconv.Itoa(total))
			table.Render()
			return nil
		},
	}
}

func newJournalSessionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List journaled sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			journal, err := openJournal(cmd, app)
			if err != nil {
				return err
			}
			defer journal.Close()

			sessions, err := journal.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(sessions)
			}
			for _, s := range sessions {
				output.Println(s)
			}
			return nil
		},
	}
}

func newJournalPurgeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete old journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				olderThan = app.Config.Relay.JournalRetention
			}

			journal, err := openJournal(cmd, app)
			if err != nil {
				return err
			}
			defer journal.Close()

			n, err := journal.Purge(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"purged": n})
			}
			output.Success("Purged %d entries older than %s", n, FormatDuration(olderThan))
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 0, "age cutoff (default relay.journal_retention)")
	return cmd
}
