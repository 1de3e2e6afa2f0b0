package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shipdecl/internal/session"
)

func newSessionsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List or clean up saved pipeline sessions",
	}
	cmd.AddCommand(newSessionsListCommand(root), newSessionsCleanupCommand(root))
	return cmd
}

func newSessionsListCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			summaries, err := session.ListSessions(cfg.Session.Dir)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "SESSION\tSAVED\tSTAGE\tLEDGER\tINBOUND\tOUTBOUND\tRAW")
			for _, s := range summaries {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					s.SessionID, s.Timestamp.Format("2006-01-02 15:04"), s.Stage,
					s.LedgerRecords, s.InboundCount, s.OutboundCount, s.RawResponses)
			}
			return tw.Flush()
		},
	}
}

func newSessionsCleanupCommand(root *rootOptions) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete sessions older than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-age") {
				maxAge = cfg.Session.MaxAge
			}
			n, err := session.CleanupOlderThan(cfg.Session.Dir, maxAge)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session file(s) older than %s\n", n, maxAge)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "maximum age to keep (default: session.max_age)")
	return cmd
}
