package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shipdecl/internal/repository/postgres"
)

func newAuditCommand(root *rootOptions) *cobra.Command {
	var (
		sessionID string
		offset    int
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "audit <reference>",
		Short: "Show the stored audit history of one shipment",
		Long: `audit reads the audit entries a session recorded for one shipment reference
from the database sink. It needs db.enabled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.DB.Enabled {
				return fmt.Errorf("audit history needs db.enabled")
			}
			if sessionID == "" {
				return fmt.Errorf("--session is required")
			}
			db, err := postgres.NewDB(&cfg.DB)
			if err != nil {
				return fmt.Errorf("audit sink: %w", err)
			}
			defer db.Close()

			entries, total, err := postgres.NewAuditRepo(db).ListByReference(cmd.Context(), sessionID, args[0], offset, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "TIME\tACTION\tFIELD\tOLD\tNEW\tSOURCE\tNOTES")
			for _, e := range entries {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Field, e.OldValue, e.NewValue, e.Source, e.Notes)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(entries), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id the entries were recorded under")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}
