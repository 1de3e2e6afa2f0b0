// Package cli implements the declare command line.
package cli

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"shipdecl/internal/config"
)

type rootOptions struct {
	cfgFile string
	verbose bool
}

// NewRootCommand builds the declare command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "declare",
		Short: "Build monthly marine insurance declarations from shipping documents",
		Long: `declare reads ledger exports and shipping documents, extracts shipment data
with a vision model, reconciles it against the ledger and writes the monthly
insurance declaration workbook.

Settings come from SHIPDECL_* environment variables or a YAML file given
with --config.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !opts.verbose {
				log.SetOutput(io.Discard)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file (default: $SHIPDECL_CONFIG_FILE)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline progress to stderr")

	root.AddCommand(
		newRunCommand(opts),
		newClassifyCommand(opts),
		newSessionsCommand(opts),
		newAuditCommand(opts),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.cfgFile != "" {
		cfg, err = config.LoadFile(o.cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
