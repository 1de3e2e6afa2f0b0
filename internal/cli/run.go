package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shipdecl/internal/csvexport"
	"shipdecl/internal/service"
)

type runOptions struct {
	ledgers   []string
	inbound   string
	awbs      string
	invoices  string
	period    string
	outputDir string
	sessionID string
	resume    bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process ledgers and documents and write the declaration workbook",
		Long: `run loads the given ledger workbooks, extracts inbound and outbound shipping
documents, validates everything and writes the declaration workbook together
with an audit trail CSV and an issues CSV.

State is saved after every stage. Use --session with --resume to continue an
interrupted run; stages whose inputs are not given are skipped.`,
		Example: `  declare run --ledger ledger_oct.xlsx --inbound docs/inbound \
    --awb docs/awb --invoices docs/invoices --period October-25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if opts.outputDir == "" {
				opts.outputDir = cfg.Export.OutputDir
			}
			errOut := cmd.ErrOrStderr()
			p, err := buildPipeline(cfg, opts.sessionID, progressPrinter(errOut))
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, p.svc, opts, cmd.OutOrStdout(), errOut)
		},
	}

	cmd.Flags().StringSliceVar(&opts.ledgers, "ledger", nil, "ledger workbook (.xlsx); repeatable")
	cmd.Flags().StringVar(&opts.inbound, "inbound", "", "directory of inbound shipping documents")
	cmd.Flags().StringVar(&opts.awbs, "awb", "", "directory of outbound air waybills")
	cmd.Flags().StringVar(&opts.invoices, "invoices", "", "directory of outbound commercial invoices")
	cmd.Flags().StringVar(&opts.period, "period", time.Now().Format("January-06"), "declaration period, e.g. October-25")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "output directory (default: export.output_dir)")
	cmd.Flags().StringVar(&opts.sessionID, "session", "", "session id (default: new random id)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "restore the saved state of --session before running")
	return cmd
}

func progressPrinter(w io.Writer) func(service.Progress) {
	return func(p service.Progress) {
		_, _ = fmt.Fprintf(w, "[%s] %d/%d %s\n", p.Stage, p.Processed+1, p.Total, p.CurrentItem)
	}
}

func runPipeline(ctx context.Context, svc service.PipelineService, opts *runOptions, out, errOut io.Writer) error {
	if opts.resume {
		if opts.sessionID == "" {
			return fmt.Errorf("--resume needs --session")
		}
		summary, err := svc.RestoreSession()
		if err != nil {
			return fmt.Errorf("restoring session %s: %w", opts.sessionID, err)
		}
		_, _ = fmt.Fprintf(out, "Resumed session %s at stage %s (%d ledger records, %d inbound, %d outbound)\n",
			summary.SessionID, summary.Stage, summary.LedgerRecords, summary.InboundCount, summary.OutboundCount)
	}

	if len(opts.ledgers) > 0 {
		files, errs := service.LoadLedgerPaths(opts.ledgers)
		printErrors(errOut, errs)
		report := svc.LoadLedgerFiles(files)
		printReport(out, report)
		if err := svc.SaveSession(service.StageLedgerLoaded); err != nil {
			_, _ = fmt.Fprintf(errOut, "warning: %v\n", err)
		}
	}

	if opts.inbound != "" {
		docs, errs := service.LoadDocumentDir(opts.inbound)
		printErrors(errOut, errs)
		_, report, err := svc.ProcessInbound(ctx, docs)
		if err != nil {
			return fmt.Errorf("inbound: %w", err)
		}
		printReport(out, report)
		if err := svc.SaveSession(service.StageInbound); err != nil {
			_, _ = fmt.Fprintf(errOut, "warning: %v\n", err)
		}
	}

	if opts.awbs != "" || opts.invoices != "" {
		var awbs, invoices []service.Document
		if opts.awbs != "" {
			docs, errs := service.LoadDocumentDir(opts.awbs)
			printErrors(errOut, errs)
			awbs = docs
		}
		if opts.invoices != "" {
			docs, errs := service.LoadDocumentDir(opts.invoices)
			printErrors(errOut, errs)
			invoices = docs
		}
		_, report, err := svc.ProcessOutbound(ctx, awbs, invoices)
		if err != nil {
			return fmt.Errorf("outbound: %w", err)
		}
		printReport(out, report)
		if err := svc.SaveSession(service.StageOutbound); err != nil {
			_, _ = fmt.Fprintf(errOut, "warning: %v\n", err)
		}
	}

	issues := svc.ValidateAll()
	count := 0
	for _, list := range issues {
		count += len(list)
	}
	_, _ = fmt.Fprintf(out, "Validation: %d issues across %d shipments\n", count, len(issues))
	if err := svc.SaveSession(service.StageValidated); err != nil {
		_, _ = fmt.Fprintf(errOut, "warning: %v\n", err)
	}

	decl, err := svc.GenerateDeclaration(ctx, opts.period)
	if err != nil {
		return fmt.Errorf("generating declaration: %w", err)
	}
	if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	workbook := filepath.Join(opts.outputDir, decl.Filename)
	if err := os.WriteFile(workbook, decl.Data, 0o644); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Declaration written to %s\n", workbook)
	if decl.Archive != nil {
		_, _ = fmt.Fprintf(out, "Archived to %s\n", decl.Archive.Location)
	}
	if decl.ArchiveError != "" {
		_, _ = fmt.Fprintf(errOut, "warning: archive failed: %s\n", decl.ArchiveError)
	}

	result := svc.Result()
	if err := writeCSV(filepath.Join(opts.outputDir, csvexport.BuildFilename("audit_trail")), func(w *csvexport.Writer) error {
		if err := w.WriteAuditHeader(); err != nil {
			return err
		}
		return w.WriteAuditEntries(svc.AuditTrail())
	}); err != nil {
		return fmt.Errorf("writing audit trail: %w", err)
	}
	if err := writeCSV(filepath.Join(opts.outputDir, csvexport.BuildFilename("review_issues")), func(w *csvexport.Writer) error {
		if err := w.WriteIssueHeader(); err != nil {
			return err
		}
		if err := w.WriteInboundIssues(result.Inbound); err != nil {
			return err
		}
		return w.WriteOutboundIssues(result.Outbound)
	}); err != nil {
		return fmt.Errorf("writing issues: %w", err)
	}

	if err := svc.SaveSession(service.StageExported); err != nil {
		_, _ = fmt.Fprintf(errOut, "warning: %v\n", err)
	}
	_, _ = fmt.Fprintf(out, "Done: %d inbound, %d outbound shipments in %s\n",
		len(result.Inbound), len(result.Outbound), result.Elapsed.Round(time.Millisecond))
	return nil
}

func writeCSV(path string, fill func(*csvexport.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := csvexport.WriteBOM(f); err != nil {
		return err
	}
	w := csvexport.NewWriter(f)
	if err := fill(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func printErrors(w io.Writer, errs []error) {
	for _, err := range errs {
		_, _ = fmt.Fprintf(w, "skipped: %v\n", err)
	}
}

func printReport(w io.Writer, r *service.StageReport) {
	_, _ = fmt.Fprintf(w, "%s: %d processed, %d errors, %d warnings\n", r.Stage, r.Processed, len(r.Errors), len(r.Warnings))
	for _, e := range r.Errors {
		_, _ = fmt.Fprintf(w, "  error: %s\n", e)
	}
	for _, m := range r.Warnings {
		_, _ = fmt.Fprintf(w, "  warning: %s\n", strings.TrimSpace(m))
	}
}
