package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/continuity/internal/config"
	"github.com/cleared-dev/continuity/internal/continuity"
	"github.com/cleared-dev/continuity/internal/gitops"
	"github.com/cleared-dev/continuity/internal/importer"
	"github.com/cleared-dev/continuity/internal/ledger"
	"github.com/cleared-dev/continuity/internal/runlog"
)

type reconcileOptions struct {
	*globalOptions
	format     string
	ledgerPath string
	logDir     string
	jsonOut    bool
	commit     bool
}

func newReconcileCommand(g *globalOptions) *cobra.Command {
	opts := &reconcileOptions{globalOptions: g}

	cmd := &cobra.Command{
		Use:   "reconcile <file|dir>...",
		Short: "Check, chain and de-duplicate a batch of statements",
		Long: "Loads every statement, checks each one's balances and rows, orders them into a " +
			"chain, resolves overlapping periods and writes the combined ledger.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.format, "format", "", "statement format (overrides input.format)")
	flags.StringVar(&opts.ledgerPath, "ledger", "", "ledger CSV path (overrides output.ledger_path)")
	flags.StringVar(&opts.logDir, "log-dir", "", "run log directory (overrides output.run_log_dir)")
	flags.BoolVar(&opts.jsonOut, "json", false, "print the report as JSON")
	flags.BoolVar(&opts.commit, "commit", false, "commit the ledger and run log to git")

	return cmd
}

func runReconcile(cmd *cobra.Command, opts *reconcileOptions, paths []string) error {
	cfg, log, err := opts.load(cmd)
	if err != nil {
		return err
	}
	if opts.format != "" {
		cfg.Input.Format = opts.format
	}
	if opts.ledgerPath != "" {
		cfg.Output.LedgerPath = opts.ledgerPath
	}
	if opts.logDir != "" {
		cfg.Output.RunLogDir = opts.logDir
	}

	stmts, err := importer.LoadFiles(importer.DefaultRegistry(), cfg.Input.Format, paths)
	if err != nil {
		return err
	}
	if len(stmts) == 0 {
		return fmt.Errorf("no %s statements found in %v", cfg.Input.Format, paths)
	}

	runID := runlog.NewRunID()
	log = log.WithField("run_id", runID)
	log.WithField("statements", len(stmts)).Debug("statements loaded")

	rep, runErr := continuity.New(continuity.WithLogger(log)).Run(stmts)
	var dupErr *continuity.DuplicateStatementsError
	if runErr != nil && !errors.As(runErr, &dupErr) {
		return runErr
	}

	if cfg.Output.RunLogDir != "" {
		if err := runlog.Append(cfg.Output.RunLogDir, runlog.FromReport(runID, time.Now().UTC(), rep)); err != nil {
			log.WithError(err).Warn("failed to write run log")
		}
	}

	out := cmd.OutOrStdout()
	if dupErr != nil {
		if err := printReport(out, opts, rep); err != nil {
			return err
		}
		if !opts.jsonOut {
			printDuplicates(out, newPalette(opts.colorEnabled(out)), dupErr)
		}
		return dupErr
	}

	applied, removed := ledger.Apply(stmts, rep.RemovalPlan)
	entries := ledger.Combine(applied, rep.Order)
	if cfg.Output.LedgerPath != "" {
		if err := ledger.WriteFile(cfg.Output.LedgerPath, entries); err != nil {
			return err
		}
	}

	sum := summary{
		runID:      runID,
		statements: len(stmts),
		removed:    removed,
		rows:       len(entries),
		ledgerPath: cfg.Output.LedgerPath,
	}
	if opts.commit || cfg.Git.AutoCommit {
		sum.commit, err = commitOutputs(opts.configPath, cfg, sum)
		if err != nil {
			return err
		}
	}

	if err := printReport(out, opts, rep); err != nil {
		return err
	}
	if !opts.jsonOut {
		printSummary(out, sum)
	}
	return nil
}

// commitOutputs commits the ledger and run log to the repository holding the config
// file.
func commitOutputs(configPath string, cfg *config.Config, s summary) (string, error) {
	root, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if !gitops.IsRepo(root) {
		return "", fmt.Errorf("%s is not a git repository (run init --git)", root)
	}

	var paths []string
	for _, p := range []string{cfg.Output.LedgerPath, cfg.Output.RunLogDir} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("resolving path: %w", err)
		}
		paths = append(paths, abs)
	}
	if len(paths) == 0 {
		return "", errors.New("nothing to commit: no ledger path or run log dir configured")
	}

	msg := fmt.Sprintf("reconcile: %d statements, %d duplicate rows removed\n\nrun %s", s.statements, s.removed, s.runID)
	author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
	return gitops.Commit(root, msg, author, paths...)
}

func printReport(w io.Writer, opts *reconcileOptions, rep *continuity.Report) error {
	if opts.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return nil
	}
	printText(w, newPalette(opts.colorEnabled(w)), rep)
	return nil
}
