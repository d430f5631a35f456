package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dispute-assistant/internal/classification"
	"github.com/Veraticus/dispute-assistant/internal/cli"
	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/dataset"
	"github.com/Veraticus/dispute-assistant/internal/dedup"
	"github.com/Veraticus/dispute-assistant/internal/engine"
	"github.com/Veraticus/dispute-assistant/internal/llm"
	"github.com/Veraticus/dispute-assistant/internal/resolution"
	"github.com/Veraticus/dispute-assistant/internal/storage"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify and resolve every dispute in the input files",
		Long: `Reads the disputes and transactions CSV files, classifies each dispute with the
duplicate matcher, the rule set and (for anything the rules cannot decide) the
language model, suggests a resolution, and writes classified_disputes.csv and
resolutions.csv. Each run is also recorded in the run history database.`,
		RunE: runPipeline,
	}

	cmd.Flags().String("disputes", "", "disputes CSV (default: data/disputes.csv)")
	cmd.Flags().String("transactions", "", "transactions CSV (default: data/transactions.csv)")
	cmd.Flags().String("out", "", "output directory (default: output)")
	cmd.Flags().Int("workers", 0, "disputes processed in parallel (default: 1)")
	cmd.Flags().Bool("no-llm", false, "never call the language model")
	cmd.Flags().Bool("no-store", false, "do not record the run in the history database")

	return cmd
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	bindFlags(cmd, map[string]string{
		"disputes":     "data.disputes",
		"transactions": "data.transactions",
		"out":          "output.dir",
		"workers":      "pipeline.workers",
	})
	noLLM, _ := cmd.Flags().GetBool("no-llm")
	noStore, _ := cmd.Flags().GetBool("no-store")

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	disputes, rowErrs, err := dataset.LoadDisputes(settings.DisputesPath)
	if err != nil {
		return common.NewUserError("Failed to load disputes", err)
	}
	logRowErrors("disputes", rowErrs)

	if _, statErr := os.Stat(settings.TransactionsPath); errors.Is(statErr, os.ErrNotExist) && !cmd.Flags().Changed("transactions") {
		slog.Warn("Transactions file not found; duplicate and failed-transaction rules will not fire",
			"path", settings.TransactionsPath)
		settings.TransactionsPath = ""
	}

	txns, rowErrs, err := dataset.LoadTransactions(settings.TransactionsPath)
	if err != nil {
		return common.NewUserError("Failed to load transactions", err)
	}
	logRowErrors("transactions", rowErrs)

	rules, err := classification.NewRuleClassifier(settings.RulesOrder, nil)
	if err != nil {
		return common.NewUserError("Invalid rules.order", err)
	}

	completer, closeModel, err := newCompleter(settings, noLLM)
	if err != nil {
		return err
	}
	defer closeModel()

	pipeline, err := engine.New(engine.Deps{
		Matcher:  dedup.NewMatcher(settings.DedupConfig()),
		Rules:    rules,
		Model:    llm.NewClassifier(completer, slog.Default()),
		Resolver: resolution.NewEngine(settings.ResolutionConfig()),
		Logger:   slog.Default(),
		Workers:  settings.Workers,
	})
	if err != nil {
		return err
	}

	handler := cli.NewInterruptHandler(os.Stderr)
	ctx, stop := handler.HandleInterrupts(cmd.Context(),
		fmt.Sprintf("Disputes completed so far will be written to %s", settings.OutputDir))
	defer stop()

	reporter := cli.NewProgressReporter(os.Stderr)
	out, runErr := pipeline.Run(ctx, disputes, txns, reporter)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return common.NewUserError("Pipeline failed", runErr)
	}
	if len(out.Records) == 0 {
		return common.NewUserError("Run interrupted before any dispute was classified", runErr)
	}

	if err := dataset.WriteOutputs(settings.OutputDir, out.Records); err != nil {
		return common.NewUserError("Failed to write results", err)
	}

	// Persist even when interrupted; the rows that exist are complete.
	saveCtx := context.WithoutCancel(ctx)
	runLabel := ""
	if !noStore {
		run, err := saveRun(saveCtx, settings.DatabasePath, storage.Run{
			DisputesPath:     settings.DisputesPath,
			TransactionsPath: settings.TransactionsPath,
			Duration:         out.Duration,
			Skipped:          out.Skipped,
		}, out)
		if err != nil {
			common.LogError(slog.Default(), err, "Failed to record run", common.Fields{"database": settings.DatabasePath})
		} else {
			runLabel = run.ID
		}
	}

	w := cmd.OutOrStdout()
	if err := cli.RenderSummary(w, "Run summary", engine.Summarize(out.Records), cli.FormatTable); err != nil {
		return err
	}
	fmt.Fprintln(w, cli.FormatSuccess(fmt.Sprintf("Wrote %d disputes to %s (%d decided by the language model)",
		len(out.Records), settings.OutputDir, reporter.ModelClassified())))
	if runLabel != "" {
		fmt.Fprintln(w, cli.FormatInfo("Recorded as run "+runLabel))
	}

	if runErr != nil {
		return common.NewUserError(fmt.Sprintf("Run interrupted; %d disputes were not processed", out.Skipped), runErr)
	}
	return nil
}

func saveRun(ctx context.Context, dbPath string, run storage.Run, out engine.Output) (storage.Run, error) {
	store, err := storage.Open(ctx, dbPath)
	if err != nil {
		return storage.Run{}, err
	}
	defer func() { _ = store.Close() }()

	run.StartedAt = time.Now().Add(-out.Duration)
	return store.SaveRun(ctx, run, out.Records)
}
