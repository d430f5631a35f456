package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/dispute-assistant/internal/cli"
	"github.com/Veraticus/dispute-assistant/internal/query"
)

func queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a plain-English question about classified disputes",
		Long: `Answers questions such as "How many duplicate charges today?" or
"Break down disputes by merchant" over the latest recorded run, a chosen run,
or the CSV files written by 'dispute run'. The language model translates the
question into a restricted query plan; when it is unavailable or its plan is
rejected, built-in question templates are used instead.`,
		Example: `  dispute query "How many duplicate charges today?"
  dispute query "Show all fraud disputes" --format json
  dispute query --interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: runQuery,
	}

	cmd.Flags().String("run", "", "answer from this run id instead of the latest run")
	cmd.Flags().Bool("from-csv", false, "answer from the output CSV files instead of the run history")
	cmd.Flags().String("out", "", "output directory to read with --from-csv (default: output)")
	cmd.Flags().StringP("format", "f", "table", "output format (table, json)")
	cmd.Flags().Bool("no-llm", false, "only use the built-in question templates")
	cmd.Flags().BoolP("interactive", "i", false, "ask questions in an interactive session")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, map[string]string{"out": "output.dir"})
	runID, _ := cmd.Flags().GetString("run")
	fromCSV, _ := cmd.Flags().GetBool("from-csv")
	formatFlag, _ := cmd.Flags().GetString("format")
	noLLM, _ := cmd.Flags().GetBool("no-llm")
	interactive, _ := cmd.Flags().GetBool("interactive")

	format, err := cli.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	question := ""
	if len(args) == 1 {
		question = strings.TrimSpace(args[0])
	}
	if question == "" && !interactive {
		return fmt.Errorf("provide a question or use --interactive")
	}

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	records, label, err := loadRecords(ctx, settings, recordSource{runID: runID, fromCSV: fromCSV})
	if err != nil {
		return err
	}
	slog.Debug("Loaded records for query", "source", label, "records", len(records))

	completer, closeModel, err := newCompleter(settings, noLLM)
	if err != nil {
		return err
	}
	defer closeModel()

	var translator query.Translator
	if completer != nil {
		translator = query.NewModelTranslator(completer)
	}
	processor := newQueryProcessor(translator)

	if interactive {
		return cli.NewSession(processor, records, os.Stdin, cmd.OutOrStdout(), format).Run(ctx)
	}

	answer := processor.Answer(ctx, question, records)
	return cli.RenderAnswer(cmd.OutOrStdout(), question, answer, format)
}

// newQueryProcessor resolves relative dates against the UTC calendar, matching
// the zone input timestamps are parsed in.
func newQueryProcessor(translator query.Translator) *query.Processor {
	return query.NewProcessor(translator,
		query.WithLogger(slog.Default()),
		query.WithClock(func() time.Time { return time.Now().UTC() }),
	)
}
