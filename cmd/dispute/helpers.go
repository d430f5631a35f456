package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/config"
	"github.com/Veraticus/dispute-assistant/internal/dataset"
	"github.com/Veraticus/dispute-assistant/internal/llm"
	"github.com/Veraticus/dispute-assistant/internal/model"
	"github.com/Veraticus/dispute-assistant/internal/storage"
)

// bindFlags binds flags to config keys when the command runs, so commands can
// share keys without overriding each other's bindings.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

func loadSettings() (config.Settings, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Settings{}, common.NewUserError("Invalid configuration", err)
	}
	return settings, nil
}

// newCompleter returns the model gateway, or nil when the model is disabled or
// no API key is configured. The returned function releases the gateway.
func newCompleter(settings config.Settings, disabled bool) (llm.Completer, func(), error) {
	noop := func() {}
	if disabled {
		slog.Info("Language model disabled by flag")
		return nil, noop, nil
	}
	if !settings.ModelEnabled() {
		slog.Warn("No API key configured for language model; rule-deferred disputes fall back to OTHERS",
			"provider", settings.LLM.Provider)
		return nil, noop, nil
	}

	client, err := llm.NewClient(settings.LLMConfig())
	if err != nil {
		return nil, noop, common.NewUserError("Failed to create language model client", err)
	}
	gateway := llm.NewGateway(client, settings.LLMConfig(), slog.Default())
	return gateway, gateway.Close, nil
}

func openStore(ctx context.Context, settings config.Settings) (*storage.SQLiteStorage, error) {
	store, err := storage.Open(ctx, settings.DatabasePath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Failed to open run history at %s", settings.DatabasePath), err)
	}
	return store, nil
}

func logRowErrors(kind string, rowErrs []dataset.RowError) {
	for _, re := range rowErrs {
		slog.Warn("Skipped invalid row", "table", kind, "file", re.File, "line", re.Line, "error", re.Err)
	}
	if len(rowErrs) > 0 {
		slog.Warn("Some rows were skipped", "table", kind, "count", len(rowErrs))
	}
}

// recordSource selects where query and stats read records from.
type recordSource struct {
	runID   string
	fromCSV bool
}

// loadRecords returns the records to answer from and a label describing them.
func loadRecords(ctx context.Context, settings config.Settings, src recordSource) ([]model.Record, string, error) {
	if src.fromCSV {
		var disputes []model.Dispute
		if _, err := os.Stat(settings.DisputesPath); err == nil {
			loaded, rowErrs, err := dataset.LoadDisputes(settings.DisputesPath)
			if err != nil {
				slog.Debug("Could not merge dispute details", "error", err)
			} else {
				logRowErrors("disputes", rowErrs)
				disputes = loaded
			}
		}

		records, err := dataset.ReadOutputs(settings.OutputDir, disputes)
		if err != nil && len(records) == 0 {
			return nil, "", common.NewUserError(fmt.Sprintf("Failed to read results from %s (run 'dispute run' first)", settings.OutputDir), err)
		}
		if err != nil {
			slog.Warn("Some result rows could not be read", "error", err)
		}
		return records, settings.OutputDir, nil
	}

	store, err := openStore(ctx, settings)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = store.Close() }()

	var run storage.Run
	if src.runID != "" {
		run, err = store.GetRun(ctx, src.runID)
	} else {
		run, err = store.LatestRun(ctx)
	}
	if errors.Is(err, common.ErrNotFound) {
		if src.runID != "" {
			return nil, "", common.NewUserError(fmt.Sprintf("Run %s not found (see 'dispute runs')", src.runID), err)
		}
		return nil, "", common.NewUserError("No runs recorded yet; start one with 'dispute run' or use --from-csv", err)
	}
	if err != nil {
		return nil, "", err
	}

	records, err := store.LoadRecords(ctx, run.ID)
	if err != nil {
		return nil, "", err
	}
	return records, "run " + run.ID, nil
}
