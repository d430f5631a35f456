// Package engine runs the dispute pipeline: duplicate matching, rule
// classification, model classification for what the rules defer, and
// resolution.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/dispute-assistant/internal/classification"
	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/dedup"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

// ExplanationInternalError is the fallback explanation for a dispute whose processing panicked.
const ExplanationInternalError = "unclassified: internal error"

// Deps is the context for one pipeline run.
type Deps struct {
	Matcher  *dedup.Matcher
	Rules    *classification.RuleClassifier
	Model    ModelClassifier
	Resolver Resolver
	Logger   *slog.Logger
	Workers  int
}

// Output is the joined result of a run, in input order.
type Output struct {
	Records  []model.Record
	Duration time.Duration
	Skipped  int // Disputes not processed because the run was canceled
}

// Pipeline sequences the classification stages for each dispute.
type Pipeline struct {
	deps Deps
}

// New validates deps and creates a pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Matcher == nil || deps.Rules == nil || deps.Resolver == nil || deps.Model == nil {
		return nil, fmt.Errorf("%w: pipeline requires matcher, rules, model and resolver", common.ErrInvalidConfig)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	return &Pipeline{deps: deps}, nil
}

type indexedRecord struct {
	rec   model.Record
	index int
}

// Run processes every dispute and returns one record per dispute. A failure in
// one dispute never stops the others. On cancellation the records finished so
// far are returned together with the context error.
func (p *Pipeline) Run(ctx context.Context, disputes []model.Dispute, txns []model.Transaction, reporter Reporter) (Output, error) {
	if len(disputes) == 0 {
		return Output{}, common.ErrNoDisputes
	}
	if reporter == nil {
		reporter = noopReporter{}
	}

	start := time.Now()
	idx := model.NewTransactionIndex(txns)

	p.deps.Logger.Info("Starting dispute pipeline",
		"disputes", len(disputes),
		"transactions", len(txns),
		"workers", p.deps.Workers,
		"rule_order", p.deps.Rules.Order())

	var (
		mu      sync.Mutex
		results = make([]indexedRecord, 0, len(disputes))
	)
	collect := func(i int, rec model.Record) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, indexedRecord{index: i, rec: rec})
		reporter.Advance(rec)
	}

	reporter.Start(len(disputes))

	if p.deps.Workers == 1 {
		for i, d := range disputes {
			if ctx.Err() != nil {
				break
			}
			if rec, ok := p.process(ctx, d, idx, txns); ok {
				collect(i, rec)
			}
		}
	} else {
		g := new(errgroup.Group)
		g.SetLimit(p.deps.Workers)
		for i, d := range disputes {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				if rec, ok := p.process(ctx, d, idx, txns); ok {
					collect(i, rec)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	reporter.Finish()

	sort.Slice(results, func(a, b int) bool { return results[a].index < results[b].index })
	out := Output{
		Records:  make([]model.Record, len(results)),
		Duration: time.Since(start),
		Skipped:  len(disputes) - len(results),
	}
	for i, r := range results {
		out.Records[i] = r.rec
	}

	if err := ctx.Err(); err != nil {
		p.deps.Logger.Warn("Pipeline canceled",
			"completed", len(out.Records),
			"skipped", out.Skipped)
		return out, fmt.Errorf("pipeline interrupted: %w", err)
	}

	p.deps.Logger.Info("Pipeline complete",
		"disputes", len(out.Records),
		"duration", out.Duration)
	return out, nil
}

// process classifies and resolves one dispute. It reports false only when the
// run was canceled before the dispute finished.
func (p *Pipeline) process(ctx context.Context, d model.Dispute, idx model.TransactionIndex, all []model.Transaction) (rec model.Record, ok bool) {
	var linked *model.Transaction
	if t, found := idx.Lookup(d.TxnID); found {
		linked = &t
	}

	defer func() {
		if r := recover(); r != nil {
			p.deps.Logger.Error("Dispute processing panicked",
				"dispute_id", d.ID,
				"panic", r,
				"stack", string(debug.Stack()))
			rec, ok = p.fallbackRecord(d, linked), true
		}
	}()

	if d.HasTransaction() && linked == nil {
		p.deps.Logger.Debug("Linked transaction not found", "dispute_id", d.ID, "txn_id", d.TxnID)
	}

	var evidence *model.DuplicateEvidence
	if linked != nil {
		evidence = p.deps.Matcher.Match(d, linked, p.deps.Matcher.Candidates(*linked, all))
	}

	result, decided := p.deps.Rules.Classify(classification.Input{
		Dispute:  d,
		Linked:   linked,
		Evidence: evidence,
	}).Result()

	if !decided {
		result = p.deps.Model.Classify(ctx, d, linked)
		if ctx.Err() != nil {
			return model.Record{}, false
		}
	}

	resolution := p.deps.Resolver.Resolve(result, d.Amount)

	p.deps.Logger.Debug("Dispute classified",
		"dispute_id", d.ID,
		"category", result.Category,
		"confidence", result.Confidence,
		"source", result.Source,
		"rule", result.Rule,
		"action", resolution.Action)

	return model.NewRecord(d, linked, result, resolution), true
}

// fallbackRecord builds the OTHERS record for a dispute whose processing failed.
func (p *Pipeline) fallbackRecord(d model.Dispute, linked *model.Transaction) (rec model.Record) {
	result := model.Fallback(d.ID, ExplanationInternalError)

	defer func() {
		if r := recover(); r != nil {
			rec = model.NewRecord(d, linked, result, model.Resolution{
				DisputeID:               d.ID,
				Action:                  model.ActionAskMoreInfo,
				Priority:                model.PriorityLow,
				Justification:           "processing failed; customer clarification required",
				EstimatedResolutionTime: "Pending customer response",
			})
		}
	}()

	return model.NewRecord(d, linked, result, p.deps.Resolver.Resolve(result, d.Amount))
}
