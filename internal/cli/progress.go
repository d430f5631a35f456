package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

// ProgressReporter draws a progress bar while the pipeline classifies disputes
// and tallies the categories it has seen.
type ProgressReporter struct {
	writer   io.Writer
	bar      *progressbar.ProgressBar
	counts   map[model.Category]int
	modelHit int
}

// NewProgressReporter creates a reporter writing to w.
func NewProgressReporter(w io.Writer) *ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &ProgressReporter{
		writer: w,
		counts: make(map[model.Category]int),
	}
}

// Start implements engine.Reporter.
func (p *ProgressReporter) Start(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Classifying disputes...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// Advance implements engine.Reporter.
func (p *ProgressReporter) Advance(rec model.Record) {
	p.counts[rec.Category]++
	if rec.Source == model.SourceModel {
		p.modelHit++
	}
	if p.bar == nil {
		return
	}
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish implements engine.Reporter.
func (p *ProgressReporter) Finish() {
	if p.bar == nil {
		return
	}
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

// Counts returns the number of disputes seen per category.
func (p *ProgressReporter) Counts() map[model.Category]int {
	out := make(map[model.Category]int, len(p.counts))
	for k, v := range p.counts {
		out[k] = v
	}
	return out
}

// ModelClassified returns how many disputes the language model decided.
func (p *ProgressReporter) ModelClassified() int {
	return p.modelHit
}
