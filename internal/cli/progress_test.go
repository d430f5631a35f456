package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

func TestProgressReporter(t *testing.T) {
	var out syncBuffer
	reporter := NewProgressReporter(&out)

	records := []model.Record{
		{DisputeID: "D1", Category: model.CategoryFraud, Source: model.SourceRule},
		{DisputeID: "D2", Category: model.CategoryFraud, Source: model.SourceModel},
		{DisputeID: "D3", Category: model.CategoryOthers, Source: model.SourceFallback},
	}

	reporter.Start(len(records))
	for _, r := range records {
		reporter.Advance(r)
	}
	reporter.Finish()

	assert.Equal(t, map[model.Category]int{
		model.CategoryFraud:  2,
		model.CategoryOthers: 1,
	}, reporter.Counts())
	assert.Equal(t, 1, reporter.ModelClassified())
	assert.Contains(t, out.String(), "3/3")
}

func TestProgressReporter_AdvanceWithoutStart(t *testing.T) {
	var out bytes.Buffer
	reporter := NewProgressReporter(&out)

	reporter.Advance(model.Record{Category: model.CategoryRefundPending})
	reporter.Finish()

	assert.Equal(t, 1, reporter.Counts()[model.CategoryRefundPending])
	assert.Empty(t, out.String())
}

func TestProgressReporter_CountsIsACopy(t *testing.T) {
	reporter := NewProgressReporter(&bytes.Buffer{})
	reporter.Advance(model.Record{Category: model.CategoryFraud})

	counts := reporter.Counts()
	counts[model.CategoryFraud] = 100

	assert.Equal(t, 1, reporter.Counts()[model.CategoryFraud])
}
