package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/engine"
	"github.com/Veraticus/dispute-assistant/internal/model"
	"github.com/Veraticus/dispute-assistant/internal/query"
	"github.com/Veraticus/dispute-assistant/internal/storage"
	"github.com/Veraticus/dispute-assistant/internal/testutil"
)

var now = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

func sampleRecords() []model.Record {
	return testutil.NewRecordBuilder(now).
		Add(model.CategoryDuplicateCharge, model.ActionAutoRefund, "499", time.Hour).
		Add(model.CategoryFraud, model.ActionFlagFraud, "12000", 2*time.Hour).
		With(func(r *model.Record) { r.Priority = model.PriorityHigh; r.Merchant = "Flipkart" }).
		Add(model.CategoryFraud, model.ActionFlagFraud, "75.25", 30*time.Hour).
		Build()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatTable},
		{in: "table", want: FormatTable},
		{in: " JSON ", want: FormatJSON},
		{in: "csv", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, common.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderAnswer_Table(t *testing.T) {
	processor := query.NewProcessor(nil, query.WithClock(func() time.Time { return now }))

	tests := []struct {
		name     string
		question string
		contains []string
		excludes []string
	}{
		{
			name:     "rows",
			question: "Show all fraud disputes",
			contains: []string{"D002", "D003", "12000.00", "Flag as potential fraud", "Dispute", "template"},
			excludes: []string{"D001"},
		},
		{
			name:     "groups",
			question: "Break down disputes by category",
			contains: []string{"category", "FRAUD", "DUPLICATE_CHARGE", "12075.25"},
		},
		{
			name:     "count",
			question: "How many fraud disputes?",
			contains: []string{"2 disputes where category eq FRAUD"},
		},
		{
			name:     "no interpretation",
			question: "what is the weather",
			contains: []string{"Could not interpret"},
			excludes: []string{"Dispute"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			answer := processor.Answer(context.Background(), tt.question, sampleRecords())

			require.NoError(t, RenderAnswer(&buf, tt.question, answer, FormatTable))
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, buf.String(), unwanted)
			}
		})
	}
}

func TestRenderAnswer_JSON(t *testing.T) {
	processor := query.NewProcessor(nil, query.WithClock(func() time.Time { return now }))
	answer := processor.Answer(context.Background(), "Show all fraud disputes", sampleRecords())

	var buf bytes.Buffer
	require.NoError(t, RenderAnswer(&buf, "Show all fraud disputes", answer, FormatJSON))

	var decoded struct {
		Plan struct {
			Aggregate string `json:"aggregate"`
		} `json:"plan"`
		Question string `json:"question"`
		Source   string `json:"source"`
		Rows     []struct {
			DisputeID string `json:"dispute_id"`
			Category  string `json:"category"`
			Amount    string `json:"amount"`
			Action    string `json:"suggested_action"`
		} `json:"rows"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "Show all fraud disputes", decoded.Question)
	assert.Equal(t, "template", decoded.Source)
	assert.Equal(t, "rows", decoded.Plan.Aggregate)
	assert.Equal(t, 2, decoded.Count)
	require.Len(t, decoded.Rows, 2)
	assert.Equal(t, "D002", decoded.Rows[0].DisputeID)
	assert.Equal(t, "FRAUD", decoded.Rows[0].Category)
	assert.Equal(t, "12000", decoded.Rows[0].Amount)
	assert.Equal(t, "Flag as potential fraud", decoded.Rows[0].Action)
}

func TestRenderSummary(t *testing.T) {
	summary := engine.Summarize(sampleRecords())

	var table bytes.Buffer
	require.NoError(t, RenderSummary(&table, "Run summary", summary, FormatTable))
	out := table.String()
	assert.Contains(t, out, "Run summary")
	assert.Contains(t, out, "3 disputes, total amount 12574.25")
	assert.Contains(t, out, "Flag as potential fraud")
	assert.Contains(t, out, "RULE")

	var js bytes.Buffer
	require.NoError(t, RenderSummary(&js, "Run summary", summary, FormatJSON))
	var decoded struct {
		ByCategory []struct {
			Key   string `json:"key"`
			Count int    `json:"count"`
		} `json:"by_category"`
		TotalAmount string `json:"total_amount"`
		Total       int    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.Total)
	assert.Equal(t, "12574.25", decoded.TotalAmount)
	require.NotEmpty(t, decoded.ByCategory)
	assert.Equal(t, "FRAUD", decoded.ByCategory[0].Key)
	assert.Equal(t, 2, decoded.ByCategory[0].Count)
}

func TestRenderRuns(t *testing.T) {
	var empty bytes.Buffer
	require.NoError(t, RenderRuns(&empty, nil, FormatTable))
	assert.Contains(t, empty.String(), "No runs recorded yet")

	runs := []storage.Run{{
		ID:           "4b1c2a7e-0000-4000-8000-000000000001",
		StartedAt:    now,
		DisputesPath: "data/disputes.csv",
		Duration:     1234 * time.Millisecond,
		Total:        42,
		Skipped:      1,
	}}

	var table bytes.Buffer
	require.NoError(t, RenderRuns(&table, runs, FormatTable))
	assert.Contains(t, table.String(), runs[0].ID)
	assert.Contains(t, table.String(), "42")
	assert.Contains(t, table.String(), "1.234s")

	var js bytes.Buffer
	require.NoError(t, RenderRuns(&js, runs, FormatJSON))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, runs[0].ID, decoded[0]["id"])
	assert.InDelta(t, 42, decoded[0]["total"], 0)
}

func TestStyleCategory_Unknown(t *testing.T) {
	assert.Equal(t, "SOMETHING", StyleCategory("SOMETHING"))
	assert.Contains(t, StyleCategory(model.CategoryFraud), "FRAUD")
	assert.Equal(t, "Urgent", StylePriority("Urgent"))
}
