package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Bucket is a count and amount total for one key.
type Bucket struct {
	Key    string
	Amount decimal.Decimal
	Count  int
}

// Summary aggregates a set of records.
type Summary struct {
	ByCategory        []Bucket
	ByAction          []Bucket
	BySource          []Bucket
	TotalAmount       decimal.Decimal
	Total             int
	AverageConfidence float64
}

// Summarize computes totals per category, action and classification source.
func Summarize(records []model.Record) Summary {
	s := Summary{Total: len(records)}

	categories := make(map[string]*Bucket)
	actions := make(map[string]*Bucket)
	sources := make(map[string]*Bucket)

	var confidence float64
	for _, r := range records {
		s.TotalAmount = s.TotalAmount.Add(r.Amount)
		confidence += r.Confidence
		add(categories, string(r.Category), r.Amount)
		add(actions, string(r.Action), r.Amount)
		add(sources, string(r.Source), r.Amount)
	}
	if len(records) > 0 {
		s.AverageConfidence = confidence / float64(len(records))
	}

	s.ByCategory = sortedBuckets(categories)
	s.ByAction = sortedBuckets(actions)
	s.BySource = sortedBuckets(sources)
	return s
}

func add(m map[string]*Bucket, key string, amount decimal.Decimal) {
	if key == "" {
		key = "(none)"
	}
	b, ok := m[key]
	if !ok {
		b = &Bucket{Key: key}
		m[key] = b
	}
	b.Count++
	b.Amount = b.Amount.Add(amount)
}

func sortedBuckets(m map[string]*Bucket) []Bucket {
	out := make([]Bucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
