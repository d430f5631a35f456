package query

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Source names which tier produced the plan.
type Source string

// Plan sources.
const (
	SourceModel    Source = "model"
	SourceTemplate Source = "template"
	SourceNone     Source = "none"
)

// Group is one bucket of a grouped count.
type Group struct {
	Key    string
	Amount decimal.Decimal
	Count  int
}

// Answer is the result of a question.
type Answer struct {
	Plan    *Plan
	Summary string
	Source  Source
	Rows    []model.Record
	Groups  []Group
	Count   int
}

// Execute runs a validated plan over records. Records are never modified.
func Execute(plan Plan, records []model.Record, now time.Time) (Answer, error) {
	matched := make([]model.Record, 0, len(records))
	for _, rec := range records {
		ok, err := matchesAll(rec, plan.Filters, now)
		if err != nil {
			return Answer{}, err
		}
		if ok {
			matched = append(matched, rec)
		}
	}

	answer := Answer{Plan: &plan, Count: len(matched)}

	if plan.GroupBy != "" {
		answer.Groups = groupRecords(matched, plan.GroupBy)
		if plan.Limit > 0 && len(answer.Groups) > plan.Limit {
			answer.Groups = answer.Groups[:plan.Limit]
		}
		return answer, nil
	}

	if plan.Aggregate == AggregateCount {
		return answer, nil
	}

	if plan.Sort != nil {
		sortRecords(matched, *plan.Sort)
	}
	if plan.Limit > 0 && len(matched) > plan.Limit {
		matched = matched[:plan.Limit]
	}
	answer.Rows = matched
	return answer, nil
}

func matchesAll(rec model.Record, filters []Filter, now time.Time) (bool, error) {
	for _, f := range filters {
		ok, err := matches(rec, f, now)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matches(rec model.Record, f Filter, now time.Time) (bool, error) {
	value := strings.TrimSpace(string(f.Value))

	switch f.Field {
	case FieldConfidence:
		want, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false, fmt.Errorf("confidence value %q: %w", value, err)
		}
		return compareOrdered(cmp.Compare(rec.Confidence, want), f.Op), nil

	case FieldAmount:
		want, err := decimal.NewFromString(value)
		if err != nil {
			return false, fmt.Errorf("amount value %q: %w", value, err)
		}
		return compareOrdered(rec.Amount.Cmp(want), f.Op), nil

	case FieldCreatedAt:
		if rec.CreatedAt.IsZero() {
			return false, nil
		}
		start, err := resolveDay(value, now)
		if err != nil {
			return false, err
		}
		return matchDay(rec.CreatedAt.In(now.Location()), start, f.Op), nil

	default:
		return compareText(textField(rec, f.Field), value, f.Op), nil
	}
}

// matchDay compares a timestamp against the calendar day beginning at start.
func matchDay(t, start time.Time, op string) bool {
	end := start.AddDate(0, 0, 1)
	inDay := !t.Before(start) && t.Before(end)

	switch op {
	case OpEq:
		return inDay
	case OpNe:
		return !inDay
	case OpGt:
		return !t.Before(end)
	case OpGte:
		return !t.Before(start)
	case OpLt:
		return t.Before(start)
	case OpLte:
		return t.Before(end)
	}
	return false
}

func compareOrdered(c int, op string) bool {
	switch op {
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

func compareText(got, want, op string) bool {
	switch op {
	case OpEq:
		return strings.EqualFold(got, want)
	case OpNe:
		return !strings.EqualFold(got, want)
	}
	return false
}

func textField(rec model.Record, field string) string {
	switch field {
	case FieldCategory:
		return string(rec.Category)
	case FieldMerchant:
		return rec.Merchant
	case FieldChannel:
		return rec.Channel
	case FieldCustomerID:
		return rec.CustomerID
	case FieldAction:
		return string(rec.Action)
	case FieldPriority:
		return string(rec.Priority)
	case FieldDisputeID:
		return rec.DisputeID
	}
	return ""
}

// groupRecords counts records per key, largest groups first.
func groupRecords(records []model.Record, field string) []Group {
	index := make(map[string]int)
	var groups []Group

	for _, rec := range records {
		key := textField(rec, field)
		if key == "" {
			key = "(none)"
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Count++
		groups[i].Amount = groups[i].Amount.Add(rec.Amount)
	}

	slices.SortStableFunc(groups, func(a, b Group) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return groups
}

func sortRecords(records []model.Record, s Sort) {
	slices.SortStableFunc(records, func(a, b model.Record) int {
		var c int
		switch s.Field {
		case FieldConfidence:
			c = cmp.Compare(a.Confidence, b.Confidence)
		case FieldAmount:
			c = a.Amount.Cmp(b.Amount)
		case FieldCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		default:
			c = cmp.Compare(textField(a, s.Field), textField(b, s.Field))
		}
		if s.Desc {
			return -c
		}
		return c
	})
}
