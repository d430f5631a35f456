package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

// DefaultHighValueThreshold applies to "high value" questions that name no amount.
const DefaultHighValueThreshold = "1000"

type categorySynonym struct {
	pattern  *regexp.Regexp
	category model.Category
}

// Checked in order; "pending refunds" must resolve before "failed refund" style phrases.
var categorySynonyms = []categorySynonym{
	{regexp.MustCompile(`\b(duplicate|duplicated|double|charged twice)\b`), model.CategoryDuplicateCharge},
	{regexp.MustCompile(`\b(fraud|fraudulent|unauthori[sz]ed|scam)\b`), model.CategoryFraud},
	{regexp.MustCompile(`\b(refund|refunds)\b`), model.CategoryRefundPending},
	{regexp.MustCompile(`\b(failed|failure|failures|declined)\b`), model.CategoryFailedTransaction},
	{regexp.MustCompile(`\b(other|others|unclassified|unknown)\b`), model.CategoryOthers},
}

var groupSynonyms = map[string]string{
	"category":   FieldCategory,
	"categories": FieldCategory,
	"type":       FieldCategory,
	"merchant":   FieldMerchant,
	"merchants":  FieldMerchant,
	"channel":    FieldChannel,
	"channels":   FieldChannel,
	"action":     FieldAction,
	"actions":    FieldAction,
	"resolution": FieldAction,
	"priority":   FieldPriority,
}

var (
	timeQualifierPattern = regexp.MustCompile(`\b(today|yesterday|this week|(?:in )?the (?:last|past) (\d{1,3}) days)\b`)
	summaryPattern       = regexp.MustCompile(`\b(summary|summarize|stats|statistics|overview)\b`)
	breakdownPattern     = regexp.MustCompile(`\b(?:break\s*down|breakdown|split|group(?:ed)?|count|disputes)\s+(?:by|per)\s+(\w+)`)
	howManyPattern       = regexp.MustCompile(`^how many\b(.*)$`)
	highValuePattern     = regexp.MustCompile(`\b(high[- ]value|high amount|large|above|over|greater than|more than|exceeding)\b`)
	amountPattern        = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
	unresolvedPattern    = regexp.MustCompile(`\b(unresolved|open|not (?:yet )?resolved|pending action)\b`)
	pendingRefundPattern = regexp.MustCompile(`\b(pending refunds?|refunds? pending)\b`)
	showPattern          = regexp.MustCompile(`^(show|list|display|find|get|which|what are)\b(.*)$`)
)

// template turns a normalized question into a plan when it recognizes the shape.
type template struct {
	match func(q string) (Plan, bool)
	name  string
}

var templates = []template{
	{name: "summary", match: matchSummary},
	{name: "breakdown", match: matchBreakdown},
	{name: "how_many", match: matchHowMany},
	{name: "high_value", match: matchHighValue},
	{name: "unresolved", match: matchUnresolved},
	{name: "pending_refunds", match: matchPendingRefunds},
	{name: "show", match: matchShow},
}

// MatchTemplate returns the first template plan for question.
func MatchTemplate(question string) (Plan, string, bool) {
	q := normalizeQuestion(question)
	if q == "" {
		return Plan{}, "", false
	}
	for _, t := range templates {
		if plan, ok := t.match(q); ok {
			return plan, t.name, true
		}
	}
	return Plan{}, "", false
}

func normalizeQuestion(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	q = strings.TrimRight(q, "?.! ")
	return strings.Join(strings.Fields(q), " ")
}

func matchSummary(q string) (Plan, bool) {
	if !summaryPattern.MatchString(q) {
		return Plan{}, false
	}
	return Plan{GroupBy: FieldCategory, Aggregate: AggregateCount, Filters: timeFilters(q)}, true
}

func matchBreakdown(q string) (Plan, bool) {
	m := breakdownPattern.FindStringSubmatch(q)
	if m == nil {
		return Plan{}, false
	}
	field, ok := groupSynonyms[m[1]]
	if !ok {
		return Plan{}, false
	}
	filters := append(categoryFilters(q[:strings.Index(q, m[0])]), timeFilters(q)...)
	return Plan{GroupBy: field, Aggregate: AggregateCount, Filters: filters}, true
}

func matchHowMany(q string) (Plan, bool) {
	m := howManyPattern.FindStringSubmatch(q)
	if m == nil {
		return Plan{}, false
	}
	filters := categoryFilters(m[1])
	if unresolvedPattern.MatchString(m[1]) {
		filters = append(filters, unresolvedFilter())
	}
	if highValuePattern.MatchString(m[1]) {
		if a := amountPattern.FindStringSubmatch(stripTimeQualifier(m[1])); a != nil {
			filters = append(filters, Filter{Field: FieldAmount, Op: OpGt, Value: Value(a[1])})
		}
	}
	filters = append(filters, timeFilters(m[1])...)
	return Plan{Aggregate: AggregateCount, Filters: filters}, true
}

func matchHighValue(q string) (Plan, bool) {
	if !highValuePattern.MatchString(q) {
		return Plan{}, false
	}
	threshold := DefaultHighValueThreshold
	if m := amountPattern.FindStringSubmatch(stripTimeQualifier(q)); m != nil {
		threshold = m[1]
	} else if !strings.Contains(q, "high") && !strings.Contains(q, "large") {
		return Plan{}, false
	}

	filters := append([]Filter{{Field: FieldAmount, Op: OpGt, Value: Value(threshold)}}, categoryFilters(q)...)
	filters = append(filters, timeFilters(q)...)
	return Plan{
		Aggregate: AggregateRows,
		Filters:   filters,
		Sort:      &Sort{Field: FieldAmount, Desc: true},
	}, true
}

func matchUnresolved(q string) (Plan, bool) {
	if !unresolvedPattern.MatchString(q) {
		return Plan{}, false
	}
	filters := append([]Filter{unresolvedFilter()}, categoryFilters(q)...)
	filters = append(filters, timeFilters(q)...)
	return Plan{Aggregate: AggregateRows, Filters: filters, Sort: &Sort{Field: FieldPriority}}, true
}

func matchPendingRefunds(q string) (Plan, bool) {
	if !pendingRefundPattern.MatchString(q) {
		return Plan{}, false
	}
	filters := append([]Filter{categoryFilter(model.CategoryRefundPending)}, timeFilters(q)...)
	return Plan{Aggregate: AggregateRows, Filters: filters}, true
}

func matchShow(q string) (Plan, bool) {
	m := showPattern.FindStringSubmatch(q)
	if m == nil {
		return Plan{}, false
	}
	filters := append(categoryFilters(m[2]), timeFilters(m[2])...)
	return Plan{Aggregate: AggregateRows, Filters: filters}, true
}

func unresolvedFilter() Filter {
	return Filter{Field: FieldAction, Op: OpNe, Value: Value(model.ActionAutoRefund)}
}

func categoryFilter(c model.Category) Filter {
	return Filter{Field: FieldCategory, Op: OpEq, Value: Value(c)}
}

// categoryFilters returns a filter for the first category synonym in text.
func categoryFilters(text string) []Filter {
	for _, s := range categorySynonyms {
		if s.pattern.MatchString(text) {
			return []Filter{categoryFilter(s.category)}
		}
	}
	return nil
}

func timeFilters(text string) []Filter {
	m := timeQualifierPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	switch {
	case m[1] == "today" || m[1] == "yesterday":
		return []Filter{{Field: FieldCreatedAt, Op: OpEq, Value: Value(m[1])}}
	case m[1] == "this week":
		return []Filter{{Field: FieldCreatedAt, Op: OpGte, Value: "6d"}}
	default:
		n, err := strconv.Atoi(m[2])
		if err != nil || n < 1 {
			return nil
		}
		return []Filter{{Field: FieldCreatedAt, Op: OpGte, Value: Value(strconv.Itoa(n-1) + "d")}}
	}
}

func stripTimeQualifier(q string) string {
	return timeQualifierPattern.ReplaceAllString(q, "")
}
