// Package query answers natural-language analytic questions over classified
// disputes. Questions become a restricted Plan, either translated by the
// language model or matched against fixed templates, and the Plan is executed
// in memory. Nothing here mutates the records it reads.
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Queryable fields.
const (
	FieldCategory   = "category"
	FieldConfidence = "confidence"
	FieldAmount     = "amount"
	FieldMerchant   = "merchant"
	FieldChannel    = "channel"
	FieldCustomerID = "customer_id"
	FieldAction     = "suggested_action"
	FieldPriority   = "priority"
	FieldCreatedAt  = "created_at"
	FieldDisputeID  = "dispute_id"
)

// Comparison operators.
const (
	OpEq  = "eq"
	OpNe  = "ne"
	OpGt  = "gt"
	OpGte = "gte"
	OpLt  = "lt"
	OpLte = "lte"
)

// Aggregations.
const (
	AggregateRows  = "rows"
	AggregateCount = "count"
)

// Filter restricts records by comparing one field against a value.
type Filter struct {
	Field string `json:"field" validate:"required,oneof=category confidence amount merchant channel customer_id suggested_action priority created_at dispute_id"`
	Op    string `json:"op" validate:"required,oneof=eq ne gt gte lt lte"`
	Value Value  `json:"value" validate:"required"`
}

// Sort orders result rows by a field.
type Sort struct {
	Field string `json:"field" validate:"required,oneof=category confidence amount merchant channel customer_id suggested_action priority created_at dispute_id"`
	Desc  bool   `json:"desc"`
}

// Plan is the restricted structured form of a question.
type Plan struct {
	Sort      *Sort    `json:"sort,omitempty"`
	GroupBy   string   `json:"group_by,omitempty" validate:"omitempty,oneof=category merchant channel suggested_action priority"`
	Aggregate string   `json:"aggregate" validate:"required,oneof=rows count"`
	Filters   []Filter `json:"filters" validate:"omitempty,max=10,dive"`
	Limit     int      `json:"limit,omitempty" validate:"gte=0,lte=10000"`
}

// Value is a filter operand. It decodes from a JSON string, number or bool.
type Value string

// UnmarshalJSON accepts scalars of any JSON type.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	switch string(data) {
	case "null":
		*v = ""
		return nil
	case "true", "false":
		*v = Value(data)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("filter value must be a string or number, got %s", data)
	}
	*v = Value(data)
	return nil
}

func orderedField(field string) bool {
	return field == FieldConfidence || field == FieldAmount || field == FieldCreatedAt
}

func rangeOp(op string) bool {
	return op == OpGt || op == OpGte || op == OpLt || op == OpLte
}

// newValidator returns a validator with the plan's cross-field checks registered.
func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(filterStructValidation, Filter{})
	v.RegisterStructValidation(planStructValidation, Plan{})
	return v
}

// filterStructValidation checks that the value type suits the field and op.
func filterStructValidation(sl validatorv10.StructLevel) {
	f := sl.Current().Interface().(Filter)
	value := strings.TrimSpace(string(f.Value))

	if rangeOp(f.Op) && !orderedField(f.Field) {
		sl.ReportError(f.Op, "op", "Op", "range_on_unordered", f.Field)
		return
	}

	switch f.Field {
	case FieldConfidence:
		c, err := strconv.ParseFloat(value, 64)
		if err != nil || c < 0 || c > 1 {
			sl.ReportError(f.Value, "value", "Value", "confidence", value)
		}
	case FieldAmount:
		if _, err := decimal.NewFromString(value); err != nil {
			sl.ReportError(f.Value, "value", "Value", "amount", value)
		}
	case FieldCreatedAt:
		if _, err := resolveDay(value, time.Now()); err != nil {
			sl.ReportError(f.Value, "value", "Value", "date", value)
		}
	case FieldCategory:
		if _, err := model.ParseCategory(value); err != nil {
			sl.ReportError(f.Value, "value", "Value", "category", value)
		}
	}
}

func planStructValidation(sl validatorv10.StructLevel) {
	p := sl.Current().Interface().(Plan)
	if p.GroupBy != "" && p.Aggregate != AggregateCount {
		sl.ReportError(p.Aggregate, "aggregate", "Aggregate", "group_by_requires_count", p.Aggregate)
	}
}

// ParsePlan strictly decodes and validates a JSON plan. Unknown fields are rejected.
func ParsePlan(v *validatorv10.Validate, data []byte) (Plan, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var plan Plan
	if err := decoder.Decode(&plan); err != nil {
		return Plan{}, fmt.Errorf("%w: failed to parse plan: %w", common.ErrPlanRejected, err)
	}
	if decoder.More() {
		return Plan{}, fmt.Errorf("%w: trailing data after plan", common.ErrPlanRejected)
	}
	if err := ValidatePlan(v, plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// ValidatePlan checks a plan against the field, op and group-by allow-lists.
func ValidatePlan(v *validatorv10.Validate, plan Plan) error {
	if err := v.Struct(plan); err != nil {
		return fmt.Errorf("%w: %w", common.ErrPlanRejected, err)
	}
	return nil
}

var daysAgoPattern = regexp.MustCompile(`^(\d{1,4})d$`)

// resolveDay turns a date value into the start of that day in now's location.
// Accepted forms: today, yesterday, Nd (N days back), YYYY-MM-DD.
func resolveDay(value string, now time.Time) (time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	default:
		if m := daysAgoPattern.FindStringSubmatch(v); m != nil {
			n, _ := strconv.Atoi(m[1])
			return today.AddDate(0, 0, -n), nil
		}
		day, err := time.ParseInLocation("2006-01-02", v, now.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: unrecognized date %q", common.ErrInvalidInput, value)
		}
		return day, nil
	}
}

// String renders a filter for summaries.
func (f Filter) String() string {
	return fmt.Sprintf("%s %s %s", f.Field, f.Op, f.Value)
}
