package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/engine"
	"github.com/Veraticus/dispute-assistant/internal/model"
	"github.com/Veraticus/dispute-assistant/internal/query"
	"github.com/Veraticus/dispute-assistant/internal/storage"
)

// Format selects how results are printed.
type Format string

// Output formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (use table or json)", common.ErrInvalidInput, s)
	}
}

type jsonRecord struct {
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	DisputeID   string          `json:"dispute_id"`
	Category    string          `json:"category"`
	Explanation string          `json:"explanation"`
	Source      string          `json:"source"`
	Action      string          `json:"suggested_action"`
	Priority    string          `json:"priority"`
	Merchant    string          `json:"merchant,omitempty"`
	Channel     string          `json:"channel,omitempty"`
	CustomerID  string          `json:"customer_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Confidence  float64         `json:"confidence"`
}

type jsonGroup struct {
	Key    string          `json:"key"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

type jsonAnswer struct {
	Plan     *query.Plan  `json:"plan,omitempty"`
	Question string       `json:"question"`
	Summary  string       `json:"summary"`
	Source   string       `json:"source"`
	Rows     []jsonRecord `json:"rows,omitempty"`
	Groups   []jsonGroup  `json:"groups,omitempty"`
	Count    int          `json:"count"`
}

// RenderAnswer prints the answer to a question.
func RenderAnswer(w io.Writer, question string, a query.Answer, format Format) error {
	if format == FormatJSON {
		out := jsonAnswer{
			Plan:     a.Plan,
			Question: question,
			Summary:  a.Summary,
			Source:   string(a.Source),
			Count:    a.Count,
		}
		for _, r := range a.Rows {
			out.Rows = append(out.Rows, toJSONRecord(r))
		}
		for _, g := range a.Groups {
			out.Groups = append(out.Groups, jsonGroup(g))
		}
		return writeJSON(w, out)
	}

	var b strings.Builder
	if a.Source == query.SourceNone {
		b.WriteString(FormatWarning(a.Summary))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString(FormatInfo(a.Summary))
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("  (via %s)", a.Source)))
	b.WriteString("\n")

	switch {
	case len(a.Groups) > 0:
		b.WriteString(groupTable(groupHeader(a), a.Groups))
		b.WriteString("\n")
	case len(a.Rows) > 0:
		b.WriteString(recordTable(a.Rows))
		b.WriteString("\n")
	case a.Plan != nil && a.Plan.Aggregate == query.AggregateCount:
		b.WriteString(TitleStyle.UnsetMargins().Render(strconv.Itoa(a.Count)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type jsonSummary struct {
	Title             string          `json:"title,omitempty"`
	ByCategory        []jsonGroup     `json:"by_category"`
	ByAction          []jsonGroup     `json:"by_action"`
	BySource          []jsonGroup     `json:"by_source"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Total             int             `json:"total"`
	AverageConfidence float64         `json:"average_confidence"`
}

// RenderSummary prints summary statistics for a set of records.
func RenderSummary(w io.Writer, title string, s engine.Summary, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, jsonSummary{
			Title:             title,
			ByCategory:        bucketsToJSON(s.ByCategory),
			ByAction:          bucketsToJSON(s.ByAction),
			BySource:          bucketsToJSON(s.BySource),
			TotalAmount:       s.TotalAmount,
			Total:             s.Total,
			AverageConfidence: s.AverageConfidence,
		})
	}

	totals := fmt.Sprintf("%d disputes, total amount %s, average confidence %.2f",
		s.Total, s.TotalAmount.StringFixed(2), s.AverageConfidence)

	sections := []string{
		totals,
		"",
		bucketTable("Category", s.ByCategory),
		bucketTable("Action", s.ByAction),
		bucketTable("Decided by", s.BySource),
	}

	_, err := fmt.Fprintln(w, RenderBox(ChartIcon+" "+title, lipgloss.JoinVertical(lipgloss.Left, sections...)))
	return err
}

type jsonRun struct {
	StartedAt        time.Time `json:"started_at"`
	ID               string    `json:"id"`
	DisputesPath     string    `json:"disputes_path,omitempty"`
	TransactionsPath string    `json:"transactions_path,omitempty"`
	Duration         string    `json:"duration"`
	Total            int       `json:"total"`
	Skipped          int       `json:"skipped"`
}

// RenderRuns prints the run history.
func RenderRuns(w io.Writer, runs []storage.Run, format Format) error {
	if format == FormatJSON {
		out := make([]jsonRun, 0, len(runs))
		for _, r := range runs {
			out = append(out, jsonRun{
				StartedAt:        r.StartedAt,
				ID:               r.ID,
				DisputesPath:     r.DisputesPath,
				TransactionsPath: r.TransactionsPath,
				Duration:         r.Duration.String(),
				Total:            r.Total,
				Skipped:          r.Skipped,
			})
		}
		return writeJSON(w, out)
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, FormatInfo("No runs recorded yet. Start one with: dispute run"))
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Skipped),
			r.Duration.Round(time.Millisecond).String(),
			r.DisputesPath,
		})
	}
	_, err := fmt.Fprintln(w, newTable([]string{"Run", "Started", "Disputes", "Skipped", "Took", "Input"}, rows))
	return err
}

func groupHeader(a query.Answer) string {
	if a.Plan != nil && a.Plan.GroupBy != "" {
		return a.Plan.GroupBy
	}
	return "group"
}

func groupTable(header string, groups []query.Group) string {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		key := g.Key
		if c := model.Category(g.Key); c.IsValid() {
			key = StyleCategory(c)
		}
		rows = append(rows, []string{key, strconv.Itoa(g.Count), g.Amount.StringFixed(2)})
	}
	return newTable([]string{header, "Count", "Amount"}, rows)
}

func bucketTable(header string, buckets []engine.Bucket) string {
	groups := make([]query.Group, len(buckets))
	for i, b := range buckets {
		groups[i] = query.Group{Key: b.Key, Count: b.Count, Amount: b.Amount}
	}
	return groupTable(header, groups)
}

func recordTable(records []model.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		created := ""
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			r.DisputeID,
			StyleCategory(r.Category),
			fmt.Sprintf("%.2f", r.Confidence),
			r.Amount.StringFixed(2),
			r.Merchant,
			string(r.Action),
			StylePriority(r.Priority),
			created,
		})
	}
	return newTable([]string{"Dispute", "Category", "Conf", "Amount", "Merchant", "Action", "Priority", "Created"}, rows)
}

func newTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		}).
		String()
}

func toJSONRecord(r model.Record) jsonRecord {
	out := jsonRecord{
		DisputeID:   r.DisputeID,
		Category:    string(r.Category),
		Explanation: r.Explanation,
		Source:      string(r.Source),
		Action:      string(r.Action),
		Priority:    string(r.Priority),
		Merchant:    r.Merchant,
		Channel:     r.Channel,
		CustomerID:  r.CustomerID,
		Amount:      r.Amount,
		Confidence:  r.Confidence,
	}
	if !r.CreatedAt.IsZero() {
		t := r.CreatedAt
		out.CreatedAt = &t
	}
	return out
}

func bucketsToJSON(buckets []engine.Bucket) []jsonGroup {
	out := make([]jsonGroup, len(buckets))
	for i, b := range buckets {
		out[i] = jsonGroup{Key: b.Key, Count: b.Count, Amount: b.Amount}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
