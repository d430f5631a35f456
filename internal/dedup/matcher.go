// Package dedup detects transactions that likely duplicate a disputed charge.
package dedup

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/dispute-assistant/internal/model"
)

// Score weights. They sum to one.
const (
	amountWeight   = 0.4
	timeWeight     = 0.3
	merchantWeight = 0.3
)

// Config holds the tolerances used when comparing transactions.
type Config struct {
	AmountTolerance   decimal.Decimal
	TimeWindow        time.Duration
	MerchantThreshold float64
	ScoreThreshold    float64
}

// DefaultConfig returns the default matching tolerances.
func DefaultConfig() Config {
	return Config{
		AmountTolerance:   decimal.Zero,
		TimeWindow:        2 * time.Hour,
		MerchantThreshold: 0.8,
		ScoreThreshold:    0.75,
	}
}

// Matcher compares a disputed transaction against its neighbours.
type Matcher struct {
	cfg Config
}

// NewMatcher creates a matcher, filling zero values from DefaultConfig.
func NewMatcher(cfg Config) *Matcher {
	def := DefaultConfig()
	if cfg.TimeWindow <= 0 {
		cfg.TimeWindow = def.TimeWindow
	}
	if cfg.MerchantThreshold <= 0 {
		cfg.MerchantThreshold = def.MerchantThreshold
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = def.ScoreThreshold
	}
	if cfg.AmountTolerance.IsNegative() {
		cfg.AmountTolerance = decimal.Zero
	}
	return &Matcher{cfg: cfg}
}

// Candidates returns the transactions within the amount and time window of linked,
// excluding linked itself.
func (m *Matcher) Candidates(linked model.Transaction, all []model.Transaction) []model.Transaction {
	var out []model.Transaction
	for _, t := range all {
		if t.ID == linked.ID {
			continue
		}
		if linked.Amount.Sub(t.Amount).Abs().GreaterThan(m.cfg.AmountTolerance) {
			continue
		}
		if absDuration(linked.Timestamp.Sub(t.Timestamp)) > m.cfg.TimeWindow {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Match scores every candidate against the dispute's linked transaction and returns
// evidence for the best one above the threshold. It returns nil when the dispute
// has no linked transaction or nothing scores high enough.
func (m *Matcher) Match(dispute model.Dispute, linked *model.Transaction, candidates []model.Transaction) *model.DuplicateEvidence {
	if linked == nil || !dispute.HasTransaction() {
		return nil
	}

	type scored struct {
		txn      model.Transaction
		score    float64
		merchant float64
	}
	var hits []scored

	for _, c := range candidates {
		if c.ID == linked.ID {
			continue
		}
		score, merchant := m.Score(*linked, c)
		if score >= m.cfg.ScoreThreshold {
			hits = append(hits, scored{txn: c, score: score, merchant: merchant})
		}
	}
	if len(hits) == 0 {
		return nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if !hits[i].txn.Timestamp.Equal(hits[j].txn.Timestamp) {
			return hits[i].txn.Timestamp.Before(hits[j].txn.Timestamp)
		}
		return hits[i].txn.ID < hits[j].txn.ID
	})

	best := hits[0]
	return &model.DuplicateEvidence{
		TxnID:         linked.ID,
		MatchedTxnID:  best.txn.ID,
		MatchedAt:     best.txn.Timestamp,
		Score:         best.score,
		MerchantScore: best.merchant,
	}
}

// Score returns the combined similarity of a and b together with the raw merchant similarity.
func (m *Matcher) Score(a, b model.Transaction) (score, merchant float64) {
	merchant = MerchantSimilarity(a.Merchant, b.Merchant)

	score += amountWeight * m.amountScore(a.Amount, b.Amount)
	score += timeWeight * m.timeScore(a.Timestamp, b.Timestamp)
	if merchant >= m.cfg.MerchantThreshold {
		score += merchantWeight * merchant
	}
	return score, merchant
}

func (m *Matcher) amountScore(a, b decimal.Decimal) float64 {
	diff := a.Sub(b).Abs()
	if diff.IsZero() {
		return 1
	}
	if m.cfg.AmountTolerance.IsZero() || diff.GreaterThan(m.cfg.AmountTolerance) {
		return 0
	}
	ratio, _ := diff.Div(m.cfg.AmountTolerance).Float64()
	return 1 - ratio
}

func (m *Matcher) timeScore(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	dt := absDuration(a.Sub(b))
	if dt > m.cfg.TimeWindow {
		return 0
	}
	return 1 - float64(dt)/float64(m.cfg.TimeWindow)
}

var (
	nonAlnum      = regexp.MustCompile(`[^a-z0-9 ]+`)
	spaceRun      = regexp.MustCompile(`\s+`)
	legalSuffixes = []string{" pvt ltd", " private limited", " ltd", " llc", " inc", " com", " co"}
)

// NormalizeMerchant lower-cases a merchant name, strips punctuation and
// legal suffixes, and collapses whitespace.
func NormalizeMerchant(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, ".", " ")
	s = nonAlnum.ReplaceAllString(s, " ")
	s = spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
		}
	}
	return s
}

// MerchantSimilarity returns a normalized edit-distance similarity in [0,1].
func MerchantSimilarity(a, b string) float64 {
	na, nb := NormalizeMerchant(a), NormalizeMerchant(b)
	if na == "" && nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	dist := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(dist)/float64(longest)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
