// Package budget maps a user's budget configuration onto aggregated spending
// to produce per-category variance and utilisation rows.
package budget

import (
	"sort"

	"github.com/shopspring/decimal"

	"finance-alignment-engine/internal/aggregator"
	"finance-alignment-engine/internal/models"
)

// utilisationCeiling caps runaway utilisation percentages so a tiny budget
// with large actual spend stays presentable.
var utilisationCeiling = decimal.NewFromInt(999)

// Settings is a parsed, normalized budget configuration. Amounts is keyed by
// normalized category key (a canonical type name or a free-form label);
// Labels retains the first-seen original casing per key for display.
type Settings struct {
	Currency string
	Amounts  map[string]decimal.Decimal
	Labels   map[string]string
}

// DisplayLabel returns the original-case label recorded for a normalized
// key, falling back to the key itself.
func (s *Settings) DisplayLabel(key string) string {
	if label, ok := s.Labels[key]; ok && label != "" {
		return label
	}
	return key
}

// ProgressRow is one budget line: configured amount against actual spend.
// Utilisation is nil when the budgeted amount is zero or negative; it is
// never NaN or infinite.
type ProgressRow struct {
	Key         string          `json:"key"`
	Budget      decimal.Decimal `json:"budget"`
	Actual      decimal.Decimal `json:"actual"`
	Variance    decimal.Decimal `json:"variance"`
	Utilisation *float64        `json:"utilisation"`
}

// Matcher computes budget progress rows from aggregation results.
type Matcher struct{}

// NewMatcher creates a new budget matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Progress produces one row per budget entry. Rows are emitted in ascending
// normalized-key order so output never depends on map iteration order.
//
// A key naming one of the four canonical category types matches that type's
// aggregated total; any other key is treated as a label filter and matches
// category rows whose label equals it case-insensitively.
func (m *Matcher) Progress(settings *Settings, result *aggregator.Result) []ProgressRow {
	if settings == nil || len(settings.Amounts) == 0 {
		return nil
	}

	keys := make([]string, 0, len(settings.Amounts))
	for key := range settings.Amounts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([]ProgressRow, 0, len(keys))
	for _, key := range keys {
		budgetAmount := settings.Amounts[key]
		actual := actualForKey(key, result)

		rows = append(rows, ProgressRow{
			Key:         settings.DisplayLabel(key),
			Budget:      budgetAmount,
			Actual:      actual,
			Variance:    budgetAmount.Sub(actual),
			Utilisation: utilisation(actual, budgetAmount),
		})
	}
	return rows
}

// actualForKey resolves the actual spend for a budget key. Label keys read
// the full per-label index rather than the top-list view of the category
// table, so a budgeted label below the display cut still reports its spend.
func actualForKey(key string, result *aggregator.Result) decimal.Decimal {
	if ct, ok := models.ParseCategoryType(key); ok {
		return result.Totals.Get(ct)
	}
	return result.LabelTotals[key]
}

// utilisation returns actual/budget as a clamped percentage, or nil when the
// budget is not positive.
func utilisation(actual, budgetAmount decimal.Decimal) *float64 {
	if !budgetAmount.IsPositive() {
		return nil
	}
	pct := actual.Div(budgetAmount).Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(utilisationCeiling) {
		pct = utilisationCeiling
	}
	v, _ := pct.Float64()
	return &v
}
