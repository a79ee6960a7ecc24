// Package models defines the input record shapes consumed by the analytics
// engine and the fallback-chain resolution rules that turn partially-populated
// records into usable values.
//
// Records come from an external ingestion pipeline and are treated as
// immutable. Individual fields may be missing or malformed; resolution
// degrades through ordered candidate chains instead of failing.
package models

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// CategoryType classifies a transaction's cash-flow direction.
type CategoryType string

const (
	// CategoryMandatory covers committed spend (rent, utilities, groceries).
	CategoryMandatory CategoryType = "mandatory"
	// CategoryOptional covers discretionary spend.
	CategoryOptional CategoryType = "optional"
	// CategorySavings covers transfers into savings.
	CategorySavings CategoryType = "savings"
	// CategoryIncome covers inbound funds.
	CategoryIncome CategoryType = "income"
)

// CategoryTypes lists the canonical category types in their fixed display
// order. Used for deterministic iteration over per-type breakdowns.
var CategoryTypes = []CategoryType{
	CategoryIncome,
	CategoryMandatory,
	CategoryOptional,
	CategorySavings,
}

// String returns the string representation of CategoryType.
func (c CategoryType) String() string {
	return string(c)
}

// IsValid checks if the category type is one of the four canonical values.
func (c CategoryType) IsValid() bool {
	switch c {
	case CategoryMandatory, CategoryOptional, CategorySavings, CategoryIncome:
		return true
	}
	return false
}

// ParseCategoryType parses a raw value into a canonical category type.
// Unrecognized values are rejected, never coerced here; sign-based fallback
// is the caller's concern.
func ParseCategoryType(s string) (CategoryType, bool) {
	c := CategoryType(strings.ToLower(strings.TrimSpace(s)))
	if c.IsValid() {
		return c, true
	}
	return "", false
}

// FallbackCategoryType returns the deterministic fallback for records whose
// category fields resolve to nothing usable: income for non-negative amounts,
// optional for spend.
func FallbackCategoryType(amount decimal.Decimal) CategoryType {
	if amount.IsNegative() {
		return CategoryOptional
	}
	return CategoryIncome
}

// ProviderRaw carries the untouched provider payload nested inside a
// transaction record. Used as the last resort in every fallback chain.
type ProviderRaw struct {
	Amount        *float64 `json:"amount,omitempty"`
	CategoryType  string   `json:"categoryType,omitempty"`
	CategoryLabel string   `json:"categoryLabel,omitempty"`
}

// Party is a named counterparty attached to a transaction.
type Party struct {
	Name string `json:"name,omitempty"`
}

// TransactionRecord is a single raw bank transaction as produced by the
// ingestion pipeline. Amounts are signed: negative is spend, positive is
// income. Exactly which of the amount and category fields are populated
// varies by provider and by how much the user has overridden.
type TransactionRecord struct {
	TransactionID string `json:"transactionId"`

	Amount      *float64     `json:"amount,omitempty"`
	AmountMinor *float64     `json:"amountMinor,omitempty"`
	Raw         *ProviderRaw `json:"raw,omitempty"`

	UserCategoryType    string `json:"userCategoryType,omitempty"`
	CategoryType        string `json:"categoryType,omitempty"`
	DefaultCategoryType string `json:"defaultCategoryType,omitempty"`

	UserCategoryLabel    string `json:"userCategoryLabel,omitempty"`
	UserCategory         string `json:"userCategory,omitempty"`
	DefaultCategoryLabel string `json:"defaultCategoryLabel,omitempty"`

	Merchant     *Party `json:"merchant,omitempty"`
	Counterparty *Party `json:"counterparty,omitempty"`
	Description  string `json:"description,omitempty"`

	CreatedISO string `json:"createdISO,omitempty"`
	MonthKey   string `json:"monthKey,omitempty"`
}

// amountSource is one candidate in the amount resolution chain.
type amountSource struct {
	name    string
	extract func(*TransactionRecord) (float64, bool)
}

// amountSources is the ordered amount fallback chain: explicit major units,
// then minor units / 100, then the provider raw amount / 100.
var amountSources = []amountSource{
	{"amount", func(t *TransactionRecord) (float64, bool) {
		if t.Amount != nil {
			return *t.Amount, true
		}
		return 0, false
	}},
	{"amountMinor", func(t *TransactionRecord) (float64, bool) {
		if t.AmountMinor != nil {
			return *t.AmountMinor / 100, true
		}
		return 0, false
	}},
	{"raw.amount", func(t *TransactionRecord) (float64, bool) {
		if t.Raw != nil && t.Raw.Amount != nil {
			return *t.Raw.Amount / 100, true
		}
		return 0, false
	}},
}

// ResolveAmount resolves the signed major-unit amount for a transaction
// through the fallback chain. A non-finite candidate is treated as absent
// and the chain continues with the next source. The second return is false
// when no source yields a finite value, or when the resolved value is
// exactly zero; such records are excluded from every aggregate.
func (t *TransactionRecord) ResolveAmount() (decimal.Decimal, bool) {
	for _, src := range amountSources {
		v, ok := src.extract(t)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v == 0 {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	}
	return decimal.Zero, false
}

// categoryTypeSources is the ordered category-type fallback chain, in
// increasing distance from the user's intent.
var categoryTypeSources = []func(*TransactionRecord) string{
	func(t *TransactionRecord) string { return t.UserCategoryType },
	func(t *TransactionRecord) string { return t.CategoryType },
	func(t *TransactionRecord) string { return t.DefaultCategoryType },
	func(t *TransactionRecord) string {
		if t.Raw != nil {
			return t.Raw.CategoryType
		}
		return ""
	},
}

// ResolveCategoryType resolves the canonical category type through the
// fallback chain, coercing unrecognized values to the sign-based fallback.
func (t *TransactionRecord) ResolveCategoryType(amount decimal.Decimal) CategoryType {
	for _, src := range categoryTypeSources {
		if c, ok := ParseCategoryType(src(t)); ok {
			return c
		}
	}
	return FallbackCategoryType(amount)
}

// categoryLabelSources is the ordered category-label fallback chain.
// userCategory is the legacy field name kept for older records.
var categoryLabelSources = []func(*TransactionRecord) string{
	func(t *TransactionRecord) string { return t.UserCategoryLabel },
	func(t *TransactionRecord) string { return t.UserCategory },
	func(t *TransactionRecord) string { return t.DefaultCategoryLabel },
	func(t *TransactionRecord) string {
		if t.Raw != nil {
			return t.Raw.CategoryLabel
		}
		return ""
	},
}

// ResolveCategoryLabel returns the first non-empty trimmed label from the
// fallback chain, or the empty string when every source is blank.
func (t *TransactionRecord) ResolveCategoryLabel() string {
	for _, src := range categoryLabelSources {
		if label := strings.TrimSpace(src(t)); label != "" {
			return label
		}
	}
	return ""
}

// HasUserOverride reports whether the user categorized this transaction
// themselves. Spend records without an override are candidates for the
// pending-classification queue.
func (t *TransactionRecord) HasUserOverride() bool {
	return strings.TrimSpace(t.UserCategoryType) != "" ||
		strings.TrimSpace(t.UserCategoryLabel) != "" ||
		strings.TrimSpace(t.UserCategory) != ""
}

// ResolveMonthKey resolves the YYYY-MM bucket key for a transaction: the
// explicit monthKey field when present, otherwise the year-month prefix of
// the ISO creation timestamp. The second return is false when neither source
// yields a well-formed key.
func (t *TransactionRecord) ResolveMonthKey() (string, bool) {
	if key := strings.TrimSpace(t.MonthKey); isMonthKey(key) {
		return key, true
	}
	created := strings.TrimSpace(t.CreatedISO)
	if len(created) >= 7 && isMonthKey(created[:7]) {
		return created[:7], true
	}
	return "", false
}

// isMonthKey checks for the YYYY-MM shape. Keys of this shape sort
// lexicographically in chronological order.
func isMonthKey(s string) bool {
	if len(s) != 7 || s[4] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// PotRecord is a named savings sub-account. Balance is stored in integer
// minor units for lossless persistence.
type PotRecord struct {
	PotID   string `json:"potId,omitempty"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

// Identifier returns the pot's identifier, preferring the explicit potId
// field over the generic id.
func (p *PotRecord) Identifier() string {
	if id := strings.TrimSpace(p.PotID); id != "" {
		return id
	}
	return strings.TrimSpace(p.ID)
}

// BalanceMajor returns the pot balance converted to major currency units.
func (p *PotRecord) BalanceMajor() decimal.Decimal {
	return decimal.NewFromInt(p.Balance).Div(decimal.NewFromInt(100))
}

// GoalRecord is a savings goal, optionally linked to a pot and classified
// into a numeric life-area theme.
type GoalRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	EstimatedCost *float64 `json:"estimatedCost,omitempty"`
	TargetValue   *float64 `json:"targetValue,omitempty"`
	Target        *float64 `json:"target,omitempty"`

	Theme int64 `json:"theme,omitempty"`

	PotID    string `json:"potId,omitempty"`
	PotIDAlt string `json:"pot_id,omitempty"`
}

// costSources is the ordered estimated-cost fallback chain.
var costSources = []func(*GoalRecord) *float64{
	func(g *GoalRecord) *float64 { return g.EstimatedCost },
	func(g *GoalRecord) *float64 { return g.TargetValue },
	func(g *GoalRecord) *float64 { return g.Target },
}

// ResolveEstimatedCost resolves the goal's estimated cost through the
// fallback chain. The second return is false when no cost field is present;
// funding metrics then degrade to zero/null rather than erroring.
func (g *GoalRecord) ResolveEstimatedCost() (decimal.Decimal, bool) {
	for _, src := range costSources {
		if v := src(g); v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
			return decimal.NewFromFloat(*v), true
		}
	}
	return decimal.Zero, false
}

// LinkedPotID returns the explicitly linked pot identifier, if any.
func (g *GoalRecord) LinkedPotID() string {
	if id := strings.TrimSpace(g.PotID); id != "" {
		return id
	}
	return strings.TrimSpace(g.PotIDAlt)
}

// BudgetConfig is the single per-user budget configuration document.
// ByCategory maps a category key (a canonical type or a free-form label) to
// a budget amount in major units.
type BudgetConfig struct {
	Currency   string             `json:"currency,omitempty"`
	ByCategory map[string]float64 `json:"byCategory,omitempty"`
}

// NormalizeKey canonicalizes an aggregation or budget key: trimmed and
// lowercased so that label variants merge into one bucket.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
