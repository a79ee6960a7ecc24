// Package aggregator turns a stream of raw transaction records into
// categorized totals, a monthly timeline, a merchant leaderboard, and a
// pending-classification queue.
//
// Aggregation is a single pass over the caller-supplied sequence. All keyed
// accumulators are plain maps with lazily-initialized zero-valued entries;
// output ordering is imposed afterwards by explicit sorts with documented
// tie-breaks, so results do not depend on input or map iteration order.
// Malformed records (unresolvable, zero, or non-finite amounts) are skipped,
// never fatal.
package aggregator

import (
	"sort"
	"strings"

	"finance-alignment-engine/internal/models"
	apperrors "finance-alignment-engine/pkg/errors"
	"finance-alignment-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

func errInvalidConfig(setting string, value interface{}) error {
	return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, setting, value, nil)
}

// Config holds configuration options for the aggregator.
type Config struct {
	// TopListSize caps the categories and merchantSummary output lists.
	// Truncation happens after full aggregation and sorting, so it never
	// influences which bucket a transaction lands in.
	TopListSize int

	// PendingQueueSize caps the pending-classification review queue. The
	// pending counter itself is never capped.
	PendingQueueSize int
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() *Config {
	return &Config{
		TopListSize:      50,
		PendingQueueSize: 25,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.TopListSize <= 0 {
		return errInvalidConfig("top_list_size", c.TopListSize)
	}
	if c.PendingQueueSize <= 0 {
		return errInvalidConfig("pending_queue_size", c.PendingQueueSize)
	}
	return nil
}

// Totals holds the per-category-type running totals over the whole set.
// All values are absolute amounts in major units.
type Totals struct {
	Mandatory decimal.Decimal `json:"mandatory"`
	Optional  decimal.Decimal `json:"optional"`
	Savings   decimal.Decimal `json:"savings"`
	Income    decimal.Decimal `json:"income"`
}

// Add accumulates an absolute amount into the bucket for the given type.
func (t *Totals) Add(ct models.CategoryType, amount decimal.Decimal) {
	switch ct {
	case models.CategoryMandatory:
		t.Mandatory = t.Mandatory.Add(amount)
	case models.CategoryOptional:
		t.Optional = t.Optional.Add(amount)
	case models.CategorySavings:
		t.Savings = t.Savings.Add(amount)
	case models.CategoryIncome:
		t.Income = t.Income.Add(amount)
	}
}

// Get returns the total for the given category type.
func (t *Totals) Get(ct models.CategoryType) decimal.Decimal {
	switch ct {
	case models.CategoryMandatory:
		return t.Mandatory
	case models.CategoryOptional:
		return t.Optional
	case models.CategorySavings:
		return t.Savings
	case models.CategoryIncome:
		return t.Income
	}
	return decimal.Zero
}

// Net returns income minus all outgoing buckets.
func (t *Totals) Net() decimal.Decimal {
	return t.Income.Sub(t.Mandatory.Add(t.Optional).Add(t.Savings))
}

// CategoryEntry is one row of the category table, keyed internally by
// categoryType + "__" + lowercase(label).
type CategoryEntry struct {
	Label  string              `json:"label"`
	Amount decimal.Decimal     `json:"amount"`
	Count  int                 `json:"count"`
	Type   models.CategoryType `json:"type"`
}

// TimelineEntry is one month of the spend timeline, carrying the per-type
// breakdown plus the month's net cashflow.
type TimelineEntry struct {
	Month     string          `json:"month"`
	Mandatory decimal.Decimal `json:"mandatory"`
	Optional  decimal.Decimal `json:"optional"`
	Savings   decimal.Decimal `json:"savings"`
	Income    decimal.Decimal `json:"income"`
	Net       decimal.Decimal `json:"net"`
}

// MerchantEntry is one row of the merchant leaderboard. Only spend
// transactions (negative amounts) contribute.
type MerchantEntry struct {
	Name                string                     `json:"name"`
	TotalSpend          decimal.Decimal            `json:"totalSpend"`
	Count               int                        `json:"count"`
	ByType              map[string]decimal.Decimal `json:"byType"`
	LastSeen            string                     `json:"lastSeen,omitempty"`
	PrimaryCategoryType models.CategoryType        `json:"primaryCategoryType"`
}

// PendingTransaction is a spend transaction awaiting human classification.
type PendingTransaction struct {
	TransactionID string          `json:"transactionId"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedISO    string          `json:"createdISO,omitempty"`
}

// Result is the full output of one aggregation pass. It is rebuilt from
// scratch on every run; nothing survives between invocations.
type Result struct {
	Totals                Totals                `json:"totals"`
	Categories            []CategoryEntry       `json:"categories"`
	Monthly               map[string]*Totals    `json:"monthly"`
	SpendTimeline         []TimelineEntry       `json:"spendTimeline"`
	MerchantSummary       []MerchantEntry       `json:"merchantSummary"`
	PendingClassification []PendingTransaction  `json:"pendingClassification"`
	PendingCount          int                   `json:"pendingCount"`
	NetCashflow           decimal.Decimal       `json:"netCashflow"`

	// LabelTotals indexes total absolute amount by normalized category
	// label across every bucket, before the top-list cut on Categories.
	// Budget matching reads this so truncation stays presentational.
	LabelTotals map[string]decimal.Decimal `json:"-"`

	// Processed and Skipped count usable and dropped input records.
	Processed int `json:"-"`
	Skipped   int `json:"-"`
}

// Aggregator performs the aggregation pass.
type Aggregator struct {
	config *Config
	logger logger.Logger
}

// NewAggregator creates a new aggregator with the given configuration.
func NewAggregator(config *Config) (*Aggregator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("aggregator"),
	}, nil
}

// merchantAccumulator is the mutable per-merchant bucket used during the
// pass, before projection into MerchantEntry.
type merchantAccumulator struct {
	name     string
	spend    decimal.Decimal
	count    int
	byType   map[models.CategoryType]decimal.Decimal
	lastSeen string
}

// Aggregate runs a single aggregation pass over the given transactions.
// The result is order-independent except for the pending queue, which keeps
// input order for review purposes.
func (a *Aggregator) Aggregate(transactions []models.TransactionRecord) *Result {
	result := &Result{
		Monthly:     make(map[string]*Totals),
		LabelTotals: make(map[string]decimal.Decimal),
	}

	categories := make(map[string]*CategoryEntry)
	merchants := make(map[string]*merchantAccumulator)

	for i := range transactions {
		tx := &transactions[i]

		amount, ok := tx.ResolveAmount()
		if !ok {
			result.Skipped++
			continue
		}
		result.Processed++

		catType := tx.ResolveCategoryType(amount)
		label := tx.ResolveCategoryLabel()
		absAmount := amount.Abs()

		// 1. Per-type running total.
		result.Totals.Add(catType, absAmount)

		// 2. Monthly bucket, when a month key is resolvable.
		if month, ok := tx.ResolveMonthKey(); ok {
			bucket, exists := result.Monthly[month]
			if !exists {
				bucket = &Totals{}
				result.Monthly[month] = bucket
			}
			bucket.Add(catType, absAmount)
		}

		// 3. Category table and per-label index.
		labelKey := models.NormalizeKey(label)
		catKey := string(catType) + "__" + labelKey
		entry, exists := categories[catKey]
		if !exists {
			entry = &CategoryEntry{Label: label, Type: catType}
			categories[catKey] = entry
		}
		entry.Amount = entry.Amount.Add(absAmount)
		entry.Count++
		result.LabelTotals[labelKey] = result.LabelTotals[labelKey].Add(absAmount)

		// 4. Merchant leaderboard and pending queue, spend only.
		if !amount.IsNegative() {
			continue
		}

		name := resolveMerchantName(tx, label)
		key := NormalizeMerchantKey(name)
		if key == "" {
			key = tx.TransactionID
		}

		m, exists := merchants[key]
		if !exists {
			m = &merchantAccumulator{
				name:   name,
				byType: make(map[models.CategoryType]decimal.Decimal),
			}
			merchants[key] = m
		}
		m.spend = m.spend.Add(absAmount)
		m.count++
		m.byType[catType] = m.byType[catType].Add(absAmount)
		// ISO-8601 strings compare chronologically.
		if tx.CreatedISO > m.lastSeen {
			m.lastSeen = tx.CreatedISO
		}

		if !tx.HasUserOverride() {
			result.PendingCount++
			if len(result.PendingClassification) < a.config.PendingQueueSize {
				result.PendingClassification = append(result.PendingClassification, PendingTransaction{
					TransactionID: tx.TransactionID,
					Description:   name,
					Amount:        amount,
					CreatedISO:    tx.CreatedISO,
				})
			}
		}
	}

	result.Categories = a.projectCategories(categories)
	result.SpendTimeline = projectTimeline(result.Monthly)
	result.MerchantSummary = a.projectMerchants(merchants)
	result.NetCashflow = result.Totals.Net()

	a.logger.WithFields(logger.Fields{
		"processed":     result.Processed,
		"skipped":       result.Skipped,
		"categories":    len(result.Categories),
		"merchants":     len(result.MerchantSummary),
		"pending_count": result.PendingCount,
	}).Debug("Aggregation pass completed")

	return result
}

// projectCategories sorts the category table by amount descending (label key
// ascending on ties) and truncates to the configured top-list size.
func (a *Aggregator) projectCategories(categories map[string]*CategoryEntry) []CategoryEntry {
	keys := make([]string, 0, len(categories))
	for key := range categories {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := categories[keys[i]], categories[keys[j]]
		if !ci.Amount.Equal(cj.Amount) {
			return ci.Amount.GreaterThan(cj.Amount)
		}
		return keys[i] < keys[j]
	})

	if len(keys) > a.config.TopListSize {
		keys = keys[:a.config.TopListSize]
	}

	out := make([]CategoryEntry, 0, len(keys))
	for _, key := range keys {
		out = append(out, *categories[key])
	}
	return out
}

// projectTimeline sorts the month buckets ascending by key and attaches each
// month's net cashflow. YYYY-MM keys sort chronologically by construction.
func projectTimeline(monthly map[string]*Totals) []TimelineEntry {
	months := make([]string, 0, len(monthly))
	for month := range monthly {
		months = append(months, month)
	}
	sort.Strings(months)

	out := make([]TimelineEntry, 0, len(months))
	for _, month := range months {
		bucket := monthly[month]
		out = append(out, TimelineEntry{
			Month:     month,
			Mandatory: bucket.Mandatory,
			Optional:  bucket.Optional,
			Savings:   bucket.Savings,
			Income:    bucket.Income,
			Net:       bucket.Net(),
		})
	}
	return out
}

// projectMerchants sorts merchants by total spend descending (key ascending
// on ties), truncates, and resolves each merchant's primary category type.
func (a *Aggregator) projectMerchants(merchants map[string]*merchantAccumulator) []MerchantEntry {
	keys := make([]string, 0, len(merchants))
	for key := range merchants {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		mi, mj := merchants[keys[i]], merchants[keys[j]]
		if !mi.spend.Equal(mj.spend) {
			return mi.spend.GreaterThan(mj.spend)
		}
		return keys[i] < keys[j]
	})

	if len(keys) > a.config.TopListSize {
		keys = keys[:a.config.TopListSize]
	}

	out := make([]MerchantEntry, 0, len(keys))
	for _, key := range keys {
		m := merchants[key]
		byType := make(map[string]decimal.Decimal, len(m.byType))
		for ct, v := range m.byType {
			byType[string(ct)] = v
		}
		out = append(out, MerchantEntry{
			Name:                m.name,
			TotalSpend:          m.spend,
			Count:               m.count,
			ByType:              byType,
			LastSeen:            m.lastSeen,
			PrimaryCategoryType: primaryCategoryType(m.byType),
		})
	}
	return out
}

// primaryCategoryType picks the category type holding the largest share of a
// merchant's spend. Ties go to the alphabetically smaller type name, keeping
// the result independent of map iteration order.
func primaryCategoryType(byType map[models.CategoryType]decimal.Decimal) models.CategoryType {
	types := make([]string, 0, len(byType))
	for ct := range byType {
		types = append(types, string(ct))
	}
	sort.Strings(types)

	best := models.CategoryOptional
	bestAmount := decimal.NewFromInt(-1)
	for _, name := range types {
		ct := models.CategoryType(name)
		if byType[ct].GreaterThan(bestAmount) {
			best = ct
			bestAmount = byType[ct]
		}
	}
	return best
}

// resolveMerchantName walks the display-name fallback chain for a spend
// transaction, ending at the already-resolved category label.
func resolveMerchantName(tx *models.TransactionRecord, label string) string {
	if tx.Merchant != nil {
		if name := strings.TrimSpace(tx.Merchant.Name); name != "" {
			return name
		}
	}
	if tx.Counterparty != nil {
		if name := strings.TrimSpace(tx.Counterparty.Name); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(tx.Description); name != "" {
		return name
	}
	return label
}

// NormalizeMerchantKey folds a merchant display name into an aggregation
// key: lowercased, symbols stripped, whitespace collapsed. Variants like
// "TESCO STORES" and "Tesco-Stores" land in the same bucket.
func NormalizeMerchantKey(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
