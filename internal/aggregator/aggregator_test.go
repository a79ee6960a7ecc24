package aggregator

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"finance-alignment-engine/internal/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

// createTestSpend builds a user-classified spend transaction in major units.
func createTestSpend(id string, amount float64, catType, label, createdISO string) models.TransactionRecord {
	return models.TransactionRecord{
		TransactionID:     id,
		Amount:            floatPtr(amount),
		UserCategoryType:  catType,
		UserCategoryLabel: label,
		CreatedISO:        createdISO,
	}
}

// createScenarioTransactions builds the canonical five-transaction month:
// salary in, rent and groceries out as mandatory, a coffee as optional, and
// a transfer into savings. Every record carries a user classification.
func createScenarioTransactions() []models.TransactionRecord {
	return []models.TransactionRecord{
		createTestSpend("tx-1", 2500, "income", "Salary", "2025-03-01T09:00:00Z"),
		createTestSpend("tx-2", -950, "mandatory", "Rent", "2025-03-02T08:00:00Z"),
		createTestSpend("tx-3", -45, "mandatory", "Groceries", "2025-03-05T18:30:00Z"),
		createTestSpend("tx-4", -7, "optional", "Coffee", "2025-03-06T10:15:00Z"),
		createTestSpend("tx-5", -300, "savings", "Monthly Transfer", "2025-03-07T12:00:00Z"),
	}
}

func mustAggregator(t *testing.T, config *Config) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(config)
	if err != nil {
		t.Fatalf("NewAggregator returned error: %v", err)
	}
	return agg
}

func assertDecimalEqual(t *testing.T, name string, got decimal.Decimal, want int64) {
	t.Helper()
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Errorf("%s = %s, want %d", name, got, want)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"default config", DefaultConfig(), false},
		{"zero top list", &Config{TopListSize: 0, PendingQueueSize: 25}, true},
		{"negative pending queue", &Config{TopListSize: 50, PendingQueueSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAggregate_TotalsAndNetCashflow(t *testing.T) {
	agg := mustAggregator(t, nil)

	result := agg.Aggregate(createScenarioTransactions())

	assertDecimalEqual(t, "totals.Mandatory", result.Totals.Mandatory, 995)
	assertDecimalEqual(t, "totals.Optional", result.Totals.Optional, 7)
	assertDecimalEqual(t, "totals.Savings", result.Totals.Savings, 300)
	assertDecimalEqual(t, "totals.Income", result.Totals.Income, 2500)
	assertDecimalEqual(t, "netCashflow", result.NetCashflow, 1198)

	if result.PendingCount != 0 {
		t.Errorf("PendingCount = %d, want 0 (all records user-classified)", result.PendingCount)
	}
	if len(result.PendingClassification) != 0 {
		t.Errorf("PendingClassification has %d entries, want 0", len(result.PendingClassification))
	}
	if result.Processed != 5 || result.Skipped != 0 {
		t.Errorf("Processed/Skipped = %d/%d, want 5/0", result.Processed, result.Skipped)
	}

	// Net cashflow is income minus every outgoing bucket, regardless of values.
	want := result.Totals.Income.
		Sub(result.Totals.Mandatory).
		Sub(result.Totals.Optional).
		Sub(result.Totals.Savings)
	if !result.NetCashflow.Equal(want) {
		t.Errorf("NetCashflow = %s, want income - outgoings = %s", result.NetCashflow, want)
	}
}

func TestAggregate_SkipsUnusableAmounts(t *testing.T) {
	agg := mustAggregator(t, nil)

	zero := 0.0
	transactions := []models.TransactionRecord{
		createTestSpend("tx-ok", -10, "optional", "Coffee", "2025-03-01T09:00:00Z"),
		{TransactionID: "tx-zero", Amount: &zero},
		{TransactionID: "tx-empty"},
	}

	result := agg.Aggregate(transactions)

	if result.Processed != 1 {
		t.Errorf("Processed = %d, want 1", result.Processed)
	}
	if result.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", result.Skipped)
	}
	assertDecimalEqual(t, "totals.Optional", result.Totals.Optional, 10)
}

func TestAggregate_MonthlyBucketsAndTimeline(t *testing.T) {
	agg := mustAggregator(t, nil)

	transactions := []models.TransactionRecord{
		createTestSpend("tx-1", -100, "mandatory", "Rent", "2025-02-01T09:00:00Z"),
		createTestSpend("tx-2", 500, "income", "Salary", "2025-01-28T09:00:00Z"),
		createTestSpend("tx-3", -20, "optional", "Cinema", "2025-02-14T20:00:00Z"),
		{TransactionID: "tx-4", Amount: floatPtr(-30), UserCategoryType: "optional"},
	}

	result := agg.Aggregate(transactions)

	// tx-4 has no resolvable month and lands in the grand totals only.
	if len(result.Monthly) != 2 {
		t.Fatalf("len(Monthly) = %d, want 2", len(result.Monthly))
	}
	assertDecimalEqual(t, "totals.Optional", result.Totals.Optional, 50)

	if len(result.SpendTimeline) != 2 {
		t.Fatalf("len(SpendTimeline) = %d, want 2", len(result.SpendTimeline))
	}
	if result.SpendTimeline[0].Month != "2025-01" || result.SpendTimeline[1].Month != "2025-02" {
		t.Errorf("timeline months = %q, %q, want ascending 2025-01, 2025-02",
			result.SpendTimeline[0].Month, result.SpendTimeline[1].Month)
	}

	for _, entry := range result.SpendTimeline {
		bucket, ok := result.Monthly[entry.Month]
		if !ok {
			t.Errorf("timeline month %q missing from Monthly map", entry.Month)
			continue
		}
		if !entry.Net.Equal(bucket.Net()) {
			t.Errorf("month %q Net = %s, want %s", entry.Month, entry.Net, bucket.Net())
		}
	}

	feb := result.Monthly["2025-02"]
	assertDecimalEqual(t, "2025-02 mandatory", feb.Mandatory, 100)
	assertDecimalEqual(t, "2025-02 optional", feb.Optional, 20)
	assertDecimalEqual(t, "2025-02 net", feb.Net(), -120)
}

func TestAggregate_CategoryTable(t *testing.T) {
	agg := mustAggregator(t, nil)

	transactions := []models.TransactionRecord{
		createTestSpend("tx-1", -30, "optional", "Coffee", "2025-03-01T09:00:00Z"),
		createTestSpend("tx-2", -20, "optional", "COFFEE", "2025-03-02T09:00:00Z"),
		createTestSpend("tx-3", -25, "mandatory", "Coffee", "2025-03-03T09:00:00Z"),
	}

	result := agg.Aggregate(transactions)

	// Same label, different type stays a distinct row; case differences fold.
	if len(result.Categories) != 2 {
		t.Fatalf("len(Categories) = %d, want 2", len(result.Categories))
	}

	top := result.Categories[0]
	if top.Type != models.CategoryOptional || top.Count != 2 {
		t.Errorf("top category = %s/%s count %d, want optional coffee with count 2",
			top.Type, top.Label, top.Count)
	}
	assertDecimalEqual(t, "top category amount", top.Amount, 50)
	if top.Label != "Coffee" {
		t.Errorf("top category label = %q, want first-seen %q", top.Label, "Coffee")
	}
}

func TestAggregate_TruncationAfterSort(t *testing.T) {
	agg := mustAggregator(t, &Config{TopListSize: 2, PendingQueueSize: 25})

	var transactions []models.TransactionRecord
	// Insert the largest category last so truncation before sorting would
	// drop it.
	amounts := []float64{-10, -20, -30, -500}
	for i, amount := range amounts {
		transactions = append(transactions, createTestSpend(
			fmt.Sprintf("tx-%d", i),
			amount,
			"optional",
			fmt.Sprintf("Category %d", i),
			"2025-03-01T09:00:00Z",
		))
	}

	result := agg.Aggregate(transactions)

	if len(result.Categories) != 2 {
		t.Fatalf("len(Categories) = %d, want 2", len(result.Categories))
	}
	assertDecimalEqual(t, "Categories[0].Amount", result.Categories[0].Amount, 500)
	assertDecimalEqual(t, "Categories[1].Amount", result.Categories[1].Amount, 30)

	if len(result.MerchantSummary) != 2 {
		t.Fatalf("len(MerchantSummary) = %d, want 2", len(result.MerchantSummary))
	}
	assertDecimalEqual(t, "MerchantSummary[0].TotalSpend", result.MerchantSummary[0].TotalSpend, 500)

	// The per-label index is never truncated.
	if len(result.LabelTotals) != len(amounts) {
		t.Fatalf("len(LabelTotals) = %d, want %d", len(result.LabelTotals), len(amounts))
	}
	assertDecimalEqual(t, `LabelTotals["category 0"]`, result.LabelTotals["category 0"], 10)
}

func TestAggregate_MerchantNameFallbackAndNormalization(t *testing.T) {
	agg := mustAggregator(t, nil)

	transactions := []models.TransactionRecord{
		{
			TransactionID:    "tx-1",
			Amount:           floatPtr(-12.50),
			UserCategoryType: "mandatory",
			Merchant:         &models.Party{Name: "TESCO STORES"},
			CreatedISO:       "2025-03-01T09:00:00Z",
		},
		{
			TransactionID:    "tx-2",
			Amount:           floatPtr(-7.50),
			UserCategoryType: "mandatory",
			Merchant:         &models.Party{Name: "Tesco-Stores"},
			CreatedISO:       "2025-03-04T09:00:00Z",
		},
		{
			TransactionID:    "tx-3",
			Amount:           floatPtr(-5),
			UserCategoryType: "optional",
			Counterparty:     &models.Party{Name: "Jane Doe"},
			CreatedISO:       "2025-03-02T09:00:00Z",
		},
		{
			TransactionID:    "tx-4",
			Amount:           floatPtr(-3),
			UserCategoryType: "optional",
			Description:      "Parking meter",
			CreatedISO:       "2025-03-03T09:00:00Z",
		},
		{
			// Income never reaches the leaderboard.
			TransactionID:    "tx-5",
			Amount:           floatPtr(2000),
			UserCategoryType: "income",
			Merchant:         &models.Party{Name: "Employer Ltd"},
			CreatedISO:       "2025-03-01T09:00:00Z",
		},
	}

	result := agg.Aggregate(transactions)

	if len(result.MerchantSummary) != 3 {
		t.Fatalf("len(MerchantSummary) = %d, want 3", len(result.MerchantSummary))
	}

	tesco := result.MerchantSummary[0]
	if tesco.Name != "TESCO STORES" {
		t.Errorf("merged merchant name = %q, want first-seen %q", tesco.Name, "TESCO STORES")
	}
	if tesco.Count != 2 {
		t.Errorf("merged merchant count = %d, want 2", tesco.Count)
	}
	assertDecimalEqual(t, "tesco spend", tesco.TotalSpend, 20)
	if tesco.LastSeen != "2025-03-04T09:00:00Z" {
		t.Errorf("tesco LastSeen = %q, want most recent timestamp", tesco.LastSeen)
	}
	if tesco.PrimaryCategoryType != models.CategoryMandatory {
		t.Errorf("tesco primary type = %s, want mandatory", tesco.PrimaryCategoryType)
	}

	names := map[string]bool{}
	for _, m := range result.MerchantSummary {
		names[m.Name] = true
	}
	if !names["Jane Doe"] || !names["Parking meter"] {
		t.Errorf("expected counterparty and description fallbacks in leaderboard, got %v", names)
	}
}

func TestAggregate_PendingQueueCap(t *testing.T) {
	agg := mustAggregator(t, &Config{TopListSize: 50, PendingQueueSize: 2})

	var transactions []models.TransactionRecord
	for i := 0; i < 4; i++ {
		transactions = append(transactions, models.TransactionRecord{
			TransactionID: fmt.Sprintf("tx-%d", i),
			Amount:        floatPtr(-10),
			Description:   fmt.Sprintf("Unknown %d", i),
			CreatedISO:    "2025-03-01T09:00:00Z",
		})
	}
	// User-classified spend and income never enter the queue.
	transactions = append(transactions,
		createTestSpend("tx-classified", -10, "optional", "Coffee", "2025-03-01T09:00:00Z"),
		models.TransactionRecord{TransactionID: "tx-income", Amount: floatPtr(100)},
	)

	result := agg.Aggregate(transactions)

	if result.PendingCount != 4 {
		t.Errorf("PendingCount = %d, want 4 (counter is never capped)", result.PendingCount)
	}
	if len(result.PendingClassification) != 2 {
		t.Fatalf("len(PendingClassification) = %d, want capped 2", len(result.PendingClassification))
	}
	if result.PendingClassification[0].TransactionID != "tx-0" ||
		result.PendingClassification[1].TransactionID != "tx-1" {
		t.Errorf("pending queue should keep input order, got %q, %q",
			result.PendingClassification[0].TransactionID,
			result.PendingClassification[1].TransactionID)
	}
}

func TestPrimaryCategoryType_TieBreak(t *testing.T) {
	byType := map[models.CategoryType]decimal.Decimal{
		models.CategoryOptional:  decimal.NewFromInt(50),
		models.CategoryMandatory: decimal.NewFromInt(50),
	}

	if got := primaryCategoryType(byType); got != models.CategoryMandatory {
		t.Errorf("primaryCategoryType tie = %s, want alphabetically smaller mandatory", got)
	}

	byType[models.CategoryOptional] = decimal.NewFromInt(60)
	if got := primaryCategoryType(byType); got != models.CategoryOptional {
		t.Errorf("primaryCategoryType = %s, want largest-share optional", got)
	}
}

func TestNormalizeMerchantKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"TESCO STORES", "tesco stores"},
		{"Tesco-Stores", "tesco stores"},
		{"  Amazon*Marketplace  ", "amazon marketplace"},
		{"Café 24/7", "caf 24 7"},
		{"***", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeMerchantKey(tt.input); got != tt.want {
				t.Errorf("NormalizeMerchantKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAggregate_MerchantKeyFallsBackToTransactionID(t *testing.T) {
	agg := mustAggregator(t, nil)

	transactions := []models.TransactionRecord{
		{TransactionID: "tx-a", Amount: floatPtr(-5), Description: "***", UserCategoryType: "optional"},
		{TransactionID: "tx-b", Amount: floatPtr(-5), Description: "***", UserCategoryType: "optional"},
	}

	result := agg.Aggregate(transactions)

	// Unnormalizable names must not collapse into a single shared bucket.
	if len(result.MerchantSummary) != 2 {
		t.Errorf("len(MerchantSummary) = %d, want 2 distinct buckets", len(result.MerchantSummary))
	}
}
