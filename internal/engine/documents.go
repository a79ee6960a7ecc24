package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"finance-alignment-engine/internal/aggregator"
	"finance-alignment-engine/internal/budget"
	"finance-alignment-engine/internal/goals"
)

// BudgetSummaryDocument is the per-user spending summary, rebuilt from
// scratch on every run and merge-upserted into the document store. Fields on
// the stored document that this engine does not write are preserved by the
// upsert.
type BudgetSummaryDocument struct {
	OwnerUID              string                          `json:"ownerUid"`
	Totals                aggregator.Totals               `json:"totals"`
	Categories            []aggregator.CategoryEntry      `json:"categories"`
	Monthly               map[string]*aggregator.Totals   `json:"monthly"`
	SpendTimeline         []aggregator.TimelineEntry      `json:"spendTimeline"`
	MerchantSummary       []aggregator.MerchantEntry      `json:"merchantSummary"`
	PendingClassification []aggregator.PendingTransaction `json:"pendingClassification"`
	PendingCount          int                             `json:"pendingCount"`
	BudgetProgress        []budget.ProgressRow            `json:"budgetProgress"`
	Currency              string                          `json:"currency"`
	NetCashflow           decimal.Decimal                 `json:"netCashflow"`
	ThemeProgress         []goals.ThemeSummary            `json:"themeProgress"`
	UpdatedAt             time.Time                       `json:"updatedAt"`
}

// GoalAlignmentDocument is the per-user goal-funding report.
type GoalAlignmentDocument struct {
	OwnerUID  string               `json:"ownerUid"`
	Goals     []goals.GoalSummary  `json:"goals"`
	Themes    []goals.ThemeSummary `json:"themes"`
	UpdatedAt time.Time            `json:"updatedAt"`
}
