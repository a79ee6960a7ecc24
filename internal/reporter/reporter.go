// Package reporter renders the engine's analytics documents for human and
// programmatic consumption.
//
// Supported output formats:
//   - Console: sectioned, human-readable output for terminal display
//   - JSON: both documents as one structured object
//   - CSV: budget progress and goal rows for spreadsheet import
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"finance-alignment-engine/internal/engine"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Console section toggles
	IncludeCategories     bool `json:"include_categories"`
	IncludeTimeline       bool `json:"include_timeline"`
	IncludeMerchants      bool `json:"include_merchants"`
	IncludeBudgetProgress bool `json:"include_budget_progress"`
	IncludeGoals          bool `json:"include_goals"`
	IncludePendingQueue   bool `json:"include_pending_queue"`
	MaxListItems          int  `json:"max_list_items"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:                FormatConsole,
		IncludeCategories:     true,
		IncludeTimeline:       true,
		IncludeMerchants:      true,
		IncludeBudgetProgress: true,
		IncludeGoals:          true,
		IncludePendingQueue:   true,
		MaxListItems:          10,
		CSVDelimiter:          ',',
		CSVHeaders:            true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxListItems <= 0 {
		return fmt.Errorf("max list items must be positive, got %d", c.MaxListItems)
	}
	return nil
}

// ReportGenerator renders analytics documents in the configured format.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator with the given configuration.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes both documents to the writer in the configured
// format.
func (rg *ReportGenerator) GenerateReport(summary *engine.BudgetSummaryDocument, alignment *engine.GoalAlignmentDocument, writer io.Writer) error {
	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(summary, alignment, writer)
	case FormatJSON:
		return rg.generateJSONReport(summary, alignment, writer)
	case FormatCSV:
		return rg.generateCSVReport(summary, alignment, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(summary *engine.BudgetSummaryDocument, alignment *engine.GoalAlignmentDocument, writer io.Writer) error {
	fmt.Fprintf(writer, "FINANCE ALIGNMENT REPORT\n")
	fmt.Fprintf(writer, "Owner:     %s\n", summary.OwnerUID)
	fmt.Fprintf(writer, "Generated: %s\n\n", summary.UpdatedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== TOTALS (%s) ===\n", summary.Currency)
	fmt.Fprintf(writer, "Income:     %s\n", summary.Totals.Income.StringFixed(2))
	fmt.Fprintf(writer, "Mandatory:  %s\n", summary.Totals.Mandatory.StringFixed(2))
	fmt.Fprintf(writer, "Optional:   %s\n", summary.Totals.Optional.StringFixed(2))
	fmt.Fprintf(writer, "Savings:    %s\n", summary.Totals.Savings.StringFixed(2))
	fmt.Fprintf(writer, "Net:        %s\n\n", summary.NetCashflow.StringFixed(2))

	if rg.config.IncludeCategories && len(summary.Categories) > 0 {
		fmt.Fprintf(writer, "=== TOP CATEGORIES ===\n")
		for i, entry := range summary.Categories {
			if i >= rg.config.MaxListItems {
				fmt.Fprintf(writer, "  ... and %d more\n", len(summary.Categories)-i)
				break
			}
			fmt.Fprintf(writer, "  %-24s %10s  (%d tx, %s)\n",
				entry.Label, entry.Amount.StringFixed(2), entry.Count, entry.Type)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeTimeline && len(summary.SpendTimeline) > 0 {
		fmt.Fprintf(writer, "=== MONTHLY TIMELINE ===\n")
		for _, month := range summary.SpendTimeline {
			fmt.Fprintf(writer, "  %s  in %10s  out %10s  net %10s\n",
				month.Month,
				month.Income.StringFixed(2),
				month.Mandatory.Add(month.Optional).Add(month.Savings).StringFixed(2),
				month.Net.StringFixed(2))
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeMerchants && len(summary.MerchantSummary) > 0 {
		fmt.Fprintf(writer, "=== TOP MERCHANTS ===\n")
		for i, merchant := range summary.MerchantSummary {
			if i >= rg.config.MaxListItems {
				fmt.Fprintf(writer, "  ... and %d more\n", len(summary.MerchantSummary)-i)
				break
			}
			fmt.Fprintf(writer, "  %-24s %10s  (%d tx, %s)\n",
				merchant.Name, merchant.TotalSpend.StringFixed(2),
				merchant.Count, merchant.PrimaryCategoryType)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeBudgetProgress && len(summary.BudgetProgress) > 0 {
		fmt.Fprintf(writer, "=== BUDGET PROGRESS ===\n")
		for _, row := range summary.BudgetProgress {
			fmt.Fprintf(writer, "  %-24s budget %10s  actual %10s  variance %10s  utilisation %s\n",
				row.Key,
				row.Budget.StringFixed(2),
				row.Actual.StringFixed(2),
				row.Variance.StringFixed(2),
				formatPercent(row.Utilisation))
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeGoals && len(alignment.Goals) > 0 {
		fmt.Fprintf(writer, "=== GOALS ===\n")
		for _, goal := range alignment.Goals {
			fmt.Fprintf(writer, "  %-24s [%s] cost %10s  funded %10s  shortfall %10s  %s\n",
				goal.Title, goal.ThemeName,
				goal.EstimatedCost.StringFixed(2),
				goal.FundedAmount.StringFixed(2),
				goal.Shortfall.StringFixed(2),
				formatPercent(goal.FundedPercent))
		}
		fmt.Fprintf(writer, "\n=== THEMES ===\n")
		for _, theme := range alignment.Themes {
			fmt.Fprintf(writer, "  %-18s %d goals  cost %10s  balance %10s  %s\n",
				theme.ThemeName, theme.GoalCount,
				theme.TotalEstimatedCost.StringFixed(2),
				theme.TotalPotBalance.StringFixed(2),
				formatPercent(theme.FundedPercent))
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludePendingQueue && summary.PendingCount > 0 {
		fmt.Fprintf(writer, "=== PENDING CLASSIFICATION ===\n")
		fmt.Fprintf(writer, "%d spend transaction(s) await categorization (showing %d):\n",
			summary.PendingCount, len(summary.PendingClassification))
		for _, pending := range summary.PendingClassification {
			fmt.Fprintf(writer, "  %-16s %10s  %s\n",
				pending.TransactionID, pending.Amount.StringFixed(2), pending.Description)
		}
	}

	return nil
}

// generateJSONReport emits both documents as one structured object.
func (rg *ReportGenerator) generateJSONReport(summary *engine.BudgetSummaryDocument, alignment *engine.GoalAlignmentDocument, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]interface{}{
		"budgetSummary": summary,
		"goalAlignment": alignment,
	})
}

// generateCSVReport emits budget progress rows followed by goal rows. The
// two row kinds share a leading discriminator column.
func (rg *ReportGenerator) generateCSVReport(summary *engine.BudgetSummaryDocument, alignment *engine.GoalAlignmentDocument, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write([]string{"kind", "name", "budget_or_cost", "actual_or_funded", "variance_or_shortfall", "percent"}); err != nil {
			return err
		}
	}

	for _, row := range summary.BudgetProgress {
		record := []string{
			"budget",
			row.Key,
			row.Budget.StringFixed(2),
			row.Actual.StringFixed(2),
			row.Variance.StringFixed(2),
			formatPercent(row.Utilisation),
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	for _, goal := range alignment.Goals {
		record := []string{
			"goal",
			goal.Title,
			goal.EstimatedCost.StringFixed(2),
			goal.FundedAmount.StringFixed(2),
			goal.Shortfall.StringFixed(2),
			formatPercent(goal.FundedPercent),
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// formatPercent renders a nullable percentage; absent values print as "-".
func formatPercent(pct *float64) string {
	if pct == nil {
		return "-"
	}
	return strconv.FormatFloat(*pct, 'f', 1, 64) + "%"
}

// GetConfiguration returns a copy of the current configuration.
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	config := *rg.config
	return &config
}
