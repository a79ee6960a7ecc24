// Package engine orchestrates one analytics run for a single user: fetch the
// user's collections, aggregate transactions, match budgets, align goals with
// pots, and persist the two summary documents.
//
// The engine is a stateless batch pipeline. Each Run rebuilds every derived
// value from the fetched inputs; nothing is carried between invocations.
package engine

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"finance-alignment-engine/internal/aggregator"
	"finance-alignment-engine/internal/budget"
	"finance-alignment-engine/internal/goals"
	"finance-alignment-engine/internal/models"
	apperrors "finance-alignment-engine/pkg/errors"
	"finance-alignment-engine/pkg/logger"
)

// defaultCurrency is used when the budget configuration names none.
const defaultCurrency = "GBP"

// Store is the persistence surface the engine runs against. Reads are scoped
// to one owner; writes are merge-upserts keyed by owner so fields written by
// other systems survive.
type Store interface {
	Transactions(ctx context.Context, ownerUID string) ([]models.TransactionRecord, error)
	Pots(ctx context.Context, ownerUID string) ([]models.PotRecord, error)
	Goals(ctx context.Context, ownerUID string) ([]models.GoalRecord, error)

	// BudgetConfig returns nil without error when the owner has no budget
	// configuration document.
	BudgetConfig(ctx context.Context, ownerUID string) (*models.BudgetConfig, error)

	UpsertBudgetSummary(ctx context.Context, doc *BudgetSummaryDocument) error
	UpsertGoalAlignment(ctx context.Context, doc *GoalAlignmentDocument) error
}

// Config holds configuration options for the engine.
type Config struct {
	Aggregator *aggregator.Config
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		Aggregator: aggregator.DefaultConfig(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Aggregator == nil {
		return apperrors.ConfigurationError(apperrors.CodeMissingConfig, "aggregator", nil, nil)
	}
	return c.Aggregator.Validate()
}

// Engine runs the analytics pipeline.
type Engine struct {
	store      Store
	config     *Config
	aggregator *aggregator.Aggregator
	matcher    *budget.Matcher
	aligner    *goals.Aligner
	logger     logger.Logger

	// now is swappable for deterministic timestamps in tests.
	now func() time.Time
}

// NewEngine creates a new engine bound to the given store.
func NewEngine(store Store, config *Config) (*Engine, error) {
	if store == nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingConfig, "store", nil, nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	agg, err := aggregator.NewAggregator(config.Aggregator)
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:      store,
		config:     config,
		aggregator: agg,
		matcher:    budget.NewMatcher(),
		aligner:    goals.NewAligner(),
		logger:     logger.GetGlobalLogger().WithComponent("engine"),
		now:        time.Now,
	}, nil
}

// inputs holds the four per-owner collections fetched at the start of a run.
type inputs struct {
	transactions []models.TransactionRecord
	pots         []models.PotRecord
	goals        []models.GoalRecord
	budgetConfig *models.BudgetConfig
}

// Run executes one full analytics pass for the given owner and persists both
// result documents. The assembled documents are also returned so schedulers
// and tests can inspect them without a read-back.
func (e *Engine) Run(ctx context.Context, ownerUID string) (*BudgetSummaryDocument, *GoalAlignmentDocument, error) {
	ownerUID = strings.TrimSpace(ownerUID)
	if ownerUID == "" {
		return nil, nil, apperrors.ValidationError(apperrors.CodeMissingField, "owner_uid", "", nil)
	}

	runLogger := e.logger.WithFields(logger.Fields{
		"run_id":    uuid.NewString(),
		"owner_uid": ownerUID,
	})
	start := e.now()
	runLogger.Info("Analytics run started")

	in, err := e.fetchInputs(ctx, ownerUID)
	if err != nil {
		return nil, nil, err
	}

	settings := parseBudgetSettings(in.budgetConfig, runLogger)
	aggResult := e.aggregator.Aggregate(in.transactions)
	alignment := e.aligner.Align(in.pots, in.goals)
	progress := e.matcher.Progress(settings, aggResult)

	updatedAt := e.now().UTC()
	summary := &BudgetSummaryDocument{
		OwnerUID:              ownerUID,
		Totals:                aggResult.Totals,
		Categories:            aggResult.Categories,
		Monthly:               aggResult.Monthly,
		SpendTimeline:         aggResult.SpendTimeline,
		MerchantSummary:       aggResult.MerchantSummary,
		PendingClassification: aggResult.PendingClassification,
		PendingCount:          aggResult.PendingCount,
		BudgetProgress:        progress,
		Currency:              settings.Currency,
		NetCashflow:           aggResult.NetCashflow,
		ThemeProgress:         alignment.Themes,
		UpdatedAt:             updatedAt,
	}
	goalDoc := &GoalAlignmentDocument{
		OwnerUID:  ownerUID,
		Goals:     alignment.Goals,
		Themes:    alignment.Themes,
		UpdatedAt: updatedAt,
	}

	if err := e.store.UpsertBudgetSummary(ctx, summary); err != nil {
		return nil, nil, apperrors.StoreError(apperrors.CodeWriteFailed, "upsert budget summary", err)
	}
	if err := e.store.UpsertGoalAlignment(ctx, goalDoc); err != nil {
		return nil, nil, apperrors.StoreError(apperrors.CodeWriteFailed, "upsert goal alignment", err)
	}

	runLogger.WithFields(logger.Fields{
		"transactions":  len(in.transactions),
		"skipped":       aggResult.Skipped,
		"pots":          len(in.pots),
		"goals":         len(in.goals),
		"budget_rows":   len(progress),
		"pending_count": aggResult.PendingCount,
		"duration":      e.now().Sub(start).String(),
	}).Info("Analytics run completed")

	return summary, goalDoc, nil
}

// fetchInputs loads the owner's four collections concurrently. The first
// failing fetch cancels the rest.
func (e *Engine) fetchInputs(ctx context.Context, ownerUID string) (*inputs, error) {
	in := &inputs{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if in.transactions, err = e.store.Transactions(ctx, ownerUID); err != nil {
			return apperrors.StoreError(apperrors.CodeQueryFailed, "fetch transactions", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if in.pots, err = e.store.Pots(ctx, ownerUID); err != nil {
			return apperrors.StoreError(apperrors.CodeQueryFailed, "fetch pots", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if in.goals, err = e.store.Goals(ctx, ownerUID); err != nil {
			return apperrors.StoreError(apperrors.CodeQueryFailed, "fetch goals", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if in.budgetConfig, err = e.store.BudgetConfig(ctx, ownerUID); err != nil {
			return apperrors.StoreError(apperrors.CodeQueryFailed, "fetch budget config", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// parseBudgetSettings normalizes a raw budget configuration document.
// Entries with empty keys or non-finite values are skipped. Keys are folded
// with NormalizeKey; the first-seen original casing per folded key is kept
// as the display label (first in ascending original-key order, so collisions
// resolve the same way every run).
func parseBudgetSettings(config *models.BudgetConfig, log logger.Logger) *budget.Settings {
	settings := &budget.Settings{
		Currency: defaultCurrency,
		Amounts:  make(map[string]decimal.Decimal),
		Labels:   make(map[string]string),
	}
	if config == nil {
		return settings
	}

	if currency := strings.TrimSpace(config.Currency); currency != "" {
		settings.Currency = currency
	}

	rawKeys := make([]string, 0, len(config.ByCategory))
	for key := range config.ByCategory {
		rawKeys = append(rawKeys, key)
	}
	sort.Strings(rawKeys)

	for _, rawKey := range rawKeys {
		value := config.ByCategory[rawKey]
		key := models.NormalizeKey(rawKey)
		if key == "" {
			log.WithField("reason", "empty key").Warn("Skipping budget entry")
			continue
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			log.WithFields(logger.Fields{
				"key":    key,
				"reason": "non-finite value",
			}).Warn("Skipping budget entry")
			continue
		}
		if _, seen := settings.Amounts[key]; seen {
			continue
		}
		settings.Amounts[key] = decimal.NewFromFloat(value)
		settings.Labels[key] = strings.TrimSpace(rawKey)
	}
	return settings
}
