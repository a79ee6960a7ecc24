package goals

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"finance-alignment-engine/internal/models"
)

func floatPtr(v float64) *float64 {
	return &v
}

func createTestPot(id, name string, balanceMinor int64) models.PotRecord {
	return models.PotRecord{PotID: id, Name: name, Balance: balanceMinor}
}

func TestThemeName(t *testing.T) {
	tests := []struct {
		id   int64
		want string
	}{
		{1, "Health"},
		{2, "Growth"},
		{3, "Finance & Wealth"},
		{4, "Tribe"},
		{5, "Home"},
		{0, "General"},
		{6, "General"},
		{-1, "General"},
	}

	for _, tt := range tests {
		if got := ThemeName(tt.id); got != tt.want {
			t.Errorf("ThemeName(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestAlign_JapanTripScenario(t *testing.T) {
	aligner := NewAligner()

	pots := []models.PotRecord{
		createTestPot("pot-1", "Japan Trip Fund", 150000),
		createTestPot("pot-2", "Emergency", 500000),
	}
	goalRecords := []models.GoalRecord{
		{ID: "goal-1", Title: "Japan Trip", EstimatedCost: floatPtr(2000), Theme: 2},
	}

	result := aligner.Align(pots, goalRecords)
	if len(result.Goals) != 1 {
		t.Fatalf("len(Goals) = %d, want 1", len(result.Goals))
	}

	goal := result.Goals[0]
	if goal.PotID != "pot-1" {
		t.Errorf("PotID = %q, want pot-1 via name match", goal.PotID)
	}
	if !goal.PotBalance.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("PotBalance = %s, want 1500", goal.PotBalance)
	}
	if !goal.FundedAmount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("FundedAmount = %s, want 1500", goal.FundedAmount)
	}
	if !goal.Shortfall.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Shortfall = %s, want 500", goal.Shortfall)
	}
	if goal.FundedPercent == nil || math.Abs(*goal.FundedPercent-75) > 1e-9 {
		t.Errorf("FundedPercent = %v, want 75", goal.FundedPercent)
	}
	if goal.ThemeName != "Growth" {
		t.Errorf("ThemeName = %q, want Growth", goal.ThemeName)
	}
}

func TestAlign_ExplicitPotLinkWinsOverNameMatch(t *testing.T) {
	aligner := NewAligner()

	pots := []models.PotRecord{
		createTestPot("pot-1", "Japan Trip", 100000),
		createTestPot("pot-2", "Rainy Day", 20000),
	}
	goalRecords := []models.GoalRecord{
		{ID: "goal-1", Title: "Japan Trip", EstimatedCost: floatPtr(1000), PotID: "pot-2"},
	}

	result := aligner.Align(pots, goalRecords)
	if got := result.Goals[0].PotID; got != "pot-2" {
		t.Errorf("PotID = %q, want explicitly linked pot-2", got)
	}
}

func TestAlign_NameMatchPrefersMostSpecificPot(t *testing.T) {
	aligner := NewAligner()

	// Both pot names are substrings of the title; the longer name is the
	// more specific match regardless of pot order.
	pots := []models.PotRecord{
		createTestPot("pot-1", "Trip", 10000),
		createTestPot("pot-2", "Japan Trip", 50000),
	}
	goalRecords := []models.GoalRecord{
		{ID: "goal-1", Title: "Japan Trip 2026", EstimatedCost: floatPtr(2000)},
	}

	result := aligner.Align(pots, goalRecords)
	if got := result.Goals[0].PotID; got != "pot-2" {
		t.Errorf("PotID = %q, want most specific pot-2", got)
	}

	// Same outcome with the pots supplied in the opposite order.
	result = aligner.Align([]models.PotRecord{pots[1], pots[0]}, goalRecords)
	if got := result.Goals[0].PotID; got != "pot-2" {
		t.Errorf("PotID = %q after reorder, want pot-2", got)
	}
}

func TestAlign_NoMatchingPot(t *testing.T) {
	aligner := NewAligner()

	pots := []models.PotRecord{createTestPot("pot-1", "Holiday", 10000)}
	goalRecords := []models.GoalRecord{
		{ID: "goal-1", Title: "New Bicycle", EstimatedCost: floatPtr(800), Theme: 1},
	}

	result := aligner.Align(pots, goalRecords)
	goal := result.Goals[0]

	if goal.PotID != "" {
		t.Errorf("PotID = %q, want no match", goal.PotID)
	}
	if !goal.PotBalance.IsZero() || !goal.FundedAmount.IsZero() {
		t.Errorf("PotBalance/FundedAmount = %s/%s, want 0/0", goal.PotBalance, goal.FundedAmount)
	}
	if !goal.Shortfall.Equal(decimal.NewFromInt(800)) {
		t.Errorf("Shortfall = %s, want full cost 800", goal.Shortfall)
	}
	if goal.FundedPercent == nil || *goal.FundedPercent != 0 {
		t.Errorf("FundedPercent = %v, want 0", goal.FundedPercent)
	}
}

func TestAlign_GoalWithoutCost(t *testing.T) {
	aligner := NewAligner()

	pots := []models.PotRecord{createTestPot("pot-1", "Holiday", 30000)}
	goalRecords := []models.GoalRecord{
		{ID: "goal-1", Title: "Holiday"},
	}

	result := aligner.Align(pots, goalRecords)
	goal := result.Goals[0]

	if !goal.FundedAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("FundedAmount = %s, want full pot balance 300", goal.FundedAmount)
	}
	if !goal.Shortfall.IsZero() {
		t.Errorf("Shortfall = %s, want 0", goal.Shortfall)
	}
	if goal.FundedPercent != nil {
		t.Errorf("FundedPercent = %v, want nil when no cost is set", *goal.FundedPercent)
	}
}

func TestAlign_FundedPercentCappedAt100(t *testing.T) {
	aligner := NewAligner()

	pots := []models.PotRecord{createTestPot("pot-1", "Gadget", 100000)}
	goalRecords := []models.GoalRecord{
		{ID: "goal-1", Title: "Gadget", EstimatedCost: floatPtr(400)},
	}

	result := aligner.Align(pots, goalRecords)
	goal := result.Goals[0]

	if goal.FundedPercent == nil || *goal.FundedPercent != 100 {
		t.Errorf("FundedPercent = %v, want capped 100", goal.FundedPercent)
	}
	if !goal.FundedAmount.Equal(decimal.NewFromInt(400)) {
		t.Errorf("FundedAmount = %s, want capped at cost 400", goal.FundedAmount)
	}
}

func TestAlign_CostFallbackChain(t *testing.T) {
	aligner := NewAligner()

	goalRecords := []models.GoalRecord{
		{ID: "goal-1", Title: "A", TargetValue: floatPtr(250)},
		{ID: "goal-2", Title: "B", Target: floatPtr(100)},
	}

	result := aligner.Align(nil, goalRecords)
	if !result.Goals[0].EstimatedCost.Equal(decimal.NewFromInt(250)) {
		t.Errorf("goal-1 EstimatedCost = %s, want targetValue 250", result.Goals[0].EstimatedCost)
	}
	if !result.Goals[1].EstimatedCost.Equal(decimal.NewFromInt(100)) {
		t.Errorf("goal-2 EstimatedCost = %s, want target 100", result.Goals[1].EstimatedCost)
	}
}

func TestAlign_ThemeRollup(t *testing.T) {
	aligner := NewAligner()

	pots := []models.PotRecord{
		createTestPot("pot-1", "Japan Trip", 150000),
		createTestPot("pot-2", "House Deposit", 1000000),
	}
	goalRecords := []models.GoalRecord{
		{ID: "goal-1", Title: "Japan Trip", EstimatedCost: floatPtr(2000), Theme: 2},
		{ID: "goal-2", Title: "House Deposit", EstimatedCost: floatPtr(40000), Theme: 5},
		{ID: "goal-3", Title: "Piano Lessons", EstimatedCost: floatPtr(500), Theme: 2},
	}

	result := aligner.Align(pots, goalRecords)
	if len(result.Themes) != 2 {
		t.Fatalf("len(Themes) = %d, want 2", len(result.Themes))
	}

	growth := result.Themes[0]
	if growth.ThemeID != 2 || growth.ThemeName != "Growth" {
		t.Fatalf("themes[0] = %d/%q, want ascending order starting at 2/Growth",
			growth.ThemeID, growth.ThemeName)
	}
	if growth.GoalCount != 2 {
		t.Errorf("Growth GoalCount = %d, want 2", growth.GoalCount)
	}
	if !growth.TotalEstimatedCost.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Growth TotalEstimatedCost = %s, want 2500", growth.TotalEstimatedCost)
	}
	if !growth.TotalPotBalance.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Growth TotalPotBalance = %s, want 1500", growth.TotalPotBalance)
	}
	if !growth.TotalShortfall.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Growth TotalShortfall = %s, want 500 + 500", growth.TotalShortfall)
	}
	if growth.FundedPercent == nil || math.Abs(*growth.FundedPercent-60) > 1e-9 {
		t.Errorf("Growth FundedPercent = %v, want 1500/2500 = 60", growth.FundedPercent)
	}

	home := result.Themes[1]
	if home.ThemeID != 5 || home.GoalCount != 1 {
		t.Errorf("themes[1] = %d with %d goals, want 5 with 1", home.ThemeID, home.GoalCount)
	}
}

func TestBuildPotIndex_LaterPotOverwritesOnCollision(t *testing.T) {
	pots := []models.PotRecord{
		createTestPot("pot-1", "Holiday", 10000),
		createTestPot("pot-2", "HOLIDAY", 20000),
	}

	idx := buildPotIndex(pots)
	pot := idx.lookup("holiday")
	if pot == nil || pot.PotID != "pot-2" {
		t.Errorf("lookup(holiday) = %+v, want later pot-2", pot)
	}
	if pot := idx.lookup("pot-1"); pot == nil || pot.PotID != "pot-1" {
		t.Errorf("lookup(pot-1) = %+v, want pot-1 still reachable by id", pot)
	}
}
