// Package goals aligns savings goals with savings pots, computing per-goal
// funding metrics and per-theme rollups.
//
// Matching prefers an explicitly linked pot. Goals without a link fall back
// to name matching: a pot is a candidate when its normalized name and the
// normalized goal title contain one another, and candidates are ranked by
// longest pot name, then smallest edit distance to the title, then pot
// identifier, so the chosen pot never depends on input order.
package goals

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"finance-alignment-engine/internal/models"
	"finance-alignment-engine/pkg/logger"
)

var fundedCeiling = decimal.NewFromInt(100)

// themeNames is the fixed id-to-name table for life-area themes.
var themeNames = map[int64]string{
	1: "Health",
	2: "Growth",
	3: "Finance & Wealth",
	4: "Tribe",
	5: "Home",
}

// ThemeName resolves a numeric theme id to its display name. Unknown ids,
// including the zero default, resolve to "General".
func ThemeName(id int64) string {
	if name, ok := themeNames[id]; ok {
		return name
	}
	return "General"
}

// GoalSummary is the per-goal alignment output. FundedPercent is nil when
// the goal has no positive estimated cost.
type GoalSummary struct {
	GoalID        string          `json:"goalId"`
	Title         string          `json:"title"`
	ThemeID       int64           `json:"themeId"`
	ThemeName     string          `json:"themeName"`
	EstimatedCost decimal.Decimal `json:"estimatedCost"`
	PotID         string          `json:"potId,omitempty"`
	PotName       string          `json:"potName,omitempty"`
	PotBalance    decimal.Decimal `json:"potBalance"`
	FundedAmount  decimal.Decimal `json:"fundedAmount"`
	Shortfall     decimal.Decimal `json:"shortfall"`
	FundedPercent *float64        `json:"fundedPercent"`
}

// ThemeSummary aggregates all goals sharing a theme.
type ThemeSummary struct {
	ThemeID            int64           `json:"themeId"`
	ThemeName          string          `json:"themeName"`
	GoalCount          int             `json:"goalCount"`
	TotalEstimatedCost decimal.Decimal `json:"totalEstimatedCost"`
	TotalPotBalance    decimal.Decimal `json:"totalPotBalance"`
	TotalShortfall     decimal.Decimal `json:"totalShortfall"`
	FundedPercent      *float64        `json:"fundedPercent"`
}

// Result is the output of one alignment pass. Goals keep input order; themes
// are sorted ascending by theme id.
type Result struct {
	Goals  []GoalSummary  `json:"goals"`
	Themes []ThemeSummary `json:"themes"`
}

// Aligner matches goals against pots.
type Aligner struct {
	logger logger.Logger
}

// NewAligner creates a new goal-pot aligner.
func NewAligner() *Aligner {
	return &Aligner{
		logger: logger.GetGlobalLogger().WithComponent("goals"),
	}
}

// potIndex resolves pots by lowercase identifier and lowercase name, and
// supports deterministic name matching over its distinct pots.
type potIndex struct {
	byKey map[string]*models.PotRecord
	pots  []*models.PotRecord
}

// buildPotIndex indexes every pot under its lowercase id and lowercase name.
// Later pots overwrite earlier ones on key collision. Pots kept for name
// matching are ordered by identifier so candidate ranking is stable.
func buildPotIndex(pots []models.PotRecord) *potIndex {
	idx := &potIndex{
		byKey: make(map[string]*models.PotRecord, len(pots)*2),
	}
	for i := range pots {
		pot := &pots[i]
		if key := models.NormalizeKey(pot.Identifier()); key != "" {
			idx.byKey[key] = pot
		}
		if key := models.NormalizeKey(pot.Name); key != "" {
			idx.byKey[key] = pot
		}
		idx.pots = append(idx.pots, pot)
	}
	sort.Slice(idx.pots, func(i, j int) bool {
		return idx.pots[i].Identifier() < idx.pots[j].Identifier()
	})
	return idx
}

// lookup resolves a pot by explicit identifier.
func (idx *potIndex) lookup(id string) *models.PotRecord {
	if key := models.NormalizeKey(id); key != "" {
		return idx.byKey[key]
	}
	return nil
}

// matchByName finds the pot whose name best matches the goal title. A pot is
// a candidate when either normalized string contains the other.
func (idx *potIndex) matchByName(title string) *models.PotRecord {
	titleNorm := models.NormalizeKey(title)
	if titleNorm == "" {
		return nil
	}

	var best *models.PotRecord
	bestLen := -1
	bestDistance := 0
	for _, pot := range idx.pots {
		nameNorm := models.NormalizeKey(pot.Name)
		if nameNorm == "" {
			continue
		}
		if !strings.Contains(titleNorm, nameNorm) && !strings.Contains(nameNorm, titleNorm) {
			continue
		}
		distance := levenshtein.ComputeDistance(nameNorm, titleNorm)
		if len(nameNorm) > bestLen || (len(nameNorm) == bestLen && distance < bestDistance) {
			best = pot
			bestLen = len(nameNorm)
			bestDistance = distance
		}
	}
	return best
}

// Align runs one alignment pass over the given pots and goals.
func (a *Aligner) Align(pots []models.PotRecord, goalRecords []models.GoalRecord) *Result {
	idx := buildPotIndex(pots)
	result := &Result{}

	themes := make(map[int64]*ThemeSummary)

	for i := range goalRecords {
		goal := &goalRecords[i]
		summary := a.alignGoal(idx, goal)
		result.Goals = append(result.Goals, summary)

		theme, ok := themes[summary.ThemeID]
		if !ok {
			theme = &ThemeSummary{
				ThemeID:   summary.ThemeID,
				ThemeName: summary.ThemeName,
			}
			themes[summary.ThemeID] = theme
		}
		theme.GoalCount++
		theme.TotalEstimatedCost = theme.TotalEstimatedCost.Add(summary.EstimatedCost)
		theme.TotalPotBalance = theme.TotalPotBalance.Add(summary.PotBalance)
		theme.TotalShortfall = theme.TotalShortfall.Add(summary.Shortfall)
	}

	result.Themes = projectThemes(themes)

	a.logger.WithFields(logger.Fields{
		"pots":   len(pots),
		"goals":  len(result.Goals),
		"themes": len(result.Themes),
	}).Debug("Goal alignment pass completed")

	return result
}

// alignGoal computes the funding metrics for a single goal.
func (a *Aligner) alignGoal(idx *potIndex, goal *models.GoalRecord) GoalSummary {
	summary := GoalSummary{
		GoalID:    goal.ID,
		Title:     goal.Title,
		ThemeID:   goal.Theme,
		ThemeName: ThemeName(goal.Theme),
	}

	cost, costSet := goal.ResolveEstimatedCost()
	if costSet {
		summary.EstimatedCost = cost
	}

	pot := idx.lookup(goal.LinkedPotID())
	if pot == nil {
		pot = idx.matchByName(goal.Title)
	}
	if pot != nil {
		summary.PotID = pot.Identifier()
		summary.PotName = pot.Name
		summary.PotBalance = pot.BalanceMajor()
	}

	if costSet {
		summary.FundedAmount = decimal.Min(summary.PotBalance, cost)
		summary.Shortfall = decimal.Max(cost.Sub(summary.PotBalance), decimal.Zero)
	} else {
		summary.FundedAmount = summary.PotBalance
	}
	summary.FundedPercent = fundedPercent(summary.PotBalance, cost)

	return summary
}

// projectThemes orders the theme aggregates ascending by id and attaches
// each theme's funded percentage.
func projectThemes(themes map[int64]*ThemeSummary) []ThemeSummary {
	ids := make([]int64, 0, len(themes))
	for id := range themes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]ThemeSummary, 0, len(ids))
	for _, id := range ids {
		theme := themes[id]
		theme.FundedPercent = fundedPercent(theme.TotalPotBalance, theme.TotalEstimatedCost)
		out = append(out, *theme)
	}
	return out
}

// fundedPercent returns balance/cost as a percentage capped at 100, or nil
// when the cost is not positive.
func fundedPercent(balance, cost decimal.Decimal) *float64 {
	if !cost.IsPositive() {
		return nil
	}
	pct := balance.Div(cost).Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(fundedCeiling) {
		pct = fundedCeiling
	}
	v, _ := pct.Float64()
	return &v
}
