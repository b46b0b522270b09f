package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/taxvalor/api/internal/models"
)

// Appeal probability bounds and thresholds. The clamp is deliberately
// tighter than [0, 100]: a heuristic score never claims certainty in either
// direction.
const (
	probabilityBase = 50.0
	probabilityMin  = 5.0
	probabilityMax  = 95.0

	// Recommended values are only computed above this probability; below it
	// the current assessed value stands.
	recommendThreshold = 30.0
	// Savings are projected only at or above this probability.
	savingsThreshold = 20.0

	// Per-area gap must exceed 5% either way before it moves the score.
	areaGapThreshold = 0.05
	overAssessedCap  = 40.0
	underAssessedCap = 20.0

	// Assessed/sale-price ratio bands for the recent-sales check.
	salesRatioLow   = 0.9
	salesRatioHigh  = 1.1
	salesBoostCap   = 30.0
	salesPenaltyCap = 20.0

	// Valuation-method bias.
	costMethodBoost   = 10.0
	incomeMethodBoost = 5.0

	// Precedents require this much similarity to count.
	precedentMinSimilarity = 0.6
	precedentScale         = 20.0

	// Condition adjustments.
	poorConditionBoost     = 15.0
	excellentConditionDrop = 10.0

	// Sales within this window count as recent.
	recentSaleWindow = 2 * 365 * 24 * time.Hour

	// Fallback recommended value when no comparable data exists at all.
	noCompReduction = 0.9

	// Land-size adjustment clamp for the median fallback.
	medianAdjustMin = 0.7
	medianAdjustMax = 1.3
)

// EvidenceItem is one ranked supporting argument for an appeal. Description
// carries the concrete numbers that justify it and is reproducible
// bit-for-bit from the same inputs.
type EvidenceItem struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Impact      float64 `json:"impact"`
}

// Evidence type names.
const (
	EvidenceComparableValue = "comparable_value_gap"
	EvidencePricePerArea    = "price_per_area_gap"
	EvidenceRecentSales     = "recent_sale_below_assessment"
	EvidencePrecedent       = "successful_appeal_precedent"
	EvidenceMethodConcern   = "valuation_method_concern"
	EvidenceCondition       = "property_condition"
)

// Precedent pairs a historically successful appeal with the property it was
// filed against, for similarity scoring.
type Precedent struct {
	Appeal   models.PropertyAppeal
	Property *models.Property
}

// AppealRecommendation is the output of RecommendAppeal.
type AppealRecommendation struct {
	PropertyID       string         `json:"propertyId"`
	ValuationID      string         `json:"valuationId"`
	Probability      float64        `json:"probability"`
	RecommendedValue float64        `json:"recommendedValue"`
	PotentialSavings float64        `json:"potentialSavings"`
	Evidence         []EvidenceItem `json:"evidence"`
}

// RecommendAppeal scores the probability that contesting the latest
// valuation succeeds, recommends a target value, projects the
// probability-weighted tax savings, and assembles ranked evidence.
// Missing data (building areas, sale records, zero comparables) degrades
// the result instead of failing. Pure and deterministic given now.
func RecommendAppeal(subject *models.Property, latest *models.PropertyValuation, comparables []*models.Property, precedents []Precedent, millageRate float64, now time.Time) AppealRecommendation {
	probability := probabilityBase
	evidence := make([]EvidenceItem, 0, 8)

	assessed := latest.AssessedValue

	// Value-per-area comparison against the comparable average.
	if pts, ev, ok := perAreaScore(subject, assessed, comparables); ok {
		probability += pts
		if ev != nil {
			evidence = append(evidence, *ev)
		}
	}

	// Overall comparable assessed-value gap contributes evidence only.
	if ev := comparableValueEvidence(assessed, comparables); ev != nil {
		evidence = append(evidence, *ev)
	}

	// Recent sales among the comparables.
	if pts, ev, ok := recentSalesScore(comparables, now); ok {
		probability += pts
		if ev != nil {
			evidence = append(evidence, *ev)
		}
	}

	// Method bias: the cost approach over-assesses often enough to flag.
	switch latest.Method {
	case models.MethodCost:
		probability += costMethodBoost
		evidence = append(evidence, EvidenceItem{
			Type:        EvidenceMethodConcern,
			Description: fmt.Sprintf("Assessment of $%.0f was produced by the cost approach, which tends to overstate value for older improvements", assessed),
			Impact:      40,
		})
	case models.MethodIncome:
		probability += incomeMethodBoost
	}

	// Precedent from similar successful appeals.
	for _, p := range precedents {
		if p.Property == nil || !p.Appeal.Successful() {
			continue
		}
		sim := Similarity(subject, p.Property)
		if sim <= precedentMinSimilarity {
			continue
		}
		reduction := p.Appeal.ReductionFraction()
		probability += sim * reduction * precedentScale
		evidence = append(evidence, EvidenceItem{
			Type: EvidencePrecedent,
			Description: fmt.Sprintf("Appeal on %s (%.0f%% similar) was approved at $%.0f, %.1f%% below the requested $%.0f",
				p.Property.Address, sim*100, *p.Appeal.AdjustedValue, reduction*100, p.Appeal.RequestedValue),
			Impact: math.Min(100, sim*reduction*100),
		})
	}

	// Condition.
	switch subject.Condition() {
	case "poor":
		probability += poorConditionBoost
		evidence = append(evidence, EvidenceItem{
			Type:        EvidenceCondition,
			Description: fmt.Sprintf("Property at %s is recorded in poor condition, which the $%.0f assessment does not reflect", subject.Address, assessed),
			Impact:      30,
		})
	case "fair":
		probability += poorConditionBoost
		evidence = append(evidence, EvidenceItem{
			Type:        EvidenceCondition,
			Description: fmt.Sprintf("Property at %s is recorded in fair condition, which the $%.0f assessment does not reflect", subject.Address, assessed),
			Impact:      20,
		})
	case "excellent":
		probability -= excellentConditionDrop
	}

	probability = clamp(probability, probabilityMin, probabilityMax)

	recommended := recommendedValue(subject, assessed, comparables, probability)
	savings := potentialSavings(assessed, recommended, probability, millageRate)

	sort.SliceStable(evidence, func(i, j int) bool {
		return evidence[i].Impact > evidence[j].Impact
	})

	return AppealRecommendation{
		PropertyID:       subject.ID.String(),
		ValuationID:      latest.ID.String(),
		Probability:      math.Round(probability*10) / 10,
		RecommendedValue: recommended,
		PotentialSavings: savings,
		Evidence:         evidence,
	}
}

// perAreaScore compares the subject's assessed value per building square
// foot against the comparable average. More than 5% above the average adds
// up to +40 scaled by the gap; more than 5% below subtracts up to 20.
func perAreaScore(subject *models.Property, assessed float64, comparables []*models.Property) (float64, *EvidenceItem, bool) {
	if !hasArea(subject.BuildingArea) || assessed <= 0 {
		return 0, nil, false
	}
	subjectPerArea := assessed / *subject.BuildingArea

	avg, count := averagePerArea(comparables)
	if count == 0 || avg <= 0 {
		return 0, nil, false
	}

	gap := (subjectPerArea - avg) / avg
	switch {
	case gap > areaGapThreshold:
		pts := math.Min(overAssessedCap, gap*200)
		ev := &EvidenceItem{
			Type: EvidencePricePerArea,
			Description: fmt.Sprintf("Assessed at $%.2f per sq ft versus a $%.2f average across %d comparable properties, %.1f%% higher",
				subjectPerArea, avg, count, gap*100),
			Impact: math.Min(100, pts*2.5),
		}
		return pts, ev, true
	case gap < -areaGapThreshold:
		return -math.Min(underAssessedCap, -gap*100), nil, true
	}
	return 0, nil, true
}

// averagePerArea averages last assessed value per building square foot over
// the comparables that carry both figures.
func averagePerArea(comparables []*models.Property) (float64, int) {
	sum := 0.0
	count := 0
	for _, c := range comparables {
		if c.LastAssessedValue == nil || *c.LastAssessedValue <= 0 || !hasArea(c.BuildingArea) {
			continue
		}
		sum += *c.LastAssessedValue / *c.BuildingArea
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return sum / float64(count), count
}

// comparableValueEvidence reports the raw assessed-value gap against the
// comparable average when the subject is assessed above it.
func comparableValueEvidence(assessed float64, comparables []*models.Property) *EvidenceItem {
	sum := 0.0
	count := 0
	for _, c := range comparables {
		if c.LastAssessedValue != nil && *c.LastAssessedValue > 0 {
			sum += *c.LastAssessedValue
			count++
		}
	}
	if count == 0 || assessed <= 0 {
		return nil
	}
	avg := sum / float64(count)
	if assessed <= avg {
		return nil
	}
	gap := (assessed - avg) / avg
	return &EvidenceItem{
		Type: EvidenceComparableValue,
		Description: fmt.Sprintf("Assessed value of $%.0f exceeds the $%.0f average of %d comparable properties by %.1f%%",
			assessed, avg, count, gap*100),
		Impact: math.Min(100, gap*200),
	}
}

// recentSalesScore checks comparables that sold within the last two years.
// An average assessed/sale-price ratio below 0.9 means assessments in the
// area run below realized prices, strengthening the subject's case; above
// 1.1 weakens it.
func recentSalesScore(comparables []*models.Property, now time.Time) (float64, *EvidenceItem, bool) {
	sum := 0.0
	count := 0
	for _, c := range comparables {
		price, okPrice := c.SalePrice()
		date, okDate := c.SaleDate()
		if !okPrice || !okDate || price <= 0 {
			continue
		}
		if now.Sub(date) > recentSaleWindow || date.After(now) {
			continue
		}
		if c.LastAssessedValue == nil || *c.LastAssessedValue <= 0 {
			continue
		}
		sum += *c.LastAssessedValue / price
		count++
	}
	if count == 0 {
		return 0, nil, false
	}

	ratio := sum / float64(count)
	switch {
	case ratio < salesRatioLow:
		pts := math.Min(salesBoostCap, (salesRatioLow-ratio)*300)
		ev := &EvidenceItem{
			Type: EvidenceRecentSales,
			Description: fmt.Sprintf("%d comparable sales in the last two years show assessments averaging %.0f%% of realized sale prices",
				count, ratio*100),
			Impact: math.Min(100, pts*3),
		}
		return pts, ev, true
	case ratio > salesRatioHigh:
		return -math.Min(salesPenaltyCap, (ratio-salesRatioHigh)*200), nil, true
	}
	return 0, nil, true
}

// recommendedValue picks the contested target. Below the threshold the
// current assessed value stands. Otherwise: similarity-weighted average of
// comparable value per building area, then a land-size-adjusted median of
// comparable assessed values, then assessed x 0.9 when no comparable data
// exists. Never exceeds the current assessed value.
func recommendedValue(subject *models.Property, assessed float64, comparables []*models.Property, probability float64) float64 {
	if probability <= recommendThreshold {
		return math.Round(assessed)
	}

	if v, ok := weightedPerAreaValue(subject, comparables); ok {
		return math.Round(math.Min(v, assessed))
	}
	if v, ok := adjustedMedianValue(subject, comparables); ok {
		return math.Round(math.Min(v, assessed))
	}
	return math.Round(assessed * noCompReduction)
}

// weightedPerAreaValue weights each comparable's value per building square
// foot by its similarity to the subject and applies the result to the
// subject's building area.
func weightedPerAreaValue(subject *models.Property, comparables []*models.Property) (float64, bool) {
	if !hasArea(subject.BuildingArea) {
		return 0, false
	}

	var weightedSum, weightSum float64
	for _, c := range comparables {
		if c.LastAssessedValue == nil || *c.LastAssessedValue <= 0 || !hasArea(c.BuildingArea) {
			continue
		}
		sim := Similarity(subject, c)
		if sim <= 0 {
			continue
		}
		weightedSum += sim * (*c.LastAssessedValue / *c.BuildingArea)
		weightSum += sim
	}
	if weightSum == 0 {
		return 0, false
	}
	return (weightedSum / weightSum) * *subject.BuildingArea, true
}

// adjustedMedianValue takes the median comparable assessed value after
// scaling each by the subject/comparable land-area ratio, clamped so one
// outsized lot cannot dominate.
func adjustedMedianValue(subject *models.Property, comparables []*models.Property) (float64, bool) {
	values := make([]float64, 0, len(comparables))
	for _, c := range comparables {
		if c.LastAssessedValue == nil || *c.LastAssessedValue <= 0 {
			continue
		}
		adjust := 1.0
		if subject.LandArea > 0 && c.LandArea > 0 {
			adjust = clamp(subject.LandArea/c.LandArea, medianAdjustMin, medianAdjustMax)
		}
		values = append(values, *c.LastAssessedValue*adjust)
	}
	if len(values) == 0 {
		return 0, false
	}

	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid], true
	}
	return (values[mid-1] + values[mid]) / 2, true
}

// potentialSavings projects annual tax savings, weighted by the success
// probability. No savings are projected below the probability floor.
func potentialSavings(assessed, recommended, probability, millageRate float64) float64 {
	if probability < savingsThreshold {
		return 0
	}
	reduction := assessed - recommended
	if reduction <= 0 {
		return 0
	}
	savings := reduction * millageRate / 1000 * (probability / 100)
	return math.Round(savings*100) / 100
}
