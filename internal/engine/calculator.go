package engine

import (
	"math"
	"time"

	"github.com/taxvalor/api/internal/models"
)

// CalculatorConfig carries the jurisdiction constants used by the valuation
// formulas. Defaults come from DefaultCalculatorConfig; AssessmentRatio is
// typically overridden per deployment via configuration.
type CalculatorConfig struct {
	// AssessmentRatio is the assessed/market value ratio set by the
	// jurisdiction.
	AssessmentRatio float64

	// Standard method rates.
	LandRate        float64 // $ per sq ft of land
	BuildingRate    float64 // $ per sq ft of building
	PerFeatureValue float64 // $ per recorded feature

	// Income method.
	CapRate               float64 // capitalization rate
	IncomePerBuildingSqFt float64 // assumed annual income per building sq ft
	IncomePerLandSqFt     float64 // assumed annual income per land sq ft (no building)

	// Sales-comparison method.
	BaseAreaValue    float64 // market value of a reference-lot property
	ReferenceLotArea float64 // sq ft of the reference lot

	// Cost method.
	CostLandRate     float64 // $ per sq ft land value
	CostBuildingRate float64 // $ per sq ft replacement cost
}

// DefaultCalculatorConfig returns the standard jurisdiction constants.
func DefaultCalculatorConfig() CalculatorConfig {
	return CalculatorConfig{
		AssessmentRatio:       0.80,
		LandRate:              40,
		BuildingRate:          150,
		PerFeatureValue:       5000,
		CapRate:               0.06,
		IncomePerBuildingSqFt: 20,
		IncomePerLandSqFt:     2,
		BaseAreaValue:         250000,
		ReferenceLotArea:      10000,
		CostLandRate:          15,
		CostBuildingRate:      120,
	}
}

// Depreciation constants for the cost method.
const (
	depreciationPerYear    = 0.01
	maxDepreciation        = 0.50
	unknownAgeDepreciation = 0.80
	defaultConditionFactor = 1.0
)

// conditionFactors adjust the sales-comparison value by recorded condition.
var conditionFactors = map[string]float64{
	"poor":      0.8,
	"fair":      0.9,
	"average":   1.0,
	"good":      1.1,
	"excellent": 1.2,
}

// ValuationResult is the output of CalculateValuation. Factors holds the
// method's typed input record for audit and evidence generation.
type ValuationResult struct {
	Method        models.ValuationMethod
	MarketValue   float64
	AssessedValue float64
	TaxableValue  float64
	Factors       map[string]interface{}
}

// CalculateValuation computes market, assessed, and taxable value for a
// property under the named method. An unknown or empty method falls back to
// standard. The matching active tax rate supplies the exemption amount; a
// nil rate means no exemption. Deterministic: no randomness, no I/O.
func CalculateValuation(property *models.Property, method models.ValuationMethod, assessmentDate time.Time, rate *models.TaxRate, cfg CalculatorConfig) ValuationResult {
	exemption := 0.0
	if rate != nil {
		exemption = rate.ExemptionAmount
	}

	var market float64
	var factors map[string]interface{}

	switch method {
	case models.MethodIncome:
		market, factors = incomeValue(property, exemption, cfg)
	case models.MethodSalesComparison:
		market, factors = salesComparisonValue(property, exemption, cfg)
	case models.MethodCost:
		market, factors = costValue(property, assessmentDate, exemption, cfg)
	case models.MethodStandard:
		market, factors = standardValue(property, exemption, cfg)
	default:
		method = models.MethodStandard
		market, factors = standardValue(property, exemption, cfg)
	}

	assessed := math.Round(market * cfg.AssessmentRatio)
	taxable := assessed - exemption
	if taxable < 0 {
		taxable = 0
	}

	return ValuationResult{
		Method:        method,
		MarketValue:   math.Round(market),
		AssessedValue: assessed,
		TaxableValue:  taxable,
		Factors:       factors,
	}
}

// standardValue: land and building priced per square foot plus a flat amount
// per recorded feature.
func standardValue(p *models.Property, exemption float64, cfg CalculatorConfig) (float64, map[string]interface{}) {
	building := 0.0
	if p.BuildingArea != nil {
		building = *p.BuildingArea
	}
	market := p.LandArea*cfg.LandRate + building*cfg.BuildingRate + float64(len(p.Features))*cfg.PerFeatureValue

	f := models.StandardFactors{
		LandArea:        p.LandArea,
		LandRate:        cfg.LandRate,
		BuildingArea:    building,
		BuildingRate:    cfg.BuildingRate,
		FeatureCount:    len(p.Features),
		PerFeatureValue: cfg.PerFeatureValue,
		AssessmentRatio: cfg.AssessmentRatio,
		ExemptionAmount: exemption,
	}
	return market, f.Map()
}

// incomeValue: capitalized annual income. Income comes from the recorded
// details when present, otherwise it is assumed from building area, then
// land area.
func incomeValue(p *models.Property, exemption float64, cfg CalculatorConfig) (float64, map[string]interface{}) {
	income, source := assumedAnnualIncome(p, cfg)

	market := 0.0
	if cfg.CapRate > 0 {
		market = income / cfg.CapRate
	}

	f := models.IncomeFactors{
		AnnualIncome:    income,
		IncomeSource:    source,
		CapRate:         cfg.CapRate,
		AssessmentRatio: cfg.AssessmentRatio,
		ExemptionAmount: exemption,
	}
	return market, f.Map()
}

func assumedAnnualIncome(p *models.Property, cfg CalculatorConfig) (float64, string) {
	if income, ok := p.AnnualIncome(); ok && income > 0 {
		return income, "details"
	}
	if p.BuildingArea != nil && *p.BuildingArea > 0 {
		return *p.BuildingArea * cfg.IncomePerBuildingSqFt, "building_area"
	}
	return p.LandArea * cfg.IncomePerLandSqFt, "land_area"
}

// salesComparisonValue: a reference-lot base value scaled by lot size and
// recorded condition.
func salesComparisonValue(p *models.Property, exemption float64, cfg CalculatorConfig) (float64, map[string]interface{}) {
	sizeFactor := 1.0
	if p.LandArea > 0 && cfg.ReferenceLotArea > 0 {
		sizeFactor = p.LandArea / cfg.ReferenceLotArea
	}

	condition := p.Condition()
	conditionFactor := defaultConditionFactor
	if cf, ok := conditionFactors[condition]; ok {
		conditionFactor = cf
	}

	market := cfg.BaseAreaValue * sizeFactor * conditionFactor

	f := models.SalesComparisonFactors{
		BaseAreaValue:   cfg.BaseAreaValue,
		SizeFactor:      sizeFactor,
		Condition:       condition,
		ConditionFactor: conditionFactor,
		AssessmentRatio: cfg.AssessmentRatio,
		ExemptionAmount: exemption,
	}
	return market, f.Map()
}

// costValue: land value plus depreciated building replacement cost.
// Depreciation accrues 1% per year of age and caps at 50%; an unknown year
// built defaults to a 0.8 factor.
func costValue(p *models.Property, assessmentDate time.Time, exemption float64, cfg CalculatorConfig) (float64, map[string]interface{}) {
	building := 0.0
	if p.BuildingArea != nil {
		building = *p.BuildingArea
	}

	age := 0
	depreciation := unknownAgeDepreciation
	if p.YearBuilt != nil {
		age = assessmentDate.Year() - *p.YearBuilt
		if age < 0 {
			age = 0
		}
		depreciation = 1 - math.Min(maxDepreciation, float64(age)*depreciationPerYear)
	}

	market := p.LandArea*cfg.CostLandRate + building*cfg.CostBuildingRate*depreciation

	f := models.CostFactors{
		LandArea:           p.LandArea,
		LandUnitRate:       cfg.CostLandRate,
		BuildingArea:       building,
		BuildingUnitRate:   cfg.CostBuildingRate,
		AgeYears:           age,
		DepreciationFactor: depreciation,
		AssessmentRatio:    cfg.AssessmentRatio,
		ExemptionAmount:    exemption,
	}
	return market, f.Map()
}
