package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taxvalor/api/internal/models"
)

var assessmentDate = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func TestCalculateValuation_StandardMethod(t *testing.T) {
	// Arrange: 10,000 sq ft land, 2,500 sq ft building, 2 features.
	// market = 10000*40 + 2500*150 + 2*5000 = 785,000
	// assessed = round(785000 * 0.8) = 628,000
	tenantID := uuid.New()
	property := testProperty(tenantID)

	// Act
	result := CalculateValuation(property, models.MethodStandard, assessmentDate, nil, DefaultCalculatorConfig())

	// Assert
	assert.Equal(t, models.MethodStandard, result.Method)
	assert.Equal(t, 785000.0, result.MarketValue)
	assert.Equal(t, 628000.0, result.AssessedValue)
	assert.Equal(t, 628000.0, result.TaxableValue)
	assert.Equal(t, 10000.0, result.Factors["landArea"])
	assert.Equal(t, 0.8, result.Factors["assessmentRatio"])
}

func TestCalculateValuation_UnknownMethodFallsBackToStandard(t *testing.T) {
	tenantID := uuid.New()
	property := testProperty(tenantID)

	result := CalculateValuation(property, models.ValuationMethod("voodoo"), assessmentDate, nil, DefaultCalculatorConfig())

	assert.Equal(t, models.MethodStandard, result.Method)
	assert.Equal(t, 628000.0, result.AssessedValue)
}

func TestCalculateValuation_StandardMonotonicInArea(t *testing.T) {
	// Increasing land or building area must never decrease market value.
	tenantID := uuid.New()
	cfg := DefaultCalculatorConfig()

	base := testProperty(tenantID)
	baseResult := CalculateValuation(base, models.MethodStandard, assessmentDate, nil, cfg)

	moreLand := testProperty(tenantID)
	moreLand.LandArea = base.LandArea + 1000
	moreLandResult := CalculateValuation(moreLand, models.MethodStandard, assessmentDate, nil, cfg)

	moreBuilding := testProperty(tenantID)
	moreBuilding.BuildingArea = floatPtr(*base.BuildingArea + 500)
	moreBuildingResult := CalculateValuation(moreBuilding, models.MethodStandard, assessmentDate, nil, cfg)

	assert.GreaterOrEqual(t, moreLandResult.MarketValue, baseResult.MarketValue)
	assert.GreaterOrEqual(t, moreBuildingResult.MarketValue, baseResult.MarketValue)
}

func TestCalculateValuation_IncomeMethod(t *testing.T) {
	tenantID := uuid.New()

	t.Run("income recorded in details", func(t *testing.T) {
		property := testProperty(tenantID)
		property.Details = map[string]interface{}{"annualIncome": 60000.0}

		result := CalculateValuation(property, models.MethodIncome, assessmentDate, nil, DefaultCalculatorConfig())

		// 60000 / 0.06 = 1,000,000
		assert.Equal(t, 1000000.0, result.MarketValue)
		assert.Equal(t, "details", result.Factors["incomeSource"])
	})

	t.Run("income assumed from building area", func(t *testing.T) {
		property := testProperty(tenantID)

		result := CalculateValuation(property, models.MethodIncome, assessmentDate, nil, DefaultCalculatorConfig())

		// 2500 sq ft * $20 = 50,000 income; / 0.06 ≈ 833,333
		assert.Equal(t, 833333.0, result.MarketValue)
		assert.Equal(t, "building_area", result.Factors["incomeSource"])
	})

	t.Run("income assumed from land when no building", func(t *testing.T) {
		property := testProperty(tenantID)
		property.BuildingArea = nil

		result := CalculateValuation(property, models.MethodIncome, assessmentDate, nil, DefaultCalculatorConfig())

		// 10000 sq ft * $2 = 20,000 income; / 0.06 ≈ 333,333
		assert.Equal(t, 333333.0, result.MarketValue)
		assert.Equal(t, "land_area", result.Factors["incomeSource"])
	})
}

func TestCalculateValuation_SalesComparisonMethod(t *testing.T) {
	tenantID := uuid.New()
	property := testProperty(tenantID)
	property.Details = map[string]interface{}{"condition": "excellent"}

	result := CalculateValuation(property, models.MethodSalesComparison, assessmentDate, nil, DefaultCalculatorConfig())

	// sizeFactor = 10000/10000 = 1.0; 250000 * 1.0 * 1.2 = 300,000
	assert.Equal(t, 300000.0, result.MarketValue)
	assert.Equal(t, 1.2, result.Factors["conditionFactor"])
}

func TestCalculateValuation_CostMethod(t *testing.T) {
	tenantID := uuid.New()

	t.Run("depreciation from age", func(t *testing.T) {
		property := testProperty(tenantID)
		property.YearBuilt = intPtr(2005) // 20 years old at 2025

		result := CalculateValuation(property, models.MethodCost, assessmentDate, nil, DefaultCalculatorConfig())

		// land 10000*15 + building 2500*120*(1-0.20) = 150000 + 240000
		assert.Equal(t, 390000.0, result.MarketValue)
		assert.Equal(t, 0.8, result.Factors["depreciationFactor"])
	})

	t.Run("depreciation caps at 50 percent", func(t *testing.T) {
		property := testProperty(tenantID)
		property.YearBuilt = intPtr(1900)

		result := CalculateValuation(property, models.MethodCost, assessmentDate, nil, DefaultCalculatorConfig())

		assert.Equal(t, 0.5, result.Factors["depreciationFactor"])
	})

	t.Run("unknown year built defaults", func(t *testing.T) {
		property := testProperty(tenantID)
		property.YearBuilt = nil

		result := CalculateValuation(property, models.MethodCost, assessmentDate, nil, DefaultCalculatorConfig())

		assert.Equal(t, 0.8, result.Factors["depreciationFactor"])
	})
}

func TestCalculateValuation_ExemptionFromTaxRate(t *testing.T) {
	tenantID := uuid.New()
	property := testProperty(tenantID)
	rate := &models.TaxRate{
		ID:              uuid.New(),
		TenantID:        tenantID,
		ZoneCode:        property.ZoneCode,
		PropertyType:    property.PropertyType,
		MillageRate:     22.5,
		ExemptionAmount: 50000,
		Active:          true,
	}

	result := CalculateValuation(property, models.MethodStandard, assessmentDate, rate, DefaultCalculatorConfig())

	assert.Equal(t, 628000.0, result.AssessedValue)
	assert.Equal(t, 578000.0, result.TaxableValue)
	assert.Equal(t, 50000.0, result.Factors["exemptionAmount"])
}

func TestCalculateValuation_TaxableValueNeverNegative(t *testing.T) {
	tenantID := uuid.New()
	property := &models.Property{
		ID:           uuid.New(),
		TenantID:     tenantID,
		PropertyType: models.PropertyTypeVacant,
		LandArea:     100,
	}
	rate := &models.TaxRate{ExemptionAmount: 1000000}

	result := CalculateValuation(property, models.MethodStandard, assessmentDate, rate, DefaultCalculatorConfig())

	assert.Equal(t, 0.0, result.TaxableValue)
	assert.GreaterOrEqual(t, result.AssessedValue, 0.0)
}

func TestCalculateValuation_Deterministic(t *testing.T) {
	tenantID := uuid.New()
	property := testProperty(tenantID)
	cfg := DefaultCalculatorConfig()

	first := CalculateValuation(property, models.MethodCost, assessmentDate, nil, cfg)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, CalculateValuation(property, models.MethodCost, assessmentDate, nil, cfg))
	}
}
