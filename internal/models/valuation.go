package models

import (
	"time"

	"github.com/google/uuid"
)

// ValuationMethod names the formula used to compute a valuation.
type ValuationMethod string

const (
	MethodStandard        ValuationMethod = "standard"
	MethodIncome          ValuationMethod = "income"
	MethodSalesComparison ValuationMethod = "sales_comparison"
	MethodCost            ValuationMethod = "cost"
	MethodPredictiveModel ValuationMethod = "predictive_model"
)

// IsValid reports whether m is one of the known valuation methods.
func (m ValuationMethod) IsValid() bool {
	switch m {
	case MethodStandard, MethodIncome, MethodSalesComparison, MethodCost, MethodPredictiveModel:
		return true
	}
	return false
}

// ValuationStatus tracks whether a valuation is an official assessment or a
// model output.
type ValuationStatus string

const (
	ValuationStatusDraft     ValuationStatus = "draft"
	ValuationStatusPublished ValuationStatus = "published"
	ValuationStatusPredicted ValuationStatus = "predicted"
)

// PropertyValuation is one assessment snapshot for a property. Valuations are
// immutable once created; corrections produce a new record. The current
// valuation for a property is the one with the latest AssessmentDate.
//
// Invariant: AssessedValue >= TaxableValue >= 0.
type PropertyValuation struct {
	ID             uuid.UUID       `json:"id"`
	PropertyID     uuid.UUID       `json:"propertyId"`
	TenantID       uuid.UUID       `json:"tenantId"`
	AssessedValue  float64         `json:"assessedValue"`
	MarketValue    float64         `json:"marketValue"`
	TaxableValue   float64         `json:"taxableValue"`
	AssessmentDate time.Time       `json:"assessmentDate"`
	EffectiveDate  time.Time       `json:"effectiveDate"`
	ExpirationDate *time.Time      `json:"expirationDate,omitempty"`
	Method         ValuationMethod `json:"method"`
	AssessorID     *uuid.UUID      `json:"assessorId,omitempty"`
	Status         ValuationStatus `json:"status"`
	Notes          string          `json:"notes,omitempty"`

	// ValuationFactors records the method's inputs verbatim for audit and
	// evidence generation. Built from one of the typed factor records below
	// and stored as an open JSON document.
	ValuationFactors map[string]interface{} `json:"valuationFactors,omitempty"`

	// Prediction outputs, set only when Method is predictive_model.
	ConfidenceScore    *float64         `json:"confidenceScore,omitempty"`
	AnnualChangeRate   *float64         `json:"annualChangeRate,omitempty"`
	SeasonalAdjustment *float64         `json:"seasonalAdjustment,omitempty"`
	PredictionModel    *PredictionModel `json:"predictionModel,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// PredictionModel describes the forecasting model chosen for a prediction
// and its fit statistics. Persisted alongside the numeric outputs so every
// prediction is explainable after the fact.
type PredictionModel struct {
	Method     string `json:"method"`
	DataPoints int    `json:"dataPoints"`

	// Regression fit, set for time_series_analysis.
	Slope     *float64 `json:"slope,omitempty"`
	Intercept *float64 `json:"intercept,omitempty"`
	RSquared  *float64 `json:"rSquared,omitempty"`

	// Per-period annualized rates, set for linear_trend.
	AnnualRates []float64 `json:"annualRates,omitempty"`

	// Single derived or default annual rate, set for simple_extrapolation
	// and limited_data.
	AnnualRate *float64 `json:"annualRate,omitempty"`
}

// StandardFactors are the recorded inputs of the standard method.
type StandardFactors struct {
	LandArea        float64
	LandRate        float64
	BuildingArea    float64
	BuildingRate    float64
	FeatureCount    int
	PerFeatureValue float64
	AssessmentRatio float64
	ExemptionAmount float64
}

// Map serializes the factors as an open document for storage.
func (f StandardFactors) Map() map[string]interface{} {
	return map[string]interface{}{
		"method":          string(MethodStandard),
		"landArea":        f.LandArea,
		"landRate":        f.LandRate,
		"buildingArea":    f.BuildingArea,
		"buildingRate":    f.BuildingRate,
		"featureCount":    f.FeatureCount,
		"perFeatureValue": f.PerFeatureValue,
		"assessmentRatio": f.AssessmentRatio,
		"exemptionAmount": f.ExemptionAmount,
	}
}

// IncomeFactors are the recorded inputs of the income method.
type IncomeFactors struct {
	AnnualIncome    float64
	IncomeSource    string // "details", "building_area", or "land_area"
	CapRate         float64
	AssessmentRatio float64
	ExemptionAmount float64
}

// Map serializes the factors as an open document for storage.
func (f IncomeFactors) Map() map[string]interface{} {
	return map[string]interface{}{
		"method":          string(MethodIncome),
		"annualIncome":    f.AnnualIncome,
		"incomeSource":    f.IncomeSource,
		"capRate":         f.CapRate,
		"assessmentRatio": f.AssessmentRatio,
		"exemptionAmount": f.ExemptionAmount,
	}
}

// SalesComparisonFactors are the recorded inputs of the sales-comparison
// method.
type SalesComparisonFactors struct {
	BaseAreaValue   float64
	SizeFactor      float64
	Condition       string
	ConditionFactor float64
	AssessmentRatio float64
	ExemptionAmount float64
}

// Map serializes the factors as an open document for storage.
func (f SalesComparisonFactors) Map() map[string]interface{} {
	return map[string]interface{}{
		"method":          string(MethodSalesComparison),
		"baseAreaValue":   f.BaseAreaValue,
		"sizeFactor":      f.SizeFactor,
		"condition":       f.Condition,
		"conditionFactor": f.ConditionFactor,
		"assessmentRatio": f.AssessmentRatio,
		"exemptionAmount": f.ExemptionAmount,
	}
}

// CostFactors are the recorded inputs of the cost method.
type CostFactors struct {
	LandArea           float64
	LandUnitRate       float64
	BuildingArea       float64
	BuildingUnitRate   float64
	AgeYears           int
	DepreciationFactor float64
	AssessmentRatio    float64
	ExemptionAmount    float64
}

// Map serializes the factors as an open document for storage.
func (f CostFactors) Map() map[string]interface{} {
	return map[string]interface{}{
		"method":             string(MethodCost),
		"landArea":           f.LandArea,
		"landUnitRate":       f.LandUnitRate,
		"buildingArea":       f.BuildingArea,
		"buildingUnitRate":   f.BuildingUnitRate,
		"ageYears":           f.AgeYears,
		"depreciationFactor": f.DepreciationFactor,
		"assessmentRatio":    f.AssessmentRatio,
		"exemptionAmount":    f.ExemptionAmount,
	}
}
