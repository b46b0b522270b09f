package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taxvalor/api/internal/engine"
	"github.com/taxvalor/api/internal/logger"
	"github.com/taxvalor/api/internal/models"
	"github.com/taxvalor/api/internal/repository"
)

// Service-level errors
var (
	ErrPropertyNotFound  = errors.New("property not found")
	ErrValuationNotFound = errors.New("no valuation found for property")
)

// Default period a calculated valuation stays effective.
const valuationEffectivePeriod = 365 * 24 * time.Hour

// AssessmentService defines the interface for valuation, prediction, and
// appeal-recommendation operations.
type AssessmentService interface {
	// CalculateValuation computes and persists a valuation for the property
	// under the given method. An unknown method degrades to standard.
	// Returns ErrPropertyNotFound if the property does not exist in the
	// tenant's scope. Returns error for database failures.
	CalculateValuation(ctx context.Context, tenantID, propertyID uuid.UUID, method models.ValuationMethod, assessmentDate time.Time) (*models.PropertyValuation, error)

	// PredictValuation forecasts the property's value at predictionDate
	// from its valuation history and persists the prediction. Sparse
	// history lowers the confidence score, it never fails the call.
	// Returns ErrPropertyNotFound if the property does not exist.
	PredictValuation(ctx context.Context, tenantID, propertyID uuid.UUID, predictionDate time.Time) (*models.PropertyValuation, error)

	// RecommendAppeal scores the latest valuation for appeal potential.
	// Returns ErrPropertyNotFound / ErrValuationNotFound when the subject
	// or its valuation history is missing. The recommendation is not
	// persisted; filing an appeal is the caller's decision.
	RecommendAppeal(ctx context.Context, tenantID, propertyID uuid.UUID) (*engine.AppealRecommendation, error)
}

// assessmentService is the concrete implementation of AssessmentService.
type assessmentService struct {
	properties     repository.PropertyRepository
	valuations     repository.ValuationRepository
	appeals        repository.AppealRepository
	taxRates       repository.TaxRateRepository
	calculatorCfg  engine.CalculatorConfig
	defaultMillage float64
	log            *logger.Logger
}

// NewAssessmentService creates a new instance of AssessmentService.
// defaultMillage is used for savings projections when no active tax rate
// matches the property.
func NewAssessmentService(
	properties repository.PropertyRepository,
	valuations repository.ValuationRepository,
	appeals repository.AppealRepository,
	taxRates repository.TaxRateRepository,
	calculatorCfg engine.CalculatorConfig,
	defaultMillage float64,
	log *logger.Logger,
) AssessmentService {
	return &assessmentService{
		properties:     properties,
		valuations:     valuations,
		appeals:        appeals,
		taxRates:       taxRates,
		calculatorCfg:  calculatorCfg,
		defaultMillage: defaultMillage,
		log:            log,
	}
}

// CalculateValuation loads the property and its active tax rate, runs the
// requested valuation method, and persists the result as a draft.
func (s *assessmentService) CalculateValuation(ctx context.Context, tenantID, propertyID uuid.UUID, method models.ValuationMethod, assessmentDate time.Time) (*models.PropertyValuation, error) {
	property, err := s.loadProperty(ctx, tenantID, propertyID)
	if err != nil {
		return nil, err
	}

	if !method.IsValid() && method != "" {
		s.log.Warn("Unknown valuation method, falling back to standard", map[string]interface{}{
			"method":      string(method),
			"property_id": propertyID,
		})
	}

	rate, err := s.taxRates.GetActive(ctx, tenantID, property.ZoneCode, property.PropertyType)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax rate: %w", err)
	}

	result := engine.CalculateValuation(property, method, assessmentDate, rate, s.calculatorCfg)

	expiration := assessmentDate.Add(valuationEffectivePeriod)
	valuation := &models.PropertyValuation{
		ID:               uuid.New(),
		PropertyID:       property.ID,
		TenantID:         tenantID,
		AssessedValue:    result.AssessedValue,
		MarketValue:      result.MarketValue,
		TaxableValue:     result.TaxableValue,
		AssessmentDate:   assessmentDate,
		EffectiveDate:    assessmentDate,
		ExpirationDate:   &expiration,
		Method:           result.Method,
		Status:           models.ValuationStatusDraft,
		ValuationFactors: result.Factors,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.valuations.Insert(ctx, valuation); err != nil {
		s.log.Error("Failed to persist valuation", err, map[string]interface{}{
			"property_id": propertyID,
			"method":      string(result.Method),
		})
		return nil, fmt.Errorf("failed to persist valuation: %w", err)
	}

	s.log.Info("Valuation calculated", map[string]interface{}{
		"property_id":    propertyID,
		"method":         string(result.Method),
		"assessed_value": result.AssessedValue,
	})
	return valuation, nil
}

// PredictValuation forecasts from the valuation history and persists the
// prediction with its confidence score and model descriptor.
func (s *assessmentService) PredictValuation(ctx context.Context, tenantID, propertyID uuid.UUID, predictionDate time.Time) (*models.PropertyValuation, error) {
	property, err := s.loadProperty(ctx, tenantID, propertyID)
	if err != nil {
		return nil, err
	}

	history, err := s.valuations.ListByProperty(ctx, tenantID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load valuation history: %w", err)
	}

	result := engine.Predict(property, history, predictionDate, s.calculatorCfg.AssessmentRatio)

	model := result.Model
	valuation := &models.PropertyValuation{
		ID:                 uuid.New(),
		PropertyID:         property.ID,
		TenantID:           tenantID,
		AssessedValue:      result.AssessedValue,
		MarketValue:        result.MarketValue,
		TaxableValue:       result.TaxableValue,
		AssessmentDate:     predictionDate,
		EffectiveDate:      predictionDate,
		Method:             models.MethodPredictiveModel,
		Status:             models.ValuationStatusPredicted,
		ConfidenceScore:    &result.ConfidenceScore,
		AnnualChangeRate:   &result.AnnualChangeRate,
		SeasonalAdjustment: &result.SeasonalAdjustment,
		PredictionModel:    &model,
		CreatedAt:          time.Now().UTC(),
	}

	if err := s.valuations.Insert(ctx, valuation); err != nil {
		s.log.Error("Failed to persist prediction", err, map[string]interface{}{
			"property_id": propertyID,
		})
		return nil, fmt.Errorf("failed to persist prediction: %w", err)
	}

	s.log.Info("Valuation predicted", map[string]interface{}{
		"property_id":     propertyID,
		"model":           model.Method,
		"assessed_value":  result.AssessedValue,
		"confidence":      result.ConfidenceScore,
		"history_points":  len(history),
		"prediction_date": predictionDate.Format(time.RFC3339),
	})
	return valuation, nil
}

// RecommendAppeal assembles the subject, its latest valuation, same-tenant
// comparables, and the tenant's successful-appeal precedents, then runs the
// recommendation engine.
func (s *assessmentService) RecommendAppeal(ctx context.Context, tenantID, propertyID uuid.UUID) (*engine.AppealRecommendation, error) {
	property, err := s.loadProperty(ctx, tenantID, propertyID)
	if err != nil {
		return nil, err
	}

	history, err := s.valuations.ListByProperty(ctx, tenantID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load valuation history: %w", err)
	}
	latest := latestValuation(history)
	if latest == nil {
		s.log.Debug("No valuation to contest", map[string]interface{}{
			"property_id": propertyID,
		})
		return nil, ErrValuationNotFound
	}

	pool, err := s.properties.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant properties: %w", err)
	}
	comparables := engine.SelectComparables(property, pool, engine.DefaultComparableCount)

	successful, err := s.appeals.ListSuccessfulByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load appeal history: %w", err)
	}
	precedents := make([]engine.Precedent, 0, len(successful))
	for _, sa := range successful {
		if sa.Property != nil && sa.Property.ID == property.ID {
			// The subject's own past appeals are not precedent.
			continue
		}
		precedents = append(precedents, engine.Precedent{Appeal: sa.Appeal, Property: sa.Property})
	}

	millage := s.defaultMillage
	rate, err := s.taxRates.GetActive(ctx, tenantID, property.ZoneCode, property.PropertyType)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax rate: %w", err)
	}
	if rate != nil {
		millage = rate.MillageRate
	}

	rec := engine.RecommendAppeal(property, latest, comparables, precedents, millage, time.Now().UTC())

	s.log.Info("Appeal recommendation computed", map[string]interface{}{
		"property_id":       propertyID,
		"probability":       rec.Probability,
		"recommended_value": rec.RecommendedValue,
		"potential_savings": rec.PotentialSavings,
		"comparables":       len(comparables),
		"precedents":        len(precedents),
		"evidence_items":    len(rec.Evidence),
	})
	return &rec, nil
}

// loadProperty fetches the property and maps the repository's nil result to
// the service-level not-found error.
func (s *assessmentService) loadProperty(ctx context.Context, tenantID, propertyID uuid.UUID) (*models.Property, error) {
	property, err := s.properties.GetByID(ctx, tenantID, propertyID)
	if err != nil {
		s.log.Error("Failed to query property", err, map[string]interface{}{
			"tenant_id":   tenantID,
			"property_id": propertyID,
		})
		return nil, fmt.Errorf("failed to query property: %w", err)
	}
	if property == nil {
		s.log.Debug("Property not found", map[string]interface{}{
			"tenant_id":   tenantID,
			"property_id": propertyID,
		})
		return nil, ErrPropertyNotFound
	}
	return property, nil
}

// latestValuation returns the valuation with the greatest assessment date,
// or nil for an empty history. The list arrives date-ordered but this does
// not rely on it.
func latestValuation(history []models.PropertyValuation) *models.PropertyValuation {
	var latest *models.PropertyValuation
	for i := range history {
		if latest == nil || history[i].AssessmentDate.After(latest.AssessmentDate) {
			latest = &history[i]
		}
	}
	return latest
}
