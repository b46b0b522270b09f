package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/taxvalor/api/internal/database"
	"github.com/taxvalor/api/internal/models"
)

// ValuationRepository defines the interface for valuation data access.
// Valuations are append-only: there is no update or delete.
type ValuationRepository interface {
	// ListByProperty returns all valuations for a property ordered by
	// assessment date ascending. Returns an empty slice if none exist.
	ListByProperty(ctx context.Context, tenantID, propertyID uuid.UUID) ([]models.PropertyValuation, error)

	// Insert persists a newly computed valuation.
	Insert(ctx context.Context, v *models.PropertyValuation) error
}

// valuationRepository is the concrete implementation of ValuationRepository.
type valuationRepository struct {
	db *database.Database
}

// NewValuationRepository creates a new instance of ValuationRepository.
func NewValuationRepository(db *database.Database) ValuationRepository {
	return &valuationRepository{
		db: db,
	}
}

// ListByProperty orders by assessment date so callers can treat the last
// element as the current valuation.
func (r *valuationRepository) ListByProperty(ctx context.Context, tenantID, propertyID uuid.UUID) ([]models.PropertyValuation, error) {
	query := `
		SELECT
			id,
			property_id,
			tenant_id,
			assessed_value,
			market_value,
			taxable_value,
			assessment_date,
			effective_date,
			expiration_date,
			method,
			assessor_id,
			status,
			notes,
			valuation_factors,
			confidence_score,
			annual_change_rate,
			seasonal_adjustment,
			prediction_model,
			created_at
		FROM property_valuations
		WHERE tenant_id = $1 AND property_id = $2
		ORDER BY assessment_date, created_at
	`

	rows, err := r.db.Pool.Query(ctx, query, tenantID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query valuations for property %s: %w", propertyID, err)
	}
	defer rows.Close()

	valuations := make([]models.PropertyValuation, 0)
	for rows.Next() {
		v, err := scanValuation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan valuation row: %w", err)
		}
		valuations = append(valuations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating valuation rows: %w", err)
	}
	return valuations, nil
}

// Insert writes the valuation with its factor record and, for predictions,
// the model descriptor as JSONB documents.
func (r *valuationRepository) Insert(ctx context.Context, v *models.PropertyValuation) error {
	factorsJSON, err := json.Marshal(v.ValuationFactors)
	if err != nil {
		return fmt.Errorf("failed to encode valuation factors: %w", err)
	}

	var modelJSON []byte
	if v.PredictionModel != nil {
		modelJSON, err = json.Marshal(v.PredictionModel)
		if err != nil {
			return fmt.Errorf("failed to encode prediction model: %w", err)
		}
	}

	query := `
		INSERT INTO property_valuations (
			id, property_id, tenant_id,
			assessed_value, market_value, taxable_value,
			assessment_date, effective_date, expiration_date,
			method, assessor_id, status, notes,
			valuation_factors,
			confidence_score, annual_change_rate, seasonal_adjustment, prediction_model,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		v.ID, v.PropertyID, v.TenantID,
		v.AssessedValue, v.MarketValue, v.TaxableValue,
		v.AssessmentDate, v.EffectiveDate, v.ExpirationDate,
		v.Method, v.AssessorID, v.Status, v.Notes,
		factorsJSON,
		v.ConfidenceScore, v.AnnualChangeRate, v.SeasonalAdjustment, modelJSON,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert valuation %s: %w", v.ID, err)
	}
	return nil
}

func scanValuation(row pgx.Row) (models.PropertyValuation, error) {
	var v models.PropertyValuation
	var factorsJSON, modelJSON []byte

	err := row.Scan(
		&v.ID,
		&v.PropertyID,
		&v.TenantID,
		&v.AssessedValue,
		&v.MarketValue,
		&v.TaxableValue,
		&v.AssessmentDate,
		&v.EffectiveDate,
		&v.ExpirationDate,
		&v.Method,
		&v.AssessorID,
		&v.Status,
		&v.Notes,
		&factorsJSON,
		&v.ConfidenceScore,
		&v.AnnualChangeRate,
		&v.SeasonalAdjustment,
		&modelJSON,
		&v.CreatedAt,
	)
	if err != nil {
		return v, err
	}

	if len(factorsJSON) > 0 {
		if err := json.Unmarshal(factorsJSON, &v.ValuationFactors); err != nil {
			return v, fmt.Errorf("failed to parse factors for valuation %s: %w", v.ID, err)
		}
	}
	if len(modelJSON) > 0 {
		v.PredictionModel = &models.PredictionModel{}
		if err := json.Unmarshal(modelJSON, v.PredictionModel); err != nil {
			return v, fmt.Errorf("failed to parse prediction model for valuation %s: %w", v.ID, err)
		}
	}
	return v, nil
}
