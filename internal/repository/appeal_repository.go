package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/taxvalor/api/internal/database"
	"github.com/taxvalor/api/internal/models"
)

// AppealWithProperty pairs a historical appeal with the property it was
// filed against, so the recommendation engine can score similarity.
type AppealWithProperty struct {
	Appeal   models.PropertyAppeal
	Property *models.Property
}

// AppealRepository defines the interface for appeal data access. The
// recommendation engine only reads appeals; writes come from the appeal
// filing flow.
type AppealRepository interface {
	// ListByProperty returns all appeals filed against a property.
	// Returns an empty slice if none exist.
	ListByProperty(ctx context.Context, tenantID, propertyID uuid.UUID) ([]models.PropertyAppeal, error)

	// ListSuccessfulByTenant returns the tenant's approved appeals that won
	// a genuine reduction (adjusted below the requested value), joined with
	// the contested property. Ordered by review date for determinism.
	ListSuccessfulByTenant(ctx context.Context, tenantID uuid.UUID) ([]AppealWithProperty, error)

	// Insert persists a newly filed appeal.
	Insert(ctx context.Context, a *models.PropertyAppeal) error
}

// appealRepository is the concrete implementation of AppealRepository.
type appealRepository struct {
	db *database.Database
}

// NewAppealRepository creates a new instance of AppealRepository.
func NewAppealRepository(db *database.Database) AppealRepository {
	return &appealRepository{
		db: db,
	}
}

const appealColumns = `
	a.id,
	a.property_id,
	a.tenant_id,
	a.valuation_id,
	a.submitted_by,
	a.reason,
	a.requested_value,
	a.evidence_urls,
	a.status,
	a.reviewed_by,
	a.reviewed_at,
	a.decision,
	a.decision_reason,
	a.adjusted_value,
	a.created_at
`

// ListByProperty returns every appeal against the property, newest last.
func (r *appealRepository) ListByProperty(ctx context.Context, tenantID, propertyID uuid.UUID) ([]models.PropertyAppeal, error) {
	query := `SELECT ` + appealColumns + `
		FROM property_appeals a
		WHERE a.tenant_id = $1 AND a.property_id = $2
		ORDER BY a.created_at, a.id`

	rows, err := r.db.Pool.Query(ctx, query, tenantID, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query appeals for property %s: %w", propertyID, err)
	}
	defer rows.Close()

	appeals := make([]models.PropertyAppeal, 0)
	for rows.Next() {
		var a models.PropertyAppeal
		if err := rows.Scan(
			&a.ID, &a.PropertyID, &a.TenantID, &a.ValuationID, &a.SubmittedBy,
			&a.Reason, &a.RequestedValue, &a.EvidenceURLs, &a.Status,
			&a.ReviewedBy, &a.ReviewedAt, &a.Decision, &a.DecisionReason,
			&a.AdjustedValue, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appeal row: %w", err)
		}
		appeals = append(appeals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appeal rows: %w", err)
	}
	return appeals, nil
}

// ListSuccessfulByTenant scans approved appeals across all of the tenant's
// properties. The reduction condition lives in SQL so the engine only ever
// sees genuine precedents.
func (r *appealRepository) ListSuccessfulByTenant(ctx context.Context, tenantID uuid.UUID) ([]AppealWithProperty, error) {
	query := `SELECT ` + appealColumns + `,
			p.id,
			p.tenant_id,
			p.parcel_id,
			p.address,
			p.city,
			p.state,
			p.zip_code,
			p.property_type,
			p.zone_code,
			p.land_area,
			p.building_area,
			p.year_built,
			p.bedrooms,
			p.bathrooms,
			p.features,
			p.last_assessed_value,
			p.status,
			p.details,
			p.created_at,
			p.updated_at
		FROM property_appeals a
		JOIN properties p ON p.id = a.property_id AND p.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1
			AND a.status = $2
			AND a.adjusted_value IS NOT NULL
			AND a.adjusted_value > 0
			AND a.adjusted_value < a.requested_value
		ORDER BY a.reviewed_at, a.id`

	rows, err := r.db.Pool.Query(ctx, query, tenantID, models.AppealStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query successful appeals for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	results := make([]AppealWithProperty, 0)
	for rows.Next() {
		var a models.PropertyAppeal
		var p models.Property
		var detailsJSON []byte

		if err := rows.Scan(
			&a.ID, &a.PropertyID, &a.TenantID, &a.ValuationID, &a.SubmittedBy,
			&a.Reason, &a.RequestedValue, &a.EvidenceURLs, &a.Status,
			&a.ReviewedBy, &a.ReviewedAt, &a.Decision, &a.DecisionReason,
			&a.AdjustedValue, &a.CreatedAt,
			&p.ID, &p.TenantID, &p.ParcelID, &p.Address, &p.City, &p.State,
			&p.ZipCode, &p.PropertyType, &p.ZoneCode, &p.LandArea,
			&p.BuildingArea, &p.YearBuilt, &p.Bedrooms, &p.Bathrooms,
			&p.Features, &p.LastAssessedValue, &p.Status, &detailsJSON,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan successful appeal row: %w", err)
		}

		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &p.Details); err != nil {
				return nil, fmt.Errorf("failed to parse details for property %s: %w", p.ID, err)
			}
		}

		results = append(results, AppealWithProperty{Appeal: a, Property: &p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating successful appeal rows: %w", err)
	}
	return results, nil
}

// Insert persists a newly filed appeal in pending status.
func (r *appealRepository) Insert(ctx context.Context, a *models.PropertyAppeal) error {
	query := `
		INSERT INTO property_appeals (
			id, property_id, tenant_id, valuation_id, submitted_by,
			reason, requested_value, evidence_urls, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		a.ID, a.PropertyID, a.TenantID, a.ValuationID, a.SubmittedBy,
		a.Reason, a.RequestedValue, a.EvidenceURLs, a.Status, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert appeal %s: %w", a.ID, err)
	}
	return nil
}
