package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/taxvalor/api/internal/database"
	"github.com/taxvalor/api/internal/models"
)

// PropertyRepository defines the interface for property data access.
type PropertyRepository interface {
	// GetByID finds a property by (tenantID, id).
	// Returns nil, nil if no property is found (not an error).
	// Returns error only for actual database failures.
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Property, error)

	// ListByTenant returns all active properties owned by the tenant.
	// Returns an empty slice if none are found (not an error).
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Property, error)
}

// propertyRepository is the concrete implementation of PropertyRepository.
type propertyRepository struct {
	db *database.Database
}

// NewPropertyRepository creates a new instance of PropertyRepository.
func NewPropertyRepository(db *database.Database) PropertyRepository {
	return &propertyRepository{
		db: db,
	}
}

const propertyColumns = `
	id,
	tenant_id,
	parcel_id,
	address,
	city,
	state,
	zip_code,
	property_type,
	zone_code,
	land_area,
	building_area,
	year_built,
	bedrooms,
	bathrooms,
	features,
	last_assessed_value,
	status,
	details,
	created_at,
	updated_at
`

// GetByID queries for a single property scoped to the tenant. Soft-deleted
// properties stay addressable by id; filtering them is a service concern.
func (r *propertyRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Property, error) {
	query := `SELECT ` + propertyColumns + `
		FROM properties
		WHERE tenant_id = $1 AND id = $2`

	row := r.db.Pool.QueryRow(ctx, query, tenantID, id)
	property, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query property %s for tenant %s: %w", id, tenantID, err)
	}
	return property, nil
}

// ListByTenant returns the tenant's active properties ordered by creation
// time, which gives comparable selection a deterministic pool order.
func (r *propertyRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Property, error) {
	query := `SELECT ` + propertyColumns + `
		FROM properties
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at, id`

	rows, err := r.db.Pool.Query(ctx, query, tenantID, models.PropertyStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	properties := make([]*models.Property, 0)
	for rows.Next() {
		property, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		properties = append(properties, property)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating property rows: %w", err)
	}
	return properties, nil
}

// scanProperty reads one property row. Details are stored as JSONB and
// parsed into the open map the engine reads condition and sale data from.
func scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	var detailsJSON []byte

	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.ParcelID,
		&p.Address,
		&p.City,
		&p.State,
		&p.ZipCode,
		&p.PropertyType,
		&p.ZoneCode,
		&p.LandArea,
		&p.BuildingArea,
		&p.YearBuilt,
		&p.Bedrooms,
		&p.Bathrooms,
		&p.Features,
		&p.LastAssessedValue,
		&p.Status,
		&detailsJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &p.Details); err != nil {
			return nil, fmt.Errorf("failed to parse details for property %s: %w", p.ID, err)
		}
	}
	return &p, nil
}
