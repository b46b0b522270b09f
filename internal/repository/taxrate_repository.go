package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/taxvalor/api/internal/database"
	"github.com/taxvalor/api/internal/models"
)

// TaxRateRepository defines the interface for tax-rate data access.
type TaxRateRepository interface {
	// GetActive finds the active rate for (tenant, zone code, property
	// type). Returns nil, nil if no active rate is configured (the engine
	// then applies its documented defaults).
	GetActive(ctx context.Context, tenantID uuid.UUID, zoneCode string, propertyType models.PropertyType) (*models.TaxRate, error)
}

// taxRateRepository is the concrete implementation of TaxRateRepository.
type taxRateRepository struct {
	db *database.Database
}

// NewTaxRateRepository creates a new instance of TaxRateRepository.
func NewTaxRateRepository(db *database.Database) TaxRateRepository {
	return &taxRateRepository{
		db: db,
	}
}

// GetActive relies on the partial unique index guaranteeing at most one
// active rate per (tenant, zone, type).
func (r *taxRateRepository) GetActive(ctx context.Context, tenantID uuid.UUID, zoneCode string, propertyType models.PropertyType) (*models.TaxRate, error) {
	query := `
		SELECT
			id,
			tenant_id,
			zone_code,
			property_type,
			millage_rate,
			exemption_amount,
			active,
			created_at,
			updated_at
		FROM tax_rates
		WHERE tenant_id = $1 AND zone_code = $2 AND property_type = $3 AND active
	`

	var rate models.TaxRate
	err := r.db.Pool.QueryRow(ctx, query, tenantID, zoneCode, propertyType).Scan(
		&rate.ID,
		&rate.TenantID,
		&rate.ZoneCode,
		&rate.PropertyType,
		&rate.MillageRate,
		&rate.ExemptionAmount,
		&rate.Active,
		&rate.CreatedAt,
		&rate.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query tax rate for tenant %s zone %s type %s: %w",
			tenantID, zoneCode, propertyType, err)
	}
	return &rate, nil
}
