package models

import (
	"time"

	"github.com/google/uuid"
)

// TaxRate is a per-tenant, per-zone, per-property-type rate record.
// At most one active rate exists per (tenant, zone code, property type).
type TaxRate struct {
	ID              uuid.UUID    `json:"id"`
	TenantID        uuid.UUID    `json:"tenantId"`
	ZoneCode        string       `json:"zoneCode"`
	PropertyType    PropertyType `json:"propertyType"`
	MillageRate     float64      `json:"millageRate"`
	ExemptionAmount float64      `json:"exemptionAmount"`
	Active          bool         `json:"active"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// AnnualTax computes the tax owed on an assessed value at this rate.
// Millage is expressed per $1,000 of assessed value.
func (r *TaxRate) AnnualTax(assessedValue float64) float64 {
	taxable := assessedValue - r.ExemptionAmount
	if taxable < 0 {
		taxable = 0
	}
	return taxable * r.MillageRate / 1000
}
