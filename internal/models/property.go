package models

import (
	"time"

	"github.com/google/uuid"
)

// PropertyType classifies a parcel for valuation and tax-rate matching.
type PropertyType string

const (
	PropertyTypeResidential  PropertyType = "residential"
	PropertyTypeCommercial   PropertyType = "commercial"
	PropertyTypeIndustrial   PropertyType = "industrial"
	PropertyTypeAgricultural PropertyType = "agricultural"
	PropertyTypeMixedUse     PropertyType = "mixed_use"
	PropertyTypeVacant       PropertyType = "vacant"
	PropertyTypeOther        PropertyType = "other"
)

// PropertyStatus tracks a property's lifecycle. Properties are soft-deleted
// by setting the status; rows are never removed.
type PropertyStatus string

const (
	PropertyStatusActive   PropertyStatus = "active"
	PropertyStatusPending  PropertyStatus = "pending"
	PropertyStatusReview   PropertyStatus = "review"
	PropertyStatusInactive PropertyStatus = "inactive"
	PropertyStatusDeleted  PropertyStatus = "deleted"
)

// Property represents a taxable real-estate parcel scoped to a tenant.
// A property is uniquely identified by (TenantID, ID) and is never visible
// across tenants. All nullable attributes use pointers to distinguish
// between zero values and missing data.
type Property struct {
	ID                uuid.UUID              `json:"id"`
	TenantID          uuid.UUID              `json:"tenantId"`
	ParcelID          string                 `json:"parcelId"`
	Address           string                 `json:"address"`
	City              string                 `json:"city"`
	State             string                 `json:"state"`
	ZipCode           string                 `json:"zipCode"`
	PropertyType      PropertyType           `json:"propertyType"`
	ZoneCode          string                 `json:"zoneCode"`
	LandArea          float64                `json:"landArea"`
	BuildingArea      *float64               `json:"buildingArea,omitempty"`
	YearBuilt         *int                   `json:"yearBuilt,omitempty"`
	Bedrooms          *int                   `json:"bedrooms,omitempty"`
	Bathrooms         *float64               `json:"bathrooms,omitempty"`
	Features          []string               `json:"features"`
	LastAssessedValue *float64               `json:"lastAssessedValue,omitempty"`
	Status            PropertyStatus         `json:"status"`
	Details           map[string]interface{} `json:"details,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
	UpdatedAt         time.Time              `json:"updatedAt"`
}

// Condition returns the condition recorded in the details map, or an empty
// string when none is present.
func (p *Property) Condition() string {
	return p.detailString("condition")
}

// SalePrice returns the last recorded sale price from the details map.
// Returns 0, false when no sale price is recorded.
func (p *Property) SalePrice() (float64, bool) {
	return p.detailNumber("salePrice")
}

// SaleDate returns the last recorded sale date from the details map.
// Accepts RFC 3339 and date-only formats. Returns zero time, false when
// absent or unparseable.
func (p *Property) SaleDate() (time.Time, bool) {
	raw := p.detailString("saleDate")
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AnnualIncome returns the recorded annual income from the details map.
// Returns 0, false when none is recorded.
func (p *Property) AnnualIncome() (float64, bool) {
	return p.detailNumber("annualIncome")
}

func (p *Property) detailString(key string) string {
	if p.Details == nil {
		return ""
	}
	if s, ok := p.Details[key].(string); ok {
		return s
	}
	return ""
}

func (p *Property) detailNumber(key string) (float64, bool) {
	if p.Details == nil {
		return 0, false
	}
	switch v := p.Details[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
