package models

import (
	"time"

	"github.com/google/uuid"
)

// AppealStatus tracks the review state of an appeal.
type AppealStatus string

const (
	AppealStatusPending  AppealStatus = "pending"
	AppealStatusApproved AppealStatus = "approved"
	AppealStatusDenied   AppealStatus = "denied"
)

// PropertyAppeal is a formal contest of an assessed value. Resolution fields
// (ReviewedBy, ReviewedAt, Decision, DecisionReason, AdjustedValue) are set
// only when the status leaves pending. The recommendation engine reads
// appeals as a historical training signal and never mutates them.
type PropertyAppeal struct {
	ID             uuid.UUID    `json:"id"`
	PropertyID     uuid.UUID    `json:"propertyId"`
	TenantID       uuid.UUID    `json:"tenantId"`
	ValuationID    uuid.UUID    `json:"valuationId"`
	SubmittedBy    uuid.UUID    `json:"submittedBy"`
	Reason         string       `json:"reason"`
	RequestedValue float64      `json:"requestedValue"`
	EvidenceURLs   []string     `json:"evidenceUrls,omitempty"`
	Status         AppealStatus `json:"status"`
	ReviewedBy     *uuid.UUID   `json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time   `json:"reviewedAt,omitempty"`
	Decision       string       `json:"decision,omitempty"`
	DecisionReason string       `json:"decisionReason,omitempty"`
	AdjustedValue  *float64     `json:"adjustedValue,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// Successful reports whether the appeal was approved with a genuine
// reduction: the granted value came in below the appellant's own target.
func (a *PropertyAppeal) Successful() bool {
	return a.Status == AppealStatusApproved &&
		a.AdjustedValue != nil &&
		*a.AdjustedValue > 0 &&
		*a.AdjustedValue < a.RequestedValue
}

// ReductionFraction measures how far the granted value undercut the
// requested value, relative to the granted value. Returns 0 for appeals
// that were not successful.
func (a *PropertyAppeal) ReductionFraction() float64 {
	if !a.Successful() {
		return 0
	}
	return (a.RequestedValue - *a.AdjustedValue) / *a.AdjustedValue
}
