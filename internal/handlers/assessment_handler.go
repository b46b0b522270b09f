package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/taxvalor/api/internal/engine"
	apierrors "github.com/taxvalor/api/internal/errors"
	"github.com/taxvalor/api/internal/middleware"
	"github.com/taxvalor/api/internal/models"
	"github.com/taxvalor/api/internal/services"
)

// AssessmentHandler handles valuation, prediction, and appeal-recommendation
// HTTP requests.
type AssessmentHandler struct {
	service services.AssessmentService
}

// NewAssessmentHandler creates a new AssessmentHandler instance.
func NewAssessmentHandler(service services.AssessmentService) *AssessmentHandler {
	return &AssessmentHandler{
		service: service,
	}
}

// CalculateValuationRequest represents the body for the calculate endpoint.
type CalculateValuationRequest struct {
	TenantID       string `json:"tenantId" binding:"required,uuid"`
	Method         string `json:"method" binding:"omitempty,oneof=standard income sales_comparison cost"`
	AssessmentDate string `json:"assessmentDate" binding:"omitempty"`
}

// PredictValuationRequest represents the body for the predict endpoint.
type PredictValuationRequest struct {
	TenantID       string `json:"tenantId" binding:"required,uuid"`
	PredictionDate string `json:"predictionDate" binding:"omitempty"`
}

// RecommendationRequest represents the query parameters for the
// recommendations endpoint.
type RecommendationRequest struct {
	TenantID string `form:"tenantId" binding:"required,uuid"`
}

// ValuationResponse wraps a persisted valuation for the API response.
type ValuationResponse struct {
	Valuation *models.PropertyValuation `json:"valuation"`
}

// RecommendationResponse wraps an appeal recommendation for the API response.
type RecommendationResponse struct {
	Recommendation *engine.AppealRecommendation `json:"recommendation"`
}

// CalculateValuation handles POST /api/v1/valuations/:propertyId.
// It computes and persists a valuation using the requested method.
// An omitted method defaults to standard, an omitted assessment date to now.
func (h *AssessmentHandler) CalculateValuation(c *gin.Context) {
	log := middleware.GetLogger(c)

	propertyID, ok := parsePropertyID(c)
	if !ok {
		return
	}

	var req CalculateValuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	tenantID := uuid.MustParse(req.TenantID)

	assessmentDate := time.Now().UTC()
	if req.AssessmentDate != "" {
		parsed, err := parseDate(req.AssessmentDate)
		if err != nil {
			apierrors.BadRequest(c, "assessmentDate must be RFC 3339 or YYYY-MM-DD", nil)
			return
		}
		assessmentDate = parsed
	}

	method := models.ValuationMethod(req.Method)
	if req.Method == "" {
		method = models.MethodStandard
	}

	if log != nil {
		log.Info("Processing valuation request", map[string]interface{}{
			"property_id":     propertyID,
			"method":          string(method),
			"assessment_date": assessmentDate.Format(time.RFC3339),
		})
	}

	valuation, err := h.service.CalculateValuation(c.Request.Context(), tenantID, propertyID, method, assessmentDate)
	if err != nil {
		if errors.Is(err, services.ErrPropertyNotFound) {
			apierrors.NotFound(c, "Property not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to calculate valuation", err)
		return
	}

	c.JSON(http.StatusCreated, ValuationResponse{Valuation: valuation})
}

// PredictValuation handles POST /api/v1/predict/:propertyId.
// It forecasts the property's value at the prediction date from its
// valuation history. An omitted prediction date defaults to one year out.
func (h *AssessmentHandler) PredictValuation(c *gin.Context) {
	log := middleware.GetLogger(c)

	propertyID, ok := parsePropertyID(c)
	if !ok {
		return
	}

	var req PredictValuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	tenantID := uuid.MustParse(req.TenantID)

	predictionDate := time.Now().UTC().AddDate(1, 0, 0)
	if req.PredictionDate != "" {
		parsed, err := parseDate(req.PredictionDate)
		if err != nil {
			apierrors.BadRequest(c, "predictionDate must be RFC 3339 or YYYY-MM-DD", nil)
			return
		}
		predictionDate = parsed
	}

	if log != nil {
		log.Info("Processing prediction request", map[string]interface{}{
			"property_id":     propertyID,
			"prediction_date": predictionDate.Format(time.RFC3339),
		})
	}

	valuation, err := h.service.PredictValuation(c.Request.Context(), tenantID, propertyID, predictionDate)
	if err != nil {
		if errors.Is(err, services.ErrPropertyNotFound) {
			apierrors.NotFound(c, "Property not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to predict valuation", err)
		return
	}

	c.JSON(http.StatusCreated, ValuationResponse{Valuation: valuation})
}

// RecommendAppeal handles GET /api/v1/recommendations/:propertyId.
// It scores the property's latest valuation for appeal potential.
func (h *AssessmentHandler) RecommendAppeal(c *gin.Context) {
	log := middleware.GetLogger(c)

	propertyID, ok := parsePropertyID(c)
	if !ok {
		return
	}

	var req RecommendationRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	tenantID := uuid.MustParse(req.TenantID)

	if log != nil {
		log.Info("Processing recommendation request", map[string]interface{}{
			"property_id": propertyID,
			"tenant_id":   tenantID,
		})
	}

	recommendation, err := h.service.RecommendAppeal(c.Request.Context(), tenantID, propertyID)
	if err != nil {
		if errors.Is(err, services.ErrPropertyNotFound) {
			apierrors.NotFound(c, "Property not found")
			return
		}
		if errors.Is(err, services.ErrValuationNotFound) {
			apierrors.NotFound(c, "Property has no valuation to contest")
			return
		}
		apierrors.InternalServerError(c, "Failed to build appeal recommendation", err)
		return
	}

	c.JSON(http.StatusOK, RecommendationResponse{Recommendation: recommendation})
}

// parsePropertyID reads the :propertyId path parameter. It writes the error
// response itself and reports success through the second return.
func parsePropertyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("propertyId"))
	if err != nil {
		apierrors.BadRequest(c, "propertyId must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// parseDate accepts either a full RFC 3339 timestamp or a bare date.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", value)
}
