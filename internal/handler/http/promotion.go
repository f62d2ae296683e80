package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/limpabem/promotion-service/internal/domain"
	"github.com/limpabem/promotion-service/internal/repository"
	"github.com/limpabem/promotion-service/internal/service"
	apperrors "github.com/limpabem/promotion-service/pkg/errors"
	"github.com/limpabem/promotion-service/pkg/validator"
)

// PromotionHandler handles HTTP requests for promotion endpoints.
type PromotionHandler struct {
	service *service.PromotionService
	logger  *slog.Logger
}

// NewPromotionHandler creates a new promotion HTTP handler.
func NewPromotionHandler(svc *service.PromotionService, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ComboConfigRequest mirrors domain.ComboConfig in request bodies.
type ComboConfigRequest struct {
	Kind         string        `json:"kind" validate:"required,oneof=buy_x_get_y tiered minimum_spend first_purchase"`
	Buy          int           `json:"buy" validate:"gte=0"`
	Get          int           `json:"get" validate:"gte=0"`
	Tiers        []TierRequest `json:"tiers" validate:"omitempty,dive"`
	MinimumValue float64       `json:"minimum_value" validate:"gte=0"`
}

// TierRequest is one quantity bracket in a tiered combo.
type TierRequest struct {
	Min        int     `json:"min" validate:"gte=0"`
	Max        int     `json:"max" validate:"gte=0"`
	PercentOff float64 `json:"percent_off" validate:"gt=0,lte=100"`
}

// CreatePromotionRequest is the JSON body for creating a promotion.
type CreatePromotionRequest struct {
	Name               string              `json:"name" validate:"required,min=1,max=255"`
	Description        string              `json:"description"`
	Active             bool                `json:"active"`
	StartDate          *string             `json:"start_date"`
	EndDate            *string             `json:"end_date"`
	DiscountType       string              `json:"discount_type" validate:"required,oneof=percentage fixed_amount combo"`
	DiscountValue      float64             `json:"discount_value" validate:"gte=0"`
	EligibleServiceIDs []string            `json:"eligible_service_ids"`
	MinimumQuantity    int                 `json:"minimum_quantity" validate:"gte=0"`
	MinimumValue       float64             `json:"minimum_value" validate:"gte=0"`
	UsesPerClient      int                 `json:"uses_per_client" validate:"gte=0"`
	Combo              *ComboConfigRequest `json:"combo_config"`
}

// UpdatePromotionRequest is the JSON body for partially updating a promotion.
type UpdatePromotionRequest struct {
	Name               *string             `json:"name" validate:"omitempty,min=1,max=255"`
	Description        *string             `json:"description"`
	Active             *bool               `json:"active"`
	StartDate          *string             `json:"start_date"`
	EndDate            *string             `json:"end_date"`
	DiscountType       *string             `json:"discount_type" validate:"omitempty,oneof=percentage fixed_amount combo"`
	DiscountValue      *float64            `json:"discount_value" validate:"omitempty,gte=0"`
	EligibleServiceIDs []string            `json:"eligible_service_ids"`
	MinimumQuantity    *int                `json:"minimum_quantity" validate:"omitempty,gte=0"`
	MinimumValue       *float64            `json:"minimum_value" validate:"omitempty,gte=0"`
	UsesPerClient      *int                `json:"uses_per_client" validate:"omitempty,gte=0"`
	Combo              *ComboConfigRequest `json:"combo_config"`
}

// CartItemRequest is one service line in an evaluate request.
type CartItemRequest struct {
	ServiceID string  `json:"service_id" validate:"required"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
}

// EvaluateRequest is the JSON body for evaluating a cart.
type EvaluateRequest struct {
	ClientID string            `json:"client_id"`
	Items    []CartItemRequest `json:"items" validate:"required,min=1,dive"`
	Subtotal float64           `json:"subtotal" validate:"gte=0"`
}

// RegisterUsageRequest is the JSON body for recording a redemption. The
// fields are deliberately unvalidated here: incomplete input is answered
// with inserted=false, not a 400.
type RegisterUsageRequest struct {
	PromotionID    string  `json:"promotion_id"`
	OrderID        string  `json:"order_id"`
	ClientID       string  `json:"client_id"`
	DiscountAmount float64 `json:"discount_amount"`
}

// --- Response envelope ---

type response struct {
	Data  any            `json:"data,omitempty"`
	Error *errorResponse `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type listResponse struct {
	Data       any `json:"data"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
}

// --- Handlers ---

// CreatePromotion handles POST /api/v1/promotions
func (h *PromotionHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req CreatePromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	startDate, ok := h.parseOptionalDate(w, req.StartDate, "start_date")
	if !ok {
		return
	}
	endDate, ok := h.parseOptionalDate(w, req.EndDate, "end_date")
	if !ok {
		return
	}

	input := &service.CreatePromotionInput{
		Name:               req.Name,
		Description:        req.Description,
		Active:             req.Active,
		StartDate:          startDate,
		EndDate:            endDate,
		DiscountType:       req.DiscountType,
		DiscountValue:      req.DiscountValue,
		EligibleServiceIDs: req.EligibleServiceIDs,
		MinimumQuantity:    req.MinimumQuantity,
		MinimumValue:       req.MinimumValue,
		UsesPerClient:      req.UsesPerClient,
		Combo:              req.Combo.toDomain(),
	}

	promotion, err := h.service.CreatePromotion(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: promotion})
}

// ListPromotions handles GET /api/v1/promotions
func (h *PromotionHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	filter := repository.PromotionFilter{
		Page:    1,
		PerPage: 20,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if perPage, err := strconv.Atoi(v); err == nil && perPage > 0 && perPage <= 100 {
			filter.PerPage = perPage
		}
	}
	if v := r.URL.Query().Get("active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filter.Active = &active
		}
	}
	if v := r.URL.Query().Get("discount_type"); v != "" {
		filter.DiscountType = &v
	}

	promotions, total, err := h.service.ListPromotions(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	totalPages := total / filter.PerPage
	if total%filter.PerPage > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, listResponse{
		Data:       promotions,
		TotalCount: total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: totalPages,
	})
}

// GetPromotion handles GET /api/v1/promotions/{id}
func (h *PromotionHandler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	promotion, err := h.service.GetPromotion(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: promotion})
}

// UpdatePromotion handles PUT /api/v1/promotions/{id}
func (h *PromotionHandler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	var req UpdatePromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	input := &service.UpdatePromotionInput{
		Name:               req.Name,
		Description:        req.Description,
		Active:             req.Active,
		DiscountType:       req.DiscountType,
		DiscountValue:      req.DiscountValue,
		EligibleServiceIDs: req.EligibleServiceIDs,
		MinimumQuantity:    req.MinimumQuantity,
		MinimumValue:       req.MinimumValue,
		UsesPerClient:      req.UsesPerClient,
		Combo:              req.Combo.toDomain(),
	}

	if startDate, ok := h.parseOptionalDate(w, req.StartDate, "start_date"); ok {
		input.StartDate = startDate
	} else {
		return
	}
	if endDate, ok := h.parseOptionalDate(w, req.EndDate, "end_date"); ok {
		input.EndDate = endDate
	} else {
		return
	}

	promotion, err := h.service.UpdatePromotion(r.Context(), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: promotion})
}

// DeactivatePromotion handles POST /api/v1/promotions/{id}/deactivate
func (h *PromotionHandler) DeactivatePromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	promotion, err := h.service.DeactivatePromotion(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: promotion})
}

// Evaluate handles POST /api/v1/promotions/evaluate
func (h *PromotionHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		h.writeValidationError(w, err)
		return
	}

	items := make([]domain.CartItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.CartItem{
			ServiceID: item.ServiceID,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}

	result, err := h.service.Evaluate(r.Context(), &service.EvaluateInput{
		ClientID: req.ClientID,
		Items:    items,
		Subtotal: req.Subtotal,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: result})
}

// RegisterUsage handles POST /api/v1/promotions/usage
func (h *PromotionHandler) RegisterUsage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req RegisterUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	result, err := h.service.RegisterUsage(r.Context(), &service.RegisterUsageInput{
		PromotionID:    req.PromotionID,
		OrderID:        req.OrderID,
		ClientID:       req.ClientID,
		DiscountAmount: req.DiscountAmount,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Inserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, response{Data: result})
}

// --- Helpers ---

func (c *ComboConfigRequest) toDomain() *domain.ComboConfig {
	if c == nil {
		return nil
	}
	tiers := make([]domain.Tier, len(c.Tiers))
	for i, t := range c.Tiers {
		tiers[i] = domain.Tier{Min: t.Min, Max: t.Max, PercentOff: t.PercentOff}
	}
	return &domain.ComboConfig{
		Kind:         c.Kind,
		Buy:          c.Buy,
		Get:          c.Get,
		Tiers:        tiers,
		MinimumValue: c.MinimumValue,
	}
}

func (h *PromotionHandler) parseOptionalDate(w http.ResponseWriter, raw *string, field string) (*time.Time, bool) {
	if raw == nil {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: field + " must be in RFC3339 format"},
		})
		return nil, false
	}
	return &t, true
}

func (h *PromotionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, response{
			Error: &errorResponse{Code: appErr.Code, Message: appErr.Message},
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code = "NOT_FOUND"
		message = "resource not found"
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrAlreadyExists):
		code = "ALREADY_EXISTS"
		message = "resource already exists"
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "INVALID_INPUT"
		message = err.Error()
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	writeJSON(w, status, response{
		Error: &errorResponse{Code: code, Message: message},
	})
}

func (h *PromotionHandler) writeValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	writeJSON(w, http.StatusBadRequest, response{
		Error: &errorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
