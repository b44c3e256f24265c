package purchase

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/keramy/formulapmv2-sub004/internal/authz"
	"github.com/keramy/formulapmv2-sub004/internal/platform/httpx"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

// Handler exposes purchase order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authorize authz.Middleware
	validate  *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authorize authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authorize: authorize, validate: validator.New()}
}

// MountRoutes registers purchase order routes under a project.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authorize.RequireProject(authz.ActionViewPurchaseOrder, "projectID", CostFields()...)).
		Get("/{projectID}/purchase-orders", h.list)
	r.With(h.authorize.RequireProject(authz.ActionCreatePurchaseOrder, "projectID")).
		Post("/{projectID}/purchase-orders", h.create)
	r.With(h.authorize.RequireProject(authz.ActionViewPurchaseOrder, "projectID", CostFields()...)).
		Get("/{projectID}/purchase-orders/{orderID}", h.get)
	r.With(h.authorize.RequireProject(authz.ActionCreatePurchaseOrder, "projectID")).
		Post("/{projectID}/purchase-orders/{orderID}/submit", h.submit)
	r.With(h.authorize.RequireProject(authz.ActionViewPurchaseOrder, "projectID")).
		Post("/{projectID}/purchase-orders/{orderID}/approve", h.approve)
	r.With(h.authorize.RequireProject(authz.ActionViewPurchaseOrder, "projectID")).
		Post("/{projectID}/purchase-orders/{orderID}/reject", h.reject)
	r.With(h.authorize.RequireProject(authz.ActionCreatePurchaseOrder, "projectID")).
		Post("/{projectID}/purchase-orders/{orderID}/cancel", h.cancel)
}

type lineResponse struct {
	ID          int64    `json:"id"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price,omitempty"`
	TotalPrice  *float64 `json:"total_price,omitempty"`
}

type orderResponse struct {
	ID           uuid.UUID      `json:"id"`
	ProjectID    uuid.UUID      `json:"project_id"`
	PONumber     string         `json:"po_number"`
	SupplierName string         `json:"supplier_name"`
	Description  string         `json:"description,omitempty"`
	Currency     string         `json:"currency"`
	TotalAmount  *float64       `json:"total_amount,omitempty"`
	Status       string         `json:"status"`
	ApprovedBy   *int64         `json:"approved_by,omitempty"`
	Lines        []lineResponse `json:"lines"`
	CreatedAt    time.Time      `json:"created_at"`
}

func toResponse(order Order, redacted []string) orderResponse {
	hidden := map[string]bool{}
	for _, field := range redacted {
		hidden[field] = true
	}
	resp := orderResponse{
		ID:           order.ID,
		ProjectID:    order.ProjectID,
		PONumber:     order.PONumber,
		SupplierName: order.SupplierName,
		Description:  order.Description,
		Currency:     order.Currency,
		Status:       string(order.Status),
		ApprovedBy:   order.ApprovedBy,
		CreatedAt:    order.CreatedAt,
	}
	if !hidden[CostFieldTotalAmount] {
		resp.TotalAmount = &order.TotalAmount
	}
	for i := range order.Lines {
		line := lineResponse{
			ID:          order.Lines[i].ID,
			Description: order.Lines[i].Description,
			Quantity:    order.Lines[i].Quantity,
		}
		if !hidden[CostFieldUnitPrice] {
			line.UnitPrice = &order.Lines[i].UnitPrice
		}
		if !hidden[CostFieldTotalPrice] {
			line.TotalPrice = &order.Lines[i].TotalPrice
		}
		resp.Lines = append(resp.Lines, line)
	}
	return resp
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "project id must be a UUID")
		return
	}
	decision, _ := authz.DecisionFromContext(r.Context())
	orders, redacted, err := h.service.ListByProject(r.Context(), projectID, decision.RedactedFields)
	if err != nil {
		h.respondError(w, "list orders", err)
		return
	}
	responses := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		responses = append(responses, toResponse(order, redacted))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": responses, "redacted_fields": redacted})
}

type lineRequest struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

type createOrderRequest struct {
	PONumber     string        `json:"po_number" validate:"required"`
	SupplierName string        `json:"supplier_name" validate:"required"`
	Description  string        `json:"description"`
	Currency     string        `json:"currency"`
	Lines        []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "project id must be a UUID")
		return
	}
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	input := CreateInput{
		ProjectID:    projectID,
		PONumber:     req.PONumber,
		SupplierName: req.SupplierName,
		Description:  req.Description,
		Currency:     req.Currency,
		CreatedBy:    principal.UserID,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{Description: line.Description, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	order, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(order, nil))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be a UUID")
		return
	}
	decision, _ := authz.DecisionFromContext(r.Context())
	order, redacted, err := h.service.Get(r.Context(), orderID, decision.RedactedFields)
	if err != nil {
		h.respondError(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(order, redacted))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be a UUID")
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	if err := h.service.Submit(r.Context(), principal.UserID, orderID); err != nil {
		h.respondError(w, "submit order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be a UUID")
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	order, err := h.service.Approve(r.Context(), principal, orderID, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.respondError(w, "approve order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(order, nil))
}

type rejectRequest struct {
	Note string `json:"note"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be a UUID")
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	order, err := h.service.Reject(r.Context(), principal, orderID, req.Note)
	if err != nil {
		h.respondError(w, "reject order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(order, nil))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be a UUID")
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	if err := h.service.Cancel(r.Context(), principal.UserID, orderID); err != nil {
		h.respondError(w, "cancel order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrLimitExceeded):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Approval Limit Exceeded", err.Error())
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
