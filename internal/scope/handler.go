package scope

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
)

// Handler exposes scope item endpoints.
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

// MountRoutes registers scope routes under a project.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authorize.RequireProject(authz.ActionViewScopeItem, "projectID", CostFields()...)).
		Get("/{projectID}/scope", h.list)
	r.With(h.authorize.RequireProject(authz.ActionEditScopeItem, "projectID", CostFields()...)).
		Post("/{projectID}/scope", h.create)
	r.With(h.authorize.RequireProject(authz.ActionViewScopeItem, "projectID", CostFields()...)).
		Get("/{projectID}/scope/{itemID}", h.get)
	r.With(h.authorize.RequireProject(authz.ActionEditScopeItem, "projectID", CostFields()...)).
		Put("/{projectID}/scope/{itemID}", h.update)
}

type itemResponse struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"project_id"`
	ItemNo      int       `json:"item_no"`
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	Unit        string    `json:"unit,omitempty"`
	UnitPrice   *float64  `json:"unit_price,omitempty"`
	TotalPrice  *float64  `json:"total_price,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toResponse(item Item, redacted []string) itemResponse {
	resp := itemResponse{
		ID:          item.ID,
		ProjectID:   item.ProjectID,
		ItemNo:      item.ItemNo,
		Description: item.Description,
		Quantity:    item.Quantity,
		Unit:        item.Unit,
		CreatedAt:   item.CreatedAt,
	}
	hidden := map[string]bool{}
	for _, field := range redacted {
		hidden[field] = true
	}
	if !hidden[CostFieldUnitPrice] {
		resp.UnitPrice = &item.UnitPrice
	}
	if !hidden[CostFieldTotalPrice] {
		resp.TotalPrice = &item.TotalPrice
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
	items, redacted, err := h.service.ListByProject(r.Context(), projectID, decision.RedactedFields)
	if err != nil {
		h.respondError(w, "list scope", err)
		return
	}
	responses := make([]itemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toResponse(item, redacted))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": responses, "redacted_fields": redacted})
}

type createItemRequest struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "project id must be a UUID")
		return
	}
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	item, err := h.service.Create(r.Context(), CreateInput{
		ProjectID:   projectID,
		Description: req.Description,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		UnitPrice:   req.UnitPrice,
		CreatedBy:   principal.UserID,
	})
	if err != nil {
		h.respondError(w, "create scope item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(item, nil))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "item id must be a UUID")
		return
	}
	decision, _ := authz.DecisionFromContext(r.Context())
	item, redacted, err := h.service.Get(r.Context(), itemID, decision.RedactedFields)
	if err != nil {
		h.respondError(w, "get scope item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(item, redacted))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "item id must be a UUID")
		return
	}
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.Update(r.Context(), UpdateInput{
		ID:          itemID,
		Description: req.Description,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		UnitPrice:   req.UnitPrice,
	})
	if err != nil {
		h.respondError(w, "update scope item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(item, nil))
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
