package projects

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/keramy/formulapmv2-sub004/internal/authz"
	"github.com/keramy/formulapmv2-sub004/internal/platform/httpx"
	"github.com/keramy/formulapmv2-sub004/internal/shared"
)

// Handler exposes project endpoints.
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

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authorize.Require(authz.ActionViewProject)).Get("/", h.list)
	r.With(h.authorize.Require(authz.ActionCreateProject)).Post("/", h.create)
	r.With(h.authorize.RequireProject(authz.ActionViewProject, "projectID")).Get("/{projectID}", h.get)
	r.With(h.authorize.RequireProject(authz.ActionEditProject, "projectID")).Put("/{projectID}/status", h.updateStatus)

	r.Group(func(r chi.Router) {
		r.Use(h.authorize.RequireProject(authz.ActionManageMembers, "projectID"))
		r.Get("/{projectID}/members", h.members)
		r.Post("/{projectID}/members", h.addMember)
		r.Post("/{projectID}/members/{userID}/remove", h.removeMember)
	})
}

type projectResponse struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toResponse(p Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Description: p.Description,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	principal, _ := authz.PrincipalFromContext(r.Context())
	var (
		items []Project
		total int
		err   error
	)
	// Clients only see projects they are a member of.
	if principal.Role == authz.RoleClient {
		items, total, err = h.service.ListForMember(r.Context(), principal.UserID, limit, offset)
	} else {
		items, total, err = h.service.List(r.Context(), limit, offset)
	}
	if err != nil {
		h.respondError(w, "list projects", err)
		return
	}
	responses := make([]projectResponse, 0, len(items))
	for _, p := range items {
		responses = append(responses, toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"projects":   responses,
		"pagination": shared.NewPagination(limit, offset, total),
	})
}

type createRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	project, err := h.service.Create(r.Context(), CreateInput{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   principal.UserID,
	})
	if err != nil {
		h.respondError(w, "create project", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(project))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "project id must be a UUID")
		return
	}
	project, err := h.service.Get(r.Context(), projectID)
	if err != nil {
		h.respondError(w, "get project", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(project))
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "project id must be a UUID")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	if err := h.service.UpdateStatus(r.Context(), principal.UserID, projectID, Status(req.Status)); err != nil {
		h.respondError(w, "update status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type membershipResponse struct {
	UserID      int64  `json:"user_id"`
	AccessLevel string `json:"access_level"`
	IsActive    bool   `json:"is_active"`
}

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "project id must be a UUID")
		return
	}
	members, err := h.service.Members(r.Context(), projectID)
	if err != nil {
		h.respondError(w, "list members", err)
		return
	}
	responses := make([]membershipResponse, 0, len(members))
	for _, m := range members {
		responses = append(responses, membershipResponse{UserID: m.UserID, AccessLevel: m.AccessLevel, IsActive: m.IsActive})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": responses})
}

type addMemberRequest struct {
	UserID      int64  `json:"user_id" validate:"required"`
	AccessLevel string `json:"access_level"`
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "project id must be a UUID")
		return
	}
	var req addMemberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	if err := h.service.AddMember(r.Context(), principal.UserID, projectID, req.UserID, req.AccessLevel); err != nil {
		h.respondError(w, "add member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "project id must be a UUID")
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "user id must be numeric")
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	if err := h.service.RemoveMember(r.Context(), principal.UserID, projectID, userID); err != nil {
		h.respondError(w, "remove member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
