package documents

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

// Handler exposes document endpoints.
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

// MountRoutes registers document routes under a project.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authorize.RequireProject(authz.ActionViewDocument, "projectID")).
		Get("/{projectID}/documents", h.list)
	r.With(h.authorize.RequireProject(authz.ActionUploadDocument, "projectID")).
		Post("/{projectID}/documents", h.upload)
	r.With(h.authorize.RequireProject(authz.ActionViewDocument, "projectID")).
		Get("/{projectID}/documents/{documentID}", h.get)
	r.With(h.authorize.RequireProject(authz.ActionUploadDocument, "projectID")).
		Post("/{projectID}/documents/{documentID}/submit", h.submit)
	r.With(h.authorize.RequireProject(authz.ActionApproveDocument, "projectID")).
		Post("/{projectID}/documents/{documentID}/review", h.review)
	r.With(h.authorize.RequireProject(authz.ActionApproveDocument, "projectID")).
		Put("/{projectID}/documents/{documentID}/visibility", h.visibility)
}

type documentResponse struct {
	ID            uuid.UUID `json:"id"`
	ProjectID     uuid.UUID `json:"project_id"`
	Title         string    `json:"title"`
	Kind          string    `json:"kind,omitempty"`
	Version       int       `json:"version"`
	Status        string    `json:"status"`
	ClientVisible bool      `json:"client_visible"`
	ReviewedBy    *int64    `json:"reviewed_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toResponse(doc Document) documentResponse {
	return documentResponse{
		ID:            doc.ID,
		ProjectID:     doc.ProjectID,
		Title:         doc.Title,
		Kind:          doc.Kind,
		Version:       doc.Version,
		Status:        string(doc.Status),
		ClientVisible: doc.ClientVisible,
		ReviewedBy:    doc.ReviewedBy,
		CreatedAt:     doc.CreatedAt,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "project id must be a UUID")
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	docs, err := h.service.ListByProject(r.Context(), principal, projectID)
	if err != nil {
		h.respondError(w, "list documents", err)
		return
	}
	responses := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, toResponse(doc))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"documents": responses})
}

type uploadRequest struct {
	Title         string `json:"title" validate:"required"`
	Kind          string `json:"kind"`
	StoragePath   string `json:"storage_path" validate:"required"`
	ClientVisible bool   `json:"client_visible"`
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "project id must be a UUID")
		return
	}
	var req uploadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	doc, err := h.service.Upload(r.Context(), UploadInput{
		ProjectID:     projectID,
		Title:         req.Title,
		Kind:          req.Kind,
		StoragePath:   req.StoragePath,
		ClientVisible: req.ClientVisible,
		UploadedBy:    principal.UserID,
	})
	if err != nil {
		h.respondError(w, "upload document", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(doc))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "document id must be a UUID")
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	doc, err := h.service.Get(r.Context(), principal, documentID)
	if err != nil {
		h.respondError(w, "get document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(doc))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "document id must be a UUID")
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	if err := h.service.Submit(r.Context(), principal.UserID, documentID); err != nil {
		h.respondError(w, "submit document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "document id must be a UUID")
		return
	}
	var req reviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	principal, _ := authz.PrincipalFromContext(r.Context())
	doc, err := h.service.Review(r.Context(), principal, documentID, req.Approve, req.Note)
	if err != nil {
		h.respondError(w, "review document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(doc))
}

type visibilityRequest struct {
	ClientVisible bool `json:"client_visible"`
}

func (h *Handler) visibility(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "document id must be a UUID")
		return
	}
	var req visibilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.service.SetClientVisible(r.Context(), documentID, req.ClientVisible); err != nil {
		h.respondError(w, "set visibility", err)
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
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
