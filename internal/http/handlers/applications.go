package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/geocoder89/eduloan/internal/http/middlewares"
	"github.com/geocoder89/eduloan/internal/registry"
	"github.com/gin-gonic/gin"
)

type ApplicationService interface {
	Create(ctx context.Context, f application.Fields, counselorID string) (application.LoanApplication, error)
	Update(ctx context.Context, id string, p application.Patch) (application.LoanApplication, error)
	Approve(ctx context.Context, id string) (application.LoanApplication, error)
	Reject(ctx context.Context, id, reason string) (application.LoanApplication, error)
	GetByID(ctx context.Context, id string) (application.LoanApplication, error)
	ListByCounselor(ctx context.Context, counselorID string) ([]application.LoanApplication, error)
	ListByStatus(ctx context.Context, status application.Status) ([]application.LoanApplication, error)
	ListReviewed(ctx context.Context, f registry.ReviewFilter) ([]application.LoanApplication, error)
	Recent(ctx context.Context, f application.ListFilter, n int) ([]application.LoanApplication, error)
	Stats(ctx context.Context, counselorID *string) (application.Stats, error)
}

// ApplicationsHandler serves the counselor area.
type ApplicationsHandler struct {
	apps ApplicationService
}

func NewApplicationsHandler(apps ApplicationService) *ApplicationsHandler {
	return &ApplicationsHandler{apps: apps}
}

type ListResponse struct {
	Items []application.LoanApplication `json:"items"`
	Count int                           `json:"count"`
}

func listResponse(items []application.LoanApplication) ListResponse {
	return ListResponse{Items: items, Count: len(items)}
}

// POST /counselor-area/applications
func (h *ApplicationsHandler) Create(ctx *gin.Context) {
	var f application.Fields

	if !BindJSON(ctx, &f) {
		return
	}

	s := middlewares.SessionFromContext(ctx)

	app, err := h.apps.Create(ctx.Request.Context(), f, s.Account.ID)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.Header("Location", "/counselor-area/applications/"+app.ID)
	ctx.JSON(http.StatusCreated, app)
}

// GET /counselor-area/applications
func (h *ApplicationsHandler) ListMine(ctx *gin.Context) {
	s := middlewares.SessionFromContext(ctx)

	items, err := h.apps.ListByCounselor(ctx.Request.Context(), s.Account.ID)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, listResponse(items))
}

// GET /counselor-area/applications/:id
func (h *ApplicationsHandler) Get(ctx *gin.Context) {
	app, ok := h.loadVisible(ctx)
	if !ok {
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, app)
}

// PUT /counselor-area/applications/:id
func (h *ApplicationsHandler) Update(ctx *gin.Context) {
	app, ok := h.loadVisible(ctx)
	if !ok {
		return
	}

	s := middlewares.SessionFromContext(ctx)
	if !registry.CanEdit(s.Account, app) {
		RespondForbidden(ctx, "Only the counselor who filed this application can edit it.", nil)
		return
	}

	var p application.Patch

	if !BindJSON(ctx, &p) {
		return
	}

	updated, err := h.apps.Update(ctx.Request.Context(), app.ID, p)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// loadVisible answers 404 for records the caller may not see, so other
// counselors' applications are indistinguishable from missing ones.
func (h *ApplicationsHandler) loadVisible(ctx *gin.Context) (application.LoanApplication, bool) {
	app, err := h.apps.GetByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		RespondServiceError(ctx, err)
		return application.LoanApplication{}, false
	}

	if !registry.CanView(middlewares.SessionFromContext(ctx).Account, app) {
		RespondNotFound(ctx, "Resource not found")
		return application.LoanApplication{}, false
	}
	return app, true
}
