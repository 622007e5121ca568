package handlers

import (
	"net/http"

	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/geocoder89/eduloan/internal/registry"
	"github.com/gin-gonic/gin"
)

// ReviewsHandler serves the approver area.
type ReviewsHandler struct {
	apps ApplicationService
}

func NewReviewsHandler(apps ApplicationService) *ReviewsHandler {
	return &ReviewsHandler{apps: apps}
}

type ReviewView struct {
	application.LoanApplication
	RiskLevel       application.RiskLevel `json:"riskLevel"`
	RiskDescription string                `json:"riskDescription"`
}

func reviewView(app application.LoanApplication) ReviewView {
	risk := app.Risk()
	return ReviewView{LoanApplication: app, RiskLevel: risk, RiskDescription: risk.Description()}
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

// GET /approver-area/applications/pending
func (h *ReviewsHandler) ListPending(ctx *gin.Context) {
	items, err := h.apps.ListByStatus(ctx.Request.Context(), application.StatusPending)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, listResponse(items))
}

// GET /approver-area/applications/reviewed?status=approved|rejected|all
func (h *ReviewsHandler) ListReviewed(ctx *gin.Context) {
	filter := registry.ReviewFilter(ctx.DefaultQuery("status", string(registry.ReviewedAll)))

	items, err := h.apps.ListReviewed(ctx.Request.Context(), filter)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, listResponse(items))
}

// GET /approver-area/applications/:id
func (h *ReviewsHandler) Get(ctx *gin.Context) {
	app, err := h.apps.GetByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, reviewView(app))
}

// POST /approver-area/applications/:id/approve
func (h *ReviewsHandler) Approve(ctx *gin.Context) {
	app, err := h.apps.Approve(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, app)
}

// POST /approver-area/applications/:id/reject
func (h *ReviewsHandler) Reject(ctx *gin.Context) {
	var req RejectRequest

	// no body means no reason, which the registry reports as a field error
	if !BindOptionalJSON(ctx, &req) {
		return
	}

	app, err := h.apps.Reject(ctx.Request.Context(), ctx.Param("id"), req.Reason)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, app)
}
