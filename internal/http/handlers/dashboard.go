package handlers

import (
	"net/http"

	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/geocoder89/eduloan/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

const recentLimit = 5

type DashboardHandler struct {
	apps      ApplicationService
	directory DirectoryService
}

func NewDashboardHandler(apps ApplicationService, directory DirectoryService) *DashboardHandler {
	return &DashboardHandler{apps: apps, directory: directory}
}

type ApplicationsDashboard struct {
	Stats  application.Stats             `json:"stats"`
	Recent []application.LoanApplication `json:"recent"`
}

type AdminDashboard struct {
	Accounts     map[account.Role]int `json:"accounts"`
	TotalUsers   int                  `json:"totalUsers"`
	Applications application.Stats    `json:"applications"`
}

// GET /counselor-area/dashboard
func (h *DashboardHandler) Counselor(ctx *gin.Context) {
	id := middlewares.SessionFromContext(ctx).Account.ID
	h.applications(ctx, &id, application.ListFilter{CounselorID: &id})
}

// GET /approver-area/dashboard
func (h *DashboardHandler) Approver(ctx *gin.Context) {
	h.applications(ctx, nil, application.ListFilter{Statuses: []application.Status{application.StatusPending}})
}

func (h *DashboardHandler) applications(ctx *gin.Context, counselorID *string, recent application.ListFilter) {
	stats, err := h.apps.Stats(ctx.Request.Context(), counselorID)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	items, err := h.apps.Recent(ctx.Request.Context(), recent, recentLimit)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ApplicationsDashboard{Stats: stats, Recent: items})
}

// GET /admin-area/dashboard
func (h *DashboardHandler) Admin(ctx *gin.Context) {
	counts, err := h.directory.CountByRole(ctx.Request.Context())
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	stats, err := h.apps.Stats(ctx.Request.Context(), nil)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	ctx.JSON(http.StatusOK, AdminDashboard{Accounts: counts, TotalUsers: total, Applications: stats})
}
