package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type DirectoryService interface {
	Create(ctx context.Context, req account.CreateAccountRequest) (account.Account, string, error)
	Update(ctx context.Context, id string, req account.UpdateAccountRequest) (account.Account, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]account.Account, error)
	CountByRole(ctx context.Context) (map[account.Role]int, error)
}

// UsersHandler serves the admin area.
type UsersHandler struct {
	directory DirectoryService
}

func NewUsersHandler(directory DirectoryService) *UsersHandler {
	return &UsersHandler{directory: directory}
}

type CreateUserResponse struct {
	Account account.Account `json:"account"`
	// only set when the server generated the password
	TemporaryPassword string `json:"temporaryPassword,omitempty"`
}

// GET /admin-area/users
func (h *UsersHandler) List(ctx *gin.Context) {
	items, err := h.directory.List(ctx.Request.Context())
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// POST /admin-area/users
func (h *UsersHandler) Create(ctx *gin.Context) {
	var req account.CreateAccountRequest

	if !BindJSON(ctx, &req) {
		return
	}

	acc, password, err := h.directory.Create(ctx.Request.Context(), req)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	resp := CreateUserResponse{Account: acc}
	if req.Password == "" {
		resp.TemporaryPassword = password
	}

	ctx.Header("Location", "/admin-area/users/"+acc.ID)
	ctx.JSON(http.StatusCreated, resp)
}

// PUT /admin-area/users/:id
func (h *UsersHandler) Update(ctx *gin.Context) {
	var req account.UpdateAccountRequest

	if !BindJSON(ctx, &req) {
		return
	}

	acc, err := h.directory.Update(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, acc)
}

// DELETE /admin-area/users/:id
func (h *UsersHandler) Delete(ctx *gin.Context) {
	id := ctx.Param("id")

	if self, ok := middlewares.AccountIDFromContext(ctx); ok && self == id {
		RespondUnprocessable(ctx, "You cannot delete your own account", gin.H{
			"fields": []FieldError{{Field: "id", Message: "cannot delete yourself"}},
		})
		return
	}

	if err := h.directory.Delete(ctx.Request.Context(), id); err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
