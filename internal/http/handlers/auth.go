package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/eduloan/internal/access"
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/geocoder89/eduloan/internal/domain/session"
	"github.com/geocoder89/eduloan/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type IdentityService interface {
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Logout(ctx context.Context, token string)
	ChangePassword(ctx context.Context, s *session.Session, current, next string) (*session.Session, error)
}

type AuthHandler struct {
	identity IdentityService
}

func NewAuthHandler(identity IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Account   account.Account `json:"account"`
	Redirect  string          `json:"redirect"`
}

type SessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	Account       *account.Account `json:"account,omitempty"`
	Redirect      string           `json:"redirect"`
}

// POST /auth/login
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	s, err := h.identity.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, LoginResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		Account:   s.Account,
		Redirect:  access.LandingPath(s),
	})
}

// POST /auth/logout. Always 204, even without a live session.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.identity.Logout(ctx.Request.Context(), middlewares.BearerToken(ctx))
	ctx.Status(http.StatusNoContent)
}

// POST /auth/change-password
func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	var req ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.NewPassword != req.ConfirmPassword {
		RespondUnprocessable(ctx, "Some fields are invalid", gin.H{
			"fields": []FieldError{{Field: "confirmPassword", Message: "Passwords do not match"}},
		})
		return
	}

	updated, err := h.identity.ChangePassword(ctx.Request.Context(), middlewares.SessionFromContext(ctx), req.CurrentPassword, req.NewPassword)
	if err != nil {
		RespondServiceError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"account":  updated.Account,
		"redirect": access.LandingPath(updated),
	})
}

// GET /auth/session
func (h *AuthHandler) Session(ctx *gin.Context) {
	s := middlewares.SessionFromContext(ctx)

	resp := SessionResponse{
		Authenticated: s.Authenticated(),
		Redirect:      access.LandingPath(s),
	}
	if s.Authenticated() {
		acc := s.Account
		resp.Account = &acc
	}

	ctx.JSON(http.StatusOK, resp)
}
