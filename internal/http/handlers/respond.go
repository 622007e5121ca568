package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/eduloan/internal/apperr"
	"github.com/geocoder89/eduloan/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if s := ctx.GetString(middlewares.CtxRequestID); s != "" {
		return s
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondUnprocessable(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusUnprocessableEntity, "validation_failed", message, details)
}

func RespondUnavailable(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusServiceUnavailable, "unavailable", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// RespondServiceError maps the service error taxonomy onto HTTP.
func RespondServiceError(ctx *gin.Context, err error) {
	var ve *apperr.ValidationError

	switch {
	case errors.As(err, &ve):
		fields := make([]FieldError, 0, len(ve.Fields))
		for _, f := range ve.Fields {
			fields = append(fields, FieldError{Field: f.Field, Message: f.Reason})
		}
		RespondUnprocessable(ctx, "Some fields are invalid", gin.H{"fields": fields})
	case errors.Is(err, apperr.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
	case errors.Is(err, apperr.ErrUnauthenticated):
		RespondUnAuthorized(ctx, "unauthenticated", "Please sign in to continue.")
	case errors.Is(err, apperr.ErrForbidden):
		RespondForbidden(ctx, "You do not have access to this resource.", nil)
	case errors.Is(err, apperr.ErrNotFound):
		RespondNotFound(ctx, "Resource not found")
	case errors.Is(err, apperr.ErrInvalidTransition):
		RespondConflict(ctx, "invalid_transition", err.Error())
	case errors.Is(err, apperr.ErrConflict):
		RespondConflict(ctx, "conflict", "The record was changed by someone else. Reload and try again.")
	case errors.Is(err, apperr.ErrOperationFailed):
		slog.Default().ErrorContext(ctx.Request.Context(), "operation failed", "err", err, "request_id", requestIDFrom(ctx))
		RespondUnavailable(ctx, "The service is temporarily unavailable. Please retry.")
	default:
		slog.Default().ErrorContext(ctx.Request.Context(), "unhandled error", "err", err, "request_id", requestIDFrom(ctx))
		RespondInternal(ctx, "Something went wrong")
	}
}
