package middlewares

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 64
)

// RequestID propagates a caller-supplied id when it looks sane and mints one
// otherwise.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)

		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		ctx.Writer.Header().Set(requestIDHeader, id)
		ctx.Set(CtxRequestID, id)

		ctx.Next()
	}
}

// RequestLogger emits one http_request line per request; 5xx at error and
// 4xx at warn.
func RequestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := ctx.Writer.Status()

		logAttrs := []any{
			"method", ctx.Request.Method,
			"route", route,
			"path", ctx.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", ctx.GetString(CtxRequestID),
		}

		// account_id comes from the request context via the log handler
		if s := SessionFromContext(ctx); s.Authenticated() {
			logAttrs = append(logAttrs, "role", s.Account.Role)
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		slog.Default().Log(ctx.Request.Context(), level, "http_request", logAttrs...)
	}
}
