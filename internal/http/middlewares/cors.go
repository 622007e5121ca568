package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}, ",")
	corsHeaders = strings.Join([]string{"Authorization", "Content-Type", "If-None-Match", requestIDHeader}, ",")
	corsExpose  = strings.Join([]string{"ETag", "Location", "Retry-After", requestIDHeader}, ",")
)

// CORSMiddleware lets the portal front end call the API. Only listed origins
// get CORS headers; preflights are answered here either way.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))

	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(ctx *gin.Context) {
		ctx.Header("Vary", "Origin")

		if origin := ctx.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				ctx.Header("Access-Control-Allow-Origin", origin)
				ctx.Header("Access-Control-Allow-Methods", corsMethods)
				ctx.Header("Access-Control-Allow-Headers", corsHeaders)
				ctx.Header("Access-Control-Expose-Headers", corsExpose)
				ctx.Header("Access-Control-Max-Age", "600")
			}
		}

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}
