package middlewares

import (
	"github.com/gin-gonic/gin"
)

// apiHeaders suit a JSON-only API: nothing may be framed, sniffed or cached
// by intermediaries. ETag responses override Cache-Control themselves.
var apiHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "no-referrer",
	"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"Cache-Control":           "no-store",
}

// SecurityHeaders sets apiHeaders on every response; hsts adds
// Strict-Transport-Security for deployments behind TLS.
func SecurityHeaders(hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for k, v := range apiHeaders {
			h.Set(k, v)
		}
		if hsts {
			h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		c.Next()
	}
}
