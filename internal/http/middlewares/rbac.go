package middlewares

import (
	"net/http"

	"github.com/geocoder89/eduloan/internal/access"
	"github.com/geocoder89/eduloan/internal/domain/account"
	"github.com/gin-gonic/gin"
)

// RequireArea runs the access gate for a role area. Use access.RoleAny for
// routes open to every settled session.
func RequireArea(required account.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := access.Authorize(SessionFromContext(c), required)

		switch d.Outcome {
		case access.Allow:
			c.Next()
		case access.RedirectLogin:
			abort(c, http.StatusUnauthorized, "unauthenticated", "Please sign in to continue.", gin.H{"redirect": d.Path})
		case access.RedirectPasswordChange:
			abort(c, http.StatusForbidden, "password_change_required", "Please change your password before continuing.", gin.H{"redirect": d.Path})
		default:
			abort(c, http.StatusForbidden, "forbidden", "You do not have access to this area.", gin.H{"redirect": d.Path})
		}
	}
}

// RequireSession only demands an authenticated session; first-login sessions
// pass so they can reach the password change.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !SessionFromContext(c).Authenticated() {
			abort(c, http.StatusUnauthorized, "unauthenticated", "Please sign in to continue.", gin.H{"redirect": access.LoginPath})
			return
		}
		c.Next()
	}
}
