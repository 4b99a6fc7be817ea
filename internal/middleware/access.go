package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vitotech/website-api/internal/permissions"
	"github.com/vitotech/website-api/pkg/errors"
	"github.com/vitotech/website-api/pkg/metrics"
	"github.com/vitotech/website-api/pkg/response"
)

// RequireAction gates the route behind the access table entry for the
// given action. Anonymous callers get 401 on denial, authenticated
// callers 403.
func RequireAction(checker *permissions.Checker, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)

		allowed, err := checker.Check(c.Request.Context(), userID, action)
		if err != nil {
			metrics.AccessChecks.WithLabelValues(action, "error").Inc()
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   gin.H{"code": errors.ErrInternalServer.Code, "message": "access check failed"},
			})
			return
		}
		if !allowed {
			metrics.AccessChecks.WithLabelValues(action, "denied").Inc()
			if userID == "" {
				c.Header("WWW-Authenticate", "Bearer")
				response.Error(c, errors.ErrUnauthorized)
			} else {
				response.Error(c, errors.ErrForbidden)
			}
			c.Abort()
			return
		}

		metrics.AccessChecks.WithLabelValues(action, "allowed").Inc()
		c.Next()
	}
}
