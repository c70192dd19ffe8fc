package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates a bearer JWT for service-to-service callers and
// scopes the request to the business baked into the claims.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claims, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), claims.BusinessId)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		ctx = utils.SetUserNameInContext(ctx, "service")
		if claims.Role == "A" {
			ctx = utils.SetIsAdminInContext(ctx, true)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
