package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/leasing_backend/config"
	"github.com/mmdatafocus/leasing_backend/utils"
)

// SessionUser is the profile cached in Redis under "User:<username>" at login.
type SessionUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	TenantId string `json:"tenant_id"`
	Role     string `json:"role"`
}

func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)

		var user SessionUser
		found, err := config.GetRedisObject("User:"+username, &user)
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "SessionMiddleware", "load session user", username, err)
		}
		if found {
			if user.ID != 0 {
				ctx = utils.SetUserIdInContext(ctx, user.ID)
			}
			if tenantId := strings.TrimSpace(user.TenantId); tenantId != "" {
				ctx = utils.SetTenantIdInContext(ctx, tenantId)
			}
			ctx = utils.SetIsAdminInContext(ctx, user.Role == utils.RoleAdmin)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
