package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/relaychat/internal/auth"
	"github.com/suPer8Hu/relaychat/internal/common"
)

const UserIDKey = "user_id"

// AuthRequired resolves the Bearer token into a user id stored under
// UserIDKey. Requests without a valid token stop here with 401.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(h, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}
		uid, _, err := auth.ParseJWT(strings.TrimSpace(token), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// UserID returns the id set by AuthRequired.
func UserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok && id != 0
}
