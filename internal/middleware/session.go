package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medai-go/pkg/log"
	"medai-go/pkg/token"
)

const sessionIDKey = "sessionId"

// SessionOptions 控制会话 cookie 的属性。
type SessionOptions struct {
	CookieName string
	Secure     bool
}

// SessionMiddleware 从签名 cookie 中恢复会话 ID。cookie 缺失、被篡改或过期时签发新会话。
// cookie 不设置 Max-Age，浏览器关闭即失效；服务端数据由 Redis TTL 回收。
func SessionMiddleware(manager *token.SessionManager, opts SessionOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(opts.CookieName); err == nil && raw != "" {
			if sid, verr := manager.Verify(raw); verr == nil {
				c.Set(sessionIDKey, sid)
				c.Next()
				return
			}
		}

		sid, signed, err := manager.NewSession()
		if err != nil {
			log.Error("签发会话失败", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Unable to start a session", "status": "error"})
			return
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     opts.CookieName,
			Value:    signed,
			Path:     "/",
			HttpOnly: true,
			Secure:   opts.Secure,
			SameSite: http.SameSiteLaxMode,
		})
		c.Set(sessionIDKey, sid)
		c.Next()
	}
}

// SessionID 返回 SessionMiddleware 放入上下文的会话 ID。
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
