package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"medai-go/pkg/log"
	"medai-go/pkg/token"
)

const (
	// CSRFCookieName 与 CSRFHeaderName 组成双重提交校验，前端脚本从 cookie 读取后放入请求头。
	CSRFCookieName = "csrftoken"
	CSRFHeaderName = "X-CSRFToken"
	// CSRFFormField 供不带脚本的表单提交使用。
	CSRFFormField = "csrfmiddlewaretoken"

	csrfTokenKey = "csrfToken"
)

// CSRFMiddleware 为每个会话下发 csrftoken cookie，并要求所有非安全方法携带相同的令牌。
func CSRFMiddleware(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookieToken, _ := c.Cookie(CSRFCookieName)

		if !isSafeMethod(c.Request.Method) {
			submitted := c.GetHeader(CSRFHeaderName)
			if submitted == "" {
				submitted = c.PostForm(CSRFFormField)
			}
			if cookieToken == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(cookieToken)) != 1 {
				log.Warnw("CSRF 校验失败", "path", c.Request.URL.Path, "requestId", RequestID(c))
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF verification failed", "status": "error"})
				return
			}
		}

		if cookieToken == "" {
			var err error
			if cookieToken, err = token.GenerateRandomString(32); err != nil {
				log.Error("生成 CSRF 令牌失败", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Unable to start a secure session", "status": "error"})
				return
			}
			// 前端脚本需要读取该 cookie，因此不设置 HttpOnly
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     CSRFCookieName,
				Value:    cookieToken,
				Path:     "/",
				Secure:   secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(csrfTokenKey, cookieToken)
		c.Next()
	}
}

// CSRFToken 返回当前请求使用的令牌，用于渲染到表单的隐藏字段中。
func CSRFToken(c *gin.Context) string {
	return c.GetString(csrfTokenKey)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
