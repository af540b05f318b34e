package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medai-go/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(manager *token.SessionManager) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(), SessionMiddleware(manager, SessionOptions{CookieName: "medai_session"}), CSRFMiddleware(false))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sid": SessionID(c), "csrf": CSRFToken(c)})
	})
	r.POST("/submit", func(c *gin.Context) {
		c.String(http.StatusOK, SessionID(c))
	})
	return r
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestSessionIssuedAndReused(t *testing.T) {
	manager := token.NewSessionManager("secret", time.Hour)
	r := newRouter(manager)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	session := cookieNamed(rec, "medai_session")
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Zero(t, session.MaxAge, "browser-session cookie")
	sid, err := manager.Verify(session.Value)
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), sid)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(session)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), sid)
	assert.Nil(t, cookieNamed(rec, "medai_session"), "valid session is not reissued")
}

func TestTamperedSessionIsReplaced(t *testing.T) {
	manager := token.NewSessionManager("secret", time.Hour)
	r := newRouter(manager)

	foreign, _ := token.NewSessionManager("other", time.Hour).Sign("victim")
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "medai_session", Value: foreign})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	session := cookieNamed(rec, "medai_session")
	require.NotNil(t, session)
	sid, err := manager.Verify(session.Value)
	require.NoError(t, err)
	assert.NotEqual(t, "victim", sid)
}

func TestCSRFRequiredOnPost(t *testing.T) {
	manager := token.NewSessionManager("secret", time.Hour)
	r := newRouter(manager)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	csrf := cookieNamed(rec, CSRFCookieName)
	require.NotNil(t, csrf)
	assert.False(t, csrf.HttpOnly)

	// 缺少请求头
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(csrf)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 请求头与 cookie 不一致
	req = httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(csrf)
	req.Header.Set(CSRFHeaderName, "forged")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(csrf)
	req.Header.Set(CSRFHeaderName, csrf.Value)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFAcceptsFormField(t *testing.T) {
	r := newRouter(token.NewSessionManager("secret", time.Hour))

	form := url.Values{CSRFFormField: {"abc123"}}
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "abc123"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFRejectsPostWithoutCookie(t *testing.T) {
	r := newRouter(token.NewSessionManager("secret", time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.Header.Set(CSRFHeaderName, "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "CSRF verification failed")
}

func TestRequestIDPropagated(t *testing.T) {
	r := newRouter(token.NewSessionManager("secret", time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}
