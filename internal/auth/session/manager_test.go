package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(req *http.Request) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	return c, rec
}

func TestSetTokensWritesHTTPOnlyCookies(t *testing.T) {
	m := NewManager(config.Config{Auth: config.AuthConfig{RefreshTokenTTL: time.Hour}})
	c, rec := newContext(httptest.NewRequest(http.MethodPost, "/v1/users/login", nil))

	m.SetTokens(c, "access", "refresh")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, AccessTokenCookie, cookies[0].Name)
	assert.Equal(t, "access", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.Equal(t, RefreshTokenCookie, cookies[1].Name)
}

func TestReadAccessTokenFallsBackToBearer(t *testing.T) {
	m := NewManager(config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	c, _ := newContext(req)
	token, ok := m.ReadAccessToken(c)
	assert.True(t, ok)
	assert.Equal(t, "header-token", token)

	req = httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")
	c, _ = newContext(req)
	token, ok = m.ReadAccessToken(c)
	assert.True(t, ok)
	assert.Equal(t, "cookie-token", token)

	c, _ = newContext(httptest.NewRequest(http.MethodGet, "/v1/users/me", nil))
	_, ok = m.ReadAccessToken(c)
	assert.False(t, ok)
}
