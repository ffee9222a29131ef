package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/taskboard/internal/config"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// Manager writes and reads the auth token cookies. Cookies outlive the access
// token so an expired token still reaches the server and yields 410.
type Manager struct {
	secure    bool
	cookieTTL time.Duration
}

func NewManager(cfg config.Config) *Manager {
	ttl := cfg.Auth.RefreshTokenTTL
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Manager{
		secure:    cfg.AuthCookieSecure,
		cookieTTL: ttl,
	}
}

// ReadAccessToken prefers the cookie and falls back to a bearer header.
func (m *Manager) ReadAccessToken(c *gin.Context) (string, bool) {
	if token, ok := m.read(c, AccessTokenCookie); ok {
		return token, true
	}
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), true
	}
	return "", false
}

func (m *Manager) ReadRefreshToken(c *gin.Context) (string, bool) {
	return m.read(c, RefreshTokenCookie)
}

func (m *Manager) SetTokens(c *gin.Context, accessToken, refreshToken string) {
	m.set(c, AccessTokenCookie, accessToken)
	if refreshToken != "" {
		m.set(c, RefreshTokenCookie, refreshToken)
	}
}

func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(m.sameSite())
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", m.secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", m.secure, true)
}

func (m *Manager) read(c *gin.Context, name string) (string, bool) {
	token, err := c.Cookie(name)
	if err != nil || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

func (m *Manager) set(c *gin.Context, name, value string) {
	c.SetSameSite(m.sameSite())
	c.SetCookie(name, value, int(m.cookieTTL.Seconds()), "/", "", m.secure, true)
}

// sameSite allows cross-site cookies only over TLS.
func (m *Manager) sameSite() http.SameSite {
	if m.secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
