package server

import (
	"math"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/taskboard/internal/observability/context"
	"github.com/smallbiznis/taskboard/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	contextUserIDKey = "user_id"
	contextEmailKey  = "user_email"
)

// AuthRequired resolves the access token from the cookie or bearer header.
// Missing or invalid tokens yield 401, expired ones 410.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadAccessToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, principal.UserID)
		c.Set(contextEmailKey, principal.Email)
		c.Request = c.Request.WithContext(obscontext.WithUserID(c.Request.Context(), principal.UserID.String()))
		c.Next()
	}
}

// AuthRateLimit throttles unauthenticated endpoints per client address.
func (s *Server) AuthRateLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.authLimiter.Allow(ctx, endpoint, c.ClientIP())
		if err != nil {
			// Fail open when redis is unavailable.
			logger.FromContext(ctx).Warn("auth rate limit check failed", zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

func userIDFromContext(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(snowflake.ID)
	return userID, ok && userID != 0
}
