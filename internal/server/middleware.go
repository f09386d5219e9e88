package server

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/smartinvoice/internal/config"
	"github.com/smallbiznis/smartinvoice/internal/observability/logger"
	"go.uber.org/zap"
)

var (
	ErrRateLimited          = errors.New("rate_limited")
	ErrUnsupportedMediaType = errors.New("unsupported_media_type")
)

// RateLimit counts requests per client IP against the configured window.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		res, err := s.limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		if !res.Allowed {
			retryAfter := res.RetryAfter(s.clock.Now())
			logger.FromContext(ctx).Warn("rate limit exceeded",
				zap.String("client_ip", c.ClientIP()),
				zap.String("route", c.FullPath()),
				zap.Int64("limit", res.Limit),
			)
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// RequireJSON rejects POST bodies that are not declared as JSON.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if (c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut) || c.Request.ContentLength == 0 {
			c.Next()
			return
		}
		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || !strings.EqualFold(mediaType, "application/json") {
			AbortWithError(c, ErrUnsupportedMediaType)
			return
		}
		c.Next()
	}
}

// SecurityHeaders sets the response headers every API answer carries.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// CORS admits browser calls from the configured origins.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowOrigins
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Accept"}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.ExposeHeaders = []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	return cors.New(corsConfig)
}
