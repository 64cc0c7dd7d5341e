package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kasirinaja/salecore/internal/apperror"
	"kasirinaja/salecore/internal/service"
)

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")

		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody)
		}
		c.Next()
	}
}

// resolveTenant sets the request tenant. With a token manager configured
// every request needs a valid bearer token, whose tenant wins; a
// conflicting X-Tenant-ID header is refused. Without one the header is used
// as is and the service applies its default.
func (a *API) resolveTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader(tenantHeader))

		auth := strings.TrimSpace(c.GetHeader("Authorization"))
		if auth == "" {
			if a.tokens != nil {
				abort(c, http.StatusUnauthorized, "missing bearer token")
				return
			}
			c.Set(tenantKey, header)
			c.Next()
			return
		}

		if a.tokens == nil || !strings.HasPrefix(auth, "Bearer ") {
			abort(c, http.StatusUnauthorized, "bearer token not accepted")
			return
		}
		actor, err := a.tokens.ParseToken(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
		if err != nil {
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}
		if header != "" && header != actor.TenantID {
			abort(c, http.StatusForbidden, "X-Tenant-ID does not match the token tenant")
			return
		}

		c.Set(tenantKey, actor.TenantID)
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func (a *API) throttleCommits() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.limiter == nil {
			c.Next()
			return
		}
		tenant := c.GetString(tenantKey)
		if tenant == "" {
			tenant = a.service.DefaultTenant()
		}
		c.Header("X-RateLimit-Limit", a.limiter.burstHeader())
		if !a.limiter.Allow(tenant) {
			c.Header("Retry-After", "1")
			abort(c, http.StatusTooManyRequests, "too many sales for this tenant, retry shortly")
			return
		}
		c.Next()
	}
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("tenant", c.GetString(tenantKey)).
			Msg("request")
	}
}

func (a *API) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				abort(c, http.StatusInternalServerError, "internal server error")
			}
		}()
		c.Next()
	}
}

func abort(c *gin.Context, status int, message string) {
	kind := "unauthorized"
	switch status {
	case http.StatusForbidden:
		kind = string(apperror.RuleTenant)
	case http.StatusTooManyRequests:
		kind = "rate_limited"
	case http.StatusInternalServerError:
		kind = "internal"
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "errors": []apperror.Detail{{Kind: kind, Message: message}}})
}
