package server

import (
	"net"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/condofee/internal/authorization"
	obscontext "github.com/smallbiznis/condofee/internal/observability/context"
	"github.com/smallbiznis/condofee/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	headerPrincipalID        = "X-Principal-ID"
	headerPrincipalRole      = "X-Principal-Role"
	headerPrincipalHousehold = "X-Principal-Household"

	contextPrincipalKey = "principal"

	returnRateLimitPrefix = "ratelimit:vnpay-return:"
)

// principalRequired reads the caller asserted by the upstream identity
// provider. Requests without one are rejected before any handler runs.
func (s *Server) principalRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := authorization.Principal{
			ID:   strings.TrimSpace(c.GetHeader(headerPrincipalID)),
			Role: strings.ToLower(strings.TrimSpace(c.GetHeader(headerPrincipalRole))),
		}
		if principal.ID == "" || principal.Role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		household, err := parseOptionalSnowflakeID(c.GetHeader(headerPrincipalHousehold))
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if household != nil {
			principal.HouseholdID = *household
		}

		c.Set(contextPrincipalKey, principal)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), principal.Role, principal.ID))
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), principal, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func principalFromContext(c *gin.Context) (authorization.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return authorization.Principal{}, false
	}
	principal, ok := value.(authorization.Principal)
	return principal, ok
}

// authorizeHousehold applies the ownership check for household scoped
// resources once the owning household is known.
func authorizeHousehold(c *gin.Context, householdID snowflake.ID) error {
	principal, ok := principalFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if !principal.CanAccessHousehold(householdID) {
		return ErrForbidden
	}
	return nil
}

// ReturnRateLimit throttles the browser return endpoint per client IP. It is
// a no-op without redis and lets requests through when redis fails.
func (s *Server) ReturnRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || s.cfg.ReturnRateLimit <= 0 || s.cfg.ReturnRateBurst <= 0 {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		ip := normalizeIP(c.ClientIP())
		res, err := s.limiter.Allow(ctx, returnRateLimitPrefix+ip, s.cfg.ReturnRateLimit, s.cfg.ReturnRateBurst)
		if err != nil {
			logger.FromContext(ctx).Warn("return rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			retry := int(res.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			logger.FromContext(ctx).Warn("return rate limit exceeded", zap.String("client_ip", ip))
			c.Header("Retry-After", strconv.Itoa(retry))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket peer. It is reported to the gateway as vnp_IpAddr and must not be
// used for throttling; ReturnRateLimit keys on gin's ClientIP, which honours
// only trusted proxies.
func clientIP(c *gin.Context) string {
	ip := ""
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		ip = strings.TrimSpace(first)
	}
	if ip == "" {
		ip = strings.TrimSpace(c.GetHeader("X-Real-IP"))
	}
	if ip == "" {
		ip = strings.TrimSpace(c.Request.RemoteAddr)
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}
	return normalizeIP(ip)
}

// normalizeIP reports IPv6 loopback as 127.0.0.1.
func normalizeIP(ip string) string {
	switch ip {
	case "", "::1", "0:0:0:0:0:0:0:1":
		return "127.0.0.1"
	}
	return ip
}
