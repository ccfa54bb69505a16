package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"comments-api/pkg/auth"
	pkgerrors "comments-api/pkg/errors"

	"go.uber.org/zap"
)

// RequireRole authenticates the bearer token and checks that it carries one
// of roles. A nil validator disables the check, which is how local setups
// without JWT_SECRET run.
func RequireRole(validator *auth.JWTValidator, errs *pkgerrors.ErrorHandler, logger *zap.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := validator.ValidateToken(extractToken(r))
			if err != nil {
				logger.Debug("Token rejected", zap.Error(err), zap.String("path", r.URL.Path))
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError(unauthorizedMessage(err)))
				return
			}

			if !hasAnyRole(claims, roles) {
				errs.Handle(w, r, pkgerrors.NewForbiddenError("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// RateLimit throttles requests per client IP.
func RateLimit(limiter *auth.IPRateLimiter, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				// Fail open; a broken limiter must not take posting down.
				logger.Warn("Rate limiter unavailable", zap.Error(err))
				allowed = true
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				errs.Handle(w, r, pkgerrors.NewRateLimitError(limiter.RequestsPerMinute(), "minute"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return authHeader
}

// ClientIP returns the request's remote address without the port. It runs
// after chi's RealIP, so forwarding headers are already applied.
func ClientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func hasAnyRole(claims *auth.Claims, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if claims.HasRole(role) {
			return true
		}
	}
	return false
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing authentication token"
	case errors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	default:
		return "invalid authentication token"
	}
}
