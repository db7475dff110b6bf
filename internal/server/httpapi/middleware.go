package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/server/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// ClaimsFromContext returns the claims stored by the authenticate middleware.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok && c != nil
}

// bearerToken extracts the token from "Authorization: Bearer <token>". The
// scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get(common.AuthorizationHeaderName)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// authenticate validates the bearer token and stores its claims in the
// request context. Every token failure is answered with the same 401.
func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, ok := bearerToken(r)
		if !ok {
			s.logger.Debug(ctx, "missing or malformed authorization header", "path", r.URL.Path)
			ErrorResponse(w, r, http.StatusUnauthorized, msgUnauthenticated)
			return
		}

		claims, err := s.tokens.Validate(token)
		if err != nil {
			s.logger.Warn(ctx, "token rejected", "error", err, "path", r.URL.Path)
			ErrorResponse(w, r, http.StatusUnauthorized, msgUnauthenticated)
			return
		}

		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole answers 403 unless the authenticated caller holds role. It must
// run after authenticate.
func (s *HTTPServer) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFromContext(r.Context())
			if !auth.RequireRole(claims, role) {
				s.logger.Warn(r.Context(), "role required", "role", role, "path", r.URL.Path)
				ErrorResponse(w, r, http.StatusForbidden, msgForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loginLimit returns the throttling middleware for the login route, or
// nothing when no limiter is configured.
func (s *HTTPServer) loginLimit() []func(http.Handler) http.Handler {
	if s.limiter == nil {
		return nil
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		if s.metrics != nil {
			s.metrics.RateLimitedTotal.WithLabelValues("/api/auth/login").Inc()
		}
		s.logger.Warn(r.Context(), "login rate limit reached", "remote_addr", r.RemoteAddr)
		ErrorResponse(w, r, http.StatusTooManyRequests, "Too many login attempts, try again later.")
	}
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		s.logger.Error(r.Context(), "rate limiter failure", "error", err)
		ErrorResponse(w, r, http.StatusInternalServerError, msgInternal)
	}
	return []func(http.Handler) http.Handler{s.limiter.Middleware(onLimit, onError)}
}

// requestLogger logs one line per request.
func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// observe feeds the HTTP metrics, labelled by route pattern so that user
// ids do not explode the label space.
func (s *HTTPServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.metrics.ObserveHTTP(r.Method, route, ww.Status(), time.Since(start))
	})
}
