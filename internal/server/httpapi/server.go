// Package httpapi exposes the account services over HTTP/JSON using chi.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/logging"
	"github.com/dmitrijs2005/taskauth/internal/server/auth"
	"github.com/dmitrijs2005/taskauth/internal/server/metrics"
	"github.com/dmitrijs2005/taskauth/internal/server/models"
	"github.com/dmitrijs2005/taskauth/internal/server/ratelimit"
	"github.com/dmitrijs2005/taskauth/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

// AuthService is the subset of services.AuthService used by the handlers.
type AuthService interface {
	Register(ctx context.Context, email, fullName, password string) (int64, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	UpdateProfile(ctx context.Context, userID int64, upd services.ProfileUpdate) error
}

// ModerationService is the subset of services.ModerationService used by the
// admin handlers.
type ModerationService interface {
	Ban(ctx context.Context, userID int64) (*models.User, error)
	Unban(ctx context.Context, userID int64) (*models.User, error)
	AssignRole(ctx context.Context, userID int64, role string) (*models.User, error)
}

// Options hold the transport settings of the server.
type Options struct {
	Address            string
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

type HTTPServer struct {
	opts       Options
	logger     logging.Logger
	auth       AuthService
	moderation ModerationService
	tokens     *auth.TokenCodec
	limiter    *ratelimit.Limiter
	metrics    *metrics.Metrics
	validate   *validator.Validate
}

// NewHTTPServer builds the server. limiter and m may be nil, which disables
// login throttling and instrumentation respectively.
func NewHTTPServer(opts Options, l logging.Logger, as AuthService, ms ModerationService, tc *auth.TokenCodec, lim *ratelimit.Limiter, m *metrics.Metrics) *HTTPServer {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonTagName)
	return &HTTPServer{
		opts:       opts,
		logger:     l.With("module", "http_server"),
		auth:       as,
		moderation: ms,
		tokens:     tc,
		limiter:    lim,
		metrics:    m,
		validate:   v,
	}
}

// Handler builds the chi router with all middleware and routes.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.observe)
	}
	if len(s.opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Accept", common.AuthorizationHeaderName, "Content-Type"},
			ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.register)
		r.With(s.loginLimit()...).Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/users/me", s.me)
			r.Put("/users/{userId}", s.updateProfile)

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(common.RoleAdmin))
				r.Put("/admin/ban/{userId}", s.ban)
				r.Put("/admin/unban/{userId}", s.unban)
				r.Post("/admin/assign-role/{userId}", s.assignRole)
			})
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return <-stopped
}
