package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/research-portal/accessrequests"
	"github.com/jrsteele09/research-portal/admin"
	"github.com/jrsteele09/research-portal/audit"
	"github.com/jrsteele09/research-portal/auth"
	"github.com/jrsteele09/research-portal/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Services are the domain services the HTTP surface delegates to
type Services struct {
	Sessions       *auth.SessionManager
	Admin          *admin.Service
	AccessRequests *accessrequests.Service
	Recorder       *audit.Recorder
}

type Server struct {
	env          string // Environment (e.g., "DEV", "PROD")
	mux          *http.ServeMux
	routes       []string
	config       config.Config
	services     Services
	google       *googleFlow
	loginLimiter *ipLimiter
	health       func(ctx context.Context) error
	logger       zerolog.Logger
	nowTime      func() time.Time
}

type Option func(*Server)

// WithGoogleOAuth enables the redirect sign-in flow. Without it the start and callback routes
// answer 404 and only the ID token route is available.
func WithGoogleOAuth(cfg *oauth2.Config) Option {
	return func(s *Server) {
		if cfg != nil {
			s.google = &googleFlow{oauth2: cfg}
		}
	}
}

// WithHealthCheck sets the probe behind /healthz, usually the database ping
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(s *Server) {
		s.health = check
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(cfg config.Config, services Services, options ...Option) (*Server, error) {
	if services.Sessions == nil {
		return nil, fmt.Errorf("[server.New] session manager is required")
	}
	if services.Admin == nil {
		return nil, fmt.Errorf("[server.New] admin service is required")
	}
	if services.AccessRequests == nil {
		return nil, fmt.Errorf("[server.New] access request service is required")
	}
	if services.Recorder == nil {
		return nil, fmt.Errorf("[server.New] audit recorder is required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		services: services,
		health:   func(context.Context) error { return nil },
		logger:   log.Logger,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	s.loginLimiter = newIPLimiter(cfg.GetLoginRatePerMinute(), cfg.GetLoginRateBurst(), s.nowTime)

	if s.google != nil {
		secret := cfg.GetOAuthStateSecret()
		if secret == "" {
			return nil, fmt.Errorf("[server.New] OAUTH_STATE_SECRET is required when Google sign-in is enabled")
		}
		s.google.stateSecret = []byte(secret)
		s.google.nowTime = s.nowTime
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// PurgeExpiredSessions runs the session sweep every interval until ctx is cancelled
func (s *Server) PurgeExpiredSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.services.Sessions.PurgeExpiredSessions(ctx)
			if err != nil {
				s.logger.Warn().Err(err).Msg("[Server.PurgeExpiredSessions] sweep failed")
				continue
			}
			if n > 0 {
				s.logger.Info().Int64("purged", n).Msg("purged expired sessions")
			}
		}
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.logger.Debug().Msg(colourRoute(parts[0], parts[1]))
		} else {
			s.logger.Debug().Msg(colourRoute("", parts[0]))
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
