package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/spotifeye/internal/config"
	"github.com/jrsteele09/spotifeye/internal/metrics"
	"github.com/jrsteele09/spotifeye/session"
	"github.com/jrsteele09/spotifeye/spotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Version is reported by the root endpoint
var Version = "1.0.0"

// SessionValidator authenticates bearer session tokens
type SessionValidator interface {
	Validate(ctx context.Context, raw string) (*session.Validated, error)
}

// AuthFlow runs the authorization code grant and logout
type AuthFlow interface {
	Begin(ctx context.Context) (string, error)
	Complete(ctx context.Context, code, state string) (*session.Session, error)
	Logout(ctx context.Context, raw string) error
}

// Resources fetches the pass-through data served under /spotify
type Resources interface {
	TopTracks(ctx context.Context, accessToken string, limit int, timeRange spotify.TimeRange) ([]json.RawMessage, error)
	TopArtists(ctx context.Context, accessToken string, limit int, timeRange spotify.TimeRange) ([]json.RawMessage, error)
	RecentlyPlayed(ctx context.Context, accessToken string, limit int) ([]json.RawMessage, error)
}

// Deps are the collaborators the HTTP layer is built on
type Deps struct {
	Validator SessionValidator
	Flow      AuthFlow
	Resources Resources
	Metrics   *metrics.Metrics
	// Gatherer backs /metrics; the route is not registered when nil
	Gatherer prometheus.Gatherer
}

type Server struct {
	env       string
	prefix    string
	mux       *http.ServeMux
	handler   http.HandlerFunc
	routes    []string
	config    config.Config
	validator SessionValidator
	flow      AuthFlow
	resources Resources
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	responder responder
	limiter   *ipRateLimiter
}

func New(cfg config.Config, deps Deps) *Server {
	s := &Server{
		env:       cfg.GetEnv(),
		prefix:    cfg.GetAPIPrefix(),
		mux:       http.NewServeMux(),
		config:    cfg,
		validator: deps.Validator,
		flow:      deps.Flow,
		resources: deps.Resources,
		metrics:   deps.Metrics,
		gatherer:  deps.Gatherer,
		responder: newResponder(cfg),
	}
	if cfg.GetEnableRateLimiting() {
		s.limiter = newIPRateLimiter(cfg.GetRateLimitRPS(), cfg.GetRateLimitBurst())
	}

	// CORS wraps the whole mux so preflight succeeds on every path
	s.handler = ChainMiddleware(s.mux.ServeHTTP,
		s.RequestIDMiddleware,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.CorsMiddleware,
	)

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// path mounts a route under the configured API prefix. The root matches exactly.
func (s *Server) path(route string) string {
	if route == RouteRoot {
		return s.prefix + "/{$}"
	}
	return s.prefix + route
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}
