package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+s.path(RouteRoot), s.RootHandler())

	// AUTH
	s.RegisterRouteFunc("GET "+s.path(RouteLogin), ChainMiddleware(s.LoginHandler(), s.RateLimitMiddleware))
	s.RegisterRouteFunc("GET "+s.path(RouteCallback), ChainMiddleware(s.CallbackHandler(), s.RateLimitMiddleware))
	s.RegisterRouteFunc("POST "+s.path(RouteCallback), ChainMiddleware(s.CallbackPostHandler(), s.RateLimitMiddleware)) // SPA fetch path
	s.RegisterRouteFunc("GET "+s.path(RouteMe), ChainMiddleware(s.MeHandler(), s.RequireSession))
	s.RegisterRouteFunc("POST "+s.path(RouteLogout), s.LogoutHandler())

	// SPOTIFY
	s.RegisterRouteFunc("GET "+s.path(RouteTopTracks), ChainMiddleware(s.TopTracksHandler(), s.RequireSession))
	s.RegisterRouteFunc("GET "+s.path(RouteTopArtists), ChainMiddleware(s.TopArtistsHandler(), s.RequireSession))
	s.RegisterRouteFunc("GET "+s.path(RouteRecentlyPlayed), ChainMiddleware(s.RecentlyPlayedHandler(), s.RequireSession))

	if s.gatherer != nil {
		s.RegisterRouteHandler("GET "+s.path(RouteMetrics), promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}
