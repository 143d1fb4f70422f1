package server

// Route path constants, relative to the API prefix
const (
	RouteRoot = "/"

	// Auth Routes
	RouteLogin    = "/login"
	RouteCallback = "/callback"
	RouteMe       = "/me"
	RouteLogout   = "/logout"

	// Spotify pass-through Routes
	RouteTopTracks      = "/spotify/top-tracks"
	RouteTopArtists     = "/spotify/top-artists"
	RouteRecentlyPlayed = "/spotify/recently-played"

	// Operational Routes
	RouteMetrics = "/metrics"
)
