package server

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"github.com/jrsteele09/spotifeye/spotify"
	"github.com/rs/zerolog"
)

func (s *Server) TopTracksHandler() http.HandlerFunc {
	return s.topItemsHandler("top tracks", s.resources.TopTracks)
}

func (s *Server) TopArtistsHandler() http.HandlerFunc {
	return s.topItemsHandler("top artists", s.resources.TopArtists)
}

type topItemsFunc func(ctx context.Context, accessToken string, limit int, timeRange spotify.TimeRange) ([]json.RawMessage, error)

func (s *Server) topItemsHandler(what string, fetch topItemsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		validated, ok := sessionFromContext(r.Context())
		if !ok {
			writeAuthError(w, apperrors.ErrMissingCredentials)
			return
		}

		query := r.URL.Query()
		limit, err := spotify.ParseLimit(query.Get("limit"), spotify.DefaultTopLimit)
		if err != nil {
			writeJSONError(w, errorCodeValidation, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		timeRange, err := spotify.ParseTimeRange(query.Get("time_range"))
		if err != nil {
			writeJSONError(w, errorCodeValidation, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		items, err := fetch(r.Context(), validated.ProviderAccessToken, limit, timeRange)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msgf("error fetching %s", what)
			writeUpstreamError(w, err)
			return
		}
		writeItems(w, items)
	}
}

func (s *Server) RecentlyPlayedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		validated, ok := sessionFromContext(r.Context())
		if !ok {
			writeAuthError(w, apperrors.ErrMissingCredentials)
			return
		}

		limit, err := spotify.ParseLimit(r.URL.Query().Get("limit"), spotify.DefaultRecentLimit)
		if err != nil {
			writeJSONError(w, errorCodeValidation, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		items, err := s.resources.RecentlyPlayed(r.Context(), validated.ProviderAccessToken, limit)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("error fetching recently played")
			writeUpstreamError(w, err)
			return
		}
		writeItems(w, items)
	}
}

// writeItems serves the provider's items as a bare JSON array
func writeItems(w http.ResponseWriter, items []json.RawMessage) {
	if items == nil {
		items = []json.RawMessage{}
	}
	writeJSON(w, items, http.StatusOK)
}
