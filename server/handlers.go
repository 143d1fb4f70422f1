package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"github.com/jrsteele09/spotifeye/session"
	"github.com/rs/zerolog"
)

type rootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// RootHandler reports that the API is up
func (s *Server) RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, rootResponse{
			Message: "Welcome to " + s.config.GetAppName() + " API",
			Status:  "operational",
			Version: Version,
		}, http.StatusOK)
	}
}

// LoginHandler starts the authorization code grant
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authURL, err := s.flow.Begin(r.Context())
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("error generating authorization url")
			writeJSONError(w, errorCodeInternal, "Error generating authorization URL", http.StatusInternalServerError)
			return
		}
		s.responder.Login(w, r, authURL)
	}
}

// CallbackHandler receives the provider redirect and answers in the configured style
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if providerErr := query.Get("error"); providerErr != "" {
			zerolog.Ctx(r.Context()).Info().Str("provider_error", providerErr).Msg("authorization denied at provider")
			s.responder.CallbackFailure(w, r, providerErr)
			return
		}

		s.completeLogin(w, r, s.responder, query.Get("code"), query.Get("state"))
	}
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// CallbackPostHandler completes the grant for a frontend that forwards the code itself
func (s *Server) CallbackPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callbackRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeJSONError(w, errorCodeValidation, "Request body must be a JSON object with a code", http.StatusUnprocessableEntity)
			return
		}
		s.completeLogin(w, r, jsonResponder{}, req.Code, req.State)
	}
}

func (s *Server) completeLogin(w http.ResponseWriter, r *http.Request, resp responder, code, state string) {
	logger := zerolog.Ctx(r.Context())

	sess, err := s.flow.Complete(r.Context(), code, state)
	switch {
	case err == nil:
		logger.Info().Msg("login completed")
		resp.CallbackSuccess(w, r, sess)
	case apperrors.Is(err, apperrors.ErrInvalidParameter):
		writeJSONError(w, errorCodeValidation, "An authorization code is required", http.StatusUnprocessableEntity)
	case apperrors.Is(err, apperrors.ErrExchangeFailed):
		logger.Warn().Err(err).Msg("authorization code exchange failed")
		resp.CallbackFailure(w, r, exchangeDescription(err))
	default:
		logger.Error().Err(err).Msg("error completing login")
		writeJSONError(w, errorCodeInternal, "Internal server error", http.StatusInternalServerError)
	}
}

// MeHandler returns the profile fetched while validating the session
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		validated, ok := sessionFromContext(r.Context())
		if !ok {
			writeAuthError(w, apperrors.ErrMissingCredentials)
			return
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(validated.Profile)
	}
}

// LogoutHandler revokes the presented session token
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := session.BearerToken(r.Header.Get("Authorization"))
		if err == nil {
			err = s.flow.Logout(r.Context(), raw)
		}
		if err != nil {
			writeAuthError(w, err)
			return
		}

		zerolog.Ctx(r.Context()).Info().Msg("successfully logged out user")
		writeJSON(w, messageResponse{Message: "Successfully logged out"}, http.StatusOK)
	}
}
