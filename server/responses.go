package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"github.com/jrsteele09/spotifeye/session"
	"github.com/jrsteele09/spotifeye/spotify"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeJSON  = "application/json"
	headerNewToken   = "X-New-Token"
	headerAuthScheme = "WWW-Authenticate"
)

// Error codes carried in the "error" field of every error body
const (
	errorCodeMissingCredentials = "missing_credentials"
	errorCodeInvalidCredentials = "invalid_credentials"
	errorCodeTokenExpired       = "token_expired"
	errorCodeUpstream           = "upstream_error"
	errorCodeExchangeFailed     = "exchange_failed"
	errorCodeValidation         = "validation_error"
	errorCodeRateLimited        = "rate_limited"
	errorCodeInternal           = "internal_error"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("error encoding response")
	}
}

func writeJSONError(w http.ResponseWriter, code, description string, status int) {
	writeJSON(w, errorResponse{Error: code, ErrorDescription: description}, status)
}

// writeAuthError renders a session validation failure. Every 401 carries the bearer
// challenge, and a completed refresh also hands back the replacement session token.
func writeAuthError(w http.ResponseWriter, err error) {
	var refreshed *session.RefreshedError
	switch {
	case apperrors.As(err, &refreshed):
		w.Header().Set(headerAuthScheme, "Bearer")
		w.Header().Set(headerNewToken, refreshed.SessionToken)
		writeJSONError(w, errorCodeTokenExpired, "Spotify token refreshed, retry with the new session token", http.StatusUnauthorized)
	case apperrors.Is(err, apperrors.ErrMissingCredentials):
		w.Header().Set(headerAuthScheme, "Bearer")
		writeJSONError(w, errorCodeMissingCredentials, "Not authenticated", http.StatusUnauthorized)
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		w.Header().Set(headerAuthScheme, `Bearer error="invalid_token"`)
		writeJSONError(w, errorCodeInvalidCredentials, "Invalid authentication credentials", http.StatusUnauthorized)
	case apperrors.Is(err, apperrors.ErrUpstreamError):
		writeJSONError(w, errorCodeUpstream, "Spotify is unavailable", http.StatusBadGateway)
	default:
		writeJSONError(w, errorCodeInternal, "Internal server error", http.StatusInternalServerError)
	}
}

// writeUpstreamError maps a failed pass-through call onto the response status
func writeUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *spotify.APIError
	if !apperrors.As(err, &apiErr) {
		writeJSONError(w, errorCodeUpstream, "Spotify is unavailable", http.StatusBadGateway)
		return
	}

	switch {
	case apiErr.StatusCode == http.StatusUnauthorized:
		w.Header().Set(headerAuthScheme, `Bearer error="invalid_token"`)
		writeJSONError(w, errorCodeInvalidCredentials, apiErr.Message, http.StatusUnauthorized)
	case apiErr.StatusCode == http.StatusTooManyRequests:
		writeJSONError(w, errorCodeRateLimited, apiErr.Message, http.StatusTooManyRequests)
	case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		writeJSONError(w, errorCodeUpstream, apiErr.Message, http.StatusBadRequest)
	default:
		writeJSONError(w, errorCodeUpstream, apiErr.Message, http.StatusBadGateway)
	}
}

// exchangeDescription is the text surfaced for a failed authorization code exchange
func exchangeDescription(err error) string {
	var exErr *spotify.ExchangeError
	if apperrors.As(err, &exErr) {
		return exErr.Description
	}
	return "Authorization failed"
}
