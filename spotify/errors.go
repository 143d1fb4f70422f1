package spotify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"golang.org/x/oauth2"
)

// APIError is a non-2xx response from the Web API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("spotify api returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps a 401 to ErrUpstreamExpired so callers can trigger a refresh
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return apperrors.ErrUpstreamExpired
	}
	return apperrors.ErrUpstreamError
}

func newAPIError(status int, body []byte) *APIError {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = payload.Error.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return &APIError{StatusCode: status, Message: msg}
}

const genericExchangeFailure = "authorization code exchange failed"

// ExchangeError is a rejected authorization code exchange. Description carries the
// provider's explanation when there is one.
type ExchangeError struct {
	Description string
	err         error
}

func (e *ExchangeError) Error() string {
	return e.Description
}

func (e *ExchangeError) Unwrap() []error {
	if e.err == nil {
		return []error{apperrors.ErrExchangeFailed}
	}
	return []error{apperrors.ErrExchangeFailed, e.err}
}

// NewExchangeError builds an exchange failure with a fixed description
func NewExchangeError(description string) *ExchangeError {
	if description == "" {
		description = genericExchangeFailure
	}
	return &ExchangeError{Description: description}
}

func newExchangeError(err error) *ExchangeError {
	var rErr *oauth2.RetrieveError
	if apperrors.As(err, &rErr) {
		desc := rErr.ErrorDescription
		if desc == "" {
			desc = rErr.ErrorCode
		}
		e := NewExchangeError(desc)
		e.err = err
		return e
	}
	e := NewExchangeError("")
	e.err = err
	return e
}
