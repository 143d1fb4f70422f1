package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the session, provider and HTTP layers
var (
	// Credential errors
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid authentication credentials")

	// Upstream provider errors. ErrUpstreamExpired never leaves the session package as-is;
	// it only triggers a refresh.
	ErrUpstreamExpired = errors.New("upstream access token expired")
	ErrUpstreamError   = errors.New("upstream provider error")

	// Authorization code exchange
	ErrExchangeFailed = errors.New("authorization code exchange failed")

	// Request parameters
	ErrInvalidParameter = errors.New("invalid parameter")

	// Startup
	ErrConfiguration = errors.New("configuration error")

	// General errors
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
