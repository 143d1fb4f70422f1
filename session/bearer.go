package session

import (
	"strings"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
)

const bearerScheme = "bearer"

// BearerToken extracts the credential from an Authorization header value
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", apperrors.ErrMissingCredentials
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", apperrors.Wrapf(apperrors.ErrMissingCredentials, "authorization scheme must be Bearer")
	}
	value = strings.TrimSpace(value)
	if value == "" || strings.ContainsAny(value, " \t") {
		return "", apperrors.Wrapf(apperrors.ErrMissingCredentials, "malformed bearer value")
	}
	return value, nil
}
