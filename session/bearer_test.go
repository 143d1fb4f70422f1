package session_test

import (
	"testing"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
	"github.com/jrsteele09/spotifeye/session"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		for _, header := range []string{"Bearer abc.def.ghi", "bearer abc.def.ghi", "  Bearer   abc.def.ghi  "} {
			tok, err := session.BearerToken(header)
			require.NoError(t, err, header)
			require.Equal(t, "abc.def.ghi", tok)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		for _, header := range []string{"", "   ", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz", "abc.def.ghi", "Bearer abc def"} {
			_, err := session.BearerToken(header)
			require.ErrorIs(t, err, apperrors.ErrMissingCredentials, header)
		}
	})
}
