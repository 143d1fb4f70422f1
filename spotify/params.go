package spotify

import (
	"strconv"
	"strings"

	apperrors "github.com/jrsteele09/spotifeye/internal/errors"
)

const (
	MaxLimit = 50

	DefaultTopLimit    = 20
	DefaultRecentLimit = 50
)

// TimeRange is the window the provider computes affinity over
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

func (t TimeRange) Valid() bool {
	switch t {
	case ShortTerm, MediumTerm, LongTerm:
		return true
	}
	return false
}

// ParseLimit reads a result limit in 1..MaxLimit. An empty value yields def.
func ParseLimit(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidParameter, "limit %q is not an integer", raw)
	}
	if n < 1 || n > MaxLimit {
		return 0, apperrors.Wrapf(apperrors.ErrInvalidParameter, "limit must be between 1 and %d", MaxLimit)
	}
	return n, nil
}

// ParseTimeRange reads a time range. An empty value yields MediumTerm.
func ParseTimeRange(raw string) (TimeRange, error) {
	if raw == "" {
		return MediumTerm, nil
	}
	tr := TimeRange(raw)
	if !tr.Valid() {
		return "", apperrors.Wrapf(apperrors.ErrInvalidParameter, "time_range must be one of short_term, medium_term, long_term")
	}
	return tr, nil
}
