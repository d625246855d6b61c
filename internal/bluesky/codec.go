package bluesky

import (
	"fmt"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/blackmichael/multipass/internal/source"
)

// datetimeLayout is the UTC, millisecond-precision form PDS implementations
// accept for createdAt.
const datetimeLayout = "2006-01-02T15:04:05.000Z"

// FormatDatetime encodes t as an AT Protocol datetime.
func FormatDatetime(t time.Time) syntax.Datetime {
	return syntax.Datetime(t.UTC().Format(datetimeLayout))
}

// The validators below re-parse scalar fields after JSON decoding so a
// syntactically invalid value fails the whole response.

func validateDID(field string, v syntax.DID) error {
	if v == "" {
		return source.MissingField(field)
	}
	if _, err := syntax.ParseDID(string(v)); err != nil {
		return source.InvalidField(field, err)
	}
	return nil
}

func validateHandle(field string, v syntax.Handle) error {
	if v == "" {
		return source.MissingField(field)
	}
	if _, err := syntax.ParseHandle(string(v)); err != nil {
		return source.InvalidField(field, err)
	}
	return nil
}

func validateATURI(field string, v syntax.ATURI) error {
	if v == "" {
		return source.MissingField(field)
	}
	if _, err := syntax.ParseATURI(string(v)); err != nil {
		return source.InvalidField(field, err)
	}
	return nil
}

func validateCID(field string, v syntax.CID) error {
	if v == "" {
		return source.MissingField(field)
	}
	if _, err := syntax.ParseCID(string(v)); err != nil {
		return source.InvalidField(field, err)
	}
	return nil
}

// parseDatetime validates v and converts it to a time.Time.
func parseDatetime(field string, v syntax.Datetime) (time.Time, error) {
	if v == "" {
		return time.Time{}, source.MissingField(field)
	}
	if _, err := syntax.ParseDatetime(string(v)); err != nil {
		return time.Time{}, source.InvalidField(field, err)
	}
	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}, source.InvalidField(field, err)
	}
	return t, nil
}

func validateCount(field string, n int64) error {
	if n < 0 {
		return source.InvalidField(field, fmt.Errorf("negative count %d", n))
	}
	return nil
}
