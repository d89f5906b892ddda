package parser

import (
	"strconv"
	"time"

	"github.com/zencoder/go-dash/v3/mpd"
)

// ParseDuration parses the PnDTnHnMnS subset of ISO 8601 durations used by
// MPD attributes, e.g. "PT1H", "PT2M30.5S" or "P1DT12H".
// Year and month designators are not supported.
func ParseDuration(s string) (time.Duration, error) {
	d, err := mpd.ParseDuration(s)
	if err != nil {
		return 0, &ManifestError{Kind: ErrMalformedDuration, Detail: strconv.Quote(s), Err: err}
	}
	if d < 0 {
		return 0, manifestErr(ErrMalformedDuration, "%q is negative", s)
	}
	return d, nil
}

// ParseDateTime parses an xs:dateTime value. Timestamps without a zone are UTC.
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
	if err != nil {
		return time.Time{}, &ManifestError{Kind: ErrMalformedTimestamp, Detail: strconv.Quote(s), Err: err}
	}
	return t, nil
}
