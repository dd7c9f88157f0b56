package timestamp

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	DateTimeLocal = "2006-01-02T15:04:05"
	RFC3339Nano   = time.RFC3339Nano
)

var (
	DateTimeLocalRegexp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}$`)
	RFC3339Regexp       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)
	EpochRegexp         = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// Timestamp is an event time with lenient parsing. Resource providers report event times either as RFC 3339
// strings or as seconds since the epoch, so both are accepted.
type Timestamp time.Time

// Time returns the timestamp as a time.Time value.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero returns true if the timestamp was never set.
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// parseEpoch converts a number of seconds since the epoch, possibly fractional, to a time in UTC.
func parseEpoch(value string) (time.Time, error) {
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return time.Time{}, err
	}
	whole := int64(seconds)
	nanos := int64((seconds - float64(whole)) * float64(time.Second))
	return time.Unix(whole, nanos).UTC(), nil
}

// Parse attempts to parse the given value as a timestamp. The accepted formats are:
//
//	2026-02-21T01:02:03            - The specified date and time in UTC.
//	2026-02-21T01:02:03Z           - The specified date and time in UTC.
//	2026-02-21T01:02:03.250-07:00  - The specified date and time in the specified time zone.
//	1771635723                     - Seconds since the epoch.
//	1771635723.25                  - Fractional seconds since the epoch.
//
// Local date-times are interpreted in UTC rather than the server's zone so that usage totals do not depend on
// where the service runs.
func Parse(value string) (Timestamp, error) {
	var t time.Time
	var err error

	switch {
	case EpochRegexp.MatchString(value):
		t, err = parseEpoch(value)
	case DateTimeLocalRegexp.MatchString(value):
		t, err = time.ParseInLocation(DateTimeLocal, value, time.UTC)
	case RFC3339Regexp.MatchString(value):
		t, err = time.Parse(RFC3339Nano, value)
	default:
		err = fmt.Errorf("unrecognized timestamp layout: %s", value)
	}

	return Timestamp(t), err
}

// UnmarshalJSON converts a JSON string or number to a timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	value := string(data)

	// Ignore empty values.
	if value == "null" || value == `""` {
		return nil
	}

	// Unquote the string if it's quoted. Numbers are used as-is.
	if len(value) > 0 && value[0] == '"' {
		var err error
		value, err = strconv.Unquote(value)
		if err != nil {
			return err
		}
	}

	parsed, err := Parse(value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON converts a timestamp to an RFC 3339 JSON string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Time(t).UTC().Format(RFC3339Nano))), nil
}
