package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a normalized point in time. Backend listings and older
// cache entries carry dates as RFC3339 strings, loose date strings, or
// epoch numbers; all are normalized on decode. A zero Timestamp is
// unparseable and sorts as oldest.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp{Time: time.Now()}
}

// ParseTimestamp normalizes a textual timestamp. Numeric strings are epoch
// values. Unparseable input yields the zero Timestamp.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(n)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}
		}
	}
	return Timestamp{}
}

// fromEpoch treats large values as milliseconds.
func fromEpoch(n float64) Timestamp {
	if n <= 0 {
		return Timestamp{}
	}
	if n > 1e12 {
		return Timestamp{Time: time.UnixMilli(int64(n))}
	}
	return Timestamp{Time: time.Unix(int64(n), 0)}
}

// Valid reports whether the timestamp was parseable.
func (t Timestamp) Valid() bool {
	return !t.IsZero()
}

// After orders timestamps with invalid ones oldest.
func (t Timestamp) After(o Timestamp) bool {
	switch {
	case !t.Valid():
		return false
	case !o.Valid():
		return true
	default:
		return t.Time.After(o.Time)
	}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = Timestamp{}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*t = Timestamp{}
			return nil
		}
		*t = ParseTimestamp(s)
	default:
		n, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			*t = Timestamp{}
			return nil
		}
		*t = fromEpoch(n)
	}
	return nil
}
