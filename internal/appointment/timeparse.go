package appointment

import (
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
)

// Timestamps without an offset are read as clinic wall-clock time.
var requestedLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseRequestedTime parses an ISO 8601 timestamp. A value carrying an offset
// is converted to loc; a naive value is interpreted in loc. Date-only values
// are rejected since they do not name a slot.
func ParseRequestedTime(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, invalid("requested_datetime", "is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range requestedLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("requested_datetime", "must be a valid ISO 8601 datetime, got %q", raw)
}

// ParseDOB validates a YYYY-MM-DD birth date that is not in the future.
func ParseDOB(raw string, now time.Time) (string, error) {
	s := strings.TrimSpace(raw)
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", invalid("dob", "must be in ISO format YYYY-MM-DD")
	}
	if d.After(now) {
		return "", invalid("dob", "must not be in the future")
	}
	return d.Format(DateLayout), nil
}

// SlotKey splits an instant into the slot date and time in loc.
func SlotKey(t time.Time, loc *time.Location) (date, clock string) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return local.Format(DateLayout), local.Format(ClockLayout)
}

// StartsAt returns the slot start as an instant in loc.
func (s Slot) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(DateLayout+" "+ClockLayout, s.Date+" "+s.Time, loc)
}
