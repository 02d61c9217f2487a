package availability

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Clock is a wall-clock time of day stored as minutes since midnight.
// Its text form is "HH:mm"; "HH:mm:ss" is accepted on input because
// PostgreSQL TIME columns render seconds.
type Clock int

const minutesPerDay = 24 * 60

// ParseClock parses "HH:mm" or "HH:mm:ss". "24:00" is accepted as the end
// of the day so windows can close at midnight.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q: want HH:mm", s)
	}
	h, ok := digits(parts[0], 1, 2)
	if !ok {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, ok := digits(parts[1], 2, 2)
	if !ok || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		if sec, ok := digits(parts[2], 2, 2); !ok || sec > 59 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	if h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	return Clock(h*60 + m), nil
}

// digits parses an unsigned decimal of minLen to maxLen ASCII digits.
func digits(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}

// MustClock is ParseClock for literals; it panics on bad input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) Hour() int { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// Add shifts c by minutes without wrapping past midnight.
func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

// Valid reports whether c lies in [00:00, 24:00].
func (c Clock) Valid() bool { return c >= 0 && c <= minutesPerDay }

// On returns the instant of c on the civil date of day, in loc.
func (c Clock) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, loc)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	return c.UnmarshalText([]byte(s))
}

// Scan reads TIME columns, which lib/pq returns as text or time.Time.
func (c *Clock) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return c.UnmarshalText([]byte(v))
	case []byte:
		return c.UnmarshalText(v)
	case time.Time:
		*c = ClockOf(v)
		return nil
	case nil:
		*c = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Clock", src)
	}
}

func (c Clock) Value() (driver.Value, error) {
	return c.String(), nil
}
