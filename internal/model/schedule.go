package model

import (
	"fmt"
	"strconv"
	"time"
)

// Bounds of a FeedingSchedule. Quantity and duration are bounded by the
// width of their ASCII fields in the persisted record (1 and 4 digits).
const (
	MinQuantity = 1
	MaxQuantity = 9

	MinUnitDurationMs = 1
	MaxUnitDurationMs = 9999
)

// ClockTime is a local wall-clock time of day at minute granularity.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime accepts exactly "HH:MM" in 24h notation.
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return ClockTime{}, fmt.Errorf("clock time %q: want HH:MM", s)
	}
	h, err := twoDigits(s[0:2])
	if err != nil || h > 23 {
		return ClockTime{}, fmt.Errorf("clock time %q: hour out of range", s)
	}
	m, err := twoDigits(s[3:5])
	if err != nil || m > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q: minute out of range", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// Valid reports whether both components are in range.
func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// MinutesOfDay returns the offset from local midnight in minutes.
func (c ClockTime) MinutesOfDay() int { return c.Hour*60 + c.Minute }

func (c ClockTime) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// LocalTime is the normalized HH:MM:SS derived from the time authority.
type LocalTime struct {
	Hour   int
	Minute int
	Second int
}

func (t LocalTime) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Clock strips the seconds.
func (t LocalTime) Clock() ClockTime { return ClockTime{Hour: t.Hour, Minute: t.Minute} }

// FeedingSchedule is the persisted dispensing configuration.
type FeedingSchedule struct {
	FeedingTime          ClockTime
	Quantity             int
	UnitDispenseDuration time.Duration
}

// DefaultSchedule is seeded into blank or unreadable storage.
func DefaultSchedule() FeedingSchedule {
	return FeedingSchedule{
		FeedingTime:          ClockTime{Hour: 8, Minute: 0},
		Quantity:             2,
		UnitDispenseDuration: 1200 * time.Millisecond,
	}
}

// UnitDurationMs returns the per-unit actuation time in whole milliseconds.
func (s FeedingSchedule) UnitDurationMs() int {
	return int(s.UnitDispenseDuration / time.Millisecond)
}

// TotalActuation is the motor-on time of a full feed, settle delays excluded.
func (s FeedingSchedule) TotalActuation() time.Duration {
	return time.Duration(s.Quantity) * s.UnitDispenseDuration
}

// Validate checks every field against the persisted-record bounds.
func (s FeedingSchedule) Validate() error {
	if !s.FeedingTime.Valid() {
		return &FieldError{Field: FieldTime, Value: s.FeedingTime.String(), Reason: "out of range"}
	}
	if s.Quantity < MinQuantity || s.Quantity > MaxQuantity {
		return &FieldError{Field: FieldQuantity, Value: strconv.Itoa(s.Quantity), Reason: "out of range"}
	}
	if s.UnitDispenseDuration%time.Millisecond != 0 {
		return &FieldError{Field: FieldDispenseDuration, Value: s.UnitDispenseDuration.String(), Reason: "not whole milliseconds"}
	}
	ms := s.UnitDurationMs()
	if ms < MinUnitDurationMs || ms > MaxUnitDurationMs {
		return &FieldError{Field: FieldDispenseDuration, Value: strconv.Itoa(ms), Reason: "out of range"}
	}
	return nil
}

func twoDigits(s string) (int, error) {
	if len(s) != 2 || !isDigit(s[0]) || !isDigit(s[1]) {
		return 0, fmt.Errorf("not two digits: %q", s)
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
