package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Field names as they appear in update requests.
const (
	FieldTime             = "time"
	FieldQuantity         = "quantity"
	FieldDispenseDuration = "dispenseDurationMs"
)

var ErrInvalidField = errors.New("invalid config field")

// FieldError reports a single rejected field of an update.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidField }

// FieldStatus is the outcome of one field of an update request.
type FieldStatus string

const (
	FieldAccepted  FieldStatus = "accepted"
	FieldRejected  FieldStatus = "rejected"
	FieldUnchanged FieldStatus = "unchanged"
)

// FieldResult tells the requester what happened to one field.
type FieldResult struct {
	Field  string      `json:"field"`
	Status FieldStatus `json:"status"`
	Value  string      `json:"value"`
	Reason string      `json:"reason,omitempty"`
}

// ParseFeedingTime validates a proposed "HH:MM" feeding time.
func ParseFeedingTime(raw string) (ClockTime, error) {
	c, err := ParseClockTime(raw)
	if err != nil {
		return ClockTime{}, &FieldError{Field: FieldTime, Value: raw, Reason: "want HH:MM between 00:00 and 23:59"}
	}
	return c, nil
}

// ParseQuantity validates a proposed quantity: one digit, 1 to 9.
func ParseQuantity(raw string) (int, error) {
	if len(raw) != 1 || raw[0] < '0'+MinQuantity || raw[0] > '0'+MaxQuantity {
		return 0, &FieldError{Field: FieldQuantity, Value: raw, Reason: fmt.Sprintf("want a single digit %d-%d", MinQuantity, MaxQuantity)}
	}
	return int(raw[0] - '0'), nil
}

// ParseUnitDuration validates a proposed per-unit duration in milliseconds.
func ParseUnitDuration(raw string) (time.Duration, error) {
	bad := &FieldError{Field: FieldDispenseDuration, Value: raw,
		Reason: fmt.Sprintf("want an integer %d-%d", MinUnitDurationMs, MaxUnitDurationMs)}
	if raw == "" || len(raw) > 4 {
		return 0, bad
	}
	ms := 0
	for i := 0; i < len(raw); i++ {
		if !isDigit(raw[i]) {
			return 0, bad
		}
		ms = ms*10 + int(raw[i]-'0')
	}
	if ms < MinUnitDurationMs {
		return 0, bad
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Apply merges a textual update onto s. Fields are judged independently: a
// valid field replaces the current value, an invalid one keeps it, an empty
// one is left untouched. The returned results are in request order
// (time, quantity, dispenseDurationMs).
func (s FeedingSchedule) Apply(timeRaw, quantityRaw, durationRaw string) (FeedingSchedule, []FieldResult) {
	next := s
	results := make([]FieldResult, 0, 3)

	timeRaw = strings.TrimSpace(timeRaw)
	quantityRaw = strings.TrimSpace(quantityRaw)
	durationRaw = strings.TrimSpace(durationRaw)

	switch {
	case timeRaw == "":
		results = append(results, FieldResult{Field: FieldTime, Status: FieldUnchanged, Value: s.FeedingTime.String()})
	default:
		if c, err := ParseFeedingTime(timeRaw); err != nil {
			results = append(results, rejected(FieldTime, s.FeedingTime.String(), err))
		} else {
			next.FeedingTime = c
			results = append(results, FieldResult{Field: FieldTime, Status: FieldAccepted, Value: c.String()})
		}
	}

	switch {
	case quantityRaw == "":
		results = append(results, FieldResult{Field: FieldQuantity, Status: FieldUnchanged, Value: fmt.Sprint(s.Quantity)})
	default:
		if q, err := ParseQuantity(quantityRaw); err != nil {
			results = append(results, rejected(FieldQuantity, fmt.Sprint(s.Quantity), err))
		} else {
			next.Quantity = q
			results = append(results, FieldResult{Field: FieldQuantity, Status: FieldAccepted, Value: fmt.Sprint(q)})
		}
	}

	switch {
	case durationRaw == "":
		results = append(results, FieldResult{Field: FieldDispenseDuration, Status: FieldUnchanged, Value: fmt.Sprint(s.UnitDurationMs())})
	default:
		if d, err := ParseUnitDuration(durationRaw); err != nil {
			results = append(results, rejected(FieldDispenseDuration, fmt.Sprint(s.UnitDurationMs()), err))
		} else {
			next.UnitDispenseDuration = d
			results = append(results, FieldResult{Field: FieldDispenseDuration, Status: FieldAccepted, Value: fmt.Sprint(d.Milliseconds())})
		}
	}

	return next, results
}

// rejected keeps the previous value in the result so the UI can redisplay it.
func rejected(field, previous string, err error) FieldResult {
	reason := err.Error()
	var fe *FieldError
	if errors.As(err, &fe) {
		reason = fe.Reason
	}
	return FieldResult{Field: field, Status: FieldRejected, Value: previous, Reason: reason}
}
