package messages

import "time"

// Feed triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// FeedEvent is emitted by the feeder at the end (or failure) of a dispense.
type FeedEvent struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"device_id"`
	Trigger        string    `json:"trigger"`          // "schedule" | "manual"
	Quantity       int       `json:"quantity"`         // units requested
	UnitsDispensed int       `json:"units_dispensed"`  // pulses actually completed
	UnitDurationMs int       `json:"unit_duration_ms"` // actuation per unit
	Status         string    `json:"status"`           // "OK" | "FAIL"
	Reason         string    `json:"reason,omitempty"`
	LocalTime      string    `json:"local_time,omitempty"` // HH:MM:SS at trigger, empty if never synced
	StartedAt      time.Time `json:"started_at"`
	Timestamp      time.Time `json:"timestamp"`
}

// Feed event statuses.
const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
)
