package messages

import "time"

// MotorState indicates whether the dispenser motor is energized.
type MotorState string

const (
	MotorOff MotorState = "off"
	MotorOn  MotorState = "on"
)

// MotorCommand drives the relay node. MaxMs bounds an "on" command so the
// node de-energizes by itself if the matching "off" never arrives.
type MotorCommand struct {
	State     MotorState `json:"state"`
	Duty      int        `json:"duty,omitempty"` // percent
	MaxMs     int64      `json:"max_ms,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
