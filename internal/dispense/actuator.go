package dispense

import "time"

// Actuator drives the dispensing motor. Stop must be safe to call in any
// state, including repeatedly.
type Actuator interface {
	// Drive energises the motor forward at duty percent. maxOn is a hint
	// for drivers that can self-stop after that long.
	Drive(duty int, maxOn time.Duration) error
	Stop() error
}

// Clock abstracts time for the pulse sequencing.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }
