// Package dispense turns a requested quantity into a bounded sequence of
// motor pulses.
package dispense

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/feeder/internal/model"
	"github.com/LeonardoBeccarini/feeder/pkg/logger"
)

var (
	ErrInvalidCount    = errors.New("dispense: count out of range")
	ErrInvalidDuration = errors.New("dispense: unit duration must be positive")
)

const (
	DefaultSettleDelay = 200 * time.Millisecond
	DefaultDuty        = 100
)

type Config struct {
	SettleDelay time.Duration
	Duty        int // percent, 1-100
	MaxUnits    int
}

func (c Config) withDefaults() Config {
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.Duty <= 0 || c.Duty > 100 {
		c.Duty = DefaultDuty
	}
	if c.MaxUnits <= 0 || c.MaxUnits > model.MaxQuantity {
		c.MaxUnits = model.MaxQuantity
	}
	return c
}

// Pulse is one motor-on interval.
type Pulse struct {
	Index    int
	Start    time.Time
	Duration time.Duration
}

// Report describes a finished (or aborted) dispense run.
type Report struct {
	Requested int
	Completed int
	Pulses    []Pulse
	Started   time.Time
	Finished  time.Time
}

type Engine struct {
	mu    sync.Mutex
	act   Actuator
	clock Clock
	cfg   Config
	log   *logger.Logger
}

func NewEngine(act Actuator, clock Clock, cfg Config) *Engine {
	if clock == nil {
		clock = RealClock{}
	}
	return &Engine{act: act, clock: clock, cfg: cfg.withDefaults(), log: logger.New("dispense")}
}

func (e *Engine) Config() Config { return e.cfg }

// DispenseUnits runs count units of unit duration each. Each unit is
// Stop, settle, Drive, hold, Stop. Runs are serialised and cannot be
// cancelled once started. The motor is stopped on every return path and
// on panic.
func (e *Engine) DispenseUnits(count int, unit time.Duration) (rep Report, err error) {
	if count < 1 || count > e.cfg.MaxUnits {
		return Report{Requested: count}, fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidCount, count, e.cfg.MaxUnits)
	}
	if unit <= 0 {
		return Report{Requested: count}, fmt.Errorf("%w: %v", ErrInvalidDuration, unit)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rep = Report{Requested: count, Started: e.clock.Now(), Pulses: make([]Pulse, 0, count)}
	defer func() {
		if serr := e.act.Stop(); serr != nil {
			e.log.Error("final stop failed: %v", serr)
			if err == nil {
				err = fmt.Errorf("dispense: final stop: %w", serr)
			}
		}
		rep.Finished = e.clock.Now()
	}()

	for i := 0; i < count; i++ {
		if err := e.act.Stop(); err != nil {
			return rep, fmt.Errorf("dispense: unit %d: stop: %w", i+1, err)
		}
		e.clock.Sleep(e.cfg.SettleDelay)

		start := e.clock.Now()
		if err := e.act.Drive(e.cfg.Duty, unit); err != nil {
			return rep, fmt.Errorf("dispense: unit %d: drive: %w", i+1, err)
		}
		e.clock.Sleep(unit)
		if err := e.act.Stop(); err != nil {
			return rep, fmt.Errorf("dispense: unit %d: stop: %w", i+1, err)
		}

		rep.Pulses = append(rep.Pulses, Pulse{Index: i + 1, Start: start, Duration: e.clock.Now().Sub(start)})
		rep.Completed++
	}

	e.log.Debug("dispensed %d/%d units of %v", rep.Completed, count, unit)
	return rep, nil
}
