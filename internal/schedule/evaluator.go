// Package schedule decides, tick by tick, whether the automatic feed is due.
package schedule

import (
	"time"

	"github.com/LeonardoBeccarini/feeder/internal/model"
)

// DefaultDebounce is the minimum uptime between two automatic feeds.
const DefaultDebounce = 60 * time.Second

type State int

const (
	NotDue State = iota
	Due
)

func (s State) String() string {
	if s == Due {
		return "due"
	}
	return "not_due"
}

// Evaluator fires at most once per debounce window. Matching is by exact
// minute: if no tick lands inside the feeding minute the feed is skipped
// for that day.
type Evaluator struct {
	debounce time.Duration
	lastFeed time.Duration
	fed      bool
}

func NewEvaluator(debounce time.Duration) *Evaluator {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Evaluator{debounce: debounce}
}

// Evaluate compares local time (seconds stripped) with the feeding time.
// uptime is the monotonic time since boot; a Due result records it.
func (e *Evaluator) Evaluate(local model.LocalTime, feeding model.ClockTime, uptime time.Duration) State {
	if local.Clock() != feeding {
		return NotDue
	}
	if e.fed && uptime-e.lastFeed < e.debounce {
		return NotDue
	}
	e.lastFeed = uptime
	e.fed = true
	return Due
}

// LastFeed returns the uptime of the last Due result, if any.
func (e *Evaluator) LastFeed() (time.Duration, bool) { return e.lastFeed, e.fed }

func (e *Evaluator) Debounce() time.Duration { return e.debounce }

// DueSoon reports whether feeding falls within the next window after local,
// wrapping across midnight. The whole feeding minute counts as due soon.
func DueSoon(local model.LocalTime, feeding model.ClockTime, window time.Duration) bool {
	if local.Clock() == feeding {
		return true
	}
	now := local.Hour*3600 + local.Minute*60 + local.Second
	at := feeding.MinutesOfDay() * 60
	ahead := (at - now + 86400) % 86400
	return time.Duration(ahead)*time.Second <= window
}
