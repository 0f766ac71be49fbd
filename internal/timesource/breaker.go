package timesource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings mirrors the knobs exposed in config.
type BreakerSettings struct {
	Name        string
	Failures    int           // consecutive connect failures before opening
	OpenFor     time.Duration // how long to fail fast
	Interval    time.Duration // closed-state counter reset, 0 = never
	OnStateFunc func(from, to string)
}

// Breaker fails fast with ErrConnect while the authority keeps refusing
// connections. Only connect failures trip it; Unavailable readings do not.
type Breaker struct {
	src Source
	cb  *gobreaker.CircuitBreaker
}

func NewBreaker(src Source, s BreakerSettings) *Breaker {
	fails := s.Failures
	if fails < 1 {
		fails = 3
	}
	open := s.OpenFor
	if open <= 0 {
		open = time.Minute
	}
	name := s.Name
	if name == "" {
		name = "time-service"
	}
	st := gobreaker.Settings{
		Name:     name,
		Interval: s.Interval,
		Timeout:  open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrConnect)
		},
	}
	if s.OnStateFunc != nil {
		st.OnStateChange = func(_ string, from, to gobreaker.State) {
			s.OnStateFunc(from.String(), to.String())
		}
	}
	return &Breaker{src: src, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *Breaker) FetchUTC(ctx context.Context) (RawTime, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.src.FetchUTC(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Unavailable, fmt.Errorf("%w: %v", ErrConnect, err)
	}
	raw, _ := res.(RawTime)
	return raw, err
}

// State reports "closed", "half-open" or "open".
func (b *Breaker) State() string { return b.cb.State().String() }
