// Package feeder owns the feeding state and orchestrates time polling,
// schedule evaluation, dispensing and configuration updates.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/feeder/internal/dispense"
	"github.com/LeonardoBeccarini/feeder/internal/model"
	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
	"github.com/LeonardoBeccarini/feeder/internal/schedule"
	"github.com/LeonardoBeccarini/feeder/internal/timesource"
	"github.com/LeonardoBeccarini/feeder/pkg/logger"
)

var (
	ErrStopped        = errors.New("feeder: controller not running")
	ErrAlreadyRunning = errors.New("feeder: controller already running")
	ErrNoTime         = errors.New("feeder: time service returned no timestamp")
)

type ScheduleStore interface {
	Load() model.FeedingSchedule
	Save(s model.FeedingSchedule) error
}

type TimeSource interface {
	FetchUTC(ctx context.Context) (timesource.RawTime, error)
}

type Dispenser interface {
	DispenseUnits(count int, unit time.Duration) (dispense.Report, error)
}

// Recorder receives every finished dispense. Errors are logged, never
// propagated to the feed.
type Recorder interface {
	Record(ctx context.Context, evt messages.FeedEvent) error
}

type StatusPublisher interface {
	PublishStatus(st messages.Status) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	DeviceID      string
	PollInterval  time.Duration
	Debounce      time.Duration
	UTCOffset     int
	DueSoonWindow time.Duration
	FedWindow     time.Duration
	PollOnStart   bool
}

func (c Config) withDefaults() Config {
	if c.DeviceID == "" {
		c.DeviceID = "feeder-1"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.Debounce <= 0 {
		c.Debounce = schedule.DefaultDebounce
	}
	if c.DueSoonWindow <= 0 {
		c.DueSoonWindow = 5 * time.Minute
	}
	if c.FedWindow <= 0 {
		c.FedWindow = 10 * time.Minute
	}
	return c
}

// TickOutcome describes one poll of the time service.
type TickOutcome struct {
	Skipped bool // paused
	Local   model.LocalTime
	State   schedule.State
	Feed    *messages.FeedEvent
	Err     error
}

type Option func(*Controller)

func WithRecorders(r ...Recorder) Option {
	return func(c *Controller) { c.recorders = append(c.recorders, r...) }
}

func WithStatusPublisher(p StatusPublisher) Option {
	return func(c *Controller) { c.publisher = p }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithClock(clk Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

func WithIDFunc(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// Controller is the single owner of the feeding state. All mutation happens
// on the goroutine running Run; other goroutines talk to it through the
// exported methods, which are request/reply messages.
type Controller struct {
	cfg       Config
	store     ScheduleStore
	source    TimeSource
	dispenser Dispenser
	recorders []Recorder
	publisher StatusPublisher
	metrics   *Metrics
	clock     Clock
	log       *logger.Logger
	newID     func() string

	inbox   chan func(context.Context)
	done    chan struct{}
	running atomic.Bool

	// owned by Run
	sched    model.FeedingSchedule
	eval     *schedule.Evaluator
	boot     time.Time
	local    *model.LocalTime
	syncedAt time.Time
	lastFeed *messages.FeedEvent
	paused   bool
	lastErr  string

	snapshot atomic.Pointer[messages.Status]
}

// New loads the schedule once from store and builds an idle controller.
func New(cfg Config, store ScheduleStore, src TimeSource, d Dispenser, opts ...Option) *Controller {
	c := &Controller{
		cfg:       cfg.withDefaults(),
		store:     store,
		source:    src,
		dispenser: d,
		clock:     realClock{},
		log:       logger.New("feeder"),
		newID:     func() string { return uuid.NewString() },
		inbox:     make(chan func(context.Context)),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.boot = c.clock.Now()
	c.eval = schedule.NewEvaluator(c.cfg.Debounce)
	c.sched = store.Load()
	c.refresh(false)
	return c
}

// Run serves ticks and requests until ctx is cancelled. It may be called
// once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.done)

	c.log.Info("running device=%s schedule=%s x%d %dms poll=%v offset=%+dh",
		c.cfg.DeviceID, c.sched.FeedingTime, c.sched.Quantity, c.sched.UnitDurationMs(),
		c.cfg.PollInterval, c.cfg.UTCOffset)
	c.refresh(true)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	if c.cfg.PollOnStart {
		c.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			c.running.Store(false)
			c.refresh(true)
			c.log.Info("stopped")
			return nil
		case <-ticker.C:
			c.tick(ctx)
		case job := <-c.inbox:
			job(ctx)
		}
	}
}

// call runs fn on the owner goroutine and waits for it to finish. Once the
// job is accepted it runs to completion, so ctx only bounds the wait for the
// owner goroutine to pick it up.
func (c *Controller) call(ctx context.Context, fn func(context.Context)) error {
	finished := make(chan struct{})
	job := func(runCtx context.Context) {
		defer close(finished)
		fn(runCtx)
	}
	select {
	case c.inbox <- job:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// ============== Requests ==============

// FeedNow dispenses the configured quantity immediately. It bypasses the
// evaluator and does not count as the scheduled feed. A dispense that has
// started is always reported, even if ctx expires meanwhile.
func (c *Controller) FeedNow(ctx context.Context) (messages.FeedEvent, error) {
	var (
		evt  messages.FeedEvent
		ferr error
	)
	if err := c.call(ctx, func(runCtx context.Context) {
		evt, ferr = c.feed(runCtx, messages.TriggerManual)
		c.refresh(true)
	}); err != nil {
		return messages.FeedEvent{}, err
	}
	return evt, ferr
}

// UpdateSchedule validates each field independently, persists the merged
// schedule if it changed and adopts it only once persisted.
func (c *Controller) UpdateSchedule(ctx context.Context, upd messages.ConfigUpdate) (messages.UpdateResult, error) {
	var (
		res  messages.UpdateResult
		uerr error
	)
	if err := c.call(ctx, func(context.Context) {
		res, uerr = c.applyUpdate(upd)
		c.refresh(true)
	}); err != nil {
		return messages.UpdateResult{}, err
	}
	return res, uerr
}

// Schedule returns the active schedule.
func (c *Controller) Schedule(ctx context.Context) (model.FeedingSchedule, error) {
	var s model.FeedingSchedule
	err := c.call(ctx, func(context.Context) { s = c.sched })
	return s, err
}

// PollNow runs one tick out of band.
func (c *Controller) PollNow(ctx context.Context) (TickOutcome, error) {
	var out TickOutcome
	err := c.call(ctx, func(runCtx context.Context) { out = c.tick(runCtx) })
	return out, err
}

// Pause suspends polling; feed-now and updates are still served.
func (c *Controller) Pause(ctx context.Context) error {
	return c.call(ctx, func(context.Context) {
		if !c.paused {
			c.log.Info("polling paused")
		}
		c.paused = true
		c.refresh(true)
	})
}

func (c *Controller) Resume(ctx context.Context) error {
	return c.call(ctx, func(context.Context) {
		if c.paused {
			c.log.Info("polling resumed")
		}
		c.paused = false
		c.refresh(true)
	})
}

// Status returns the last published snapshot. It never blocks.
func (c *Controller) Status() messages.Status {
	if st := c.snapshot.Load(); st != nil {
		return *st
	}
	return messages.Status{DeviceID: c.cfg.DeviceID}
}

// ============== Owner goroutine ==============

func (c *Controller) uptime() time.Duration { return c.clock.Now().Sub(c.boot) }

func (c *Controller) tick(ctx context.Context) (out TickOutcome) {
	defer c.refresh(true)

	if c.paused {
		return TickOutcome{Skipped: true}
	}

	raw, err := c.source.FetchUTC(ctx)
	switch {
	case errors.Is(err, timesource.ErrConnect):
		c.metrics.observeFetch("connect_error")
		return c.tickFailed(err)
	case err != nil:
		c.metrics.observeFetch("error")
		return c.tickFailed(err)
	case raw == timesource.Unavailable:
		c.metrics.observeFetch("unavailable")
		return c.tickFailed(ErrNoTime)
	}

	local, err := timesource.ToLocal(raw, c.cfg.UTCOffset)
	if err != nil {
		c.metrics.observeFetch("malformed")
		return c.tickFailed(err)
	}
	c.metrics.observeFetch("ok")

	c.local = &local
	c.syncedAt = c.clock.Now()
	c.lastErr = ""

	out = TickOutcome{Local: local}
	out.State = c.eval.Evaluate(local, c.sched.FeedingTime, c.uptime())
	c.log.Debug("tick local=%s feeding=%s state=%s", local, c.sched.FeedingTime, out.State)
	if out.State == schedule.Due {
		evt, ferr := c.feed(ctx, messages.TriggerSchedule)
		out.Feed = &evt
		out.Err = ferr
	}
	return out
}

// tickFailed keeps the last known state and skips evaluation.
func (c *Controller) tickFailed(err error) TickOutcome {
	c.lastErr = err.Error()
	c.log.Warn("time poll skipped: %v", err)
	return TickOutcome{Err: err}
}

func (c *Controller) feed(ctx context.Context, trigger string) (messages.FeedEvent, error) {
	s := c.sched
	started := c.clock.Now()
	rep, err := c.dispenser.DispenseUnits(s.Quantity, s.UnitDispenseDuration)

	evt := messages.FeedEvent{
		ID:             c.newID(),
		DeviceID:       c.cfg.DeviceID,
		Trigger:        trigger,
		Quantity:       s.Quantity,
		UnitsDispensed: rep.Completed,
		UnitDurationMs: s.UnitDurationMs(),
		Status:         messages.StatusOK,
		StartedAt:      started,
		Timestamp:      c.clock.Now(),
	}
	if c.local != nil {
		evt.LocalTime = c.local.String()
	}
	if err != nil {
		evt.Status = messages.StatusFail
		evt.Reason = err.Error()
		c.lastErr = "dispense: " + err.Error()
		c.log.Error("%s feed failed after %d/%d units: %v", trigger, rep.Completed, s.Quantity, err)
	} else {
		c.log.Info("%s feed done: %d x %dms", trigger, rep.Completed, s.UnitDurationMs())
	}

	c.lastFeed = &evt
	c.metrics.observeDispense(trigger, evt.Status, rep.Completed, evt.Timestamp)
	c.record(ctx, evt)
	return evt, err
}

func (c *Controller) record(ctx context.Context, evt messages.FeedEvent) {
	if len(c.recorders) == 0 {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	for _, r := range c.recorders {
		if err := r.Record(rctx, evt); err != nil {
			c.log.Warn("record feed %s: %v", evt.ID, err)
		}
	}
}

func (c *Controller) applyUpdate(upd messages.ConfigUpdate) (messages.UpdateResult, error) {
	next, fields := c.sched.Apply(upd.Time, upd.Quantity, upd.DispenseDurationMs)
	res := messages.UpdateResult{RequestID: upd.RequestID, Fields: fields}

	if next != c.sched {
		if err := c.store.Save(next); err != nil {
			c.metrics.observeUpdate("save_error")
			c.lastErr = "save schedule: " + err.Error()
			res.Schedule = messages.NewScheduleView(c.sched)
			return res, fmt.Errorf("persist schedule: %w", err)
		}
		c.log.Info("schedule updated: %s x%d %dms -> %s x%d %dms",
			c.sched.FeedingTime, c.sched.Quantity, c.sched.UnitDurationMs(),
			next.FeedingTime, next.Quantity, next.UnitDurationMs())
		c.sched = next
		res.Persisted = true
	}
	res.Schedule = messages.NewScheduleView(c.sched)

	switch {
	case res.Rejected():
		c.metrics.observeUpdate("rejected")
		for _, f := range fields {
			if f.Status == model.FieldRejected {
				c.log.Warn("rejected %s: %s (kept %s)", f.Field, f.Reason, f.Value)
			}
		}
	case res.Persisted:
		c.metrics.observeUpdate("accepted")
	default:
		c.metrics.observeUpdate("unchanged")
	}
	return res, nil
}

// refresh rebuilds the snapshot and optionally republishes it.
func (c *Controller) refresh(publish bool) {
	now := c.clock.Now()
	st := messages.Status{
		DeviceID:     c.cfg.DeviceID,
		Schedule:     messages.NewScheduleView(c.sched),
		TimeSyncedAt: c.syncedAt,
		Paused:       c.paused,
		Running:      c.running.Load(),
		LastError:    c.lastErr,
		UpdatedAt:    now,
	}
	if c.local != nil {
		st.LocalTime = c.local.String()
		st.DueSoon = schedule.DueSoon(*c.local, c.sched.FeedingTime, c.cfg.DueSoonWindow)
	}
	if c.lastFeed != nil {
		evt := *c.lastFeed
		st.LastFeed = &evt
		st.Fed = evt.Status == messages.StatusOK && now.Sub(evt.Timestamp) <= c.cfg.FedWindow
	}
	c.snapshot.Store(&st)

	if publish && c.publisher != nil {
		if err := c.publisher.PublishStatus(st); err != nil {
			c.log.Warn("publish status: %v", err)
		}
	}
}

// DeviceID is the configured device identifier.
func (c *Controller) DeviceID() string { return c.cfg.DeviceID }
