package feeder

//go:generate mockgen -destination "mock_feeder_test.go" -package $GOPACKAGE -write_package_comment=false github.com/LeonardoBeccarini/feeder/internal/services/feeder TimeSource,Dispenser

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/LeonardoBeccarini/feeder/internal/configstore"
	"github.com/LeonardoBeccarini/feeder/internal/model"
	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
	"github.com/LeonardoBeccarini/feeder/internal/timesource"
)

func nist(h, m, s int) timesource.RawTime {
	return timesource.RawTime(fmt.Sprintf("60962 25-10-14 %02d:%02d:%02d 50 0 0 645.7 UTC(NIST) * ", h, m, s))
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: time.Date(2025, 10, 14, 7, 0, 0, 0, time.UTC)} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureRecorder struct {
	mu     sync.Mutex
	events []messages.FeedEvent
	err    error
}

func (r *captureRecorder) Record(_ context.Context, evt messages.FeedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func (r *captureRecorder) Events() []messages.FeedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messages.FeedEvent(nil), r.events...)
}

type capturePublisher struct {
	mu       sync.Mutex
	statuses []messages.Status
}

func (p *capturePublisher) PublishStatus(st messages.Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, st)
	return nil
}

func (p *capturePublisher) Last() messages.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statuses[len(p.statuses)-1]
}

type brokenStore struct {
	sched model.FeedingSchedule
	err   error
	saves int
}

func (b *brokenStore) Load() model.FeedingSchedule { return b.sched }

func (b *brokenStore) Save(model.FeedingSchedule) error {
	b.saves++
	return b.err
}

type harness struct {
	c      *Controller
	src    *MockTimeSource
	disp   *MockDispenser
	medium *configstore.MemoryMedium
	store  *configstore.Store
	clock  *testClock
	cancel context.CancelFunc
}

// start builds a running controller on an in-memory store. Polling is driven
// by PollNow; the ticker interval is long enough never to fire.
func start(t *testing.T, cfg Config, store ScheduleStore, opts ...Option) *harness {
	t.Helper()
	mc := gomock.NewController(t)
	h := &harness{
		src:   NewMockTimeSource(mc),
		disp:  NewMockDispenser(mc),
		clock: newTestClock(),
	}
	if store == nil {
		h.medium = configstore.NewMemoryMedium()
		h.store = configstore.New(h.medium)
		store = h.store
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Hour
		cfg.Debounce = 2 * time.Hour
	}

	seq := 0
	opts = append([]Option{WithClock(h.clock), WithIDFunc(func() string {
		seq++
		return fmt.Sprintf("evt-%d", seq)
	})}, opts...)
	h.c = New(cfg, store, h.src, h.disp, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	done := make(chan error, 1)
	go func() { done <- h.c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// withDebounce keeps the ticker idle but uses the real 60 s window.
func withDebounce() Config {
	return Config{PollInterval: 59 * time.Minute, Debounce: 60 * time.Second}
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
