package dispense_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/LeonardoBeccarini/feeder/internal/dispense"
)

var _ = Describe("Engine", func() {
	var (
		clock  *fakeClock
		act    *recordingActuator
		engine *dispense.Engine
		unit   = 1200 * time.Millisecond
	)

	BeforeEach(func() {
		clock = newFakeClock()
		act = &recordingActuator{clock: clock}
		engine = dispense.NewEngine(act, clock, dispense.Config{})
	})

	Context("with a valid request", func() {
		It("should emit one pulse per unit", func() {
			rep, err := engine.DispenseUnits(3, unit)

			Expect(err).ToNot(HaveOccurred())
			Expect(rep.Requested).To(Equal(3))
			Expect(rep.Completed).To(Equal(3))
			Expect(rep.Pulses).To(HaveLen(3))
			for i, p := range rep.Pulses {
				Expect(p.Index).To(Equal(i + 1))
				Expect(p.Duration).To(Equal(unit))
			}
		})

		It("should keep the motor off between and after pulses", func() {
			_, err := engine.DispenseUnits(3, unit)
			Expect(err).ToNot(HaveOccurred())

			Expect(act.onIntervals()).To(HaveLen(3))
			for _, d := range act.onIntervals() {
				Expect(d).To(BeNumerically("<=", unit))
			}
			Expect(act.last().on).To(BeFalse())
		})

		It("should settle before every pulse", func() {
			rep, _ := engine.DispenseUnits(2, unit)

			Expect(rep.Pulses[0].Start.Sub(rep.Started)).To(Equal(dispense.DefaultSettleDelay))
			gap := rep.Pulses[1].Start.Sub(rep.Pulses[0].Start.Add(rep.Pulses[0].Duration))
			Expect(gap).To(Equal(dispense.DefaultSettleDelay))
		})

		It("should drive at full duty by default", func() {
			_, _ = engine.DispenseUnits(1, unit)

			var on []actuation
			for _, e := range act.log {
				if e.on {
					on = append(on, e)
				}
			}
			Expect(on).To(HaveLen(1))
			Expect(on[0].duty).To(Equal(100))
			Expect(on[0].maxOn).To(Equal(unit))
		})

		It("should use the configured duty and settle delay", func() {
			engine = dispense.NewEngine(act, clock, dispense.Config{SettleDelay: 50 * time.Millisecond, Duty: 60})

			rep, err := engine.DispenseUnits(1, unit)

			Expect(err).ToNot(HaveOccurred())
			Expect(rep.Pulses[0].Start.Sub(rep.Started)).To(Equal(50 * time.Millisecond))
			Expect(engine.Config().Duty).To(Equal(60))
		})
	})

	Context("with an invalid request", func() {
		DescribeTable("should reject the count without actuating",
			func(count int) {
				_, err := engine.DispenseUnits(count, unit)

				Expect(err).To(MatchError(dispense.ErrInvalidCount))
				Expect(act.log).To(BeEmpty())
			},
			Entry("zero", 0),
			Entry("negative", -1),
			Entry("ten", 10),
		)

		It("should reject a non-positive duration", func() {
			_, err := engine.DispenseUnits(2, 0)

			Expect(err).To(MatchError(dispense.ErrInvalidDuration))
			Expect(act.log).To(BeEmpty())
		})
	})

	Context("when the actuator fails", func() {
		It("should stop the motor and report partial progress", func() {
			act.failDrive = 2

			rep, err := engine.DispenseUnits(3, unit)

			Expect(err).To(MatchError(errJammed))
			Expect(rep.Completed).To(Equal(1))
			Expect(act.last().on).To(BeFalse())
		})

		It("should stop the motor even on panic", func() {
			act.panicOn = 1

			Expect(func() { _, _ = engine.DispenseUnits(2, unit) }).To(Panic())
			Expect(act.last().on).To(BeFalse())
		})
	})

	Context("with concurrent callers", func() {
		It("should never overlap runs", func() {
			safe := &serialActuator{}
			engine = dispense.NewEngine(safe, dispense.RealClock{}, dispense.Config{SettleDelay: time.Millisecond})

			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := engine.DispenseUnits(2, time.Millisecond)
					Expect(err).ToNot(HaveOccurred())
				}()
			}
			wg.Wait()

			Expect(safe.maxConcurrent()).To(Equal(1))
		})
	})
})

// serialActuator counts how many DispenseUnits runs are driving at once.
type serialActuator struct {
	mu      sync.Mutex
	running int
	peak    int
}

func (s *serialActuator) Drive(int, time.Duration) error {
	s.mu.Lock()
	s.running++
	if s.running > s.peak {
		s.peak = s.running
	}
	s.mu.Unlock()
	return nil
}

func (s *serialActuator) Stop() error {
	s.mu.Lock()
	if s.running > 0 {
		s.running--
	}
	s.mu.Unlock()
	return nil
}

func (s *serialActuator) maxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}
