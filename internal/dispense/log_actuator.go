package dispense

import (
	"sync"
	"time"

	"github.com/LeonardoBeccarini/feeder/pkg/logger"
)

// LogActuator is a dry-run driver that only logs transitions.
type LogActuator struct {
	mu  sync.Mutex
	on  bool
	log *logger.Logger
}

func NewLogActuator(l *logger.Logger) *LogActuator {
	if l == nil {
		l = logger.New("actuator")
	}
	return &LogActuator{log: l}
}

func (a *LogActuator) Drive(duty int, maxOn time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.on = true
	a.log.Info("motor ON duty=%d%% max=%v", duty, maxOn)
	return nil
}

func (a *LogActuator) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.on {
		a.log.Info("motor OFF")
	}
	a.on = false
	return nil
}

func (a *LogActuator) On() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}
