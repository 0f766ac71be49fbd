package dispense

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
	"github.com/LeonardoBeccarini/feeder/pkg/rabbitmq"
)

// MQTTActuator drives a remote relay over the motor topic at QoS 1. The
// relay is expected to self-stop after max_ms if the OFF never arrives.
type MQTTActuator struct {
	pub rabbitmq.IPublisher
	now func() time.Time
}

func NewMQTTActuator(pub rabbitmq.IPublisher) *MQTTActuator {
	return &MQTTActuator{pub: pub, now: time.Now}
}

func (a *MQTTActuator) Drive(duty int, maxOn time.Duration) error {
	return a.send(messages.MotorCommand{
		State:     messages.MotorOn,
		Duty:      duty,
		MaxMs:     maxOn.Milliseconds(),
		Timestamp: a.now(),
	})
}

func (a *MQTTActuator) Stop() error {
	return a.send(messages.MotorCommand{State: messages.MotorOff, Timestamp: a.now()})
}

func (a *MQTTActuator) send(cmd messages.MotorCommand) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("motor command: %w", err)
	}
	if err := a.pub.PublishMessageQos(1, false, b); err != nil {
		return fmt.Errorf("motor %s: %w", cmd.State, err)
	}
	return nil
}
