package dispense_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/feeder/internal/dispense"
	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
	"github.com/LeonardoBeccarini/feeder/pkg/rabbitmq"
	"github.com/LeonardoBeccarini/feeder/pkg/rabbitmq/rabbitmqtest"
)

func TestMQTTActuatorPublishesBoundedOnThenOff(t *testing.T) {
	c := rabbitmqtest.NewClient()
	act := dispense.NewMQTTActuator(rabbitmq.NewPublisher(c, "feeder/dev1/motor"))

	require.NoError(t, act.Drive(100, 1500*time.Millisecond))
	require.NoError(t, act.Stop())

	got := c.PublishedOn("feeder/dev1/motor")
	require.Len(t, got, 2)

	var on, off messages.MotorCommand
	require.NoError(t, json.Unmarshal(got[0].Payload, &on))
	require.NoError(t, json.Unmarshal(got[1].Payload, &off))

	assert.Equal(t, messages.MotorOn, on.State)
	assert.Equal(t, 100, on.Duty)
	assert.Equal(t, int64(1500), on.MaxMs)
	assert.Equal(t, byte(1), got[0].QoS)
	assert.Equal(t, messages.MotorOff, off.State)
	assert.NotContains(t, string(got[1].Payload), "max_ms")
}

func TestLogActuatorTracksState(t *testing.T) {
	a := dispense.NewLogActuator(nil)
	require.NoError(t, a.Drive(100, time.Second))
	assert.True(t, a.On())
	require.NoError(t, a.Stop())
	require.NoError(t, a.Stop())
	assert.False(t, a.On())
}
