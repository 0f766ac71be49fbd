package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.Debounce)
	assert.Equal(t, MediumFile, cfg.Store.Medium)
	assert.False(t, cfg.MQTT.Enabled())
}

func TestYAMLThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "feeder.yaml", `
device_id: barn
poll_interval: 20s
utc_offset_hours: 2
time_service:
  host: time.example.org
dispense:
  duty: 80
store:
  medium: badger
  path: /var/lib/feeder/badger
mqtt:
  host: broker
`)
	t.Setenv("FEEDER_UTC_OFFSET_HOURS", "-3")
	t.Setenv("RABBITMQ_PASSWORD", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "barn", cfg.DeviceID)
	assert.Equal(t, 20*time.Second, cfg.PollInterval)
	assert.Equal(t, -3, cfg.UTCOffset)
	assert.Equal(t, "time.example.org", cfg.TimeService.Host)
	assert.Equal(t, 13, cfg.TimeService.Port, "unset keys keep defaults")
	assert.Equal(t, 80, cfg.Dispense.Duty)
	assert.Equal(t, MediumBadger, cfg.Store.Medium)
	assert.True(t, cfg.MQTT.Enabled())
	assert.Equal(t, "s3cret", cfg.MQTT.Password)
}

func TestDotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "feeder.yaml", "device_id: shed\n")
	write(t, dir, ".env", "FEEDER_DEVICE_ID_UNUSED=x\nHISTORY_PATH=/tmp/feeder-history.db\n")
	t.Cleanup(func() {
		os.Unsetenv("HISTORY_PATH")
		os.Unsetenv("FEEDER_DEVICE_ID_UNUSED")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/feeder-history.db", cfg.HistoryPath)
}

func TestPollMustBeShorterThanDebounce(t *testing.T) {
	cfg := Default()
	cfg.PollInterval = 60 * time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shorter than debounce_window")
}

func TestDebounceWindowMustCoverAFullMinute(t *testing.T) {
	cfg := Default()
	cfg.PollInterval = 10 * time.Second
	cfg.Debounce = 15 * time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debounce_window 15s: must be at least 1m0s")

	cfg.Debounce = time.Minute
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.UTCOffset = 15
	cfg.Dispense.Duty = 0
	cfg.Dispense.Actuator = ActuatorMQTT
	cfg.Store.Medium = "eeprom"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"utc_offset_hours", "dispense.duty", "requires mqtt.host", "store.medium"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestInvalidYAMLIsReported(t *testing.T) {
	path := write(t, t.TempDir(), "feeder.yaml", "poll_interval: [nope\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRedactedHidesSecrets(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Password = "hunter2"
	cfg.Influx.Token = "influx-secret"

	out := cfg.YAML()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "influx-secret")
	assert.Contains(t, out, "***")
	assert.Equal(t, "hunter2", cfg.MQTT.Password, "original untouched")
}

func TestGetenvDurationAcceptsMilliseconds(t *testing.T) {
	t.Setenv("X_DUR", "250")
	assert.Equal(t, 250*time.Millisecond, getenvDuration("X_DUR", time.Second))
	t.Setenv("X_DUR", "2m")
	assert.Equal(t, 2*time.Minute, getenvDuration("X_DUR", time.Second))
	t.Setenv("X_DUR", "garbage")
	assert.Equal(t, time.Second, getenvDuration("X_DUR", time.Second))
}
