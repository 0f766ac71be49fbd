package feeder

import (
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/feeder/internal/telemetry"
)

// HealthDeps are the optional collaborators reported by /healthz and /readyz.
// A nil MQTT client or Influx writer means the integration is disabled and is
// not held against readiness.
type HealthDeps struct {
	Controller  Commander
	MQTT        mqtt.Client
	Influx      *telemetry.Writer
	TimeBreaker func() string
	ErrorGrace  time.Duration
}

type healthStatus struct {
	Status          string  `json:"status"`
	Running         bool    `json:"running"`
	Paused          bool    `json:"paused"`
	MQTTEnabled     bool    `json:"mqtt_enabled"`
	MQTTConnected   bool    `json:"mqtt_connected"`
	InfluxEnabled   bool    `json:"influx_enabled"`
	InfluxOK        bool    `json:"influx_ok"`
	LastWriteErrorS float64 `json:"last_write_error_age_sec,omitempty"`
	TimeBreaker     string  `json:"time_breaker,omitempty"`
	LastError       string  `json:"last_error,omitempty"`
}

func (d HealthDeps) grace() time.Duration {
	if d.ErrorGrace <= 0 {
		return 30 * time.Second
	}
	return d.ErrorGrace
}

func (d HealthDeps) check() (healthStatus, bool) {
	st := healthStatus{
		MQTTEnabled:   d.MQTT != nil,
		InfluxEnabled: d.Influx != nil,
	}
	if d.Controller != nil {
		s := d.Controller.Status()
		st.Running, st.Paused, st.LastError = s.Running, s.Paused, s.LastError
	}
	st.MQTTConnected = d.MQTT != nil && d.MQTT.IsConnectionOpen()
	if d.Influx != nil {
		st.InfluxOK = d.Influx.Healthy(d.grace())
		st.LastWriteErrorS = d.Influx.LastErrorAge().Seconds()
	}
	if d.TimeBreaker != nil {
		st.TimeBreaker = d.TimeBreaker()
	}

	depsOK := (!st.MQTTEnabled || st.MQTTConnected) && (!st.InfluxEnabled || st.InfluxOK)
	switch {
	case st.Running && depsOK && st.TimeBreaker != "open":
		st.Status = "ok"
	case st.Running:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st, st.Running && depsOK
}

// NewHealthHandler always answers 200 with the detailed state.
func NewHealthHandler(d HealthDeps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		st, _ := d.check()
		writeJSON(w, http.StatusOK, st)
	})
}

// NewReadyHandler answers 200 only when the controller runs and every
// enabled dependency is up. An open time breaker does not make the feeder
// unready: it keeps its last known state.
func NewReadyHandler(d HealthDeps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, ready := d.check()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		type resp struct {
			Ready bool `json:"ready"`
		}
		_ = json.NewEncoder(w).Encode(resp{Ready: ready})
	})
}
