// Package telemetry ships dispense events to InfluxDB.
package telemetry

import (
	"context"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
	"github.com/LeonardoBeccarini/feeder/pkg/logger"
)

// Measurement is the Influx measurement name for feed events.
const Measurement = "feed_event"

// PointWriter is the non-blocking subset of api.WriteAPI in use.
type PointWriter interface {
	WritePoint(point *write.Point)
	Flush()
	Errors() <-chan error
}

type Config struct {
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     uint
	FlushInterval time.Duration
}

// Writer wraps the async write API and tracks the last write error for
// /healthz and /readyz.
type Writer struct {
	api     PointWriter
	client  influxdb2.Client
	log     *logger.Logger
	mu      sync.RWMutex
	lastErr time.Time
	written int64
}

// Dial creates the Influx client and a Writer over its write API.
func Dial(cfg Config) *Writer {
	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	w := NewWriter(client.WriteAPI(cfg.Org, cfg.Bucket))
	w.client = client
	return w
}

// NewWriter starts the async error listener.
func NewWriter(api PointWriter) *Writer {
	w := &Writer{
		api:     api,
		log:     logger.New("telemetry"),
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	go func() {
		for err := range api.Errors() {
			if err != nil {
				w.mu.Lock()
				w.lastErr = time.Now()
				w.mu.Unlock()
				w.log.Warn("influx write error: %v", err)
			}
		}
	}()
	return w
}

// EventToPoint maps a FeedEvent onto the feed_event measurement.
func EventToPoint(evt messages.FeedEvent) *write.Point {
	tags := map[string]string{
		"device_id": evt.DeviceID,
		"trigger":   evt.Trigger,
		"status":    evt.Status,
	}
	fields := map[string]interface{}{
		"quantity":         int64(evt.Quantity),
		"units_dispensed":  int64(evt.UnitsDispensed),
		"unit_duration_ms": int64(evt.UnitDurationMs),
		"actuation_ms":     int64(evt.UnitsDispensed) * int64(evt.UnitDurationMs),
		"elapsed_ms":       evt.Timestamp.Sub(evt.StartedAt).Milliseconds(),
	}
	if evt.Reason != "" {
		fields["reason"] = evt.Reason
	}
	if evt.LocalTime != "" {
		fields["local_time"] = evt.LocalTime
	}
	return influxdb2.NewPoint(Measurement, tags, fields, evt.Timestamp)
}

// Record queues evt; delivery errors surface through LastErrorAge.
func (w *Writer) Record(_ context.Context, evt messages.FeedEvent) error {
	w.api.WritePoint(EventToPoint(evt))
	w.mu.Lock()
	w.written++
	w.mu.Unlock()
	return nil
}

// LastErrorAge is how long ago the last write error occurred.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

func (w *Writer) Written() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.written
}

// Healthy reports a client with no write error within grace.
func (w *Writer) Healthy(grace time.Duration) bool {
	return w != nil && w.LastErrorAge() > grace
}

// Close flushes pending points and closes the client if Dial created it.
func (w *Writer) Close() {
	w.api.Flush()
	if w.client != nil {
		w.client.Close()
	}
}
