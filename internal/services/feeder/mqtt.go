package feeder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
	"github.com/LeonardoBeccarini/feeder/pkg/dedup"
	"github.com/LeonardoBeccarini/feeder/pkg/logger"
	"github.com/LeonardoBeccarini/feeder/pkg/rabbitmq"
)

// Topics builds the per-device topic tree: <prefix>/<device>/...
type Topics struct {
	Prefix string
	Device string
}

func (t Topics) base() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return t.Device
	}
	return p + "/" + t.Device
}

func (t Topics) FeedCmd() string     { return t.base() + "/cmd/feed" }
func (t Topics) ScheduleCmd() string { return t.base() + "/cmd/schedule" }
func (t Topics) Result() string      { return t.base() + "/cmd/result" }
func (t Topics) Status() string      { return t.base() + "/status" }
func (t Topics) Motor() string       { return t.base() + "/motor" }
func (t Topics) Events() string      { return t.base() + "/events" }
func (t Topics) Commands() []string  { return []string{t.FeedCmd(), t.ScheduleCmd()} }

// ---- outbound ----

// MQTTStatusPublisher sends the status snapshot retained, so a display that
// connects late still gets the last one.
type MQTTStatusPublisher struct {
	pub rabbitmq.IPublisher
}

func NewMQTTStatusPublisher(pub rabbitmq.IPublisher) *MQTTStatusPublisher {
	return &MQTTStatusPublisher{pub: pub}
}

func (p *MQTTStatusPublisher) PublishStatus(st messages.Status) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return p.pub.PublishMessageQos(1, true, b)
}

// MQTTEventRecorder publishes each finished feed on the events topic.
type MQTTEventRecorder struct {
	pub rabbitmq.IPublisher
}

func NewMQTTEventRecorder(pub rabbitmq.IPublisher) *MQTTEventRecorder {
	return &MQTTEventRecorder{pub: pub}
}

func (r *MQTTEventRecorder) Record(_ context.Context, evt messages.FeedEvent) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return r.pub.PublishMessageQos(1, false, b)
}

// ---- inbound ----

// CommandHandler serves feed and schedule commands and answers on the result
// topic. Commands carrying a request_id are processed once per dedup window;
// redeliveries flagged duplicate without one are matched on their payload.
type CommandHandler struct {
	cmd     Commander
	topics  Topics
	results rabbitmq.IPublisher
	seen    *dedup.Deduper
	timeout time.Duration
	log     *logger.Logger
}

func NewCommandHandler(cmd Commander, topics Topics, results rabbitmq.IPublisher, seen *dedup.Deduper) *CommandHandler {
	if seen == nil {
		seen = dedup.New(10*time.Minute, 1000)
	}
	return &CommandHandler{
		cmd:     cmd,
		topics:  topics,
		results: results,
		seen:    seen,
		timeout: requestTimeout,
		log:     logger.New("feeder-mqtt"),
	}
}

// Handle has the rabbitmq.Handler signature.
func (h *CommandHandler) Handle(topic string, m mqtt.Message) error {
	payload := m.Payload()

	var envelope struct {
		RequestID string `json:"request_id"`
	}
	if len(strings.TrimSpace(string(payload))) > 0 {
		// a bad body is reported by the command decoder below
		_ = json.Unmarshal(payload, &envelope)
	}

	key := ""
	if envelope.RequestID != "" || m.Duplicate() {
		key = dedup.KeyFor(envelope.RequestID, m.Topic(), payload)
	}
	if !h.seen.ShouldProcess(key) {
		h.log.Debug("duplicate command on %s dropped (%s)", m.Topic(), key)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var res messages.CommandResult
	switch topic {
	case h.topics.FeedCmd():
		res = h.feed(ctx, envelope.RequestID)
	case h.topics.ScheduleCmd():
		res = h.schedule(ctx, payload)
	default:
		return fmt.Errorf("unexpected command topic %s", topic)
	}

	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err := h.results.PublishMessageQos(1, false, b); err != nil {
		return fmt.Errorf("publish %s result: %w", res.Command, err)
	}
	return nil
}

func (h *CommandHandler) feed(ctx context.Context, requestID string) messages.CommandResult {
	res := messages.CommandResult{RequestID: requestID, Command: "feed"}
	evt, err := h.cmd.FeedNow(ctx)
	if evt.ID != "" {
		res.Feed = &evt
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	return res
}

func (h *CommandHandler) schedule(ctx context.Context, payload []byte) messages.CommandResult {
	res := messages.CommandResult{Command: "schedule"}
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		res.Error = "invalid JSON body: " + err.Error()
		return res
	}
	upd := updateFromMap(raw)
	res.RequestID = upd.RequestID

	out, err := h.cmd.UpdateSchedule(ctx, upd)
	if out.Fields != nil {
		res.Update = &out
	}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = !out.Rejected()
	if !res.OK {
		res.Error = "some fields were rejected"
	}
	return res
}
