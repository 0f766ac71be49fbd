// Package rabbitmqtest provides an in-memory mqtt.Client for tests.
package rabbitmqtest

import (
	"errors"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Published is one captured Publish call.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// Client records publishes and lets tests deliver messages to subscribers.
type Client struct {
	mu         sync.Mutex
	connected  bool
	published  []Published
	subs       map[string]mqtt.MessageHandler
	PublishErr error
}

func NewClient() *Client {
	return &Client{connected: true, subs: make(map[string]mqtt.MessageHandler)}
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) IsConnectionOpen() bool { return c.IsConnected() }

func (c *Client) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return &Token{}
}

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishErr != nil {
		return &Token{Err: c.PublishErr}
	}
	var b []byte
	switch v := payload.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = append([]byte(nil), v...)
	default:
		return &Token{Err: errors.New("unknown payload type")}
	}
	c.published = append(c.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: b})
	return &Token{}
}

func (c *Client) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.subs[topic] = callback
	c.mu.Unlock()
	return &Token{}
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for t, q := range filters {
		c.Subscribe(t, q, callback)
	}
	return &Token{}
}

func (c *Client) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	c.mu.Unlock()
	return &Token{}
}

func (c *Client) AddRoute(topic string, callback mqtt.MessageHandler) { c.Subscribe(topic, 0, callback) }

func (c *Client) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

// Published returns a copy of every captured publish.
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// PublishedOn filters captured publishes by exact topic.
func (c *Client) PublishedOn(topic string) []Published {
	var out []Published
	for _, p := range c.Published() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// Subscribed reports whether some subscription filter matches topic.
func (c *Client) Subscribed(topic string) bool {
	_, ok := c.handlerFor(topic)
	return ok
}

// Deliver hands a message to the subscriber whose filter matches topic.
func (c *Client) Deliver(topic string, payload []byte) bool {
	h, ok := c.handlerFor(topic)
	if !ok {
		return false
	}
	h(c, &Message{TopicName: topic, Body: payload, QoSLevel: 1})
	return true
}

func (c *Client) handlerFor(topic string) (mqtt.MessageHandler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for filter, h := range c.subs {
		if Match(filter, topic) {
			return h, true
		}
	}
	return nil, false
}

// Match implements MQTT topic filter matching with + and #.
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}

// Token is an already-completed mqtt.Token.
type Token struct {
	Err error
}

func (t *Token) Wait() bool                     { return true }
func (t *Token) WaitTimeout(time.Duration) bool { return true }
func (t *Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *Token) Error() error { return t.Err }

// Message is a static mqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
	QoSLevel  byte
	Dup       bool
	ID        uint16
	acked     bool
}

func (m *Message) Duplicate() bool   { return m.Dup }
func (m *Message) Qos() byte         { return m.QoSLevel }
func (m *Message) Retained() bool    { return false }
func (m *Message) Topic() string     { return m.TopicName }
func (m *Message) MessageID() uint16 { return m.ID }
func (m *Message) Payload() []byte   { return m.Body }
func (m *Message) Ack()              { m.acked = true }
func (m *Message) Acked() bool       { return m.acked }
