package rabbitmq

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes to one fixed topic.
type IPublisher interface {
	PublishMessage(message interface{}) error
	PublishMessageQos(qos byte, retained bool, message interface{}) error
	Topic() string
	Close()
}

type Publisher struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic, timeout: 5 * time.Second}
}

func (p *Publisher) Topic() string { return p.topic }

// PublishMessage sends at QoS 0, not retained.
func (p *Publisher) PublishMessage(message interface{}) error {
	return p.PublishMessageQos(0, false, message)
}

// PublishMessageQos accepts string or []byte payloads.
func (p *Publisher) PublishMessageQos(qos byte, retained bool, message interface{}) error {
	switch message.(type) {
	case string, []byte:
	default:
		return fmt.Errorf("invalid message format %T, expected string or []byte", message)
	}

	token := p.client.Publish(p.topic, qos, retained, message)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish to %s: timed out after %v", p.topic, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	log.Debug("published %d bytes to %s (qos=%d retained=%v)", payloadLen(message), p.topic, qos, retained)
	return nil
}

// Close disconnects the shared client.
func (p *Publisher) Close() {
	CloseRabbitMQConn(p.client)
}

func payloadLen(m interface{}) int {
	switch v := m.(type) {
	case string:
		return len(v)
	case []byte:
		return len(v)
	}
	return 0
}
