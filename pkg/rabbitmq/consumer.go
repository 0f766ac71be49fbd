package rabbitmq

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes and dispatches until the context is cancelled.
type IConsumer interface {
	ConsumeMessage(ctx context.Context) error
	SetHandler(handler Handler)
}

// MultiConsumer subscribes one handler to several topics at the same QoS.
type MultiConsumer struct {
	client  mqtt.Client
	topics  []string
	qos     byte
	handler Handler
}

func NewMultiConsumer(client mqtt.Client, topics []string, qos byte, handler Handler) *MultiConsumer {
	return &MultiConsumer{
		client:  client,
		topics:  topics,
		qos:     qos,
		handler: handler,
	}
}

func (m *MultiConsumer) SetHandler(handler Handler) {
	m.handler = handler
}

// ConsumeMessage blocks until ctx is done, then unsubscribes. A failed
// subscription is returned immediately.
func (m *MultiConsumer) ConsumeMessage(ctx context.Context) error {
	for _, topic := range m.topics {
		topic := topic
		token := m.client.Subscribe(topic, m.qos, func(_ mqtt.Client, msg mqtt.Message) {
			if m.handler == nil {
				log.Warn("no handler set for topic %s", topic)
				return
			}
			if err := m.handler(topic, msg); err != nil {
				log.Error("handling message on %s: %v", topic, err)
			}
		})
		token.Wait()
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		log.Info("subscribed to %s (qos=%d)", topic, m.qos)
	}

	<-ctx.Done()

	if m.client.IsConnected() {
		m.client.Unsubscribe(m.topics...).Wait()
	}
	return nil
}
