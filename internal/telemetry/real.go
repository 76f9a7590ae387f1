package telemetry

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// offlineCapacity bounds the number of events held while disconnected.
const offlineCapacity = 64

// RealPublisher publishes to an actual MQTT broker. While the connection
// is down, messages are queued and replayed in order on reconnect.
type RealPublisher struct {
	client paho.Client

	mu    sync.Mutex
	queue *offlineQueue
}

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// NewRealPublisher connects to the broker. The connection keeps retrying
// in the background; a timeout here only means the broker was unreachable
// at startup, which is not fatal since publishes are queued.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	p := &RealPublisher{queue: newOfflineQueue(offlineCapacity)}

	clientID := opts.ClientID
	if clientID == "" {
		clientID = "lockbeamd"
	}

	cfg := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("telemetry: connection lost: %v", err)
		}).
		SetOnConnectHandler(func(_ paho.Client) {
			p.replayQueued()
		})
	if opts.Username != "" {
		cfg.SetUsername(opts.Username)
		cfg.SetPassword(opts.Password)
	}

	p.client = paho.NewClient(cfg)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("telemetry: broker %s not reachable yet, queueing events", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a lifecycle event to the broker at QoS 1; the audit trail
// should survive a flaky link.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(Topic, payload, 1, false)
}

// PublishSystem sends a daemon lifecycle event to the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(TopicSystem, payload, 1, event.Retained)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second to flush
	return nil
}

func (p *RealPublisher) send(topic string, payload []byte, qos byte, retained bool) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.queue.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// replayQueued publishes everything buffered while the link was down.
func (p *RealPublisher) replayQueued() {
	p.mu.Lock()
	msgs := p.queue.drain()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	log.Printf("telemetry: reconnected, replaying %d queued messages", len(msgs))
	for _, m := range msgs {
		token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			log.Printf("telemetry: replay timeout on %s", m.topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("telemetry: replay to %s: %v", m.topic, err)
		}
	}
}
