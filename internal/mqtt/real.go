package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/traffic-light/internal/logic"
)

const (
	clientID       = "traffic-light"
	outboxCapacity = 256
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are queued and sent on reconnect.
type RealPublisher struct {
	client    paho.Client
	onCommand CommandHandler

	mu     sync.Mutex
	outbox *outbox
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is established in the background and retried until it succeeds, so a
// missing broker never blocks the signal from running. onCommand may be nil.
func NewRealPublisher(broker string, onCommand CommandHandler) *RealPublisher {
	p := &RealPublisher{
		onCommand: onCommand,
		outbox:    newOutbox(outboxCapacity),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

// Publish sends a phase change to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(outgoing{topic: TopicEvents, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) - we want lifecycle events delivered
	return p.send(outgoing{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// PublishPower sends the retained power state.
func (p *RealPublisher) PublishPower(on bool) error {
	return p.send(outgoing{topic: TopicPower, payload: FormatPowerPayload(on), qos: 1, retained: true})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) send(msg outgoing) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.outbox.push(msg)
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) handleConnect(c paho.Client) {
	log.Printf("mqtt: connected")

	if p.onCommand != nil {
		c.Subscribe(TopicPowerSet, 1, func(_ paho.Client, m paho.Message) {
			p.onCommand(string(m.Payload()))
		})
	}

	// Flush outside the paho callback so publish tokens can complete.
	go p.flush()
}

func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs := p.outbox.drain()
	p.mu.Unlock()

	for i, msg := range msgs {
		if err := p.send(msg); err != nil {
			log.Printf("mqtt: replay: %v", err)
			p.mu.Lock()
			for _, rest := range msgs[i+1:] {
				p.outbox.push(rest)
			}
			p.mu.Unlock()
			return
		}
	}
	if len(msgs) > 0 {
		log.Printf("mqtt: replayed %d queued messages", len(msgs))
	}
}
