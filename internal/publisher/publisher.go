package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tupyy/rigctl/internal/entity"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// Connect returns a client connected to broker.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(publishTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("timeout connecting to '%s'", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("cannot connect to '%s': %w", broker, err)
	}

	zap.S().Infow("connected to mqtt broker", "broker", broker, "client_id", clientID)

	return client, nil
}

// Publisher sends snapshots to an mqtt topic at most once per interval.
// Observe never blocks: a snapshot is dropped while the previous one is still being sent.
type Publisher struct {
	client    mqtt.Client
	topic     string
	interval  time.Duration
	last      time.Time
	snapshots chan entity.Snapshot
}

func New(client mqtt.Client, topic string, interval time.Duration) *Publisher {
	return &Publisher{
		client:    client,
		topic:     topic,
		interval:  interval,
		snapshots: make(chan entity.Snapshot, 1),
	}
}

func (p *Publisher) Observe(s entity.Snapshot) {
	if !p.last.IsZero() && s.Time.Sub(p.last) < p.interval {
		return
	}

	select {
	case p.snapshots <- s:
		p.last = s.Time
	default:
	}
}

// Run publishes observed snapshots until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case s := <-p.snapshots:
			if err := p.publish(s); err != nil {
				zap.S().Errorw("failed to publish snapshot", "topic", p.topic, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Publisher) publish(s entity.Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}

	return token.Error()
}
