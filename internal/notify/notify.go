// Package notify publishes trip field events to interested parties.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/models"
)

// Notification describes a committed field event.
type Notification struct {
	Kind       models.EventKind  `json:"kind"`
	TripID     string            `json:"trip_id"`
	TripCode   string            `json:"trip_code"`
	DriverID   string            `json:"driver_id"`
	Status     models.TripStatus `json:"status"`
	OccurredAt time.Time         `json:"occurred_at"`
	Location   models.Location   `json:"location"`
	DistanceKm float64           `json:"distance_km,omitempty"`
}

// Publisher delivers notifications.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Nop discards notifications.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Notification) error { return nil }

// Recorder keeps published notifications in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// Publish records n.
func (r *Recorder) Publish(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// MQTTPublisher publishes notifications as JSON to "<Topic>/<kind>".
type MQTTPublisher struct {
	Client  mqtt.Client
	Topic   string
	QoS     byte
	Timeout time.Duration
}

// ConnectMQTT connects to broker and returns a publisher on topic.
func ConnectMQTT(broker, clientID, topic string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	log.WithFields(log.Fields{"broker": broker, "topic": topic}).Info("Connected to MQTT broker")
	return &MQTTPublisher{Client: client, Topic: topic, QoS: 1, Timeout: 5 * time.Second}, nil
}

// Publish sends n and waits for the broker to acknowledge it.
func (p *MQTTPublisher) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	topic := p.Topic + "/" + string(n.Kind)
	token := p.Client.Publish(topic, p.QoS, false, payload)

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", topic, ctx.Err())
	case <-time.After(timeout):
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.Client.Disconnect(250)
}
