package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/NT710/willmyflightbelate/internal/types"
)

const (
	// SubjectPredictionComputed carries every freshly computed prediction.
	SubjectPredictionComputed = "predictions.computed"

	streamName = "PREDICTIONS"
	streamAge  = 24 * time.Hour
)

// JetStreamPublisher is the slice of the JetStream API the client uses.
// Allows injecting a fake for testing.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Client publishes prediction events to NATS JetStream so downstream
// consumers (dashboards, alerting) can react without polling.
type Client struct {
	conn *nats.Conn
	js   JetStreamPublisher
}

// New connects to NATS at url and ensures the prediction stream exists.
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{SubjectPredictionComputed},
		Storage:  nats.FileStorage,
		MaxAge:   streamAge,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// NewWithPublisher creates a client around an existing publisher. Used for
// testing.
func NewWithPublisher(js JetStreamPublisher) *Client {
	return &Client{js: js}
}

// PublishPrediction publishes a computed prediction event.
func (c *Client) PublishPrediction(result *types.PredictionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	_, err = c.js.Publish(SubjectPredictionComputed, data)
	if err != nil {
		return fmt.Errorf("failed to publish prediction: %w", err)
	}

	return nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
