package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/NT710/willmyflightbelate/internal/types"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	f.subject = subj
	f.data = data
	if f.err != nil {
		return nil, f.err
	}
	return &nats.PubAck{Stream: streamName}, nil
}

func TestPublishPrediction(t *testing.T) {
	pub := &fakePublisher{}
	client := NewWithPublisher(pub)

	result := &types.PredictionResult{
		FlightNumber: "UA123",
		Probability:  52,
		EstimatedDelay: 30,
		Confidence:   78,
		Source:       "api",
		UpdatedAt:    time.Now(),
	}

	if err := client.PublishPrediction(result); err != nil {
		t.Fatalf("PublishPrediction() failed: %v", err)
	}

	if pub.subject != SubjectPredictionComputed {
		t.Errorf("published to %s, want %s", pub.subject, SubjectPredictionComputed)
	}

	var decoded types.PredictionResult
	if err := json.Unmarshal(pub.data, &decoded); err != nil {
		t.Fatalf("published payload is not valid JSON: %v", err)
	}
	if decoded.FlightNumber != "UA123" || decoded.Probability != 52 {
		t.Errorf("payload roundtrip mismatch: %+v", decoded)
	}
}

func TestPublishPrediction_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	client := NewWithPublisher(pub)

	err := client.PublishPrediction(&types.PredictionResult{FlightNumber: "UA123"})
	if err == nil {
		t.Fatal("expected error when publish fails")
	}
}

func TestClose_NilSafety(t *testing.T) {
	client := &Client{}
	client.Close()
}

func TestSubjectConstant(t *testing.T) {
	if SubjectPredictionComputed != "predictions.computed" {
		t.Errorf("unexpected subject: %s", SubjectPredictionComputed)
	}
}
