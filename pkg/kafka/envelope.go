package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire format for events published by the freight service.
// It carries CloudEvents-style metadata alongside the JSON payload so
// consumers can route on type without decoding the body.
type Envelope struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Subject         string          `json:"subject"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`

	// Extension attributes
	CorrelationID string `json:"correlationid,omitempty"`
	TraceParent   string `json:"traceparent,omitempty"`
	TraceState    string `json:"tracestate,omitempty"`
}

// NewEnvelope wraps a payload in an Envelope. The subject becomes the
// partition key, so events for the same subject stay ordered.
func NewEnvelope(eventType, source, subject string, occurredAt time.Time, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ID:              uuid.New().String(),
		Type:            eventType,
		Source:          source,
		Subject:         subject,
		Time:            occurredAt,
		DataContentType: "application/json",
		Data:            data,
	}, nil
}
