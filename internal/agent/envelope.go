// Package agent runs the bill pipeline actors and moves typed envelopes
// between them, either in-process or over HTTP.
package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/billsplit/internal/common"
)

// Kind identifies the payload carried by an Envelope.
type Kind string

// Envelope kinds.
const (
	KindRequest  Kind = "bill_analysis_request"
	KindResponse Kind = "bill_analysis_response"
)

// Envelope is the unit of delivery between actors. Body holds the JSON
// encoded payload named by Kind.
type Envelope struct {
	SentAt    time.Time       `json:"sent_at"`
	Kind      Kind            `json:"kind"`
	To        string          `json:"to,omitempty"`
	From      string          `json:"from"`
	ReplyTo   string          `json:"reply_to,omitempty"`
	RequestID string          `json:"request_id"`
	Body      json.RawMessage `json:"body"`
}

// NewEnvelope encodes payload into a new envelope.
func NewEnvelope(kind Kind, from, replyTo, requestID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s: %w", kind, err)
	}
	return Envelope{
		Kind:      kind,
		From:      from,
		ReplyTo:   replyTo,
		RequestID: requestID,
		SentAt:    time.Now().UTC(),
		Body:      body,
	}, nil
}

// Decode unmarshals the body into v.
func (e Envelope) Decode(v any) error {
	if len(e.Body) == 0 {
		return fmt.Errorf("%w: %s envelope has no body", common.ErrValidation, e.Kind)
	}
	if err := json.Unmarshal(e.Body, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", common.ErrValidation, e.Kind, err)
	}
	return nil
}
