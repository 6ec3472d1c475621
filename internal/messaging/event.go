// Package messaging defines the queue envelope for commerce domain events.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags an envelope with its event type.
type Kind string

// Event kind constants. The set is closed: the router dispatches on these
// and treats anything else as unknown.
const (
	KindNewUser           Kind = "new_user"
	KindNewOrder          Kind = "new_order"
	KindNewProduct        Kind = "new_product"
	KindOrderStatusUpdate Kind = "order_status_update"
	KindDeleteOrder       Kind = "delete_order"
	KindDeleteProduct     Kind = "delete_product"
	KindDeleteUser        Kind = "delete_user"
)

// Known reports whether k is part of the closed kind set.
func (k Kind) Known() bool {
	switch k {
	case KindNewUser, KindNewOrder, KindNewProduct, KindOrderStatusUpdate,
		KindDeleteOrder, KindDeleteProduct, KindDeleteUser:
		return true
	}
	return false
}

// ErrValidation marks a recognized envelope whose payload is malformed or
// missing required fields. Such a message can never become valid, so the
// consumer dead-letters it instead of redelivering.
var ErrValidation = errors.New("invalid payload")

// Envelope is one queued message. The kind fully determines the payload
// shape; Raw keeps the original bytes so accepted events can be broadcast
// verbatim and payloads decoded per kind.
type Envelope struct {
	Kind Kind
	Raw  json.RawMessage
}

// DecodeEnvelope parses the kind tag out of a queued message. A failure here
// means the message is poison: not JSON at all, or carrying no type tag.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var head struct {
		Kind Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if head.Kind == "" {
		return nil, errors.New("decode envelope: missing type tag")
	}
	return &Envelope{Kind: head.Kind, Raw: json.RawMessage(data)}, nil
}

// CorrelationKey extracts the identifier used to serialize handling of
// related envelopes. Order events share their orderId; entity deletes use
// the entity id; everything else falls back to the empty key.
func (e *Envelope) CorrelationKey() string {
	var keys struct {
		OrderID   string `json:"orderId"`
		ProductID string `json:"productId"`
		UserID    string `json:"userId"`
	}
	_ = json.Unmarshal(e.Raw, &keys)
	switch {
	case keys.OrderID != "":
		return keys.OrderID
	case keys.ProductID != "":
		return keys.ProductID
	case keys.UserID != "":
		return keys.UserID
	}
	return ""
}

func (e *Envelope) decode(v interface{ Validate() error }) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return fmt.Errorf("%s: %s: %w", e.Kind, err, ErrValidation)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%s: %w", e.Kind, err)
	}
	return nil
}
