package events

import (
	"context"
	"encoding/json"
	"time"
)

// Topics published by the lifecycle engine. Consumers that cache derived
// state (the stats aggregator, external read models) subscribe to these for
// invalidation.
const (
	TopicMintSubmitted       = "lifecycle.mint.submitted"
	TopicExchangeSubmitted   = "lifecycle.exchange.submitted"
	TopicAuditDecided        = "lifecycle.audit.decided"
	TopicCertificateIssued   = "lifecycle.certificate.issued"
	TopicCertificateRedeemed = "lifecycle.certificate.redeemed"
	TopicOwnershipChanged    = "lifecycle.certificate.transferred"
)

type Event struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

type Handler func(ctx context.Context, e Event)

type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(topic string, h Handler) (unsubscribe func(), err error)
	Close() error
}
