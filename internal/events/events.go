// Package events publishes ad and entitlement lifecycle events
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	AdSubmitted          = "ad.submitted"
	AdPublished          = "ad.published"
	AdRejected           = "ad.rejected"
	AdCancelled          = "ad.cancelled"
	AdExpired            = "ad.expired"
	SlotCleared          = "ad.slot_cleared"
	PlacementPurchased   = "ad.placement_purchased"
	EntitlementRenewed   = "entitlement.renewed"
	PaymentPersistFailed = "payment.persist_failed"
	PartialWrite         = "ad.partial_write"
)

// Publisher sends a serialized event. partitionKey keeps events for one
// account or request in order.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}

// Envelope wraps every event payload
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// Emit marshals data into an Envelope and publishes it
func Emit(ctx context.Context, p Publisher, eventType, partitionKey string, data any) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(Envelope{Type: eventType, OccurredAt: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return p.Publish(ctx, eventType, payload, partitionKey)
}

// Nop drops every event
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte, string) error { return nil }
