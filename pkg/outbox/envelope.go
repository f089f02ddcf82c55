package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event. System-generated events (the
// scheduler advancing dates) carry no actor.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// OrderDuePayload is the data carried by subscription_order_due events and
// consumed by the order-creation pipeline.
type OrderDuePayload struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	DeliveryDate   time.Time `json:"deliveryDate"`
	Quantity       int       `json:"quantity"`
	CustomerEmail  string    `json:"customerEmail,omitempty"`
}

// StatusChangedPayload is the data carried by lifecycle status events.
type StatusChangedPayload struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
}
