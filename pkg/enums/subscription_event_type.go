package enums

import "fmt"

// SubscriptionEventType labels an audit event in a subscription's history.
type SubscriptionEventType string

const (
	SubscriptionEventDraftCreated SubscriptionEventType = "draft_created"
	SubscriptionEventActivated    SubscriptionEventType = "activated"

	SubscriptionEventRecurrenceRuleUpdated  SubscriptionEventType = "recurrence_rule_updated"
	SubscriptionEventShippingAddressUpdated SubscriptionEventType = "shipping_address_updated"
	SubscriptionEventProductQuantityUpdated SubscriptionEventType = "product_quantity_updated"

	SubscriptionEventUpcomingOrderDraftCreated SubscriptionEventType = "upcoming_order_draft_created"
	SubscriptionEventUpcomingOrderConfirmed    SubscriptionEventType = "upcoming_order_confirmed"
	SubscriptionEventLatestOrderDelivered      SubscriptionEventType = "latest_order_delivered"
	SubscriptionEventUpcomingOrderCancelled    SubscriptionEventType = "upcoming_order_cancelled"

	SubscriptionEventUpcomingDeliveryDateUpdated      SubscriptionEventType = "upcoming_delivery_date_updated"
	SubscriptionEventUpcomingOrderCreationDateUpdated SubscriptionEventType = "upcoming_order_creation_date_updated"

	SubscriptionEventPaused SubscriptionEventType = "paused"
	SubscriptionEventEnded  SubscriptionEventType = "ended"

	SubscriptionEventEmailSent SubscriptionEventType = "email_sent"
	SubscriptionEventNoteAdded SubscriptionEventType = "note_added"
	SubscriptionEventOther     SubscriptionEventType = "other"
)

var validSubscriptionEventTypes = []SubscriptionEventType{
	SubscriptionEventDraftCreated,
	SubscriptionEventActivated,
	SubscriptionEventRecurrenceRuleUpdated,
	SubscriptionEventShippingAddressUpdated,
	SubscriptionEventProductQuantityUpdated,
	SubscriptionEventUpcomingOrderDraftCreated,
	SubscriptionEventUpcomingOrderConfirmed,
	SubscriptionEventLatestOrderDelivered,
	SubscriptionEventUpcomingOrderCancelled,
	SubscriptionEventUpcomingDeliveryDateUpdated,
	SubscriptionEventUpcomingOrderCreationDateUpdated,
	SubscriptionEventPaused,
	SubscriptionEventEnded,
	SubscriptionEventEmailSent,
	SubscriptionEventNoteAdded,
	SubscriptionEventOther,
}

// String implements fmt.Stringer.
func (t SubscriptionEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t SubscriptionEventType) IsValid() bool {
	for _, candidate := range validSubscriptionEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseSubscriptionEventType converts raw input into a SubscriptionEventType.
func ParseSubscriptionEventType(value string) (SubscriptionEventType, error) {
	for _, candidate := range validSubscriptionEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription event type %q", value)
}
