package subscriptions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

// NewEvent builds an audit entry for the subscription's history log.
func NewEvent(subscriptionID uuid.UUID, eventType enums.SubscriptionEventType, actor *uuid.UUID, params map[string]interface{}) *models.SubscriptionEvent {
	event := &models.SubscriptionEvent{
		SubscriptionID: subscriptionID,
		Type:           eventType,
		ActorUserID:    actor,
	}
	if len(params) > 0 {
		event.Parameters = datatypes.JSONMap(params)
	}
	return event
}

// DateUpdateEvents builds the pair of audit entries recorded whenever the
// upcoming delivery and order creation dates move, in that order.
func DateUpdateEvents(sub *models.Subscription, actor *uuid.UUID) []*models.SubscriptionEvent {
	return []*models.SubscriptionEvent{
		NewEvent(sub.ID, enums.SubscriptionEventUpcomingDeliveryDateUpdated, actor, map[string]interface{}{
			"upcoming_delivery_date": sub.UpcomingDeliveryDate.Format(time.RFC3339),
		}),
		NewEvent(sub.ID, enums.SubscriptionEventUpcomingOrderCreationDateUpdated, actor, map[string]interface{}{
			"upcoming_order_creation_date": sub.UpcomingOrderCreationDate.Format(time.RFC3339),
		}),
	}
}
