package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

// SubscriptionEvent records an immutable audit entry in a subscription's
// history. Rows are never updated or reordered; listing is ascending by
// created_at with id as the tie-breaker.
type SubscriptionEvent struct {
	ID             uint                        `gorm:"column:id;primaryKey;autoIncrement"`
	SubscriptionID uuid.UUID                   `gorm:"column:subscription_id;type:uuid;not null;index"`
	Type           enums.SubscriptionEventType `gorm:"column:type;type:subscription_event_type;not null"`
	ActorUserID    *uuid.UUID                  `gorm:"column:actor_user_id;type:uuid"`
	Parameters     datatypes.JSONMap           `gorm:"column:parameters;type:jsonb"`
	CreatedAt      time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
