package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

// Subscription is the aggregate root of the recurrence engine. Dates are
// derived from the recurrence rule and only ever advance forward; all status
// mutations flow through the lifecycle service.
type Subscription struct {
	ID    uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Token string    `gorm:"column:token;size:36;not null;unique"`

	RecurrenceRule string    `gorm:"column:recurrence_rule;type:text;not null"`
	StartDate      time.Time `gorm:"column:start_date;not null"`

	UpcomingOrderCreationDate time.Time `gorm:"column:upcoming_order_creation_date;not null;index"`
	UpcomingDeliveryDate      time.Time `gorm:"column:upcoming_delivery_date;not null"`

	Status enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'draft';index"`

	ProductName      string     `gorm:"column:product_name;size:386;not null"`
	VariantName      string     `gorm:"column:variant_name;size:255;not null;default:''"`
	VariantID        *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Quantity         int        `gorm:"column:quantity;not null"`
	RequiresShipping bool       `gorm:"column:requires_shipping;not null;default:true"`

	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	UserEmail string     `gorm:"column:user_email;size:254;not null;default:''"`

	BillingAddressID  *uuid.UUID `gorm:"column:billing_address_id;type:uuid"`
	ShippingAddressID *uuid.UUID `gorm:"column:shipping_address_id;type:uuid"`

	CustomerNote    string `gorm:"column:customer_note;type:text;not null;default:''"`
	EndedWithReason string `gorm:"column:ended_with_reason;type:text;not null;default:''"`

	// Version implements the optimistic concurrency check guarding every
	// state-mutating write.
	Version int `gorm:"column:version;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CustomerEmail resolves the customer contact address, preferring the linked
// user's email over the stored fallback.
func (s *Subscription) CustomerEmail(user *User) string {
	if user != nil && user.Email != "" {
		return user.Email
	}
	return s.UserEmail
}
