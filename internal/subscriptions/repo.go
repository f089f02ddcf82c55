package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

// ErrVersionConflict signals that a concurrent writer advanced the row's
// version between read and write.
var ErrVersionConflict = errors.New("subscription was modified concurrently")

// Repository is the persistence surface for subscriptions and their event
// history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, sub *models.Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindByToken(ctx context.Context, token string) (*models.Subscription, error)
	// Update persists every mutable field, guarded by the optimistic version
	// check. On success the in-memory version is bumped to match the row.
	Update(ctx context.Context, sub *models.Subscription) error
	List(ctx context.Context, limit, offset int) ([]models.Subscription, error)
	ListByStatus(ctx context.Context, status enums.SubscriptionStatus, limit, offset int) ([]models.Subscription, error)
	// ResolveUser loads the linked user, or nil when the reference is absent
	// or dangling.
	ResolveUser(ctx context.Context, id *uuid.UUID) (*models.User, error)

	// ListDue returns active subscriptions whose upcoming order creation date
	// has passed, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error)
	CountDue(ctx context.Context, now time.Time) (int64, error)

	AppendEvent(ctx context.Context, event *models.SubscriptionEvent) error
	ListEvents(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionEvent, error)
}

type repository struct {
	conn *gorm.DB
}

// NewRepository builds a Repository on the shared connection.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{conn: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{conn: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.conn.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.conn.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByToken(ctx context.Context, token string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.conn.WithContext(ctx).First(&sub, "token = ?", token).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) Update(ctx context.Context, sub *models.Subscription) error {
	updates := map[string]interface{}{
		"recurrence_rule":              sub.RecurrenceRule,
		"upcoming_order_creation_date": sub.UpcomingOrderCreationDate,
		"upcoming_delivery_date":       sub.UpcomingDeliveryDate,
		"status":                       sub.Status,
		"quantity":                     sub.Quantity,
		"shipping_address_id":          sub.ShippingAddressID,
		"billing_address_id":           sub.BillingAddressID,
		"customer_note":                sub.CustomerNote,
		"ended_with_reason":            sub.EndedWithReason,
		"user_email":                   sub.UserEmail,
		"version":                      sub.Version + 1,
	}

	res := r.conn.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("id = ? AND version = ?", sub.ID, sub.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}

	sub.Version++
	return nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := r.conn.WithContext(ctx).
		Order("created_at ASC").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.SubscriptionStatus, limit, offset int) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := r.conn.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := r.conn.WithContext(ctx).
		Where("status = ? AND upcoming_order_creation_date <= ?", enums.SubscriptionStatusActive, now).
		Order("upcoming_order_creation_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) CountDue(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.conn.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND upcoming_order_creation_date <= ?", enums.SubscriptionStatusActive, now).
		Count(&count).Error
	return count, err
}

func (r *repository) ResolveUser(ctx context.Context, id *uuid.UUID) (*models.User, error) {
	if id == nil {
		return nil, nil
	}
	var user models.User
	err := r.conn.WithContext(ctx).First(&user, "id = ?", *id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) AppendEvent(ctx context.Context, event *models.SubscriptionEvent) error {
	return r.conn.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionEvent, error) {
	var events []models.SubscriptionEvent
	err := r.conn.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
