package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
)

func setupSubscriptionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	subscriptions := `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  token TEXT NOT NULL UNIQUE,
  recurrence_rule TEXT NOT NULL,
  start_date DATETIME NOT NULL,
  upcoming_order_creation_date DATETIME,
  upcoming_delivery_date DATETIME,
  status TEXT NOT NULL DEFAULT 'draft',
  product_name TEXT NOT NULL,
  variant_name TEXT NOT NULL DEFAULT '',
  variant_id TEXT,
  quantity INTEGER NOT NULL,
  requires_shipping INTEGER NOT NULL DEFAULT 1,
  user_id TEXT,
  user_email TEXT NOT NULL DEFAULT '',
  billing_address_id TEXT,
  shipping_address_id TEXT,
  customer_note TEXT NOT NULL DEFAULT '',
  ended_with_reason TEXT NOT NULL DEFAULT '',
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	subscriptionEvents := `
CREATE TABLE IF NOT EXISTS subscription_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  subscription_id TEXT NOT NULL,
  type TEXT NOT NULL,
  actor_user_id TEXT,
  parameters TEXT,
  created_at DATETIME
);`
	users := `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(subscriptions).Error)
	require.NoError(t, db.Exec(subscriptionEvents).Error)
	require.NoError(t, db.Exec(users).Error)
	return db
}

func seedSubscription(t *testing.T, repo Repository, status enums.SubscriptionStatus, creationDate time.Time) *models.Subscription {
	t.Helper()

	sub := &models.Subscription{
		ID:                        uuid.New(),
		Token:                     uuid.NewString(),
		RecurrenceRule:            "FREQ=WEEKLY",
		StartDate:                 time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpcomingOrderCreationDate: creationDate,
		UpcomingDeliveryDate:      creationDate.Add(48 * time.Hour),
		Status:                    status,
		ProductName:               "Coffee Beans 1kg",
		Quantity:                  1,
		RequiresShipping:          true,
	}
	require.NoError(t, repo.Create(context.Background(), sub))
	return sub
}

func TestRepoCreateAndFind(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	ctx := context.Background()

	sub := seedSubscription(t, repo, enums.SubscriptionStatusDraft, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	byID, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.Token, byID.Token)
	assert.Equal(t, enums.SubscriptionStatusDraft, byID.Status)

	byToken, err := repo.FindByToken(ctx, sub.Token)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, byToken.ID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepoUpdateOptimisticLock(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	ctx := context.Background()

	sub := seedSubscription(t, repo, enums.SubscriptionStatusDraft, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	first, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	stale, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)

	first.Status = enums.SubscriptionStatusActive
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, 1, first.Version)

	stale.Status = enums.SubscriptionStatusEnded
	err = repo.Update(ctx, stale)
	assert.True(t, errors.Is(err, ErrVersionConflict))

	reloaded, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, reloaded.Status)
	assert.Equal(t, 1, reloaded.Version)
}

func TestRepoListDue(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	ctx := context.Background()
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	overdue := seedSubscription(t, repo, enums.SubscriptionStatusActive, now.Add(-72*time.Hour))
	dueNow := seedSubscription(t, repo, enums.SubscriptionStatusActive, now)
	seedSubscription(t, repo, enums.SubscriptionStatusActive, now.Add(time.Hour))
	seedSubscription(t, repo, enums.SubscriptionStatusPaused, now.Add(-time.Hour))
	seedSubscription(t, repo, enums.SubscriptionStatusDraft, now.Add(-time.Hour))

	due, err := repo.ListDue(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, overdue.ID, due[0].ID)
	assert.Equal(t, dueNow.ID, due[1].ID)

	limited, err := repo.ListDue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, overdue.ID, limited[0].ID)

	count, err := repo.CountDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRepoListByStatus(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	seedSubscription(t, repo, enums.SubscriptionStatusActive, base)
	seedSubscription(t, repo, enums.SubscriptionStatusActive, base)
	seedSubscription(t, repo, enums.SubscriptionStatusEnded, base)

	active, err := repo.ListByStatus(ctx, enums.SubscriptionStatusActive, 10, 0)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	ended, err := repo.ListByStatus(ctx, enums.SubscriptionStatusEnded, 10, 0)
	require.NoError(t, err)
	assert.Len(t, ended, 1)
}

func TestRepoEventLogOrdering(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	ctx := context.Background()

	sub := seedSubscription(t, repo, enums.SubscriptionStatusDraft, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	other := seedSubscription(t, repo, enums.SubscriptionStatusDraft, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	sequence := []enums.SubscriptionEventType{
		enums.SubscriptionEventDraftCreated,
		enums.SubscriptionEventActivated,
		enums.SubscriptionEventUpcomingDeliveryDateUpdated,
		enums.SubscriptionEventUpcomingOrderCreationDateUpdated,
	}
	for _, eventType := range sequence {
		require.NoError(t, repo.AppendEvent(ctx, NewEvent(sub.ID, eventType, nil, nil)))
	}
	require.NoError(t, repo.AppendEvent(ctx, NewEvent(other.ID, enums.SubscriptionEventDraftCreated, nil, nil)))

	events, err := repo.ListEvents(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, events, len(sequence))
	for i, eventType := range sequence {
		assert.Equal(t, eventType, events[i].Type)
		assert.Equal(t, sub.ID, events[i].SubscriptionID)
	}
}

func TestRepoListAcrossStatuses(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	seedSubscription(t, repo, enums.SubscriptionStatusDraft, base)
	seedSubscription(t, repo, enums.SubscriptionStatusActive, base)
	seedSubscription(t, repo, enums.SubscriptionStatusEnded, base)

	all, err := repo.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestRepoResolveUser(t *testing.T) {
	db := setupSubscriptionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Email: "linked@example.com"}
	require.NoError(t, db.Create(user).Error)

	resolved, err := repo.ResolveUser(ctx, &user.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "linked@example.com", resolved.Email)

	missing := uuid.New()
	resolved, err = repo.ResolveUser(ctx, &missing)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	resolved, err = repo.ResolveUser(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestRepoEventParametersRoundTrip(t *testing.T) {
	repo := NewRepository(setupSubscriptionsTestDB(t))
	ctx := context.Background()

	sub := seedSubscription(t, repo, enums.SubscriptionStatusDraft, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	actor := uuid.New()

	event := NewEvent(sub.ID, enums.SubscriptionEventProductQuantityUpdated, &actor, map[string]interface{}{
		"quantity": 5,
	})
	require.NoError(t, repo.AppendEvent(ctx, event))

	events, err := repo.ListEvents(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].ActorUserID)
	assert.Equal(t, actor, *events[0].ActorUserID)
	quantity, ok := events[0].Parameters["quantity"].(json.Number)
	require.True(t, ok, "quantity parameter should scan back as a json.Number, got %T", events[0].Parameters["quantity"])
	got, err := quantity.Int64()
	require.NoError(t, err)
	assert.EqualValues(t, 5, got)
}
