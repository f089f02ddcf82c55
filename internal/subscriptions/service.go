package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/internal/recurrence"
	"github.com/angelmondragon/replenish-backend/pkg/db"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the subscription lifecycle surface.
type Service interface {
	CreateDraft(ctx context.Context, input CreateDraftInput) (*models.Subscription, error)
	Activate(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*models.Subscription, error)
	Pause(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*models.Subscription, error)
	End(ctx context.Context, id uuid.UUID, reason string, actor *uuid.UUID) (*models.Subscription, error)
	UpdateRecurrenceRule(ctx context.Context, id uuid.UUID, rule string, actor *uuid.UUID) (*models.Subscription, error)
	UpdateShippingAddress(ctx context.Context, id, addressID uuid.UUID, actor *uuid.UUID) (*models.Subscription, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, actor *uuid.UUID) (*models.Subscription, error)
	AddNote(ctx context.Context, id uuid.UUID, note string, actor *uuid.UUID) (*models.Subscription, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetByToken(ctx context.Context, token string) (*models.Subscription, error)
	List(ctx context.Context, status *enums.SubscriptionStatus, limit, offset int) ([]models.Subscription, error)
	ListEvents(ctx context.Context, id uuid.UUID) ([]models.SubscriptionEvent, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	Outbox            outboxEmitter
	TransactionRunner txRunner
	OrderLeadTime     time.Duration
	Now               func() time.Time
}

// CreateDraftInput captures the data required to register a draft
// subscription.
type CreateDraftInput struct {
	RecurrenceRule    string
	StartDate         time.Time
	ProductName       string
	VariantName       string
	VariantID         *uuid.UUID
	Quantity          int
	RequiresShipping  bool
	UserID            *uuid.UUID
	UserEmail         string
	BillingAddressID  *uuid.UUID
	ShippingAddressID *uuid.UUID
	CustomerNote      string
	Actor             *uuid.UUID
}

type service struct {
	repo     Repository
	outbox   outboxEmitter
	txRunner txRunner
	leadTime time.Duration
	now      func() time.Time
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	leadTime := params.OrderLeadTime
	if leadTime <= 0 {
		leadTime = recurrence.DefaultOrderLeadTime
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		leadTime: leadTime,
		now:      now,
	}, nil
}

// CreateDraft registers a new subscription in DRAFT. No dates are computed and
// no orders are created until activation.
func (s *service) CreateDraft(ctx context.Context, input CreateDraftInput) (*models.Subscription, error) {
	if strings.TrimSpace(input.ProductName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.UserID == nil && strings.TrimSpace(input.UserEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a user id or email is required to identify the customer")
	}

	startDate := input.StartDate
	if startDate.IsZero() {
		startDate = s.now()
	}
	if _, err := recurrence.Parse(input.RecurrenceRule, startDate); err != nil {
		return nil, ruleError(err)
	}

	sub := &models.Subscription{
		ID:                uuid.New(),
		Token:             uuid.NewString(),
		RecurrenceRule:    strings.TrimSpace(input.RecurrenceRule),
		StartDate:         startDate,
		Status:            enums.SubscriptionStatusDraft,
		ProductName:       strings.TrimSpace(input.ProductName),
		VariantName:       strings.TrimSpace(input.VariantName),
		VariantID:         input.VariantID,
		Quantity:          input.Quantity,
		RequiresShipping:  input.RequiresShipping,
		UserID:            input.UserID,
		UserEmail:         strings.TrimSpace(input.UserEmail),
		BillingAddressID:  input.BillingAddressID,
		ShippingAddressID: input.ShippingAddressID,
		CustomerNote:      input.CustomerNote,
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, sub); err != nil {
			if db.IsUniqueViolation(err, "ux_subscriptions_token") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "subscription token already taken")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		return txRepo.AppendEvent(ctx, NewEvent(sub.ID, enums.SubscriptionEventDraftCreated, input.Actor, nil))
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Activate moves a draft or paused subscription into ACTIVE. Activating a
// draft computes the initial upcoming dates from the recurrence rule;
// resuming from paused leaves the stored dates untouched.
func (s *service) Activate(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*models.Subscription, error) {
	return s.mutate(ctx, id, func(tx *gorm.DB, txRepo Repository, sub *models.Subscription) error {
		if err := checkTransition(sub.Status, enums.SubscriptionStatusActive); err != nil {
			return err
		}

		fromDraft := sub.Status == enums.SubscriptionStatusDraft
		sub.Status = enums.SubscriptionStatusActive

		if fromDraft {
			if sub.RequiresShipping && sub.ShippingAddressID == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "shipping address required before activation")
			}
			rule, err := recurrence.Parse(sub.RecurrenceRule, sub.StartDate)
			if err != nil {
				return ruleError(err)
			}
			anchor := s.now()
			if sub.StartDate.After(anchor) {
				anchor = sub.StartDate
			}
			delivery, ok := rule.FirstOccurrence(anchor)
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "recurrence rule yields no upcoming occurrence")
			}
			sub.UpcomingDeliveryDate = delivery
			sub.UpcomingOrderCreationDate = recurrence.OrderCreationDateFor(delivery, s.leadTime)
		}

		if err := txRepo.AppendEvent(ctx, NewEvent(sub.ID, enums.SubscriptionEventActivated, actor, nil)); err != nil {
			return err
		}
		if fromDraft {
			for _, event := range DateUpdateEvents(sub, actor) {
				if err := txRepo.AppendEvent(ctx, event); err != nil {
					return err
				}
			}
		}

		return s.emitStatus(ctx, tx, sub, enums.EventSubscriptionActivated, "", actor)
	})
}

// Pause suspends order creation; the stored dates stay where they are.
func (s *service) Pause(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*models.Subscription, error) {
	return s.mutate(ctx, id, func(tx *gorm.DB, txRepo Repository, sub *models.Subscription) error {
		if err := checkTransition(sub.Status, enums.SubscriptionStatusPaused); err != nil {
			return err
		}
		sub.Status = enums.SubscriptionStatusPaused

		if err := txRepo.AppendEvent(ctx, NewEvent(sub.ID, enums.SubscriptionEventPaused, actor, nil)); err != nil {
			return err
		}
		return s.emitStatus(ctx, tx, sub, enums.EventSubscriptionPaused, "", actor)
	})
}

// End terminates the subscription. ENDED is terminal.
func (s *service) End(ctx context.Context, id uuid.UUID, reason string, actor *uuid.UUID) (*models.Subscription, error) {
	return s.mutate(ctx, id, func(tx *gorm.DB, txRepo Repository, sub *models.Subscription) error {
		if err := checkTransition(sub.Status, enums.SubscriptionStatusEnded); err != nil {
			return err
		}
		sub.Status = enums.SubscriptionStatusEnded
		sub.EndedWithReason = strings.TrimSpace(reason)

		var params map[string]interface{}
		if sub.EndedWithReason != "" {
			params = map[string]interface{}{"reason": sub.EndedWithReason}
		}
		if err := txRepo.AppendEvent(ctx, NewEvent(sub.ID, enums.SubscriptionEventEnded, actor, params)); err != nil {
			return err
		}
		return s.emitStatus(ctx, tx, sub, enums.EventSubscriptionEnded, sub.EndedWithReason, actor)
	})
}

// UpdateRecurrenceRule swaps the rule text on an active subscription and
// recomputes the upcoming dates from the new rule immediately. A rule with no
// future occurrence is rejected rather than silently ending the subscription.
func (s *service) UpdateRecurrenceRule(ctx context.Context, id uuid.UUID, ruleText string, actor *uuid.UUID) (*models.Subscription, error) {
	return s.mutate(ctx, id, func(tx *gorm.DB, txRepo Repository, sub *models.Subscription) error {
		if err := requireActive(sub, "update recurrence rule"); err != nil {
			return err
		}

		rule, err := recurrence.Parse(ruleText, sub.StartDate)
		if err != nil {
			return ruleError(err)
		}
		previous := sub.RecurrenceRule
		sub.RecurrenceRule = rule.Text()

		delivery, ok := rule.FirstOccurrence(s.now())
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "recurrence rule yields no upcoming occurrence")
		}
		sub.UpcomingDeliveryDate = delivery
		sub.UpcomingOrderCreationDate = recurrence.OrderCreationDateFor(delivery, s.leadTime)

		event := NewEvent(sub.ID, enums.SubscriptionEventRecurrenceRuleUpdated, actor, map[string]interface{}{
			"recurrence_rule":          sub.RecurrenceRule,
			"previous_recurrence_rule": previous,
		})
		if err := txRepo.AppendEvent(ctx, event); err != nil {
			return err
		}
		for _, event := range DateUpdateEvents(sub, actor) {
			if err := txRepo.AppendEvent(ctx, event); err != nil {
				return err
			}
		}
		return s.emitDates(ctx, tx, sub, actor)
	})
}

// UpdateShippingAddress points an active subscription at a different address
// and re-derives the order creation date from the stored delivery date, since
// a new destination can change the required lead.
func (s *service) UpdateShippingAddress(ctx context.Context, id, addressID uuid.UUID, actor *uuid.UUID) (*models.Subscription, error) {
	if addressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	return s.mutate(ctx, id, func(tx *gorm.DB, txRepo Repository, sub *models.Subscription) error {
		if err := requireActive(sub, "update shipping address"); err != nil {
			return err
		}
		if !sub.RequiresShipping {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription does not require shipping")
		}
		sub.ShippingAddressID = &addressID

		if err := txRepo.AppendEvent(ctx, NewEvent(sub.ID, enums.SubscriptionEventShippingAddressUpdated, actor, map[string]interface{}{
			"shipping_address_id": addressID.String(),
		})); err != nil {
			return err
		}

		creation := recurrence.OrderCreationDateFor(sub.UpcomingDeliveryDate, s.leadTime)
		if creation.Equal(sub.UpcomingOrderCreationDate) {
			return nil
		}
		sub.UpcomingOrderCreationDate = creation
		event := NewEvent(sub.ID, enums.SubscriptionEventUpcomingOrderCreationDateUpdated, actor, map[string]interface{}{
			"upcoming_order_creation_date": creation.Format(time.RFC3339),
		})
		if err := txRepo.AppendEvent(ctx, event); err != nil {
			return err
		}
		return s.emitDates(ctx, tx, sub, actor)
	})
}

// UpdateQuantity changes how many units each recurring order contains.
func (s *service) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, actor *uuid.UUID) (*models.Subscription, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	return s.mutate(ctx, id, func(tx *gorm.DB, txRepo Repository, sub *models.Subscription) error {
		if err := requireActive(sub, "update quantity"); err != nil {
			return err
		}
		previous := sub.Quantity
		sub.Quantity = quantity

		return txRepo.AppendEvent(ctx, NewEvent(sub.ID, enums.SubscriptionEventProductQuantityUpdated, actor, map[string]interface{}{
			"quantity":          quantity,
			"previous_quantity": previous,
		}))
	})
}

// AddNote records a customer-visible note. Notes are allowed in every state,
// including ENDED, since they never affect scheduling.
func (s *service) AddNote(ctx context.Context, id uuid.UUID, note string, actor *uuid.UUID) (*models.Subscription, error) {
	trimmed := strings.TrimSpace(note)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note message is required")
	}
	return s.mutate(ctx, id, func(tx *gorm.DB, txRepo Repository, sub *models.Subscription) error {
		sub.CustomerNote = trimmed
		return txRepo.AppendEvent(ctx, NewEvent(sub.ID, enums.SubscriptionEventNoteAdded, actor, map[string]interface{}{
			"message": trimmed,
		}))
	})
}

// Get loads a subscription by id.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return sub, nil
}

// GetByToken loads a subscription by its customer-facing token.
func (s *service) GetByToken(ctx context.Context, token string) (*models.Subscription, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	sub, err := s.repo.FindByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, mapLookupError(err)
	}
	return sub, nil
}

// List returns subscriptions, optionally scoped to a single status.
func (s *service) List(ctx context.Context, status *enums.SubscriptionStatus, limit, offset int) ([]models.Subscription, error) {
	if status != nil {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *status))
		}
		subs, err := s.repo.ListByStatus(ctx, *status, limit, offset)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
		}
		return subs, nil
	}

	subs, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	return subs, nil
}

// ListEvents returns the subscription's full history, oldest first.
func (s *service) ListEvents(ctx context.Context, id uuid.UUID) ([]models.SubscriptionEvent, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscription events")
	}
	return events, nil
}

// mutate loads the subscription inside a transaction, applies fn and persists
// with the optimistic version check.
func (s *service) mutate(ctx context.Context, id uuid.UUID, fn func(tx *gorm.DB, txRepo Repository, sub *models.Subscription) error) (*models.Subscription, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}

	var sub *models.Subscription
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		loaded, err := txRepo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}

		if err := fn(tx, txRepo, loaded); err != nil {
			return err
		}

		if err := txRepo.Update(ctx, loaded); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "subscription changed, retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
		}

		sub = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, sub *models.Subscription, eventType enums.OutboxEventType, reason string, actor *uuid.UUID) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Actor:         actorRef(actor),
		Data: outbox.StatusChangedPayload{
			SubscriptionID: sub.ID,
			Status:         sub.Status.String(),
			Reason:         reason,
		},
		Version:    1,
		OccurredAt: s.now(),
	})
}

func (s *service) emitDates(ctx context.Context, tx *gorm.DB, sub *models.Subscription, actor *uuid.UUID) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionDatesUpdated,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Actor:         actorRef(actor),
		Data: map[string]interface{}{
			"subscriptionId":            sub.ID.String(),
			"upcomingDeliveryDate":      sub.UpcomingDeliveryDate,
			"upcomingOrderCreationDate": sub.UpcomingOrderCreationDate,
		},
		Version:    1,
		OccurredAt: s.now(),
	})
}

func actorRef(actor *uuid.UUID) *outbox.ActorRef {
	if actor == nil {
		return nil
	}
	return &outbox.ActorRef{UserID: *actor}
}

func requireActive(sub *models.Subscription, action string) error {
	if sub.Status != enums.SubscriptionStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s while %s", action, sub.Status))
	}
	return nil
}

func ruleError(err error) error {
	if errors.Is(err, recurrence.ErrUnsupported) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported recurrence rule")
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recurrence rule")
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
}
