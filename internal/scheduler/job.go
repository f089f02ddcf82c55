package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/internal/recurrence"
	"github.com/angelmondragon/replenish-backend/internal/subscriptions"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/metrics"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
)

const (
	// ExhaustedReason is recorded when a subscription ends because its rule
	// has no further occurrences.
	ExhaustedReason = "recurrence exhausted"

	defaultBatchLimit = 250
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// DueScanJobParams configures the due-subscription scan job.
type DueScanJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repo          subscriptions.Repository
	Outbox        outboxEmitter
	Metrics       *metrics.CronJobMetrics
	OrderLeadTime time.Duration
	BatchLimit    int
	Now           func() time.Time
}

// NewDueScanJob builds the job that drives recurring order creation.
func NewDueScanJob(params DueScanJobParams) (*DueScanJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	leadTime := params.OrderLeadTime
	if leadTime <= 0 {
		leadTime = recurrence.DefaultOrderLeadTime
	}
	limit := params.BatchLimit
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &DueScanJob{
		logg:     params.Logger,
		db:       params.DB,
		repo:     params.Repo,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		leadTime: leadTime,
		limit:    limit,
		now:      now,
	}, nil
}

// DueScanJob finds active subscriptions whose order creation date has passed,
// emits an order-due event for each and moves its dates to the next
// occurrence. Subscriptions whose rule is exhausted are ended instead.
type DueScanJob struct {
	logg     *logger.Logger
	db       txRunner
	repo     subscriptions.Repository
	outbox   outboxEmitter
	metrics  *metrics.CronJobMetrics
	leadTime time.Duration
	limit    int
	now      func() time.Time
}

func (j *DueScanJob) Name() string { return "subscription-due-scan" }

func (j *DueScanJob) Run(ctx context.Context) error {
	logCtx := j.logg.WithField(ctx, "job", j.Name())
	now := j.now()

	if j.metrics != nil {
		if backlog, err := j.repo.CountDue(logCtx, now); err == nil {
			j.metrics.SetDueBacklog(j.Name(), int(backlog))
		}
	}

	due, err := j.repo.ListDue(logCtx, now, j.limit)
	if err != nil {
		return fmt.Errorf("list due subscriptions: %w", err)
	}

	var errs error
	processed := 0
	ended := 0
	for i := range due {
		wasEnded, err := j.processSubscription(logCtx, due[i].ID, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", due[i].ID, err))
			continue
		}
		processed++
		if wasEnded {
			ended++
		}
	}

	reportCtx := j.logg.WithFields(logCtx, map[string]any{
		"candidates": len(due),
		"processed":  processed,
		"ended":      ended,
	})
	j.logg.Info(reportCtx, "due subscription scan complete")
	return errs
}

// processSubscription handles one due subscription in its own transaction so
// a failure never blocks the rest of the batch.
func (j *DueScanJob) processSubscription(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	ctx = j.logg.WithSubscriptionID(ctx, id.String())
	ended := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := j.repo.WithTx(tx)

		sub, err := txRepo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		// Reload under the transaction: a concurrent pause, end or scan may
		// have taken the subscription out of the due set.
		if sub.Status != enums.SubscriptionStatusActive || sub.UpcomingOrderCreationDate.After(now) {
			return nil
		}

		user, err := txRepo.ResolveUser(ctx, sub.UserID)
		if err != nil {
			return fmt.Errorf("resolve customer: %w", err)
		}
		if err := j.emitOrderDue(ctx, tx, sub, sub.CustomerEmail(user)); err != nil {
			return err
		}
		if err := txRepo.AppendEvent(ctx, subscriptions.NewEvent(sub.ID, enums.SubscriptionEventUpcomingOrderDraftCreated, nil, map[string]interface{}{
			"delivery_date": sub.UpcomingDeliveryDate.Format(time.RFC3339),
			"quantity":      sub.Quantity,
		})); err != nil {
			return err
		}

		rule, err := recurrence.Parse(sub.RecurrenceRule, sub.StartDate)
		if err != nil {
			return fmt.Errorf("stored rule unparsable: %w", err)
		}

		next, ok := rule.NextOccurrence(sub.UpcomingDeliveryDate)
		if ok {
			sub.UpcomingDeliveryDate = next
			sub.UpcomingOrderCreationDate = recurrence.OrderCreationDateFor(next, j.leadTime)
			for _, event := range subscriptions.DateUpdateEvents(sub, nil) {
				if err := txRepo.AppendEvent(ctx, event); err != nil {
					return err
				}
			}
		} else {
			sub.Status = enums.SubscriptionStatusEnded
			sub.EndedWithReason = ExhaustedReason
			ended = true
			if err := txRepo.AppendEvent(ctx, subscriptions.NewEvent(sub.ID, enums.SubscriptionEventEnded, nil, map[string]interface{}{
				"reason": ExhaustedReason,
			})); err != nil {
				return err
			}
			if err := j.emitEnded(ctx, tx, sub); err != nil {
				return err
			}
		}

		return txRepo.Update(ctx, sub)
	})
	if err != nil {
		return false, err
	}
	return ended, nil
}

func (j *DueScanJob) emitOrderDue(ctx context.Context, tx *gorm.DB, sub *models.Subscription, customerEmail string) error {
	return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionOrderDue,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Data: outbox.OrderDuePayload{
			SubscriptionID: sub.ID,
			DeliveryDate:   sub.UpcomingDeliveryDate,
			Quantity:       sub.Quantity,
			CustomerEmail:  customerEmail,
		},
		Version:    1,
		OccurredAt: j.now(),
	})
}

func (j *DueScanJob) emitEnded(ctx context.Context, tx *gorm.DB, sub *models.Subscription) error {
	return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionEnded,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.ID,
		Data: outbox.StatusChangedPayload{
			SubscriptionID: sub.ID,
			Status:         sub.Status.String(),
			Reason:         sub.EndedWithReason,
		},
		Version:    1,
		OccurredAt: j.now(),
	})
}
