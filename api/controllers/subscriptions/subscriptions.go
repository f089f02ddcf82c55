package subscriptions

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/api/responses"
	"github.com/angelmondragon/replenish-backend/api/validators"
	subsvc "github.com/angelmondragon/replenish-backend/internal/subscriptions"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
)

const actorHeader = "X-Actor-Id"

type createSubscriptionRequest struct {
	RecurrenceRule    string     `json:"recurrence_rule" validate:"required"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	ProductName       string     `json:"product_name" validate:"required"`
	VariantName       string     `json:"variant_name,omitempty"`
	VariantID         *uuid.UUID `json:"variant_id,omitempty"`
	Quantity          int        `json:"quantity" validate:"required,min=1"`
	RequiresShipping  *bool      `json:"requires_shipping,omitempty"`
	UserID            *uuid.UUID `json:"user_id,omitempty"`
	UserEmail         string     `json:"user_email,omitempty" validate:"omitempty,email"`
	BillingAddressID  *uuid.UUID `json:"billing_address_id,omitempty"`
	ShippingAddressID *uuid.UUID `json:"shipping_address_id,omitempty"`
	CustomerNote      string     `json:"customer_note,omitempty"`
}

type endSubscriptionRequest struct {
	Reason string `json:"reason,omitempty"`
}

type updateRuleRequest struct {
	RecurrenceRule string `json:"recurrence_rule" validate:"required"`
}

type updateShippingAddressRequest struct {
	ShippingAddressID uuid.UUID `json:"shipping_address_id" validate:"required"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type addNoteRequest struct {
	Message string `json:"message" validate:"required"`
}

type subscriptionResponse struct {
	ID                        uuid.UUID  `json:"id"`
	Token                     string     `json:"token"`
	Status                    string     `json:"status"`
	RecurrenceRule            string     `json:"recurrence_rule"`
	StartDate                 time.Time  `json:"start_date"`
	UpcomingDeliveryDate      *time.Time `json:"upcoming_delivery_date,omitempty"`
	UpcomingOrderCreationDate *time.Time `json:"upcoming_order_creation_date,omitempty"`
	ProductName               string     `json:"product_name"`
	VariantName               string     `json:"variant_name,omitempty"`
	VariantID                 *uuid.UUID `json:"variant_id,omitempty"`
	Quantity                  int        `json:"quantity"`
	RequiresShipping          bool       `json:"requires_shipping"`
	UserEmail                 string     `json:"user_email,omitempty"`
	BillingAddressID          *uuid.UUID `json:"billing_address_id,omitempty"`
	ShippingAddressID         *uuid.UUID `json:"shipping_address_id,omitempty"`
	CustomerNote              string     `json:"customer_note,omitempty"`
	EndedWithReason           string     `json:"ended_with_reason,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

type subscriptionEventResponse struct {
	ID             uint           `json:"id"`
	Type           string         `json:"type"`
	ActorUserID    *uuid.UUID     `json:"actor_user_id,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	SubscriptionID uuid.UUID      `json:"subscription_id"`
}

func Create(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requiresShipping := true
		if payload.RequiresShipping != nil {
			requiresShipping = *payload.RequiresShipping
		}
		var startDate time.Time
		if payload.StartDate != nil {
			startDate = *payload.StartDate
		}

		sub, err := svc.CreateDraft(r.Context(), subsvc.CreateDraftInput{
			RecurrenceRule:    payload.RecurrenceRule,
			StartDate:         startDate,
			ProductName:       payload.ProductName,
			VariantName:       payload.VariantName,
			VariantID:         payload.VariantID,
			Quantity:          payload.Quantity,
			RequiresShipping:  requiresShipping,
			UserID:            payload.UserID,
			UserEmail:         payload.UserEmail,
			BillingAddressID:  payload.BillingAddressID,
			ShippingAddressID: payload.ShippingAddressID,
			CustomerNote:      payload.CustomerNote,
			Actor:             actorFrom(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSubscriptionResponse(sub))
	}
}

func Get(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func GetByToken(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		sub, err := svc.GetByToken(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func List(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.SubscriptionStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseSubscriptionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		subs, err := svc.List(r.Context(), status, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]*subscriptionResponse, 0, len(subs))
		for i := range subs {
			out = append(out, newSubscriptionResponse(&subs[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func ListEvents(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.ListEvents(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]*subscriptionEventResponse, 0, len(events))
		for i := range events {
			out = append(out, newSubscriptionEventResponse(&events[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func Activate(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Activate(r.Context(), id, actorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func Pause(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Pause(r.Context(), id, actorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func End(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload endSubscriptionRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		sub, err := svc.End(r.Context(), id, payload.Reason, actorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func UpdateRecurrenceRule(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateRuleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.UpdateRecurrenceRule(r.Context(), id, payload.RecurrenceRule, actorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func UpdateShippingAddress(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateShippingAddressRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.UpdateShippingAddress(r.Context(), id, payload.ShippingAddressID, actorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func UpdateQuantity(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.UpdateQuantity(r.Context(), id, payload.Quantity, actorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func AddNote(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addNoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.AddNote(r.Context(), id, payload.Message, actorFrom(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func subscriptionID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "subscriptionId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid subscription id")
	}
	return id, nil
}

func actorFrom(r *http.Request) *uuid.UUID {
	raw := strings.TrimSpace(r.Header.Get(actorHeader))
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func newSubscriptionResponse(sub *models.Subscription) *subscriptionResponse {
	if sub == nil {
		return nil
	}
	resp := &subscriptionResponse{
		ID:                sub.ID,
		Token:             sub.Token,
		Status:            string(sub.Status),
		RecurrenceRule:    sub.RecurrenceRule,
		StartDate:         sub.StartDate,
		ProductName:       sub.ProductName,
		VariantName:       sub.VariantName,
		VariantID:         sub.VariantID,
		Quantity:          sub.Quantity,
		RequiresShipping:  sub.RequiresShipping,
		UserEmail:         sub.UserEmail,
		BillingAddressID:  sub.BillingAddressID,
		ShippingAddressID: sub.ShippingAddressID,
		CustomerNote:      sub.CustomerNote,
		EndedWithReason:   sub.EndedWithReason,
		CreatedAt:         sub.CreatedAt,
		UpdatedAt:         sub.UpdatedAt,
	}
	if !sub.UpcomingDeliveryDate.IsZero() {
		delivery := sub.UpcomingDeliveryDate
		resp.UpcomingDeliveryDate = &delivery
	}
	if !sub.UpcomingOrderCreationDate.IsZero() {
		creation := sub.UpcomingOrderCreationDate
		resp.UpcomingOrderCreationDate = &creation
	}
	return resp
}

func newSubscriptionEventResponse(event *models.SubscriptionEvent) *subscriptionEventResponse {
	if event == nil {
		return nil
	}
	return &subscriptionEventResponse{
		ID:             event.ID,
		Type:           string(event.Type),
		ActorUserID:    event.ActorUserID,
		Parameters:     map[string]any(event.Parameters),
		CreatedAt:      event.CreatedAt,
		SubscriptionID: event.SubscriptionID,
	}
}
