package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	subsvc "github.com/angelmondragon/replenish-backend/internal/subscriptions"
	"github.com/angelmondragon/replenish-backend/pkg/config"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubSubscriptionsService struct {
	createDraft func(ctx context.Context, input subsvc.CreateDraftInput) (*models.Subscription, error)
	get         func(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
}

// Activate implements [subscriptions.Service].
func (s stubSubscriptionsService) Activate(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*models.Subscription, error) {
	panic("unimplemented")
}

// Pause implements [subscriptions.Service].
func (s stubSubscriptionsService) Pause(ctx context.Context, id uuid.UUID, actor *uuid.UUID) (*models.Subscription, error) {
	panic("unimplemented")
}

// End implements [subscriptions.Service].
func (s stubSubscriptionsService) End(ctx context.Context, id uuid.UUID, reason string, actor *uuid.UUID) (*models.Subscription, error) {
	panic("unimplemented")
}

// UpdateRecurrenceRule implements [subscriptions.Service].
func (s stubSubscriptionsService) UpdateRecurrenceRule(ctx context.Context, id uuid.UUID, rule string, actor *uuid.UUID) (*models.Subscription, error) {
	panic("unimplemented")
}

// UpdateShippingAddress implements [subscriptions.Service].
func (s stubSubscriptionsService) UpdateShippingAddress(ctx context.Context, id, addressID uuid.UUID, actor *uuid.UUID) (*models.Subscription, error) {
	panic("unimplemented")
}

// UpdateQuantity implements [subscriptions.Service].
func (s stubSubscriptionsService) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int, actor *uuid.UUID) (*models.Subscription, error) {
	panic("unimplemented")
}

// AddNote implements [subscriptions.Service].
func (s stubSubscriptionsService) AddNote(ctx context.Context, id uuid.UUID, note string, actor *uuid.UUID) (*models.Subscription, error) {
	panic("unimplemented")
}

// GetByToken implements [subscriptions.Service].
func (s stubSubscriptionsService) GetByToken(ctx context.Context, token string) (*models.Subscription, error) {
	panic("unimplemented")
}

// List implements [subscriptions.Service].
func (s stubSubscriptionsService) List(ctx context.Context, status *enums.SubscriptionStatus, limit, offset int) ([]models.Subscription, error) {
	return nil, nil
}

// ListEvents implements [subscriptions.Service].
func (s stubSubscriptionsService) ListEvents(ctx context.Context, id uuid.UUID) ([]models.SubscriptionEvent, error) {
	panic("unimplemented")
}

func (s stubSubscriptionsService) CreateDraft(ctx context.Context, input subsvc.CreateDraftInput) (*models.Subscription, error) {
	if s.createDraft != nil {
		return s.createDraft(ctx, input)
	}
	return nil, nil
}

func (s stubSubscriptionsService) Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
	}
}

func newTestRouter(svc subsvc.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		testConfig(),
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		svc,
	)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(stubSubscriptionsService{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Replenish-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestCreateSubscriptionRouteWired(t *testing.T) {
	created := &models.Subscription{
		ID:             uuid.New(),
		Token:          uuid.NewString(),
		RecurrenceRule: "FREQ=MONTHLY",
		StartDate:      time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:         enums.SubscriptionStatusDraft,
		ProductName:    "Dog Food 12kg",
		Quantity:       1,
	}
	svc := stubSubscriptionsService{
		createDraft: func(ctx context.Context, input subsvc.CreateDraftInput) (*models.Subscription, error) {
			return created, nil
		},
	}
	router := newTestRouter(svc)

	body := `{"recurrence_rule":"FREQ=MONTHLY","product_name":"Dog Food 12kg","quantity":1,"user_email":"customer@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRequestIDPropagated(t *testing.T) {
	svc := stubSubscriptionsService{
		get: func(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
			return &models.Subscription{ID: id, Status: enums.SubscriptionStatusDraft, Quantity: 1}, nil
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/"+uuid.NewString(), nil)
	req.Header.Set("X-Request-Id", "req-123")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}

func TestPanicRecovered(t *testing.T) {
	router := newTestRouter(stubSubscriptionsService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/"+uuid.NewString()+"/events", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 from recovered panic got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("expected internal_error code, got %q", envelope.Error.Code)
	}
}
