package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/replenish-backend/api/controllers"
	subscriptioncontrollers "github.com/angelmondragon/replenish-backend/api/controllers/subscriptions"
	"github.com/angelmondragon/replenish-backend/api/middleware"
	subsvc "github.com/angelmondragon/replenish-backend/internal/subscriptions"
	"github.com/angelmondragon/replenish-backend/pkg/config"
	"github.com/angelmondragon/replenish-backend/pkg/db"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
	"github.com/angelmondragon/replenish-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	subscriptionsService subsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.Post("/", subscriptioncontrollers.Create(subscriptionsService, logg))
		r.Get("/", subscriptioncontrollers.List(subscriptionsService, logg))
		r.Get("/token/{token}", subscriptioncontrollers.GetByToken(subscriptionsService, logg))

		r.Route("/{subscriptionId}", func(r chi.Router) {
			r.Get("/", subscriptioncontrollers.Get(subscriptionsService, logg))
			r.Get("/events", subscriptioncontrollers.ListEvents(subscriptionsService, logg))
			r.Post("/activate", subscriptioncontrollers.Activate(subscriptionsService, logg))
			r.Post("/pause", subscriptioncontrollers.Pause(subscriptionsService, logg))
			r.Post("/end", subscriptioncontrollers.End(subscriptionsService, logg))
			r.Put("/recurrence-rule", subscriptioncontrollers.UpdateRecurrenceRule(subscriptionsService, logg))
			r.Put("/shipping-address", subscriptioncontrollers.UpdateShippingAddress(subscriptionsService, logg))
			r.Put("/quantity", subscriptioncontrollers.UpdateQuantity(subscriptionsService, logg))
			r.Post("/notes", subscriptioncontrollers.AddNote(subscriptionsService, logg))
		})
	})

	return r
}
