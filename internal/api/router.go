package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tcioe/appointment-service/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/appointments", func(r chi.Router) {
		// Public surface
		r.Get("/categories", listCategoriesHandler(cfg.Service))
		r.Get("/slots", listSlotsHandler(cfg.Service))
		r.Post("/otp/request", requestOTPHandler(cfg.Service))
		r.Post("/otp/verify", verifyOTPHandler(cfg.Service))
		r.Post("/book", bookHandler(cfg.Service))
		r.Get("/details/{token}", detailsHandler(cfg.Service))

		// Admin surface, gated on a gateway-asserted principal
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequirePrincipal)
			r.Get("/list", adminListHandler(cfg.Service))
			r.Patch("/{id}", adminTransitionHandler(cfg.Service))
			r.Get("/{id}/history", adminHistoryHandler(cfg.Service))

			r.Post("/categories", adminCreateCategoryHandler(cfg.Service))
			r.Patch("/categories/{id}", adminUpdateCategoryHandler(cfg.Service))
			r.Post("/slots", adminCreateSlotHandler(cfg.Service))
			r.Patch("/slots/{id}", adminUpdateSlotHandler(cfg.Service))
		})
	})

	return r
}
