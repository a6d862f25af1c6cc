package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/priority-appointment-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Log     zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Service, cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service
	r.Route("/calendars", func(r chi.Router) {
		r.Post("/", createCalendarHandler(svc))
		r.Get("/", listCalendarsHandler(svc))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getCalendarHandler(svc))
			r.Post("/slots/generate", generateSlotsHandler(svc))
			r.Get("/slots", listSlotsHandler(svc))
			r.Post("/requests", submitRequestHandler(svc))
			r.Delete("/requests/{requestID}", withdrawRequestHandler(svc))
			r.Post("/process", processHandler(svc))
			r.Get("/appointments", listAppointmentsHandler(svc))
			r.Post("/appointments/{requestID}/cancel", cancelAppointmentHandler(svc))
			r.Post("/appointments/{requestID}/reschedule", rescheduleAppointmentHandler(svc))
			r.Post("/snapshot", saveSnapshotHandler(svc))
			r.Post("/restore", restoreSnapshotHandler(svc))
		})
	})
	r.Get("/requests/{requestID}", getRequestHandler(svc))

	return r
}
