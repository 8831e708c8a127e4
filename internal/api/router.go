package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicbook/scheduling/internal/booking"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
	Log     zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Provider schedule
	r.Get("/providers/{id}/slots", listSlotsHandler(cfg.Service))
	r.Put("/providers/{id}/availability", setAvailabilityHandler(cfg.Service))

	// Appointments
	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Get("/appointments", listAppointmentsHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/confirm", transitionHandler(func(req *http.Request, id, actor uuid.UUID) (*booking.Appointment, error) {
		return cfg.Service.Confirm(req.Context(), id, actor)
	}))
	r.Post("/appointments/{id}/cancel", transitionHandler(func(req *http.Request, id, actor uuid.UUID) (*booking.Appointment, error) {
		return cfg.Service.Cancel(req.Context(), id, actor)
	}))
	r.Post("/appointments/{id}/complete", transitionHandler(func(req *http.Request, id, actor uuid.UUID) (*booking.Appointment, error) {
		return cfg.Service.Complete(req.Context(), id, actor)
	}))
	r.Post("/appointments/{id}/no-show", transitionHandler(func(req *http.Request, id, actor uuid.UUID) (*booking.Appointment, error) {
		return cfg.Service.MarkNoShow(req.Context(), id, actor)
	}))
	r.Post("/appointments/{id}/notes", attachNotesHandler(cfg.Service))
	r.Patch("/appointments/{id}/status", changeStatusHandler(cfg.Service))

	return r
}
