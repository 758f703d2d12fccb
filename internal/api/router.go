package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/samasante/scheduling-service/internal/config"
)

type RouterConfig struct {
	Availability Availability
	Booking      Booker
	Rules        RuleStore
	Appointments AppointmentReader
	Config       config.Config
	Logger       *zap.Logger
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Config.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Availability reads are open to the booking front end.
	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Get("/slots", getDailySlotsHandler(cfg.Availability, cfg.Config))
		r.Get("/slots/week", getWeekSlotsHandler(cfg.Availability, cfg.Config))
		r.Get("/slots/next", getNextAvailabilityHandler(cfg.Availability, cfg.Config))

		// Rule management is a doctor-side surface.
		r.Route("/rules", func(r chi.Router) {
			r.Use(RequireRole(cfg.Config.JWTSecret, RoleDoctor, RoleStaff))
			r.Get("/", listRulesHandler(cfg.Rules))
			r.Post("/", createRuleHandler(cfg.Rules))
			r.Delete("/{ruleID}", deleteRuleHandler(cfg.Rules))
		})
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Use(RequireRole(cfg.Config.JWTSecret, RoleDoctor, RoleStaff))
		r.Post("/", createAppointmentHandler(cfg.Booking, cfg.Config))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/status", transitionAppointmentHandler(cfg.Booking))
	})

	return r
}
