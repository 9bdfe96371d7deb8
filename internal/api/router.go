package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicore/availability-booking/internal/booking"
	"github.com/clinicore/availability-booking/internal/schedule"
)

type RouterConfig struct {
	Schedules *schedule.Service
	Bookings  *booking.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Log       zerolog.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", createScheduleHandler(cfg.Schedules))
		r.Route("/{scheduleID}", func(r chi.Router) {
			r.Get("/", getScheduleHandler(cfg.Schedules))
			r.Post("/expand", expandScheduleHandler(cfg.Schedules))
			r.Post("/status", setScheduleStatusHandler(cfg.Schedules))

			r.Post("/dates", createDateHandler(cfg.Schedules))
			r.Route("/dates/{dateID}", func(r chi.Router) {
				r.Post("/open", openDateHandler(cfg.Schedules))
				r.Post("/close", closeDateHandler(cfg.Schedules))
				r.Patch("/", editDateHandler(cfg.Schedules))
				r.Delete("/", deleteDateHandler(cfg.Schedules))
			})

			r.Post("/slots", createSlotHandler(cfg.Schedules))
			r.Route("/slots/{slotID}", func(r chi.Router) {
				r.Post("/open", openSlotHandler(cfg.Schedules))
				r.Post("/close", closeSlotHandler(cfg.Schedules))
				r.Patch("/", editSlotHandler(cfg.Schedules))
				r.Delete("/", deleteSlotHandler(cfg.Schedules))
			})
		})
	})

	r.Route("/availability", func(r chi.Router) {
		r.Get("/dates", listDatesHandler(cfg.Schedules))
		r.Get("/slots", listSlotsHandler(cfg.Schedules))
		r.Get("/check", checkAvailabilityHandler(cfg.Schedules))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", bookAppointmentHandler(cfg.Bookings))
		r.Get("/{id}", getAppointmentHandler(cfg.Bookings))
		r.Post("/{id}/reschedule", rescheduleAppointmentHandler(cfg.Bookings))
		r.Post("/{id}/status", setAppointmentStatusHandler(cfg.Bookings))
		r.Delete("/{id}", deleteAppointmentHandler(cfg.Bookings))
	})

	return r
}
