// Package httpapi is the JSON HTTP surface of the booking backend.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bmizerany/pat"
	"github.com/google/uuid"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"booking/backend/internal/domain"
	"booking/backend/internal/service/appointments"
	"booking/backend/internal/service/sessions"
	"booking/backend/internal/service/users"
)

type appointmentsService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Cancel(ctx context.Context, appointmentID uuid.UUID, requesterID int64) (domain.Appointment, error)
	ListForRequester(ctx context.Context, requesterID int64, page int) ([]appointments.RequesterAppointment, error)
	ProviderSchedule(ctx context.Context, providerID int64, day time.Time) ([]domain.Appointment, error)
	ProviderAvailability(ctx context.Context, providerID int64, day time.Time) ([]appointments.DaySlot, error)
	Location() *time.Location
}

type usersService interface {
	Create(ctx context.Context, in users.CreateInput) (domain.User, error)
	Update(ctx context.Context, in users.UpdateInput) (domain.User, error)
	ListProviders(ctx context.Context) ([]domain.User, error)
}

type sessionsService interface {
	Create(ctx context.Context, email, password string) (sessions.Session, error)
}

type notificationsService interface {
	List(ctx context.Context, userID int64) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID int64) (domain.Notification, error)
}

type tokenVerifier interface {
	Verify(accessToken string) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Appointments  appointmentsService
	Users         usersService
	Sessions      sessionsService
	Notifications notificationsService
	Tokens        tokenVerifier
	Health        pinger
	// BookingLimiter throttles appointment creation. Nil disables it.
	BookingLimiter *RateLimiter

	AllowedOrigins []string
	FilesBaseURL   string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

type Server struct {
	appointments  appointmentsService
	users         usersService
	sessions      sessionsService
	notifications notificationsService
	tokens        tokenVerifier
	health        pinger
	limiter       *RateLimiter

	allowedOrigins []string
	filesBaseURL   string
	requestTimeout time.Duration
	log            *slog.Logger
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 10 * time.Second
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}
	return &Server{
		appointments:   d.Appointments,
		users:          d.Users,
		sessions:       d.Sessions,
		notifications:  d.Notifications,
		tokens:         d.Tokens,
		health:         d.Health,
		limiter:        d.BookingLimiter,
		allowedOrigins: d.AllowedOrigins,
		filesBaseURL:   d.FilesBaseURL,
		requestTimeout: d.RequestTimeout,
		log:            d.Logger.With(slog.String("component", "http")),
	}
}

func (s *Server) Routes() http.Handler {
	standard := alice.New(s.recoverPanic, s.logRequest, s.requestTimeoutMiddleware, secureHeaders, makeResponseJSON)
	authed := standard.Append(s.requireAuth)
	booking := authed
	if s.limiter != nil {
		booking = authed.Append(s.limiter.Middleware(s.log))
	}

	mux := pat.New()

	mux.Post("/users", standard.ThenFunc(s.createUser))
	mux.Put("/users", authed.ThenFunc(s.updateUser))
	mux.Post("/sessions", standard.ThenFunc(s.createSession))

	mux.Get("/providers", authed.ThenFunc(s.listProviders))
	mux.Get("/providers/:id/available", authed.ThenFunc(s.providerAvailability))

	mux.Get("/schedule", authed.ThenFunc(s.providerSchedule))

	mux.Get("/notifications", authed.ThenFunc(s.listNotifications))
	mux.Put("/notifications/:id", authed.ThenFunc(s.markNotificationRead))

	mux.Get("/appointments", authed.ThenFunc(s.listAppointments))
	mux.Post("/appointments", booking.ThenFunc(s.createAppointment))
	mux.Del("/appointments/:id", authed.ThenFunc(s.cancelAppointment))

	mux.Get("/healthz", http.HandlerFunc(s.healthz))
	mux.Get("/metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Idempotency-Key"},
		AllowCredentials: true,
	})

	return otelhttp.NewHandler(c.Handler(mux), "booking-http")
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Warn("health check failed", slog.Any("err", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
