package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bidconnect/notification-service/internal/api/handler"
	apimw "github.com/bidconnect/notification-service/internal/api/middleware"
	"github.com/bidconnect/notification-service/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. db may be nil, in which case /health does not ping it.
func NewRouter(
	svc *service.NotificationService,
	db handler.Pinger,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestSize(1 << 20))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(logger))

	nh := handler.NewNotificationHandler(svc, logger)
	hh := handler.NewHealthHandler(db)

	r.Get("/health", hh.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", nh.List)
		// Literal segments are registered before /{id} so chi never
		// treats "stats" as an ID.
		r.Get("/stats", nh.Stats)
		r.Post("/send", nh.Send)
		r.Get("/user/{userId}", nh.ListByUser)
		r.Get("/status/{status}", nh.ListByStatus)
		r.Get("/event-type/{eventType}", nh.ListByEventType)
		r.Get("/{id}", nh.GetByID)
	})

	return r
}
