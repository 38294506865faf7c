package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/bidconnect/notification-service/internal/api/middleware"
	"github.com/bidconnect/notification-service/internal/domain"
	"github.com/bidconnect/notification-service/internal/service"
)

// NotificationHandler serves the administrative notification endpoints.
type NotificationHandler struct {
	svc    *service.NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// Send handles POST /api/notifications/send
//
// The record is returned with 201 whether or not the transport accepted the
// message; its status tells which.
//
// @Summary     Send a notification to one recipient
// @Tags        notifications
// @Accept      json
// @Produce     json
// @Param       body  body      domain.SendRequest  true  "Notification payload"
// @Success     201   {object}  domain.Notification
// @Failure     400   {object}  map[string]any
// @Router      /api/notifications/send [post]
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req domain.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	n, err := h.svc.Send(r.Context(), req)
	if err != nil {
		h.logger.Warn("manual send failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, n)
}

// GetByID handles GET /api/notifications/{id}
//
// @Summary  Get a notification by ID
// @Tags     notifications
// @Produce  json
// @Param    id   path      int  true  "Notification ID"
// @Success  200  {object}  domain.Notification
// @Failure  400  {object}  map[string]string
// @Failure  404  {object}  map[string]string
// @Router   /api/notifications/{id} [get]
func (h *NotificationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		mapError(w, domain.ErrInvalidID)
		return
	}
	n, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, n)
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ns, err := h.svc.List(r.Context())
	h.respondList(w, r, ns, err)
}

// ListByUser handles GET /api/notifications/user/{userId}
func (h *NotificationHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ns, err := h.svc.ListByUser(r.Context(), chi.URLParam(r, "userId"))
	h.respondList(w, r, ns, err)
}

// ListByStatus handles GET /api/notifications/status/{status}
func (h *NotificationHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := domain.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		mapError(w, err)
		return
	}
	ns, err := h.svc.ListByStatus(r.Context(), status)
	h.respondList(w, r, ns, err)
}

// ListByEventType handles GET /api/notifications/event-type/{eventType}
func (h *NotificationHandler) ListByEventType(w http.ResponseWriter, r *http.Request) {
	et, err := domain.ParseEventType(chi.URLParam(r, "eventType"))
	if err != nil {
		mapError(w, err)
		return
	}
	ns, err := h.svc.ListByEventType(r.Context(), et)
	h.respondList(w, r, ns, err)
}

// Stats handles GET /api/notifications/stats
//
// @Summary  Aggregate delivery statistics
// @Tags     notifications
// @Produce  json
// @Success  200  {object}  domain.Stats
// @Router   /api/notifications/stats [get]
func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.logger.Error("stats query failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *NotificationHandler) respondList(w http.ResponseWriter, r *http.Request, ns []*domain.Notification, err error) {
	if err != nil {
		h.logger.Error("list notifications failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	if ns == nil {
		ns = []*domain.Notification{}
	}
	respondJSON(w, http.StatusOK, ns)
}
