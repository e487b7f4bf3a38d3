package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/ibarwick/config-log/internal/api/middleware"
	"github.com/ibarwick/config-log/internal/common"
	"github.com/ibarwick/config-log/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type StatusProvider interface {
	Status() model.WorkerStatus
}

type ReloadRequester interface {
	RequestReload()
}

type EventLister interface {
	Recent(ctx context.Context, limit int64) ([]model.ChangeEvent, error)
}

type WorkerHandler struct {
	status   StatusProvider
	reloader ReloadRequester
	events   EventLister
	logger   *log.Logger
}

// NewWorkerHandler builds the handler. events may be nil when Redis is not configured.
func NewWorkerHandler(status StatusProvider, reloader ReloadRequester, events EventLister, logger *log.Logger) *WorkerHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &WorkerHandler{status: status, reloader: reloader, events: events, logger: logger}
}

func (h *WorkerHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.getStatus)
	r.Get("/events", h.listEvents)
	r.With(middleware.Authenticator, middleware.AdminOnly).Post("/reload", h.requestReload)
}

func (h *WorkerHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	common.RespondWithJSON(w, http.StatusOK, h.status.Status())
}

func (h *WorkerHandler) listEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		common.RespondWithDomainError(w, common.ErrServiceUnavailable, "change events are not enabled")
		return
	}
	limit := int64(20)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 || n > 1000 {
			common.RespondWithError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	events, err := h.events.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Printf("ERROR: %s: listing change events: %v", model.TaskName, err)
		common.RespondWithDomainError(w, err, "failed to list change events")
		return
	}
	common.RespondWithJSON(w, http.StatusOK, events)
}

func (h *WorkerHandler) requestReload(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.GetSubjectFromContext(r.Context())
	h.logger.Printf("INFO: %s: reload requested over HTTP by %s", model.TaskName, subject)
	h.reloader.RequestReload()
	common.RespondWithJSON(w, http.StatusAccepted, map[string]string{"message": "reload requested"})
}
