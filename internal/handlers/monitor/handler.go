package monitor

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/services/monitor"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/handlers"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

const maxSessionLimit = 1000

type ApiHandler struct {
	monitorService monitor.IMonitorService
	logger         primary.Logger
}

func NewHandler(monitorService monitor.IMonitorService, logger primary.Logger) *ApiHandler {
	return &ApiHandler{
		monitorService: monitorService,
		logger:         logger,
	}
}

// RegisterPublic adds the routes served without a token
func (api *ApiHandler) RegisterPublic(r *mux.Router) {
	r.HandleFunc("/healthz", api.Health).Methods(http.MethodGet)
}

func (api *ApiHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/sessions", api.GetSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", api.GetStats).Methods(http.MethodGet)
}

// Health reports the master state; a stopped master answers 503
func (api *ApiHandler) Health(w http.ResponseWriter, r *http.Request) {
	state := api.monitorService.State()
	status := http.StatusOK
	if state == domain.StateStopped {
		status = http.StatusServiceUnavailable
	}
	handlers.ResponseWithJson(w, status, map[string]domain.MasterState{"state": state})
}

func (api *ApiHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	handlers.ResponseWithJson(w, http.StatusOK, api.monitorService.Stats())
}

// GetSessions lists journal rows of this run, newest first
func (api *ApiHandler) GetSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSessionLimit {
			handlers.ResponseError(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = n
	}

	sessions, err := api.monitorService.Sessions(r.Context(), limit)
	if err != nil {
		if errors.Is(err, errs.StoreDisabled) {
			handlers.ResponseError(w, "session journal is not configured", http.StatusServiceUnavailable)
			return
		}
		api.logger.Error("Failed to list sessions", "error", err)
		handlers.ResponseError(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}
