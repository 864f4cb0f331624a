package workers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/services/monitor"
	"gitlab.com/arbfn-2025.net/internal/handlers"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

type ApiHandler struct {
	MonitorService monitor.IMonitorService
	logger         primary.Logger
}

func NewHandler(monitorService monitor.IMonitorService, logger primary.Logger) *ApiHandler {
	return &ApiHandler{
		MonitorService: monitorService,
		logger:         logger,
	}
}

func (api *ApiHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/workers", api.GetWorkers).Methods(http.MethodGet)
}

// GetWorkers lists the active workers of this run from the roster mirror
func (api *ApiHandler) GetWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := api.MonitorService.Workers(r.Context())
	if err != nil {
		if errors.Is(err, errs.StoreDisabled) {
			handlers.ResponseError(w, "roster mirror is not configured", http.StatusServiceUnavailable)
			return
		}
		api.logger.Error("Failed to get workers", "error", err)
		handlers.ResponseError(w, "Failed to get workers", http.StatusInternalServerError)
		return
	}

	handlers.ResponseWithJson(w, http.StatusOK, map[string]interface{}{"workers": workers})
}
