package controllers

import (
	"net/http"

	"github.com/rzbill/ensdb/internal/runtime"
	logpkg "github.com/rzbill/ensdb/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
//
// It provides a centralized way to register all controller routes
// and manages the lifecycle of individual controllers.
type ControllerRegistry struct {
	general *GeneralController
	records *RecordsController
	match   *MatchController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger) *ControllerRegistry {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	logger = logger.WithComponent("http")
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		records: NewRecordsController(rt, logger),
		match:   NewMatchController(rt, logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.records.RegisterRoutes(mux)
	r.match.RegisterRoutes(mux)
}
