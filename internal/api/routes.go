package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	handle := func(pattern string, fn http.HandlerFunc) {
		chain := Chain(
			RequestID(h.logger),
			Recovery(h.logger),
			Logging(pattern),
		)
		mux.Handle(pattern, chain(fn))
	}

	// Runs
	handle("GET /api/v1/runs", h.ListRuns)
	handle("POST /api/v1/runs", h.CreateRun)
	handle("GET /api/v1/runs/{id}", h.GetRun)

	// Configs
	handle("POST /api/v1/configs/validate", h.ValidateConfig)
}
