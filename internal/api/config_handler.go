package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/domain"
)

// ValidateConfig проверяет конфигурацию run.
// POST /api/v1/configs/validate
//
// Нарушения схемы возвращаются списком с valid=false и статусом 200.
// Ошибки получения и разбора документа — 400.
func (h *Handler) ValidateConfig(w http.ResponseWriter, r *http.Request) {
	var req ValidateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if (req.URI == "") == (req.Document == "") {
		BadRequest(w, "exactly one of uri or document is required")
		return
	}

	var (
		cfg domain.RunConfig
		err error
	)
	if req.Document != "" {
		cfg, err = config.Decode([]byte(req.Document))
	} else {
		if h.loader == nil {
			BadRequest(w, "validation by uri is not available")
			return
		}
		cfg, err = h.loader.Load(r.Context(), req.URI)
	}

	var verr *config.ValidationError
	switch {
	case err == nil:
		resp := ConfigFromDomain(cfg)
		Success(w, ValidateConfigResponse{Valid: true, Config: &resp})
	case errors.As(err, &verr):
		Success(w, ValidateConfigResponse{Issues: IssuesFromValidation(verr)})
	case errors.Is(err, config.ErrConfigParse), errors.Is(err, config.ErrConfigFetch):
		BadRequest(w, err.Error())
	default:
		InternalError(w, r, err)
	}
}
