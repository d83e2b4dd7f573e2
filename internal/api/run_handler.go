package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/repo"
	"github.com/shaiso/Cascade/internal/telemetry"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?status=...&batch_date=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{Limit: 50}

	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		filter.Status = domain.RunStatus(status)
	}

	if batchDate := q.Get("batch_date"); batchDate != "" {
		if _, err := time.Parse(time.DateOnly, batchDate); err != nil {
			BadRequest(w, "invalid batch_date")
			return
		}
		filter.BatchDate = batchDate
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		filter.Limit = int(mustParseInt(limitStr, 50))
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		filter.Offset = int(mustParseInt(offsetStr, 0))
	}

	runs, err := h.runRepo.List(r.Context(), filter)
	if HandleRepoError(w, r, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun создаёт новый run в статусе PENDING.
// POST /api/v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.BatchDate != "" {
		if _, err := time.Parse(time.DateOnly, req.BatchDate); err != nil {
			BadRequest(w, "batch_date must be YYYY-MM-DD")
			return
		}
	}

	workflowID := req.WorkflowID
	if workflowID == "" {
		workflowID = h.workflowID
	}

	run := &domain.Run{
		ID:              uuid.New(),
		WorkflowID:      workflowID,
		ConfigURI:       req.ConfigURI,
		BatchDate:       req.BatchDate,
		DecisionTraceID: req.DecisionTraceID,
		Status:          domain.RunStatusPending,
	}

	if err := h.runRepo.Create(r.Context(), run); err != nil {
		InternalError(w, r, err)
		return
	}

	// Публикация необязательна: оркестратор подхватит run polling'ом
	if h.publisher != nil {
		if err := h.publisher.PublishRunRequested(r.Context(), run.ID); err != nil {
			telemetry.FromContext(r.Context()).Warn("failed to publish run.requested", "run_id", run.ID, "error", err)
		}
	}

	Created(w, RunFromDomain(*run))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, r, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// mustParseInt парсит строку в int64 или возвращает defaultVal.
func mustParseInt(s string, defaultVal int64) int64 {
	n, err := json.Number(s).Int64()
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
