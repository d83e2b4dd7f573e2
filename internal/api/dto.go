package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/domain"
)

// Run DTOs

// CreateRunRequest — запрос на создание run.
//
// Без config_uri run выполняется через scanner: конфигурация собирается
// и сохраняется оркестратором.
type CreateRunRequest struct {
	WorkflowID      string `json:"workflow_id,omitempty"`
	ConfigURI       string `json:"config_uri,omitempty"`
	BatchDate       string `json:"batch_date,omitempty"`
	DecisionTraceID string `json:"decision_trace_id,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID              uuid.UUID       `json:"id"`
	WorkflowID      string          `json:"workflow_id"`
	ConfigURI       string          `json:"config_uri,omitempty"`
	BatchDate       string          `json:"batch_date,omitempty"`
	DecisionTraceID string          `json:"decision_trace_id,omitempty"`
	Status          string          `json:"status"`
	Cause           string          `json:"cause,omitempty"`
	FailedStage     string          `json:"failed_stage,omitempty"`
	Stages          []StageResponse `json:"stages,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
	DurationMs      int64           `json:"duration_ms,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StageResponse — запись о стадии run.
type StageResponse struct {
	StageKey     string     `json:"stage_key"`
	WorkflowID   string     `json:"workflow_id"`
	ChildRunID   string     `json:"child_run_id,omitempty"`
	Status       string     `json:"status"`
	EngineStatus string     `json:"engine_status,omitempty"`
	TriggeredAt  time.Time  `json:"triggered_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	DurationMs   int64      `json:"duration_ms,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	resp := RunResponse{
		ID:              r.ID,
		WorkflowID:      r.WorkflowID,
		ConfigURI:       r.ConfigURI,
		BatchDate:       r.BatchDate,
		DecisionTraceID: r.DecisionTraceID,
		Status:          string(r.Status),
		Cause:           string(r.Cause),
		FailedStage:     string(r.FailedStage),
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationMs:      r.Duration().Milliseconds(),
		Error:           r.Error,
		CreatedAt:       r.CreatedAt,
	}
	for _, s := range r.Stages {
		resp.Stages = append(resp.Stages, StageResponse{
			StageKey:     string(s.StageKey),
			WorkflowID:   s.WorkflowID,
			ChildRunID:   s.ChildRunID,
			Status:       string(s.Status),
			EngineStatus: s.EngineStatus,
			TriggeredAt:  s.TriggeredAt,
			FinishedAt:   s.FinishedAt,
			DurationMs:   s.Duration().Milliseconds(),
			Error:        s.Error,
		})
	}
	return resp
}

// Config DTOs

// ValidateConfigRequest — запрос на проверку конфигурации.
// Задаётся либо URI, либо сам документ.
type ValidateConfigRequest struct {
	URI      string `json:"uri,omitempty"`
	Document string `json:"document,omitempty"`
}

// ValidateConfigResponse — результат проверки.
type ValidateConfigResponse struct {
	Valid  bool            `json:"valid"`
	Issues []IssueResponse `json:"issues,omitempty"`

	// Error — ошибка получения или разбора документа (не валидации).
	Error string `json:"error,omitempty"`

	Config *ConfigResponse `json:"config,omitempty"`
}

// IssueResponse — одно нарушение схемы.
type IssueResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ConfigResponse — проверенная конфигурация с применёнными значениями по умолчанию.
type ConfigResponse struct {
	Landing LandingResponse                         `json:"landing"`
	Stages  map[domain.StageKey]StageConfigResponse `json:"stages"`
	Options domain.Options                          `json:"options"`
}

// LandingResponse — параметры ожидания входных данных.
type LandingResponse struct {
	Container           string `json:"container"`
	Prefix              string `json:"prefix"`
	PokeIntervalSeconds int    `json:"poke_interval_seconds"`
	TimeoutSeconds      int    `json:"timeout_seconds"`
}

// StageConfigResponse — настройки стадии.
type StageConfigResponse struct {
	WorkflowID          string         `json:"workflow_id"`
	Params              map[string]any `json:"params,omitempty"`
	PollIntervalSeconds int            `json:"poll_interval_seconds"`
}

// ConfigFromDomain конвертирует domain.RunConfig в ConfigResponse.
func ConfigFromDomain(c domain.RunConfig) ConfigResponse {
	resp := ConfigResponse{
		Landing: LandingResponse{
			Container:           c.Landing.Container,
			Prefix:              c.Landing.Prefix,
			PokeIntervalSeconds: int(c.Landing.PokeInterval / time.Second),
			TimeoutSeconds:      int(c.Landing.Timeout / time.Second),
		},
		Stages:  make(map[domain.StageKey]StageConfigResponse, len(c.Stages)),
		Options: c.Options,
	}
	for _, s := range c.Stages {
		resp.Stages[s.Key] = StageConfigResponse{
			WorkflowID:          s.WorkflowID,
			Params:              s.Params,
			PollIntervalSeconds: int(s.PollInterval / time.Second),
		}
	}
	return resp
}

// IssuesFromValidation конвертирует нарушения в DTO.
func IssuesFromValidation(v *config.ValidationError) []IssueResponse {
	out := make([]IssueResponse, len(v.Issues))
	for i, issue := range v.Issues {
		out[i] = IssueResponse{Field: issue.Field, Message: issue.Message, Line: issue.Line}
	}
	return out
}
