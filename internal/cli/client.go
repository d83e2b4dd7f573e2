package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RunResponse — run из API.
type RunResponse struct {
	ID              string          `json:"id"`
	WorkflowID      string          `json:"workflow_id"`
	ConfigURI       string          `json:"config_uri,omitempty"`
	BatchDate       string          `json:"batch_date,omitempty"`
	DecisionTraceID string          `json:"decision_trace_id,omitempty"`
	Status          string          `json:"status"`
	Cause           string          `json:"cause,omitempty"`
	FailedStage     string          `json:"failed_stage,omitempty"`
	Stages          []StageResponse `json:"stages,omitempty"`
	StartedAt       string          `json:"started_at,omitempty"`
	FinishedAt      string          `json:"finished_at,omitempty"`
	DurationMs      int64           `json:"duration_ms,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       string          `json:"created_at"`
}

// StageResponse — стадия run из API.
type StageResponse struct {
	StageKey     string `json:"stage_key"`
	WorkflowID   string `json:"workflow_id"`
	ChildRunID   string `json:"child_run_id,omitempty"`
	Status       string `json:"status"`
	EngineStatus string `json:"engine_status,omitempty"`
	TriggeredAt  string `json:"triggered_at"`
	FinishedAt   string `json:"finished_at,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ValidateConfigResponse — результат проверки конфигурации.
type ValidateConfigResponse struct {
	Valid  bool `json:"valid"`
	Issues []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
		Line    int    `json:"line,omitempty"`
	} `json:"issues,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// --- Request types ---

// CreateRunRequest — создание run.
type CreateRunRequest struct {
	WorkflowID      string `json:"workflow_id,omitempty"`
	ConfigURI       string `json:"config_uri,omitempty"`
	BatchDate       string `json:"batch_date,omitempty"`
	DecisionTraceID string `json:"decision_trace_id,omitempty"`
}

// ValidateConfigRequest — проверка конфигурации по URI или по тексту документа.
type ValidateConfigRequest struct {
	URI      string `json:"uri,omitempty"`
	Document string `json:"document,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Status    string
	BatchDate string
	Limit     int
}

// --- API envelope ---

// envelope — общий вид ответа API: data (+ total для списков) или error.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
	Error *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (request %s)", e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для Cascade API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(ctx context.Context, opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.BatchDate != "" {
		params.Set("batch_date", opts.BatchDate)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunResponse
	err := c.call(ctx, http.MethodGet, "/api/v1/runs", params, nil, &runs)
	return runs, err
}

// CreateRun запрашивает новый run.
func (c *Client) CreateRun(ctx context.Context, req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/runs", nil, req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(ctx context.Context, id string) (*RunResponse, error) {
	var run RunResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(id), nil, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ValidateConfig проверяет конфигурацию на сервере.
func (c *Client) ValidateConfig(ctx context.Context, req ValidateConfigRequest) (*ValidateConfigResponse, error) {
	var resp ValidateConfigResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/configs/validate", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// call выполняет запрос и раскладывает data из ответа в result.
// Ответ со статусом >= 400 возвращается как *APIError.
func (c *Client) call(ctx context.Context, method, path string, params url.Values, body, result any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.RequestID = env.Error.RequestID
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	if result == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, result)
}
