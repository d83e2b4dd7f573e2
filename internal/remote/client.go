package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/Cascade/internal/stage"
)

// Default configuration values.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second
	DefaultURL          = "http://localhost:8080"
)

// nonTerminal — статусы движка, при которых run ещё выполняется.
var nonTerminal = map[string]bool{
	"PENDING": true,
	"QUEUED":  true,
	"RUNNING": true,
}

// Config — настройки Client.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// MaxRetries — повторы Poll при временных ошибках.
	// 0 — DefaultMaxRetries, отрицательное значение — без повторов.
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Client — клиент движка. Безопасен для конкурентного использования.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	maxRetries   int
	retryBackoff time.Duration
	logger       *slog.Logger
}

// New создаёт клиента.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   cfg.HTTPClient,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       cfg.Logger,
	}
}

// startRunRequest — тело запроса запуска.
type startRunRequest struct {
	Inputs map[string]any `json:"inputs,omitempty"`
}

// runResponse — run в ответе движка.
type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Start реализует stage.Engine.
func (c *Client) Start(ctx context.Context, workflowID string, params map[string]any) (string, error) {
	var run runResponse
	path := "/api/v1/flows/" + url.PathEscape(workflowID) + "/runs"
	if err := c.doData(ctx, http.MethodPost, path, startRunRequest{Inputs: params}, &run); err != nil {
		return "", err
	}
	if run.ID == "" {
		return "", ErrEmptyRunID
	}
	return run.ID, nil
}

// Poll реализует stage.Engine.
func (c *Client) Poll(ctx context.Context, runID string) (stage.PollResult, error) {
	var run runResponse
	path := "/api/v1/runs/" + url.PathEscape(runID)

	err := c.withRetry(ctx, func() error {
		return c.doData(ctx, http.MethodGet, path, nil, &run)
	})
	if err != nil {
		return stage.PollResult{}, err
	}

	return ToPollResult(run.Status), nil
}

// ToPollResult переводит статус движка в PollResult.
// Всё, что не входит в nonTerminal, считается финальным.
func ToPollResult(status string) stage.PollResult {
	upper := strings.ToUpper(strings.TrimSpace(status))
	if nonTerminal[upper] {
		return stage.PollResult{Terminal: false, Status: strings.ToLower(upper)}
	}
	return stage.PollResult{Terminal: true, Status: strings.ToLower(upper)}
}

// withRetry повторяет fn при временных ошибках.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isTemporary(err) || attempt >= c.maxRetries {
			return err
		}

		backoff := c.retryBackoff * time.Duration(1<<attempt)
		c.logger.Warn("engine request failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func isTemporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	// Сетевые ошибки повторяем, ошибки разбора — нет
	return !errors.Is(err, ErrDecode) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// --- HTTP helpers ---

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if result != nil {
		if err := json.Unmarshal(dr.Data, result); err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil && er.Error.Message != "" {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
