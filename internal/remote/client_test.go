package remote

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func TestClient_Start(t *testing.T) {
	var gotInputs map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/flows/lnd_to_dq_template/runs" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Inputs map[string]any `json:"inputs"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotInputs = body.Inputs
		writeData(w, http.StatusCreated, map[string]any{"id": "run-123", "status": "PENDING"})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	id, err := c.Start(t.Context(), "lnd_to_dq_template", map[string]any{"batch_date": "2024-01-01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "run-123" {
		t.Errorf("expected run-123, got %s", id)
	}
	if gotInputs["batch_date"] != "2024-01-01" {
		t.Errorf("inputs not sent: %v", gotInputs)
	}
}

func TestClient_StartErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":"UNAVAILABLE","message":"engine down"}}`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, MaxRetries: 3, RetryBackoff: time.Millisecond})
	_, err := c.Start(t.Context(), "w1", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable || apiErr.Code != "UNAVAILABLE" {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
	if calls.Load() != 1 {
		t.Errorf("start must not be retried, got %d calls", calls.Load())
	}
}

func TestClient_StartEmptyID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusCreated, map[string]any{"status": "PENDING"})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	if _, err := c.Start(t.Context(), "w1", nil); !errors.Is(err, ErrEmptyRunID) {
		t.Errorf("expected ErrEmptyRunID, got %v", err)
	}
}

func TestClient_Poll(t *testing.T) {
	tests := []struct {
		status       string
		wantTerminal bool
		wantStatus   string
	}{
		{"PENDING", false, "pending"},
		{"RUNNING", false, "running"},
		{"SUCCEEDED", true, "succeeded"},
		{"FAILED", true, "failed"},
		{"CANCELLED", true, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/runs/run-1" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				writeData(w, http.StatusOK, map[string]any{"id": "run-1", "status": tt.status})
			}))
			defer server.Close()

			res, err := New(Config{BaseURL: server.URL}).Poll(t.Context(), "run-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Terminal != tt.wantTerminal || res.Status != tt.wantStatus {
				t.Errorf("got %+v, want terminal=%v status=%s", res, tt.wantTerminal, tt.wantStatus)
			}
		})
	}
}

func TestClient_PollRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"id": "run-1", "status": "SUCCEEDED"})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, MaxRetries: 3, RetryBackoff: time.Millisecond})
	res, err := c.Poll(t.Context(), "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Terminal || res.Status != "succeeded" {
		t.Errorf("unexpected result: %+v", res)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestClient_DefaultRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"id": "run-1", "status": "RUNNING"})
	}))
	defer server.Close()

	// Как в сборке сервиса: MaxRetries не задан
	c := New(Config{BaseURL: server.URL, RetryBackoff: time.Millisecond})
	if c.maxRetries != DefaultMaxRetries {
		t.Errorf("expected %d retries by default, got %d", DefaultMaxRetries, c.maxRetries)
	}

	res, err := c.Poll(t.Context(), "run-1")
	if err != nil {
		t.Fatalf("transient 503 should be retried: %v", err)
	}
	if res.Terminal || res.Status != "running" {
		t.Errorf("unexpected result: %+v", res)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestClient_RetriesDisabled(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, MaxRetries: -1, RetryBackoff: time.Millisecond})
	if _, err := c.Poll(t.Context(), "run-1"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single call, got %d", calls.Load())
	}
}

func TestClient_PollNotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"run not found"}}`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, MaxRetries: 3, RetryBackoff: time.Millisecond})
	if _, err := c.Poll(t.Context(), "missing"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d calls", calls.Load())
	}
}

func TestToPollResult_UnknownIsTerminal(t *testing.T) {
	res := ToPollResult("upstream_failed")
	if !res.Terminal || res.Status != "upstream_failed" {
		t.Errorf("unknown status should be terminal, got %+v", res)
	}
}
