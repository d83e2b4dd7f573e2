package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/scanner"
)

// fakeAPI отвечает так же, как internal/api.
func fakeAPI(t *testing.T) (*httptest.Server, *[]CreateRunRequest) {
	t.Helper()
	var created []CreateRunRequest

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		var req CreateRunRequest
		json.NewDecoder(r.Body).Decode(&req)
		created = append(created, req)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"data": RunResponse{ID: "r-1", Status: "PENDING", BatchDate: req.BatchDate}})
	})
	mux.HandleFunc("GET /api/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "FAILED" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []RunResponse{{ID: "r-2", Status: "FAILED", Cause: "landing_timeout"}}, "total": 1})
	})
	mux.HandleFunc("GET /api/v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "r-3" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "NOT_FOUND", "message": "run not found"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": RunResponse{
			ID:     "r-3",
			Status: "SUCCEEDED",
			Stages: []StageResponse{{StageKey: "lnd_to_dq", ChildRunID: "c-1", Status: "SUCCEEDED", DurationMs: 1500}},
		}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &created
}

func execute(t *testing.T, srv *httptest.Server, jsonMode bool, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	clientFn := func() *Client { return NewClient(srv.URL) }
	outputFn := func() *Output { return NewOutputTo(jsonMode, &stdout, &stderr) }

	root := &cobra.Command{Use: "cascade", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(NewRunCmd(clientFn, outputFn), NewConfigCmd(clientFn, outputFn))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRunStart(t *testing.T) {
	srv, created := fakeAPI(t)

	stdout, stderr, err := execute(t, srv, false, "run", "start", "--batch-date", "2024-01-01", "--trace-id", "tr-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*created) != 1 || (*created)[0].BatchDate != "2024-01-01" || (*created)[0].DecisionTraceID != "tr-1" {
		t.Errorf("unexpected request: %+v", *created)
	}
	if !strings.Contains(stderr, "Run requested: r-1") {
		t.Errorf("stderr = %q", stderr)
	}
	if !strings.Contains(stdout, "PENDING") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRunStart_InvalidBatchDate(t *testing.T) {
	srv, created := fakeAPI(t)

	if _, _, err := execute(t, srv, false, "run", "start", "--batch-date", "2024/01/01"); err == nil {
		t.Fatal("expected error")
	}
	if len(*created) != 0 {
		t.Error("request must not be sent")
	}
}

func TestRunList_JSON(t *testing.T) {
	srv, _ := fakeAPI(t)

	stdout, _, err := execute(t, srv, true, "run", "list", "--status", "FAILED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var runs []RunResponse
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if len(runs) != 1 || runs[0].Cause != "landing_timeout" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}

func TestRunStages(t *testing.T) {
	srv, _ := fakeAPI(t)

	stdout, _, err := execute(t, srv, false, "run", "stages", "r-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"lnd_to_dq", "c-1", "1.5s"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}

	_, _, err = execute(t, srv, false, "run", "get", "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND APIError, got %v", err)
	}
}

func TestConfigValidate_Local(t *testing.T) {
	srv, _ := fakeAPI(t)
	dir := t.TempDir()

	good, err := RenderConfig(context.Background(), scanner.DefaultSettings(), "2024-01-01")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	goodPath := filepath.Join(dir, "good.yaml")
	badPath := filepath.Join(dir, "bad.yaml")
	os.WriteFile(goodPath, good, 0o644)
	os.WriteFile(badPath, []byte("landing:\n  container: c\nstages: {}\n"), 0o644)

	if _, stderr, err := execute(t, srv, false, "config", "validate", goodPath); err != nil || !strings.Contains(stderr, "valid") {
		t.Errorf("good config: err=%v stderr=%q", err, stderr)
	}

	stdout, _, err := execute(t, srv, false, "config", "validate", "file://"+badPath)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(stdout, "landing.prefix") {
		t.Errorf("issues table missing landing.prefix:\n%s", stdout)
	}

	if _, _, err := execute(t, srv, false, "config", "validate", filepath.Join(dir, "missing.yaml")); !errors.Is(err, config.ErrConfigFetch) {
		t.Errorf("expected ErrConfigFetch, got %v", err)
	}
}

func TestRenderConfig(t *testing.T) {
	data, err := RenderConfig(context.Background(), scanner.DefaultSettings(), "2024-03-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := config.Decode(data)
	if err != nil {
		t.Fatalf("rendered config must decode: %v", err)
	}
	st, ok := cfg.Stage(domain.StageDQToStaging)
	if !ok || st.Params[scanner.BatchDateParam] != "2024-03-05" {
		t.Errorf("unexpected stage: %+v", st)
	}

	if _, err := RenderConfig(context.Background(), scanner.DefaultSettings(), "05.03.2024"); !errors.Is(err, scanner.ErrInvalidBatchDate) {
		t.Errorf("expected ErrInvalidBatchDate, got %v", err)
	}
}
