package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shaiso/Cascade/internal/domain"
)

const scenarioDoc = `
landing:
  container: c
  prefix: p/
  poke_interval_seconds: 1
  timeout_seconds: 5
stages:
  stg_to_ref:
    workflow_id: w3
  lnd_to_dq:
    workflow_id: w1
  dq_to_stg:
    workflow_id: w2
`

func validConfig() domain.RunConfig {
	return domain.RunConfig{
		Landing: domain.LandingConfig{
			Container:    "landing-container",
			Prefix:       "landing/path/",
			PokeInterval: 60 * time.Second,
			Timeout:      1800 * time.Second,
		},
		Stages: []domain.StageConfig{
			{
				Key:          domain.StageLandingToDQ,
				WorkflowID:   "lnd_to_dq_template",
				Params:       map[string]any{"batch_date": "2024-01-01", "limit": 10},
				PollInterval: 30 * time.Second,
			},
			{
				Key:          domain.StageDQToStaging,
				WorkflowID:   "dq_to_stg_template",
				Params:       map[string]any{"batch_date": "2024-01-01", "nested": map[string]any{"mode": "full"}},
				PollInterval: 15 * time.Second,
			},
			{
				Key:          domain.StageStagingToRef,
				WorkflowID:   "stg_to_ref_template",
				PollInterval: 30 * time.Second,
			},
		},
		Options: domain.Options{
			NotifyTo:   []string{"data-team@example.org"},
			LogTable:   "dbo.etl_logs",
			Procedures: map[string]string{"gate": "usp_gate_batch"},
		},
	}
}

// --- Decode Tests ---

func TestDecode_ScenarioDocument(t *testing.T) {
	cfg, err := Decode([]byte(scenarioDoc))
	require.NoError(t, err)

	require.Equal(t, "c", cfg.Landing.Container)
	require.Equal(t, "p/", cfg.Landing.Prefix)
	require.Equal(t, time.Second, cfg.Landing.PokeInterval)
	require.Equal(t, 5*time.Second, cfg.Landing.Timeout)

	// Порядок стадий — объявленный, а не порядок в документе
	require.Len(t, cfg.Stages, 3)
	for i, key := range domain.StageOrder {
		require.Equal(t, key, cfg.Stages[i].Key)
		require.Equal(t, domain.DefaultStagePollInterval, cfg.Stages[i].PollInterval)
	}
	require.Equal(t, "w1", cfg.Stages[0].WorkflowID)
	require.Equal(t, "w3", cfg.Stages[2].WorkflowID)
}

func TestDecode_Defaults(t *testing.T) {
	doc := `
landing: {container: c, prefix: p/}
stages:
  lnd_to_dq: {workflow_id: w1}
  dq_to_stg: {workflow_id: w2}
  stg_to_ref: {workflow_id: w3}
`
	cfg, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, domain.DefaultPokeInterval, cfg.Landing.PokeInterval)
	require.Equal(t, domain.DefaultLandingTimeout, cfg.Landing.Timeout)
	require.Empty(t, cfg.Options.NotifyTo)
}

func TestDecode_ReportsEveryMissingField(t *testing.T) {
	doc := `
landing:
  poke_interval_seconds: 10
stages:
  lnd_to_dq: {params: {a: 1}}
  dq_to_stg: {workflow_id: ""}
`
	_, err := Decode([]byte(doc))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.ErrorIs(t, err, ErrConfigValidation)

	fields := verr.Fields()
	require.ElementsMatch(t, []string{
		"landing.container",
		"landing.prefix",
		"stages.lnd_to_dq.workflow_id",
		"stages.dq_to_stg.workflow_id",
		"stages.stg_to_ref.workflow_id",
	}, fields)
}

func TestDecode_EmptyDocument(t *testing.T) {
	_, err := Decode(nil)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 5)
}

func TestDecode_WrongShapes(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "landing not mapping",
			doc:   "landing: [a, b]\n",
			field: "landing",
		},
		{
			name:  "poke interval string",
			doc:   "landing: {container: c, prefix: p, poke_interval_seconds: \"60\"}\n",
			field: "landing.poke_interval_seconds",
		},
		{
			name:  "timeout zero",
			doc:   "landing: {container: c, prefix: p, timeout_seconds: 0}\n",
			field: "landing.timeout_seconds",
		},
		{
			name:  "container number",
			doc:   "landing: {container: 12, prefix: p}\n",
			field: "landing.container",
		},
		{
			name:  "unknown stage",
			doc:   "stages: {extra: {workflow_id: x}}\n",
			field: "stages.extra",
		},
		{
			name:  "stage scalar",
			doc:   "stages: {lnd_to_dq: w1}\n",
			field: "stages.lnd_to_dq",
		},
		{
			name:  "params list",
			doc:   "stages: {lnd_to_dq: {workflow_id: w1, params: [1]}}\n",
			field: "stages.lnd_to_dq.params",
		},
		{
			name:  "bad email",
			doc:   "options: {notify_to: [not-an-email]}\n",
			field: "options.notify_to[0]",
		},
		{
			name:  "notify_to scalar",
			doc:   "options: {notify_to: a@x.com}\n",
			field: "options.notify_to",
		},
		{
			name:  "log table injection",
			doc:   "options: {log_table: \"logs; DROP TABLE x\"}\n",
			field: "options.log_table",
		},
		{
			name:  "procedure name",
			doc:   "options: {procedures: {gate: \"usp gate\"}}\n",
			field: "options.procedures.gate",
		},
		{
			name:  "unknown top-level",
			doc:   "landng: {}\n",
			field: "landng",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			found := false
			for _, f := range verr.Fields() {
				if f == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("field %q not reported, got %v", tt.field, verr.Fields())
			}
		})
	}
}

func TestDecode_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"broken yaml", "landing: {container: c\n"},
		{"scalar root", "just a string\n"},
		{"list root", "- a\n- b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			if !errors.Is(err, ErrConfigParse) {
				t.Errorf("expected ErrConfigParse, got %v", err)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	verr := &ValidationError{}
	if verr.OrNil() != nil {
		t.Fatal("empty ValidationError should be nil")
	}

	verr.Add("landing.container", "is required", 2)
	verr.Add("landing.prefix", "is required", 2)

	msg := verr.Error()
	if !strings.Contains(msg, "2 issue(s)") || !strings.Contains(msg, "landing.prefix: is required") {
		t.Errorf("unexpected message: %s", msg)
	}
}

// --- Encode / round-trip Tests ---

func TestEncode_RoundTrip(t *testing.T) {
	cfg := validConfig()

	data, err := Encode(cfg)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestEncode_StageOrder(t *testing.T) {
	data, err := Encode(validConfig())
	require.NoError(t, err)

	text := string(data)
	i1 := strings.Index(text, "lnd_to_dq:")
	i2 := strings.Index(text, "dq_to_stg:")
	i3 := strings.Index(text, "stg_to_ref:")
	if !(i1 >= 0 && i1 < i2 && i2 < i3) {
		t.Errorf("stages not in declared order:\n%s", text)
	}
}

func TestEncode_OmitsEmptyOptions(t *testing.T) {
	cfg := validConfig()
	cfg.Options = domain.Options{}

	data, err := Encode(cfg)
	require.NoError(t, err)
	require.NotContains(t, string(data), "options:")

	got, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

// --- Loader Tests ---

type fakeGetter struct {
	objects map[string][]byte
}

func (f *fakeGetter) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *fakeGetter) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[bucket+"/"+key] = data
	return nil
}

func TestLoader_FileRoundTrip(t *testing.T) {
	store := FileStore{Dir: t.TempDir()}
	cfg := validConfig()

	data, err := Encode(cfg)
	require.NoError(t, err)

	uri, err := store.Put(t.Context(), "runs/config_2024-01-01_20240101T000000.yaml", data)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"), uri)

	got, err := NewLoader(nil).Load(t.Context(), uri)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestLoader_BarePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioDoc), 0o644))

	cfg, err := NewLoader(nil).Load(t.Context(), path)
	require.NoError(t, err)
	require.Equal(t, "c", cfg.Landing.Container)
}

func TestLoader_ObjectStoreRoundTrip(t *testing.T) {
	getter := &fakeGetter{}
	store := ObjectStore{Putter: getter, Bucket: "orchestration-configs"}
	loader := NewLoader(nil).Register("s3", ObjectFetcher{Getter: getter})

	data, err := Encode(validConfig())
	require.NoError(t, err)

	uri, err := store.Put(t.Context(), "runs/a.yaml", data)
	require.NoError(t, err)
	require.Equal(t, "s3://orchestration-configs/runs/a.yaml", uri)

	got, err := loader.Load(t.Context(), uri)
	require.NoError(t, err)
	require.Equal(t, validConfig(), got)

	// s3:///bucket/key тоже принимается
	_, err = loader.Load(t.Context(), "s3:///orchestration-configs/runs/a.yaml")
	require.NoError(t, err)
}

func TestLoader_FetchErrors(t *testing.T) {
	loader := NewLoader(nil)

	_, err := loader.Load(t.Context(), "gs://bucket/key.yaml")
	require.ErrorIs(t, err, ErrConfigFetch)
	require.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = loader.Load(t.Context(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, ErrConfigFetch)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = loader.Load(t.Context(), "")
	require.ErrorIs(t, err, ErrConfigFetch)
}

func TestSchemeOf(t *testing.T) {
	tests := map[string]string{
		"/etc/cascade/config.yaml":  "file",
		"file:///tmp/config.yaml":   "file",
		"S3://bucket/key":           "s3",
		"relative/path/config.yaml": "file",
	}
	for uri, want := range tests {
		if got := SchemeOf(uri); got != want {
			t.Errorf("SchemeOf(%q) = %q, want %q", uri, got, want)
		}
	}
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	store := FileStore{Dir: t.TempDir()}
	if _, err := store.Put(t.Context(), "../escape.yaml", []byte("x")); err == nil {
		t.Error("expected error for location with '..'")
	}
}

func TestRemoteLoader_RejectsLocalFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioDoc), 0o644))

	loader := NewRemoteLoader(nil)
	for _, uri := range []string{path, "file://" + path, "FILE://" + path} {
		_, err := loader.Load(t.Context(), uri)
		require.ErrorIs(t, err, ErrConfigFetch, uri)
		require.ErrorIs(t, err, ErrUnsupportedScheme, uri)
	}
	require.NotContains(t, loader.Schemes(), "file")

	getter := &fakeGetter{}
	_, err := ObjectStore{Putter: getter, Bucket: "b"}.Put(t.Context(), "a.yaml", []byte(scenarioDoc))
	require.NoError(t, err)
	cfg, err := loader.Register("s3", ObjectFetcher{Getter: getter}).Load(t.Context(), "s3://b/a.yaml")
	require.NoError(t, err)
	require.Equal(t, "c", cfg.Landing.Container)
}
