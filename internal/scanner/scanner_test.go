package scanner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/orchestrator"
)

// loadingRunner загружает конфигурацию по URI, как это сделал бы оркестратор.
type loadingRunner struct {
	loader *config.Loader
	status domain.RunStatus
	cause  domain.FailureCause

	calls  int
	req    orchestrator.RunRequest
	loaded domain.RunConfig
	err    error
}

func (r *loadingRunner) Run(ctx context.Context, req orchestrator.RunRequest) orchestrator.Result {
	r.calls++
	r.req = req
	r.loaded, r.err = r.loader.Load(ctx, req.ConfigURI)
	return orchestrator.Result{RunID: "run-1", Status: r.status, Cause: r.cause}
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, location string, doc []byte) (string, error) {
	return "", errors.New("container not found")
}

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newScanner(t *testing.T, runner Runner, store ConfigStore) *Scanner {
	t.Helper()
	return New(Config{
		Builder: StaticBuilder{Settings: DefaultSettings()},
		Store:   store,
		Runner:  runner,
		Now:     func() time.Time { return fixedNow },
	})
}

func TestProduceRun_StoresConfigAndPropagatesSuccess(t *testing.T) {
	runner := &loadingRunner{loader: config.NewLoader(nil), status: domain.RunStatusSucceeded}
	s := newScanner(t, runner, config.FileStore{Dir: t.TempDir()})

	res, err := s.ProduceRun(context.Background(), Request{RunID: "run-7", BatchDate: "2024-01-01", DecisionTraceID: "trace-9"})
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	require.Equal(t, domain.RunStatusSucceeded, res.Status)
	require.True(t, strings.HasSuffix(res.ConfigURI, "/runs/config_2024-01-01_20240102T030405_run-7.yaml"), res.ConfigURI)
	require.Equal(t, "run-7", runner.req.RunID)

	require.Equal(t, 1, runner.calls)
	require.Equal(t, res.ConfigURI, runner.req.ConfigURI)
	require.Equal(t, "trace-9", runner.req.DecisionTraceID)
	require.Equal(t, "2024-01-01", runner.req.BatchDate)

	// Оркестратор видит ровно то, что собрал Builder
	require.NoError(t, runner.err)
	built, err := StaticBuilder{Settings: DefaultSettings()}.Build(context.Background(), "2024-01-01")
	require.NoError(t, err)
	require.Equal(t, built, runner.loaded)
}

func TestProduceRun_PropagatesFailure(t *testing.T) {
	runner := &loadingRunner{
		loader: config.NewLoader(nil),
		status: domain.RunStatusFailed,
		cause:  domain.CauseLandingTimeout,
	}
	s := newScanner(t, runner, config.FileStore{Dir: t.TempDir()})

	res, err := s.ProduceRun(context.Background(), Request{BatchDate: "2024-01-01"})
	require.NoError(t, err)
	require.False(t, res.Succeeded())
	require.Equal(t, domain.CauseLandingTimeout, res.Cause)
	require.Equal(t, "run-1", res.Run.RunID)
}

func TestProduceRun_StoreFailure(t *testing.T) {
	runner := &loadingRunner{loader: config.NewLoader(nil)}
	s := newScanner(t, runner, failingStore{})

	res, err := s.ProduceRun(context.Background(), Request{BatchDate: "2024-01-01"})
	require.ErrorIs(t, err, ErrStore)
	require.Equal(t, domain.RunStatusFailed, res.Status)
	require.Equal(t, domain.CauseProduce, res.Cause)
	require.Zero(t, runner.calls)
}

func TestProduceRun_InvalidSettingsFailRun(t *testing.T) {
	settings := DefaultSettings()
	settings.Container = ""
	runner := &loadingRunner{loader: config.NewLoader(nil)}

	s := New(Config{
		Builder: StaticBuilder{Settings: settings},
		Store:   config.FileStore{Dir: t.TempDir()},
		Runner:  runner,
	})

	// Пустой container сериализуется, но не проходит валидацию при загрузке:
	// run запускается и падает на конфигурации.
	runner.status = domain.RunStatusFailed
	res, err := s.ProduceRun(context.Background(), Request{BatchDate: "2024-01-01"})
	require.NoError(t, err)
	require.False(t, res.Succeeded())
	require.ErrorIs(t, runner.err, config.ErrConfigValidation)
}

func TestProduceRun_InvalidBatchDate(t *testing.T) {
	runner := &loadingRunner{loader: config.NewLoader(nil)}
	s := newScanner(t, runner, config.FileStore{Dir: t.TempDir()})

	_, err := s.ProduceRun(context.Background(), Request{BatchDate: "01/02/2024"})
	require.ErrorIs(t, err, ErrInvalidBatchDate)
	require.Zero(t, runner.calls)
}

func TestProduceRun_DefaultBatchDate(t *testing.T) {
	runner := &loadingRunner{loader: config.NewLoader(nil), status: domain.RunStatusSucceeded}
	s := newScanner(t, runner, config.FileStore{Dir: t.TempDir()})

	_, err := s.ProduceRun(context.Background(), Request{})
	require.NoError(t, err)
	require.Equal(t, "2024-01-02", runner.req.BatchDate)
}

func TestStaticBuilder(t *testing.T) {
	cfg, err := StaticBuilder{Settings: DefaultSettings()}.Build(context.Background(), "2024-01-01")
	require.NoError(t, err)

	require.Equal(t, "landing-container", cfg.Landing.Container)
	require.Equal(t, domain.DefaultLandingTimeout, cfg.Landing.Timeout)
	require.Len(t, cfg.Stages, len(domain.StageOrder))
	for i, key := range domain.StageOrder {
		require.Equal(t, key, cfg.Stages[i].Key)
		require.Equal(t, string(key)+"_template", cfg.Stages[i].WorkflowID)
		require.Equal(t, "2024-01-01", cfg.Stages[i].Params[BatchDateParam])
	}
}

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("CASCADE_LANDING_CONTAINER", "raw")
	t.Setenv("CASCADE_POKE_INTERVAL", "15s")
	t.Setenv("CASCADE_LANDING_TIMEOUT", "not-a-duration")
	t.Setenv("CASCADE_WORKFLOW_DQ_TO_STG", "dq_v2")
	t.Setenv("CASCADE_NOTIFY_TO", "a@x.com, b@x.com,")

	s := SettingsFromEnv()
	require.Equal(t, "raw", s.Container)
	require.Equal(t, 15*time.Second, s.PokeInterval)
	require.Equal(t, domain.DefaultLandingTimeout, s.Timeout)
	require.Equal(t, "dq_v2", s.WorkflowIDs[domain.StageDQToStaging])
	require.Equal(t, "lnd_to_dq_template", s.WorkflowIDs[domain.StageLandingToDQ])
	require.Equal(t, []string{"a@x.com", "b@x.com"}, s.Options.NotifyTo)
}

func TestLocation(t *testing.T) {
	require.Equal(t, "runs/config_2024-01-01_20240102T030405_run-1.yaml", Location("runs", "2024-01-01", "run-1", fixedNow))
}

func TestProduceRun_SameSecondRunsDoNotCollide(t *testing.T) {
	runner := &loadingRunner{loader: config.NewLoader(nil), status: domain.RunStatusSucceeded}
	s := newScanner(t, runner, config.FileStore{Dir: t.TempDir()})

	seen := make(map[string]bool)
	for _, id := range []string{"run-a", "run-b", "", ""} {
		res, err := s.ProduceRun(context.Background(), Request{RunID: id, BatchDate: "2024-01-01"})
		require.NoError(t, err)
		require.False(t, seen[res.ConfigURI], "config overwritten: %s", res.ConfigURI)
		seen[res.ConfigURI] = true

		// Сгенерированный id доходит до оркестратора и совпадает с путём
		require.NotEmpty(t, runner.req.RunID)
		require.True(t, strings.HasSuffix(res.ConfigURI, "_"+runner.req.RunID+".yaml"), res.ConfigURI)
	}
	require.Len(t, seen, 4)
}
