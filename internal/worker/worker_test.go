package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/orchestrator"
	"github.com/shaiso/Cascade/internal/repo"
	"github.com/shaiso/Cascade/internal/scanner"
)

// --- fakes ---

type memStore struct {
	mu      sync.Mutex
	runs    map[uuid.UUID]*domain.Run
	claims  int
	updates int
	listErr error
}

func newMemStore(runs ...domain.Run) *memStore {
	s := &memStore{runs: make(map[uuid.UUID]*domain.Run)}
	for i := range runs {
		r := runs[i]
		s.runs[r.ID] = &r
	}
	return s
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) ListPending(ctx context.Context, limit int) ([]domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Run
	for _, r := range s.runs {
		if r.Status == domain.RunStatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *memStore) Claim(ctx context.Context, run *domain.Run) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.runs[run.ID]
	if stored.Status != domain.RunStatusPending {
		return false, nil
	}
	s.claims++
	run.MarkRunning()
	stored.Status = run.Status
	stored.StartedAt = run.StartedAt
	return true, nil
}

func (s *memStore) Update(ctx context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memStore) get(id uuid.UUID) domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.runs[id]
}

type fakeOrchestrator struct {
	mu     sync.Mutex
	calls  []orchestrator.RunRequest
	result orchestrator.Result
}

func (f *fakeOrchestrator) Run(ctx context.Context, req orchestrator.RunRequest) orchestrator.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	res := f.result
	res.RunID = req.RunID
	return res
}

func (f *fakeOrchestrator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeProducer struct {
	calls  int
	req    scanner.Request
	result scanner.Result
	err    error
}

func (f *fakeProducer) ProduceRun(ctx context.Context, req scanner.Request) (scanner.Result, error) {
	f.calls++
	f.req = req
	return f.result, f.err
}

func pendingRun(configURI string) domain.Run {
	return domain.Run{
		ID:         uuid.New(),
		WorkflowID: "cascade_main",
		ConfigURI:  configURI,
		BatchDate:  "2024-01-01",
		Status:     domain.RunStatusPending,
		CreatedAt:  time.Now(),
	}
}

// --- tests ---

func TestProcessRun_WithConfigURI(t *testing.T) {
	run := pendingRun("s3://configs/runs/a.yaml")
	store := newMemStore(run)
	orch := &fakeOrchestrator{result: orchestrator.Result{
		Status: domain.RunStatusSucceeded,
		Stages: []domain.StageRun{{StageKey: domain.StageLandingToDQ, Status: domain.StageStatusSucceeded}},
	}}

	w := New(Config{Store: store, Orchestrator: orch, Producer: &fakeProducer{}})

	if err := w.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(orch.calls) != 1 {
		t.Fatalf("expected 1 orchestrator call, got %d", len(orch.calls))
	}
	req := orch.calls[0]
	if req.RunID != run.ID.String() || req.ConfigURI != run.ConfigURI || req.BatchDate != "2024-01-01" {
		t.Errorf("unexpected request: %+v", req)
	}

	got := store.get(run.ID)
	if got.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", got.Status)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("started_at and finished_at should be set")
	}
	if len(got.Stages) != 1 {
		t.Errorf("expected 1 stage record, got %d", len(got.Stages))
	}
	if w.ActiveRunsCount() != 0 {
		t.Error("run should be removed from active runs")
	}
}

func TestProcessRun_RecordsFailure(t *testing.T) {
	run := pendingRun("file:///cfg.yaml")
	store := newMemStore(run)
	orch := &fakeOrchestrator{result: orchestrator.Result{
		Status:      domain.RunStatusFailed,
		Cause:       domain.CauseStageFailed,
		FailedStage: domain.StageDQToStaging,
		Err:         errors.New("stage dq_to_stg failed"),
	}}

	w := New(Config{Store: store, Orchestrator: orch})
	if err := w.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := store.get(run.ID)
	if got.Status != domain.RunStatusFailed || got.Cause != domain.CauseStageFailed {
		t.Errorf("unexpected status/cause: %s/%s", got.Status, got.Cause)
	}
	if got.FailedStage != domain.StageDQToStaging {
		t.Errorf("expected failed stage dq_to_stg, got %s", got.FailedStage)
	}
	if got.Error != "stage dq_to_stg failed" {
		t.Errorf("unexpected error text: %q", got.Error)
	}
}

func TestProcessRun_WithoutConfigURIUsesProducer(t *testing.T) {
	run := pendingRun("")
	store := newMemStore(run)
	producer := &fakeProducer{result: scanner.Result{
		ConfigURI: "s3://configs/runs/config_2024-01-01_20240101T000000.yaml",
		Status:    domain.RunStatusSucceeded,
		Run:       orchestrator.Result{Status: domain.RunStatusSucceeded},
	}}
	orch := &fakeOrchestrator{}

	w := New(Config{Store: store, Orchestrator: orch, Producer: producer})
	if err := w.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if producer.calls != 1 || orch.count() != 0 {
		t.Fatalf("expected producer only, got producer=%d orchestrator=%d", producer.calls, orch.count())
	}
	if producer.req.RunID != run.ID.String() || producer.req.BatchDate != "2024-01-01" {
		t.Errorf("unexpected producer request: %+v", producer.req)
	}

	got := store.get(run.ID)
	if got.ConfigURI != producer.result.ConfigURI {
		t.Errorf("config_uri should be recorded, got %q", got.ConfigURI)
	}
	if got.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", got.Status)
	}
}

func TestProcessRun_ProducerError(t *testing.T) {
	run := pendingRun("")
	store := newMemStore(run)
	producer := &fakeProducer{err: scanner.ErrStore}

	w := New(Config{Store: store, Producer: producer})
	if err := w.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := store.get(run.ID)
	if got.Status != domain.RunStatusFailed || got.Cause != domain.CauseProduce {
		t.Errorf("expected FAILED/produce, got %s/%s", got.Status, got.Cause)
	}
}

func TestProcessRun_NotPending(t *testing.T) {
	run := pendingRun("file:///cfg.yaml")
	run.Status = domain.RunStatusSucceeded
	store := newMemStore(run)
	orch := &fakeOrchestrator{}

	w := New(Config{Store: store, Orchestrator: orch})
	err := w.processRun(context.Background(), run.ID)
	if !errors.Is(err, ErrRunNotPending) {
		t.Errorf("expected ErrRunNotPending, got %v", err)
	}
	if orch.count() != 0 {
		t.Error("orchestrator must not be called")
	}
}

func TestProcessRun_NotFound(t *testing.T) {
	w := New(Config{Store: newMemStore()})
	if err := w.processRun(context.Background(), uuid.New()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestProcessRun_ClaimedOnce(t *testing.T) {
	run := pendingRun("file:///cfg.yaml")
	store := newMemStore(run)
	orch := &fakeOrchestrator{result: orchestrator.Result{Status: domain.RunStatusSucceeded}}
	w := New(Config{Store: store, Orchestrator: orch})

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.processRun(context.Background(), run.ID)
		}()
	}
	wg.Wait()

	if orch.count() != 1 {
		t.Errorf("expected exactly one execution, got %d", orch.count())
	}
	if store.claims != 1 {
		t.Errorf("expected one claim, got %d", store.claims)
	}
}

func TestHandleRunRequested(t *testing.T) {
	run := pendingRun("file:///cfg.yaml")
	store := newMemStore(run)
	orch := &fakeOrchestrator{result: orchestrator.Result{Status: domain.RunStatusSucceeded}}
	w := New(Config{Store: store, Orchestrator: orch})

	delivery := func(id uuid.UUID) *mq.Delivery {
		return &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeRunRequested, mq.RunRequestedPayload{RunID: id})}
	}

	if err := w.handleRunRequested(context.Background(), delivery(run.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Повторная доставка — run уже завершён, сообщение подтверждается
	if err := w.handleRunRequested(context.Background(), delivery(run.ID)); err != nil {
		t.Errorf("redelivery should be acked, got %v", err)
	}
	if orch.count() != 1 {
		t.Errorf("expected one execution, got %d", orch.count())
	}

	// Неизвестный run — в DLQ
	err := w.handleRunRequested(context.Background(), delivery(uuid.New()))
	if !mq.IsPermanent(err) {
		t.Errorf("unknown run should be permanent error, got %v", err)
	}
}

func TestHandleRunRequested_Stopped(t *testing.T) {
	run := pendingRun("file:///cfg.yaml")
	orch := &fakeOrchestrator{result: orchestrator.Result{Status: domain.RunStatusSucceeded}}
	w := New(Config{Store: newMemStore(run), Orchestrator: orch})
	w.Stop()

	msg := &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeRunRequested, mq.RunRequestedPayload{RunID: run.ID})}
	err := w.handleRunRequested(context.Background(), msg)
	if !errors.Is(err, ErrWorkerStopped) {
		t.Fatalf("expected ErrWorkerStopped, got %v", err)
	}
	if mq.IsPermanent(err) {
		t.Error("stopped worker should requeue the message")
	}
	if orch.count() != 0 {
		t.Errorf("expected no executions, got %d", orch.count())
	}
}

func TestPoll_ProcessesPendingRuns(t *testing.T) {
	runs := []domain.Run{pendingRun("file:///a.yaml"), pendingRun("file:///b.yaml")}
	store := newMemStore(runs...)
	orch := &fakeOrchestrator{result: orchestrator.Result{Status: domain.RunStatusSucceeded}}
	w := New(Config{Store: store, Orchestrator: orch, MaxConcurrent: 1})

	w.poll(context.Background())
	w.wg.Wait()

	if orch.count() != 2 {
		t.Errorf("expected 2 executions, got %d", orch.count())
	}
	for _, r := range runs {
		if got := store.get(r.ID); got.Status != domain.RunStatusSucceeded {
			t.Errorf("run %s: expected SUCCEEDED, got %s", r.ID, got.Status)
		}
	}
}

func TestPoll_ListError(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("connection refused")
	w := New(Config{Store: store})

	w.poll(context.Background())
	w.wg.Wait()
}

func TestStartStop_PollingOnly(t *testing.T) {
	run := pendingRun("file:///cfg.yaml")
	store := newMemStore(run)
	orch := &fakeOrchestrator{result: orchestrator.Result{Status: domain.RunStatusSucceeded}}
	w := New(Config{Store: store, Orchestrator: orch, PollInterval: 10 * time.Millisecond})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.get(run.ID).Status != domain.RunStatusSucceeded {
		if time.Now().After(deadline) {
			t.Fatal("run was not processed by polling")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w.Stop()
	if !w.IsStopped() {
		t.Error("worker should be stopped")
	}
}
