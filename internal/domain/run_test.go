package domain

import (
	"testing"
	"time"
)

func TestRun_Lifecycle(t *testing.T) {
	var r Run
	if r.IsFinished() || r.Duration() != 0 {
		t.Fatal("new run should be unfinished with zero duration")
	}

	r.MarkRunning()
	if r.Status != RunStatusRunning || r.StartedAt == nil {
		t.Fatalf("expected RUNNING with start time, got %+v", r)
	}
	if r.IsFinished() {
		t.Error("running run should not be finished")
	}

	r.MarkFailed(CauseLandingTimeout, "landing data not found")
	if r.Status != RunStatusFailed || r.Cause != CauseLandingTimeout || r.Error == "" {
		t.Errorf("unexpected failed run: %+v", r)
	}
	if !r.IsFinished() || r.FinishedAt == nil {
		t.Error("failed run should be finished")
	}
	if r.Duration() < 0 {
		t.Errorf("negative duration: %v", r.Duration())
	}
}

func TestRunStatus_EventStatus(t *testing.T) {
	tests := []struct {
		status RunStatus
		want   EventStatus
	}{
		{RunStatusSucceeded, EventStatusSuccess},
		{RunStatusFailed, EventStatusFailed},
		{RunStatusRunning, ""},
		{RunStatusPending, ""},
	}
	for _, tt := range tests {
		if got := tt.status.EventStatus(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStageRun_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	s := StageRun{StageKey: StageDQToStaging, TriggeredAt: start, Status: StageStatusPending}
	if s.Duration() != 0 || s.Status.IsTerminal() {
		t.Fatal("pending stage should have zero duration")
	}

	s.MarkFinished(StageStatusSucceeded, start.Add(90*time.Second))
	if s.Duration() != 90*time.Second || !s.Status.IsTerminal() {
		t.Errorf("unexpected stage: %+v", s)
	}
}

func TestStageOrder(t *testing.T) {
	if len(StageOrder) != 3 || StageOrder[0] != StageLandingToDQ || StageOrder[2] != StageStagingToRef {
		t.Errorf("unexpected stage order: %v", StageOrder)
	}
	if !IsKnownStage(StageDQToStaging) || IsKnownStage("raw_to_lnd") {
		t.Error("IsKnownStage mismatch")
	}
}
