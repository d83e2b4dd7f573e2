package orchestrator

import (
	"fmt"
	"time"

	"github.com/shaiso/Cascade/internal/domain"
)

// State — состояние конечного автомата run.
//
//	Init → ConfigLoaded → ConfigValidated → AwaitingLanding
//	     → LandingTimedOut | LandingFound
//	     → RunningStage(k)… → StageFailed(k) | AllStagesSucceeded
//	     → Dispatched → Terminal
//
// Из любого состояния до Dispatched есть переход в Dispatched (ошибка).
type State string

const (
	StateInit               State = "init"
	StateConfigLoaded       State = "config_loaded"
	StateConfigValidated    State = "config_validated"
	StateAwaitingLanding    State = "awaiting_landing"
	StateLandingTimedOut    State = "landing_timed_out"
	StateLandingFound       State = "landing_found"
	StateRunningStage       State = "running_stage"
	StateStageFailed        State = "stage_failed"
	StateAllStagesSucceeded State = "all_stages_succeeded"
	StateDispatched         State = "dispatched"
	StateTerminal           State = "terminal"
)

// transitions — допустимые переходы (кроме перехода в Dispatched).
var transitions = map[State][]State{
	StateInit:            {StateConfigLoaded},
	StateConfigLoaded:    {StateConfigValidated},
	StateConfigValidated: {StateAwaitingLanding},
	StateAwaitingLanding: {StateLandingTimedOut, StateLandingFound},
	StateLandingFound:    {StateRunningStage},
	StateRunningStage:    {StateRunningStage, StateStageFailed, StateAllStagesSucceeded},
	StateDispatched:      {StateTerminal},
}

// Transition — запись в трассе run.
type Transition struct {
	State State           `json:"state"`
	Stage domain.StageKey `json:"stage,omitempty"`
	At    time.Time       `json:"at"`
}

func (t Transition) String() string {
	if t.Stage != "" {
		return fmt.Sprintf("%s(%s)", t.State, t.Stage)
	}
	return string(t.State)
}

// RunState — состояние одного run в памяти.
//
// Создаётся на время Orchestrator.Run и принадлежит одной горутине,
// поэтому не защищено мьютексом.
type RunState struct {
	RunID      string
	WorkflowID string
	StartedAt  time.Time

	// Config — загруженная конфигурация (пустая до ConfigLoaded).
	Config domain.RunConfig

	// Stages — записи о запущенных стадиях, в порядке запуска.
	Stages []domain.StageRun

	Cause       domain.FailureCause
	FailedStage domain.StageKey
	Err         error

	current    State
	trace      []Transition
	dispatched bool
}

// NewRunState создаёт RunState в состоянии Init.
func NewRunState(runID, workflowID string, startedAt time.Time) *RunState {
	return &RunState{
		RunID:      runID,
		WorkflowID: workflowID,
		StartedAt:  startedAt,
		current:    StateInit,
		trace:      []Transition{{State: StateInit, At: startedAt}},
	}
}

// Current возвращает текущее состояние.
func (s *RunState) Current() State {
	return s.current
}

// Trace возвращает копию трассы переходов.
func (s *RunState) Trace() []Transition {
	out := make([]Transition, len(s.trace))
	copy(out, s.trace)
	return out
}

// Advance переводит автомат в состояние to.
func (s *RunState) Advance(to State, stage domain.StageKey) error {
	if !s.canAdvance(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.current, to)
	}
	s.current = to
	s.trace = append(s.trace, Transition{State: to, Stage: stage, At: time.Now()})
	return nil
}

func (s *RunState) canAdvance(to State) bool {
	if to == StateDispatched {
		return !s.dispatched && s.current != StateDispatched && s.current != StateTerminal
	}
	for _, allowed := range transitions[s.current] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Fail фиксирует причину ошибки. Повторные вызовы не перетирают
// первую причину.
func (s *RunState) Fail(cause domain.FailureCause, stage domain.StageKey, err error) {
	if s.Cause != domain.CauseNone {
		return
	}
	s.Cause = cause
	s.FailedStage = stage
	s.Err = err
}

// MarkDispatched переводит автомат в Dispatched.
// Возвращает ErrAlreadyDispatched при повторном вызове.
func (s *RunState) MarkDispatched() error {
	if s.dispatched {
		return ErrAlreadyDispatched
	}
	if err := s.Advance(StateDispatched, ""); err != nil {
		return err
	}
	s.dispatched = true
	return nil
}

// Status возвращает итоговый статус run.
func (s *RunState) Status() domain.RunStatus {
	if s.Cause != domain.CauseNone {
		return domain.RunStatusFailed
	}
	return domain.RunStatusSucceeded
}

// AddStage добавляет запись о стадии.
func (s *RunState) AddStage(run domain.StageRun) {
	s.Stages = append(s.Stages, run)
}
