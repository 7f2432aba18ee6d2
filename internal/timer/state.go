package timer

import (
	"encoding/json"
	"maps"
	"slices"
)

// DateLayout is the format of State.LastActiveDate.
const DateLayout = "2006-01-02"

// State is one user's time-tracking bookkeeping for one calendar day.
//
// Invariants kept by Controller:
//   - ActiveTaskID != nil and OnBreak are never both true;
//   - TaskPaused implies ActiveTaskID != nil;
//   - BreakStartedAt != nil iff OnBreak && !BreakPaused;
//   - TaskElapsed values and BreakAccumulated are never negative.
type State struct {
	TaskElapsed      map[int64]int64    `json:"taskTimers"`
	ActiveTaskID     *int64             `json:"activeTaskId"`
	TaskPaused       bool               `json:"isPaused"`
	OnBreak          bool               `json:"isOnBreak"`
	BreakStartedAt   *int64             `json:"breakStartedAt"` // epoch ms of the running segment
	BreakAccumulated int64              `json:"totalBreakSeconds"`
	BreakPaused      bool               `json:"isBreakPaused"`
	BreakPausedAt    *int64             `json:"breakPauseStartedAt"` // epoch ms, informational
	StartedTasks     map[int64]struct{} `json:"-"`
	LastActiveDate   string             `json:"lastActiveDate"`
}

func freshState(today string) State {
	return State{
		TaskElapsed:    map[int64]int64{},
		StartedTasks:   map[int64]struct{}{},
		LastActiveDate: today,
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.TaskElapsed = maps.Clone(s.TaskElapsed)
	if out.TaskElapsed == nil {
		out.TaskElapsed = map[int64]int64{}
	}
	out.StartedTasks = maps.Clone(s.StartedTasks)
	if out.StartedTasks == nil {
		out.StartedTasks = map[int64]struct{}{}
	}
	out.ActiveTaskID = clonePtr(s.ActiveTaskID)
	out.BreakStartedAt = clonePtr(s.BreakStartedAt)
	out.BreakPausedAt = clonePtr(s.BreakPausedAt)
	return out
}

type plainState State

type stateJSON struct {
	plainState
	Started []int64 `json:"startedTaskIds"`
}

// MarshalJSON writes the started-task set as a sorted id list.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{plainState: plainState(s), Started: s.StartedTaskIDs()})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *State) UnmarshalJSON(b []byte) error {
	var aux stateJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*s = State(aux.plainState)
	if s.TaskElapsed == nil {
		s.TaskElapsed = map[int64]int64{}
	}
	s.StartedTasks = make(map[int64]struct{}, len(aux.Started))
	for _, id := range aux.Started {
		s.StartedTasks[id] = struct{}{}
	}
	return nil
}

// StartedTaskIDs returns the started-task set in ascending order.
func (s State) StartedTaskIDs() []int64 {
	return slices.Sorted(maps.Keys(s.StartedTasks))
}

// Worked is the sum of all per-task elapsed seconds.
func (s State) Worked() int64 {
	var total int64
	for _, v := range s.TaskElapsed {
		total += v
	}
	return total
}

// BreakSeconds is the banked break time plus the running segment measured at nowMs.
func (s State) BreakSeconds(nowMs int64) int64 {
	total := s.BreakAccumulated
	if s.OnBreak && !s.BreakPaused && s.BreakStartedAt != nil {
		if d := (nowMs - *s.BreakStartedAt) / 1000; d > 0 {
			total += d
		}
	}
	return total
}

// IsActive reports whether taskID is the active task.
func (s State) IsActive(taskID int64) bool {
	return s.ActiveTaskID != nil && *s.ActiveTaskID == taskID
}

func clonePtr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr(v int64) *int64 { return &v }
