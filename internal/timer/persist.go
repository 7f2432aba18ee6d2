package timer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Persisted field names, one store key each: user:<id>:<field>.
const (
	fieldTaskTimers          = "taskTimers"
	fieldActiveTaskID        = "activeTaskId"
	fieldIsPaused            = "isPaused"
	fieldIsOnBreak           = "isOnBreak"
	fieldBreakStartedAt      = "breakStartedAt"
	fieldTotalBreakSeconds   = "totalBreakSeconds"
	fieldIsBreakPaused       = "isBreakPaused"
	fieldBreakPauseStartedAt = "breakPauseStartedAt"
	fieldStartedTaskIDs      = "startedTaskIds"
	fieldLastActiveDate      = "lastActiveDate"
)

var allFields = []string{
	fieldTaskTimers, fieldActiveTaskID, fieldIsPaused, fieldIsOnBreak, fieldBreakStartedAt,
	fieldTotalBreakSeconds, fieldIsBreakPaused, fieldBreakPauseStartedAt, fieldStartedTaskIDs,
	fieldLastActiveDate,
}

// Key returns the store key of a persisted field for userID.
func Key(userID int64, field string) string {
	return "user:" + strconv.FormatInt(userID, 10) + ":" + field
}

// LoadForUser rehydrates userID's state from the store. A record from an earlier date is
// replaced by a fresh state for today. Unparseable fields load as their defaults.
func (c *Controller) LoadForUser(ctx context.Context, userID int64, today string) error {
	if userID <= 0 {
		return fmt.Errorf("timer: invalid user id %d", userID)
	}
	c.lock()
	defer c.unlock()

	st, repaired, err := c.readState(ctx, userID)
	if err != nil {
		return fmt.Errorf("load timer state: %w", err)
	}
	c.userID = userID
	c.state = st
	if repaired {
		c.queue(Event{Kind: EventStateRepaired, Message: "stored timer state was partially unreadable"})
	}
	if prev := c.state.LastActiveDate; prev != today {
		if prev != "" {
			c.log.Info("stored timer state is from an earlier day, reset",
				zap.Int64("user_id", userID),
				zap.String("previous_date", prev),
				zap.String("today", today),
			)
			c.queue(Event{Kind: EventDayRollover, Message: prev})
		}
		c.state = freshState(today)
		return c.persistLocked(ctx)
	}
	if repaired {
		return c.persistLocked(ctx)
	}
	return nil
}

// PersistForUser writes the full state of the loaded user.
func (c *Controller) PersistForUser(ctx context.Context, userID int64) error {
	c.lock()
	defer c.unlock()
	if c.userID == 0 {
		return ErrNotLoaded
	}
	if userID != c.userID {
		return fmt.Errorf("timer: persist for user %d while user %d is loaded", userID, c.userID)
	}
	return c.persistLocked(ctx)
}

// ResetIfNewDay resets userID's state when its date is not today and reports whether it did.
func (c *Controller) ResetIfNewDay(ctx context.Context, userID int64, today string) (bool, error) {
	c.lock()
	defer c.unlock()
	if c.userID == 0 {
		return false, ErrNotLoaded
	}
	if userID != c.userID {
		return false, fmt.Errorf("timer: reset for user %d while user %d is loaded", userID, c.userID)
	}
	if c.state.LastActiveDate == today {
		return false, nil
	}
	prev := c.state.LastActiveDate
	c.state = freshState(today)
	c.queue(Event{Kind: EventDayRollover, Message: prev})
	return true, c.persistLocked(ctx)
}

// persistLocked writes the given fields (all when none given). Default values are removed.
func (c *Controller) persistLocked(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		fields = allFields
	}
	for _, f := range fields {
		raw, keep, err := encodeField(&c.state, f)
		if err != nil {
			return fmt.Errorf("encode %s: %w", f, err)
		}
		key := Key(c.userID, f)
		if !keep {
			err = c.store.Remove(ctx, key)
		} else {
			err = c.store.Set(ctx, key, raw)
		}
		if err != nil {
			return fmt.Errorf("persist %s: %w", f, err)
		}
	}
	return nil
}

func encodeField(s *State, field string) (string, bool, error) {
	var v any
	switch field {
	case fieldTaskTimers:
		if len(s.TaskElapsed) == 0 {
			return "", false, nil
		}
		v = s.TaskElapsed
	case fieldActiveTaskID:
		if s.ActiveTaskID == nil {
			return "", false, nil
		}
		v = *s.ActiveTaskID
	case fieldIsPaused:
		if !s.TaskPaused {
			return "", false, nil
		}
		v = true
	case fieldIsOnBreak:
		if !s.OnBreak {
			return "", false, nil
		}
		v = true
	case fieldBreakStartedAt:
		if s.BreakStartedAt == nil {
			return "", false, nil
		}
		v = *s.BreakStartedAt
	case fieldTotalBreakSeconds:
		if s.BreakAccumulated == 0 {
			return "", false, nil
		}
		v = s.BreakAccumulated
	case fieldIsBreakPaused:
		if !s.BreakPaused {
			return "", false, nil
		}
		v = true
	case fieldBreakPauseStartedAt:
		if s.BreakPausedAt == nil {
			return "", false, nil
		}
		v = *s.BreakPausedAt
	case fieldStartedTaskIDs:
		if len(s.StartedTasks) == 0 {
			return "", false, nil
		}
		v = s.StartedTaskIDs()
	case fieldLastActiveDate:
		if s.LastActiveDate == "" {
			return "", false, nil
		}
		v = s.LastActiveDate
	default:
		return "", false, fmt.Errorf("unknown field %q", field)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// readField decodes one field. A missing key yields the zero value; an unparseable one
// too, counted in bad. Only store errors are returned.
func readField[T any](ctx context.Context, c *Controller, userID int64, field string, bad *int) (T, error) {
	var zero, v T
	raw, ok, err := c.store.Get(ctx, Key(userID, field))
	if err != nil || !ok {
		return zero, err
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		c.log.Warn("malformed timer field, using default",
			zap.Int64("user_id", userID),
			zap.String("field", field),
			zap.Error(err),
		)
		*bad++
		return zero, nil
	}
	return v, nil
}

// readState loads every field and reports whether anything had to be defaulted or repaired.
func (c *Controller) readState(ctx context.Context, userID int64) (st State, repaired bool, err error) {
	st = freshState("")
	bad := 0

	timers, err := readField[map[int64]int64](ctx, c, userID, fieldTaskTimers, &bad)
	if err != nil {
		return State{}, false, err
	}
	for id, secs := range timers {
		if secs < 0 {
			bad++
			continue
		}
		st.TaskElapsed[id] = secs
	}
	if st.ActiveTaskID, err = readField[*int64](ctx, c, userID, fieldActiveTaskID, &bad); err != nil {
		return State{}, false, err
	}
	if st.TaskPaused, err = readField[bool](ctx, c, userID, fieldIsPaused, &bad); err != nil {
		return State{}, false, err
	}
	if st.OnBreak, err = readField[bool](ctx, c, userID, fieldIsOnBreak, &bad); err != nil {
		return State{}, false, err
	}
	if st.BreakStartedAt, err = readField[*int64](ctx, c, userID, fieldBreakStartedAt, &bad); err != nil {
		return State{}, false, err
	}
	if st.BreakAccumulated, err = readField[int64](ctx, c, userID, fieldTotalBreakSeconds, &bad); err != nil {
		return State{}, false, err
	}
	if st.BreakPaused, err = readField[bool](ctx, c, userID, fieldIsBreakPaused, &bad); err != nil {
		return State{}, false, err
	}
	if st.BreakPausedAt, err = readField[*int64](ctx, c, userID, fieldBreakPauseStartedAt, &bad); err != nil {
		return State{}, false, err
	}
	started, err := readField[[]int64](ctx, c, userID, fieldStartedTaskIDs, &bad)
	if err != nil {
		return State{}, false, err
	}
	for _, id := range started {
		st.StartedTasks[id] = struct{}{}
	}
	if st.LastActiveDate, err = readField[string](ctx, c, userID, fieldLastActiveDate, &bad); err != nil {
		return State{}, false, err
	}

	bad += repairInvariants(&st, c.now().UnixMilli())
	return st, bad > 0, nil
}

// repairInvariants fixes combinations that cannot be produced by the controller, including
// records written with the older paired-timestamp break model. It returns the fix count.
func repairInvariants(s *State, nowMs int64) int {
	fixes := 0
	if s.BreakAccumulated < 0 {
		s.BreakAccumulated = 0
		fixes++
	}
	if s.OnBreak && s.ActiveTaskID != nil {
		s.ActiveTaskID = nil
		s.TaskPaused = false
		fixes++
	}
	if s.ActiveTaskID == nil && s.TaskPaused {
		s.TaskPaused = false
		fixes++
	}
	if !s.OnBreak {
		if s.BreakStartedAt != nil || s.BreakPaused || s.BreakPausedAt != nil {
			s.BreakStartedAt, s.BreakPaused, s.BreakPausedAt = nil, false, nil
			fixes++
		}
		return fixes
	}
	switch {
	case s.BreakPaused && s.BreakStartedAt != nil:
		// older records kept the segment start while paused; bank up to the pause point
		if s.BreakPausedAt != nil && *s.BreakPausedAt > *s.BreakStartedAt {
			s.BreakAccumulated += (*s.BreakPausedAt - *s.BreakStartedAt) / 1000
		}
		s.BreakStartedAt = nil
		fixes++
	case !s.BreakPaused && s.BreakStartedAt == nil:
		s.BreakStartedAt = ptr(nowMs)
		fixes++
	case !s.BreakPaused && s.BreakPausedAt != nil:
		s.BreakPausedAt = nil
		fixes++
	}
	return fixes
}
