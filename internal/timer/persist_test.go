package timer

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/tasktime/internal/kvstore"
)

func reload(t *testing.T, store kvstore.Store, clock *fakeClock) (*Controller, *eventLog) {
	t.Helper()
	evs := &eventLog{}
	c := NewController(Config{Location: time.UTC, Clock: clock.Now}, store, nil, evs, zaptest.NewLogger(t))
	t.Cleanup(c.Close)
	require.NoError(t, c.LoadForUser(context.Background(), testUser, c.Today()))
	return c, evs
}

func TestRehydrate_SameDayReproducesState(t *testing.T) {
	h := newHarness(t, day, BreakWindow{})
	ctx := context.Background()

	require.NoError(t, h.c.StartTask(ctx, 1))
	h.ticks(t, 12)
	require.NoError(t, h.c.StartTask(ctx, 2))
	h.ticks(t, 3)
	require.NoError(t, h.c.PauseTask(ctx))
	h.c.Wait()
	before := h.c.Status().State

	c2, _ := reload(t, h.store, h.clock)
	after := c2.Status().State
	require.Equal(t, before, after)
	require.Equal(t, int64(12), after.TaskElapsed[1])
	require.True(t, after.IsActive(2))
	require.True(t, after.TaskPaused)

	// resuming in the new controller continues where the old one stopped
	require.NoError(t, c2.ResumeTask(ctx))
	h.clock.Advance(time.Second)
	require.NoError(t, c2.Tick(ctx))
	require.Equal(t, int64(4), c2.Status().State.TaskElapsed[2])
}

func TestRehydrate_OpenBreakSurvivesReload(t *testing.T) {
	h := newHarness(t, day, BreakWindow{})
	ctx := context.Background()

	require.NoError(t, h.c.StartBreak(ctx))
	h.clock.Advance(40 * time.Second)
	require.NoError(t, h.c.PauseBreak(ctx))
	require.NoError(t, h.c.ResumeBreak(ctx))
	h.clock.Advance(20 * time.Second)

	c2, _ := reload(t, h.store, h.clock)
	st := c2.Status().State
	require.True(t, st.OnBreak)
	require.Equal(t, int64(40), st.BreakAccumulated)
	require.Equal(t, int64(60), c2.CurrentBreakSeconds())
}

func TestRehydrate_YesterdayResets(t *testing.T) {
	h := newHarness(t, day, BreakWindow{})
	ctx := context.Background()

	require.NoError(t, h.c.StartTask(ctx, 1))
	h.ticks(t, 100)
	require.NoError(t, h.c.StartBreak(ctx))
	h.c.Wait()

	h.clock.Advance(24 * time.Hour)
	c2, evs := reload(t, h.store, h.clock)
	st := c2.Status().State
	require.Equal(t, "2025-01-16", st.LastActiveDate)
	require.Empty(t, st.TaskElapsed)
	require.Empty(t, st.StartedTasks)
	require.Nil(t, st.ActiveTaskID)
	require.False(t, st.OnBreak)
	require.Zero(t, st.BreakAccumulated)

	require.Equal(t, []EventKind{EventDayRollover}, evs.Kinds())

	// stale fields were removed from the store as well
	require.Equal(t, []string{Key(testUser, fieldLastActiveDate)}, h.store.Keys("user:42:"))
}

func TestRehydrate_StaleRecordReportsRollover(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	clock := &fakeClock{t: day}

	require.NoError(t, store.Set(ctx, Key(testUser, fieldLastActiveDate), `"2025-01-14"`))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldTaskTimers), `{"1":100}`))

	c, evs := reload(t, store, clock)
	require.Zero(t, c.TotalWorkedSeconds())
	require.Equal(t, []EventKind{EventDayRollover}, evs.Kinds())
	require.Equal(t, "2025-01-14", evs.Last().Message)
}

func TestRehydrate_NewUserNoRollover(t *testing.T) {
	c, evs := reload(t, kvstore.NewMemory(), &fakeClock{t: day})
	require.Equal(t, "2025-01-15", c.Status().State.LastActiveDate)
	require.Empty(t, evs.Kinds())
}

func TestResetIfNewDay(t *testing.T) {
	h := newHarness(t, day, BreakWindow{})
	ctx := context.Background()

	require.NoError(t, h.c.StartTask(ctx, 1))
	h.ticks(t, 3)

	reset, err := h.c.ResetIfNewDay(ctx, testUser, "2025-01-15")
	require.NoError(t, err)
	require.False(t, reset)

	reset, err = h.c.ResetIfNewDay(ctx, testUser, "2025-01-16")
	require.NoError(t, err)
	require.True(t, reset)
	require.Zero(t, h.c.TotalWorkedSeconds())

	_, err = h.c.ResetIfNewDay(ctx, 7, "2025-01-16")
	require.Error(t, err)
}

func TestPersistForUser_WrongUser(t *testing.T) {
	h := newHarness(t, day, BreakWindow{})
	require.NoError(t, h.c.PersistForUser(context.Background(), testUser))
	require.Error(t, h.c.PersistForUser(context.Background(), 7))
}

func TestPersist_RecordLayout(t *testing.T) {
	h := newHarness(t, day, BreakWindow{})
	ctx := context.Background()

	require.NoError(t, h.c.StartTask(ctx, 3))
	h.ticks(t, 2)
	require.NoError(t, h.c.PauseTask(ctx))
	h.c.Wait()

	get := func(field string) string {
		v, ok, err := h.store.Get(ctx, Key(testUser, field))
		require.NoError(t, err)
		require.True(t, ok, field)
		return v
	}
	require.Equal(t, `{"3":2}`, get(fieldTaskTimers))
	require.Equal(t, `3`, get(fieldActiveTaskID))
	require.Equal(t, `true`, get(fieldIsPaused))
	require.Equal(t, `[3]`, get(fieldStartedTaskIDs))
	require.Equal(t, `"2025-01-15"`, get(fieldLastActiveDate))

	_, ok, _ := h.store.Get(ctx, Key(testUser, fieldIsOnBreak))
	require.False(t, ok)
}

func TestRehydrate_MalformedFieldsDefault(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	clock := &fakeClock{t: day}

	require.NoError(t, store.Set(ctx, Key(testUser, fieldLastActiveDate), `"2025-01-15"`))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldTaskTimers), `{"1":120,"2":-4}`))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldActiveTaskID), `not-a-number`))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldIsPaused), `true`))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldTotalBreakSeconds), `{`))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldStartedTaskIDs), `[1,"x"]`))

	c, evs := reload(t, store, clock)
	st := c.Status().State
	require.Equal(t, map[int64]int64{1: 120}, st.TaskElapsed)
	require.Nil(t, st.ActiveTaskID)
	require.False(t, st.TaskPaused, "pause without an active task is dropped")
	require.Zero(t, st.BreakAccumulated)
	require.Empty(t, st.StartedTasks)
	require.Contains(t, evs.Kinds(), EventStateRepaired)

	// the repaired record is written back
	_, ok, _ := store.Get(ctx, Key(testUser, fieldIsPaused))
	require.False(t, ok)
}

func TestRehydrate_LegacyPausedBreak(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	clock := &fakeClock{t: day}
	started := day.Add(-10 * time.Minute).UnixMilli()
	paused := day.Add(-4 * time.Minute).UnixMilli()

	require.NoError(t, store.Set(ctx, Key(testUser, fieldLastActiveDate), `"2025-01-15"`))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldIsOnBreak), `true`))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldIsBreakPaused), `true`))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldBreakStartedAt), strconv.FormatInt(started, 10)))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldBreakPauseStartedAt), strconv.FormatInt(paused, 10)))
	require.NoError(t, store.Set(ctx, Key(testUser, fieldActiveTaskID), `9`))

	c, _ := reload(t, store, clock)
	st := c.Status().State
	require.True(t, st.OnBreak)
	require.True(t, st.BreakPaused)
	require.Nil(t, st.BreakStartedAt)
	require.Nil(t, st.ActiveTaskID)
	require.Equal(t, int64(6*60), st.BreakAccumulated)
}

type failingStore struct {
	kvstore.Store
	err error
}

func (f failingStore) Set(context.Context, string, string) error { return f.err }

func TestPersistFailure_KeepsTransition(t *testing.T) {
	clock := &fakeClock{t: day}
	mem := kvstore.NewMemory()
	c := NewController(Config{Location: time.UTC, Clock: clock.Now}, mem, nil, nil, zaptest.NewLogger(t))
	defer c.Close()
	require.NoError(t, c.LoadForUser(context.Background(), testUser, c.Today()))

	boom := errors.New("disk full")
	c.store = failingStore{Store: mem, err: boom}
	err := c.StartTask(context.Background(), 1)
	require.ErrorIs(t, err, boom)
	require.True(t, c.Status().State.IsActive(1))
}
