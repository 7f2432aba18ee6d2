// Package timer implements the per-user task timer and manual break state machine.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/kvstore"
)

// ErrNotLoaded is returned by state operations before LoadForUser.
var ErrNotLoaded = errors.New("timer: no user loaded")

// Assigner registers the first start of a task with the task service.
type Assigner interface {
	RegisterAssignment(ctx context.Context, taskID, userID int64) error
}

// Config tunes a Controller. Zero values fall back to defaults.
type Config struct {
	BreakWindow        BreakWindow
	WorkTarget         time.Duration  // default DefaultWorkTarget
	BreakReducesTarget bool           // subtract break time from WorkTarget
	AssignTimeout      time.Duration  // default 10s
	Location           *time.Location // day boundaries; default time.Local
	Clock              func() time.Time
}

// Status is a point-in-time view for rendering.
type Status struct {
	UserID       int64     `json:"userId"`
	State        State     `json:"state"`
	Progress     Progress  `json:"progress"`
	BreakAllowed bool      `json:"breakAllowed"`
	BreakWindow  string    `json:"breakWindow"`
	At           time.Time `json:"at"`
}

// Controller is the single mutator of one user's State. All methods are safe for
// concurrent use; the remote assignment call runs outside the lock.
type Controller struct {
	cfg      Config
	store    kvstore.Store
	assigner Assigner
	notifier Notifier
	log      *zap.Logger

	mu      sync.Mutex
	userID  int64
	state   State
	pending []Event

	inflight sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewController constructs a Controller. assigner and notifier may be nil.
func NewController(cfg Config, store kvstore.Store, assigner Assigner, notifier Notifier, log *zap.Logger) *Controller {
	if cfg.WorkTarget <= 0 {
		cfg.WorkTarget = DefaultWorkTarget
	}
	if cfg.AssignTimeout <= 0 {
		cfg.AssignTimeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		cfg:      cfg,
		store:    store,
		assigner: assigner,
		notifier: notifier,
		log:      log,
		state:    freshState(""),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Today returns the current calendar date in the controller's location.
func (c *Controller) Today() string { return c.now().Format(DateLayout) }

func (c *Controller) now() time.Time { return c.cfg.Clock().In(c.cfg.Location) }

// lock/unlock pair; unlock delivers events queued while locked.
func (c *Controller) lock() { c.mu.Lock() }

func (c *Controller) unlock() {
	evs := c.pending
	c.pending = nil
	c.mu.Unlock()
	c.emit(evs...)
}

func (c *Controller) emit(evs ...Event) {
	if c.notifier == nil {
		return
	}
	for _, e := range evs {
		c.notifier.Notify(e)
	}
}

func (c *Controller) queue(e Event) {
	if e.At.IsZero() {
		e.At = c.now()
	}
	c.pending = append(c.pending, e)
}

// begin checks that a user is loaded and rolls the day over if the date changed.
func (c *Controller) begin(ctx context.Context, now time.Time) error {
	if c.userID == 0 {
		return ErrNotLoaded
	}
	if c.rolloverLocked(now) {
		return c.persistLocked(ctx)
	}
	return nil
}

// rolloverLocked resets the state when now falls on a later date than the state.
func (c *Controller) rolloverLocked(now time.Time) bool {
	today := now.Format(DateLayout)
	if c.state.LastActiveDate == today {
		return false
	}
	if c.state.LastActiveDate == "" {
		c.state.LastActiveDate = today
		return true
	}
	prev := c.state.LastActiveDate
	c.state = freshState(today)
	c.log.Info("day rollover, timer state reset",
		zap.Int64("user_id", c.userID),
		zap.String("previous_date", prev),
		zap.String("today", today),
	)
	c.queue(Event{Kind: EventDayRollover, At: now, Message: prev})
	return true
}

func (c *Controller) stopActiveLocked() {
	c.state.ActiveTaskID = nil
	c.state.TaskPaused = false
}

// bankSegmentLocked moves the running break segment into BreakAccumulated.
func (c *Controller) bankSegmentLocked(now time.Time) int64 {
	if c.state.BreakStartedAt == nil {
		return 0
	}
	d := (now.UnixMilli() - *c.state.BreakStartedAt) / 1000
	if d < 0 {
		d = 0
	}
	c.state.BreakAccumulated += d
	c.state.BreakStartedAt = nil
	return d
}

func (c *Controller) endBreakLocked(now time.Time) int64 {
	d := c.bankSegmentLocked(now)
	c.state.OnBreak = false
	c.state.BreakPaused = false
	c.state.BreakPausedAt = nil
	return d
}

// StartTask makes taskID the active task, implicitly stopping any other one. The first
// start of a task per day also registers the assignment remotely, best effort.
func (c *Controller) StartTask(ctx context.Context, taskID int64) error {
	c.lock()
	defer c.unlock()
	if err := c.begin(ctx, c.now()); err != nil {
		return err
	}
	if c.state.OnBreak {
		return errs.ErrBreakInProgress
	}
	if c.state.ActiveTaskID != nil && *c.state.ActiveTaskID != taskID {
		c.stopActiveLocked()
	}
	_, started := c.state.StartedTasks[taskID]
	if !started {
		c.state.StartedTasks[taskID] = struct{}{}
		c.dispatchAssignment(taskID, c.userID)
	}
	c.state.ActiveTaskID = ptr(taskID)
	c.state.TaskPaused = false
	return c.persistLocked(ctx)
}

// PauseTask stops accumulation without clearing the active task. Ignored during a break.
func (c *Controller) PauseTask(ctx context.Context) error {
	c.lock()
	defer c.unlock()
	if err := c.begin(ctx, c.now()); err != nil {
		return err
	}
	if c.state.OnBreak {
		return nil
	}
	if c.state.ActiveTaskID == nil {
		return errs.ErrNoActiveTask
	}
	if c.state.TaskPaused {
		return nil
	}
	c.state.TaskPaused = true
	return c.persistLocked(ctx, fieldIsPaused, fieldLastActiveDate)
}

// ResumeTask resumes a paused active task.
func (c *Controller) ResumeTask(ctx context.Context) error {
	c.lock()
	defer c.unlock()
	if err := c.begin(ctx, c.now()); err != nil {
		return err
	}
	if c.state.OnBreak {
		return errs.ErrBreakInProgress
	}
	if c.state.ActiveTaskID == nil {
		return errs.ErrNoActiveTask
	}
	if !c.state.TaskPaused {
		return nil
	}
	c.state.TaskPaused = false
	return c.persistLocked(ctx, fieldIsPaused, fieldLastActiveDate)
}

// StopTask clears the active task if it is taskID; elapsed time is kept.
func (c *Controller) StopTask(ctx context.Context, taskID int64) error {
	c.lock()
	defer c.unlock()
	if err := c.begin(ctx, c.now()); err != nil {
		return err
	}
	if !c.state.IsActive(taskID) {
		return nil
	}
	c.stopActiveLocked()
	return c.persistLocked(ctx, fieldActiveTaskID, fieldIsPaused, fieldLastActiveDate)
}

// StartBreak opens a manual break, stopping the active task first.
func (c *Controller) StartBreak(ctx context.Context) error {
	c.lock()
	defer c.unlock()
	now := c.now()
	if err := c.begin(ctx, now); err != nil {
		return err
	}
	if c.state.OnBreak {
		return nil
	}
	if !c.cfg.BreakWindow.Allows(now) {
		return errs.ErrBreakWindowClosed
	}
	c.stopActiveLocked()
	c.state.OnBreak = true
	c.state.BreakPaused = false
	c.state.BreakPausedAt = nil
	c.state.BreakStartedAt = ptr(now.UnixMilli())
	return c.persistLocked(ctx)
}

// StopBreak closes the break and banks its running segment.
func (c *Controller) StopBreak(ctx context.Context) error {
	c.lock()
	defer c.unlock()
	now := c.now()
	if err := c.begin(ctx, now); err != nil {
		return err
	}
	if !c.state.OnBreak {
		return nil
	}
	c.endBreakLocked(now)
	return c.persistLocked(ctx)
}

// PauseBreak stops the break clock while keeping the break open.
func (c *Controller) PauseBreak(ctx context.Context) error {
	c.lock()
	defer c.unlock()
	now := c.now()
	if err := c.begin(ctx, now); err != nil {
		return err
	}
	if !c.state.OnBreak || c.state.BreakPaused {
		return nil
	}
	c.bankSegmentLocked(now)
	c.state.BreakPaused = true
	c.state.BreakPausedAt = ptr(now.UnixMilli())
	return c.persistLocked(ctx)
}

// ResumeBreak starts a fresh break segment after PauseBreak.
func (c *Controller) ResumeBreak(ctx context.Context) error {
	c.lock()
	defer c.unlock()
	now := c.now()
	if err := c.begin(ctx, now); err != nil {
		return err
	}
	if !c.state.OnBreak || !c.state.BreakPaused {
		return nil
	}
	c.state.BreakPaused = false
	c.state.BreakPausedAt = nil
	c.state.BreakStartedAt = ptr(now.UnixMilli())
	return c.persistLocked(ctx)
}

// Tick advances the clock by one step: it accrues a second to the running task, ends
// breaks that outlived the break window and resets the state on a new day.
func (c *Controller) Tick(ctx context.Context) error {
	c.lock()
	defer c.unlock()
	if c.userID == 0 {
		return ErrNotLoaded
	}
	now := c.now()
	if c.rolloverLocked(now) {
		return c.persistLocked(ctx)
	}

	s := &c.state
	if s.ActiveTaskID != nil && !s.TaskPaused && !s.OnBreak {
		s.TaskElapsed[*s.ActiveTaskID]++
		return c.persistLocked(ctx, fieldTaskTimers)
	}
	if s.OnBreak && !c.cfg.BreakWindow.Allows(now) {
		banked := c.endBreakLocked(now)
		c.log.Info("break auto-ended outside break window",
			zap.Int64("user_id", c.userID),
			zap.Stringer("window", c.cfg.BreakWindow),
			zap.Int64("banked_seconds", banked),
		)
		c.queue(Event{Kind: EventBreakAutoEnded, At: now, Seconds: banked})
		return c.persistLocked(ctx)
	}
	return nil
}

// Run ticks every interval until ctx is cancelled. Tick errors are logged, not fatal.
func (c *Controller) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := c.Tick(ctx); err != nil && !errors.Is(err, ErrNotLoaded) {
				c.log.Warn("tick", zap.Error(err))
			}
		}
	}
}

// CurrentBreakSeconds is banked break time plus the running segment.
func (c *Controller) CurrentBreakSeconds() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.BreakSeconds(c.now().UnixMilli())
}

// TotalWorkedSeconds sums elapsed seconds across all tasks.
func (c *Controller) TotalWorkedSeconds() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Worked()
}

// Progress reports the day's progress against the work target.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked(c.now())
}

func (c *Controller) progressLocked(now time.Time) Progress {
	return computeProgress(c.state.Worked(), c.state.BreakSeconds(now.UnixMilli()),
		c.cfg.WorkTarget, c.cfg.BreakReducesTarget)
}

// Status returns a deep copy of the state with derived values.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	return Status{
		UserID:       c.userID,
		State:        c.state.Clone(),
		Progress:     c.progressLocked(now),
		BreakAllowed: c.cfg.BreakWindow.Allows(now),
		BreakWindow:  c.cfg.BreakWindow.String(),
		At:           now,
	}
}

// UserID returns the loaded user, 0 if none.
func (c *Controller) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Reset clears the loaded user's state for today (administrative clear).
func (c *Controller) Reset(ctx context.Context) error {
	c.lock()
	defer c.unlock()
	if c.userID == 0 {
		return ErrNotLoaded
	}
	c.state = freshState(c.Today())
	return c.persistLocked(ctx)
}

// dispatchAssignment fires the first-start registration on its own goroutine.
func (c *Controller) dispatchAssignment(taskID, userID int64) {
	if c.assigner == nil {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.AssignTimeout)
		defer cancel()
		ev := Event{Kind: EventAssignmentRegistered, TaskID: taskID, At: c.now()}
		if err := c.assigner.RegisterAssignment(ctx, taskID, userID); err != nil {
			c.log.Warn("register assignment",
				zap.Int64("task_id", taskID),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			ev.Kind = EventAssignmentFailed
			ev.Message = fmt.Sprintf("could not register task %d: %v", taskID, err)
		}
		c.emit(ev)
	}()
}

// Wait blocks until in-flight assignment registrations finish.
func (c *Controller) Wait() { c.inflight.Wait() }

// Close cancels in-flight registrations and waits for them.
func (c *Controller) Close() {
	c.cancel()
	c.inflight.Wait()
}
