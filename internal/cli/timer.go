package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/and161185/tasktime/internal/timer"
	"github.com/and161185/tasktime/internal/tui"
)

type agentOp func(ctx context.Context, ag Agent) (timer.Status, error)

// runAgent calls op on a fresh agent connection and prints the resulting status.
func (a *app) runAgent(cmd *cobra.Command, op agentOp) error {
	ag, err := a.newAgent(a)
	if err != nil {
		return err
	}
	defer ag.Close()
	ctx, cancel := a.ctx(cmd)
	defer cancel()
	st, err := op(ctx, ag)
	if err != nil {
		return err
	}
	return a.printStatus(st)
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError{fmt.Errorf("invalid task id %q", arg)}
	}
	return id, nil
}

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start <task-id>",
		Short: "Start or switch to a task",
		Long: "Start or switch to a task. The first start of a task today is registered with the\n" +
			"server by the agent; tt waits for the outcome and warns when it fails.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			ag, err := a.newAgent(a)
			if err != nil {
				return err
			}
			defer ag.Close()
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			before, err := ag.Status(ctx)
			if err != nil {
				return err
			}
			_, seen := before.State.StartedTasks[id]
			startedAt := a.now()
			st, err := ag.StartTask(ctx, id)
			if err != nil {
				return err
			}
			if err := a.printStatus(st); err != nil {
				return err
			}
			if !seen {
				a.awaitAssignment(ctx, ag, id, startedAt)
			}
			return nil
		},
	}
}

var errAssignmentSettled = errors.New("assignment settled")

// awaitAssignment follows agent events until the registration of taskID started at since
// succeeds or fails, and warns on failure. It gives up after the agent's assign timeout.
func (a *app) awaitAssignment(ctx context.Context, ag Agent, taskID int64, since time.Time) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Agent.AssignTimeout+time.Second)
	defer cancel()
	err := ag.Events(ctx, func(e timer.Event) error {
		if e.TaskID != taskID || e.At.Before(since.Add(-time.Second)) {
			return nil
		}
		switch e.Kind {
		case timer.EventAssignmentRegistered:
			return errAssignmentSettled
		case timer.EventAssignmentFailed:
			msg := e.Message
			if msg == "" {
				msg = fmt.Sprintf("could not register task %d", taskID)
			}
			fmt.Fprintf(a.errOut, "warning: %s; the timer keeps running\n", msg)
			return errAssignmentSettled
		}
		return nil
	})
	switch {
	case errors.Is(err, errAssignmentSettled):
	case ctx.Err() != nil:
		fmt.Fprintf(a.errOut, "warning: task #%d is not registered with the server yet\n", taskID)
	case err != nil:
		fmt.Fprintf(a.errOut, "warning: cannot follow task registration: %s\n", userMessage(err))
	}
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <task-id>",
		Short: "Stop a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return a.runAgent(cmd, func(ctx context.Context, ag Agent) (timer.Status, error) {
				return ag.StopTask(ctx, id)
			})
		},
	}
}

// simpleAgentCmd builds a no-argument command around one agent call.
func simpleAgentCmd(a *app, use, short string, call func(Agent) func(context.Context) (timer.Status, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAgent(cmd, func(ctx context.Context, ag Agent) (timer.Status, error) {
				return call(ag)(ctx)
			})
		},
	}
}

func newPauseCmd(a *app) *cobra.Command {
	return simpleAgentCmd(a, "pause", "Pause the active task", func(ag Agent) func(context.Context) (timer.Status, error) {
		return ag.PauseTask
	})
}

func newResumeCmd(a *app) *cobra.Command {
	return simpleAgentCmd(a, "resume", "Resume the paused task", func(ag Agent) func(context.Context) (timer.Status, error) {
		return ag.ResumeTask
	})
}

func newStatusCmd(a *app) *cobra.Command {
	return simpleAgentCmd(a, "status", "Show today's timers", func(ag Agent) func(context.Context) (timer.Status, error) {
		return ag.Status
	})
}

func newBreakCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "break",
		Short: "Manage the manual break",
	}
	cmd.AddCommand(
		simpleAgentCmd(a, "start", "Start a break (stops the active task)", func(ag Agent) func(context.Context) (timer.Status, error) {
			return ag.StartBreak
		}),
		simpleAgentCmd(a, "pause", "Pause the break", func(ag Agent) func(context.Context) (timer.Status, error) {
			return ag.PauseBreak
		}),
		simpleAgentCmd(a, "resume", "Resume the paused break", func(ag Agent) func(context.Context) (timer.Status, error) {
			return ag.ResumeBreak
		}),
		simpleAgentCmd(a, "stop", "End the break", func(ag Agent) func(context.Context) (timer.Status, error) {
			return ag.StopBreak
		}),
	)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open a live dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ag, err := a.newAgent(a)
			if err != nil {
				return err
			}
			defer ag.Close()
			return tui.Run(cmd.Context(), ag, a.cfg.Agent.TickInterval)
		},
	}
}

// printStatus renders st as text or JSON.
func (a *app) printStatus(st timer.Status) error {
	if a.jsonOut {
		return writeJSON(a.out, st)
	}
	s := st.State
	p := st.Progress

	switch {
	case s.ActiveTaskID != nil && s.TaskPaused:
		fmt.Fprintf(a.out, "Task #%d paused at %s\n", *s.ActiveTaskID, timer.FormatHMS(s.TaskElapsed[*s.ActiveTaskID]))
	case s.ActiveTaskID != nil:
		fmt.Fprintf(a.out, "Task #%d running, %s\n", *s.ActiveTaskID, timer.FormatHMS(s.TaskElapsed[*s.ActiveTaskID]))
	default:
		fmt.Fprintln(a.out, "No active task")
	}
	switch {
	case s.OnBreak && s.BreakPaused:
		fmt.Fprintf(a.out, "Break paused, %s taken\n", timer.FormatHMS(p.BreakSeconds))
	case s.OnBreak:
		fmt.Fprintf(a.out, "On break, %s taken\n", timer.FormatHMS(p.BreakSeconds))
	case p.BreakSeconds > 0:
		fmt.Fprintf(a.out, "Breaks today: %s\n", timer.FormatHMS(p.BreakSeconds))
	}
	fmt.Fprintf(a.out, "Worked %s of %s (%.1f%%)\n",
		timer.FormatHMS(p.WorkedSeconds), timer.FormatHMS(p.TargetSeconds), p.Percent)

	ids := slices.Sorted(maps.Keys(s.TaskElapsed))
	if len(ids) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		mark := ""
		if s.IsActive(id) {
			mark = "*"
		}
		rows = append(rows, []string{mark, "#" + strconv.FormatInt(id, 10), timer.FormatHMS(s.TaskElapsed[id])})
	}
	fmt.Fprintln(a.out)
	return writeTable(a.out, []string{"", "TASK", "TODAY"}, rows)
}
