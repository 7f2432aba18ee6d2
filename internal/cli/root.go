// Package cli implements the tt command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/and161185/tasktime/internal/agent"
	"github.com/and161185/tasktime/internal/apiclient"
	"github.com/and161185/tasktime/internal/config"
	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
	"github.com/and161185/tasktime/internal/session"
	"github.com/and161185/tasktime/internal/timer"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// API is the subset of the HTTP API client the commands use.
type API interface {
	Login(ctx context.Context, email, password string) (model.LoginResult, error)
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, t model.NewTask) (model.Task, error)
	ListQueries(ctx context.Context, status string) ([]model.Query, error)
	RaiseQuery(ctx context.Context, nq model.NewQuery) (model.Query, error)
	ListReplies(ctx context.Context, queryID int64) ([]model.QueryReply, error)
	Reply(ctx context.Context, nr model.NewReply) (model.QueryReply, error)
	ListEmployees(ctx context.Context) ([]model.User, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Agent is the subset of the agent client the commands use.
type Agent interface {
	Status(ctx context.Context) (timer.Status, error)
	LoadUser(ctx context.Context, userID int64) (timer.Status, error)
	StartTask(ctx context.Context, taskID int64) (timer.Status, error)
	PauseTask(ctx context.Context) (timer.Status, error)
	ResumeTask(ctx context.Context) (timer.Status, error)
	StopTask(ctx context.Context, taskID int64) (timer.Status, error)
	StartBreak(ctx context.Context) (timer.Status, error)
	PauseBreak(ctx context.Context) (timer.Status, error)
	ResumeBreak(ctx context.Context) (timer.Status, error)
	StopBreak(ctx context.Context) (timer.Status, error)
	Events(ctx context.Context, fn func(timer.Event) error) error
	Close() error
}

// app carries per-invocation state shared by all commands.
type app struct {
	version string

	cfgFile   string
	serverURL string
	agentAddr string
	jsonOut   bool

	out    io.Writer
	errOut io.Writer
	in     io.Reader

	cfg      *config.Config
	sessions *session.File
	now      func() time.Time

	newAPI   func(a *app) (API, error)
	newAgent func(a *app) (Agent, error)
}

// Execute runs tt with os.Args and returns the process exit code.
func Execute(version string) int {
	a := newApp(version)
	err := newRootCmd(a).Execute()
	return a.exitCode(err)
}

func newApp(version string) *app {
	return &app{
		version:  version,
		out:      os.Stdout,
		errOut:   os.Stderr,
		in:       os.Stdin,
		now:      time.Now,
		newAPI:   defaultAPI,
		newAgent: defaultAgent,
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tt",
		Short:         "Track time on tasks and breaks",
		Long:          "tt talks to the local timer agent and to the task server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       a.version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)
	cmd.SetIn(a.in)
	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ~/.config/tasktime/config.yaml)")
	pf.StringVar(&a.serverURL, "server", "", "task server URL (overrides client.server_url)")
	pf.StringVar(&a.agentAddr, "agent", "", "timer agent address (overrides client.agent_addr)")
	pf.BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")

	cmd.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newTasksCmd(a),
		newStartCmd(a),
		newPauseCmd(a),
		newResumeCmd(a),
		newStopCmd(a),
		newBreakCmd(a),
		newStatusCmd(a),
		newWatchCmd(a),
		newQueriesCmd(a),
		newEmployeesCmd(a),
		newStatsCmd(a),
	)
	return cmd
}

// setup loads configuration once and applies flag overrides.
func (a *app) setup() error {
	if a.cfg == nil {
		cfg, err := config.NewLoader(a.cfgFile).Load()
		if err != nil {
			return usageError{err}
		}
		a.cfg = cfg
	}
	if a.serverURL != "" {
		a.cfg.Client.ServerURL = a.serverURL
	}
	if a.agentAddr != "" {
		a.cfg.Client.AgentAddr = a.agentAddr
	}
	if a.sessions == nil {
		a.sessions = session.Default()
	}
	return nil
}

func (a *app) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.cfg.Client.Timeout)
}

// apiURL prefers the server recorded at login.
func (a *app) apiURL() string {
	if a.serverURL == "" {
		if s, err := a.sessions.Load(); err == nil && s.ServerURL != "" {
			return s.ServerURL
		}
	}
	return a.cfg.Client.ServerURL
}

func defaultAPI(a *app) (API, error) {
	return apiclient.New(a.apiURL(), a.cfg.Client.Timeout,
		func(context.Context) (string, error) { return a.sessions.Token() }, zap.NewNop())
}

func defaultAgent(a *app) (Agent, error) {
	return agent.Dial(a.cfg.Client.AgentAddr, grpc.WithUserAgent("tt/"+a.version))
}

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitCode prints err the way users should see it and maps it to an exit code.
func (a *app) exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ue usageError
	switch {
	case errors.As(err, &ue):
		fmt.Fprintln(a.errOut, "error:", err)
		return ExitUsage
	case errors.Is(err, errs.ErrUnauthorized):
		fmt.Fprintln(a.errOut, "login required: run `tt login`")
	case errors.Is(err, agent.ErrUnavailable):
		fmt.Fprintln(a.errOut, "timer agent is not running:", err)
	case errors.Is(err, timer.ErrNotLoaded):
		fmt.Fprintln(a.errOut, "timer agent has no user loaded: run `tt login`")
	default:
		fmt.Fprintln(a.errOut, "error:", userMessage(err))
	}
	return ExitFailure
}

// userMessage shortens known failures to their user-facing text.
func userMessage(err error) string {
	for _, p := range errs.Preconditions {
		if errors.Is(err, p) {
			return p.Error()
		}
	}
	var re *apiclient.RemoteError
	if errors.As(err, &re) && re.Msg != "" {
		return re.Msg
	}
	return err.Error()
}
