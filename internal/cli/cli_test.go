package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/tasktime/internal/apiclient"
	"github.com/and161185/tasktime/internal/config"
	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
	"github.com/and161185/tasktime/internal/session"
	"github.com/and161185/tasktime/internal/timer"
)

type fakeAPI struct {
	loginErr error
	tasks    []model.Task
	created  model.NewTask
	status   string
	raised   model.NewQuery
	replied  model.NewReply
	err      error
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (model.LoginResult, error) {
	if f.loginErr != nil {
		return model.LoginResult{}, f.loginErr
	}
	return model.LoginResult{
		Tokens: model.Tokens{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)},
		User:   model.User{ID: 42, Name: "Ann", Email: email, Role: model.RoleEmployee},
	}, nil
}
func (f *fakeAPI) ListTasks(context.Context) ([]model.Task, error) { return f.tasks, f.err }
func (f *fakeAPI) CreateTask(_ context.Context, t model.NewTask) (model.Task, error) {
	f.created = t
	return model.Task{ID: 5, Title: t.Title}, f.err
}
func (f *fakeAPI) ListQueries(_ context.Context, status string) ([]model.Query, error) {
	f.status = status
	return []model.Query{{ID: 1, TaskID: 5, RaisedBy: 42, Subject: "help", Status: model.QueryOpen}}, f.err
}
func (f *fakeAPI) RaiseQuery(_ context.Context, nq model.NewQuery) (model.Query, error) {
	f.raised = nq
	return model.Query{ID: 2, TaskID: nq.TaskID}, f.err
}
func (f *fakeAPI) ListReplies(context.Context, int64) ([]model.QueryReply, error) { return nil, f.err }
func (f *fakeAPI) Reply(_ context.Context, nr model.NewReply) (model.QueryReply, error) {
	f.replied = nr
	return model.QueryReply{ID: 3, QueryID: nr.QueryID}, f.err
}
func (f *fakeAPI) ListEmployees(context.Context) ([]model.User, error) {
	return []model.User{{ID: 42, Name: "Ann", Email: "ann@example.com"}}, f.err
}
func (f *fakeAPI) Stats(context.Context) (model.Stats, error) {
	return model.Stats{TotalTasks: 4, TotalQueries: 3, OpenQueries: 1, ResolvedQueries: 2}, f.err
}

type fakeAgent struct {
	calls  []string
	loaded int64
	st     timer.Status
	err    error
	events []timer.Event
	closed bool
}

func (f *fakeAgent) rec(name string) (timer.Status, error) {
	f.calls = append(f.calls, name)
	return f.st, f.err
}
func (f *fakeAgent) Status(context.Context) (timer.Status, error) { return f.rec("status") }
func (f *fakeAgent) LoadUser(_ context.Context, id int64) (timer.Status, error) {
	f.loaded = id
	return f.rec("load")
}
func (f *fakeAgent) StartTask(_ context.Context, id int64) (timer.Status, error) {
	return f.rec("start:" + strconv.FormatInt(id, 10))
}
func (f *fakeAgent) PauseTask(context.Context) (timer.Status, error)  { return f.rec("pause") }
func (f *fakeAgent) ResumeTask(context.Context) (timer.Status, error) { return f.rec("resume") }
func (f *fakeAgent) StopTask(_ context.Context, id int64) (timer.Status, error) {
	return f.rec("stop:" + strconv.FormatInt(id, 10))
}
func (f *fakeAgent) StartBreak(context.Context) (timer.Status, error)  { return f.rec("break-start") }
func (f *fakeAgent) PauseBreak(context.Context) (timer.Status, error)  { return f.rec("break-pause") }
func (f *fakeAgent) ResumeBreak(context.Context) (timer.Status, error) { return f.rec("break-resume") }
func (f *fakeAgent) StopBreak(context.Context) (timer.Status, error)   { return f.rec("break-stop") }
func (f *fakeAgent) Events(_ context.Context, fn func(timer.Event) error) error {
	f.calls = append(f.calls, "events")
	for _, e := range f.events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
func (f *fakeAgent) Close() error {
	f.closed = true
	return nil
}

type harness struct {
	app    *app
	api    *fakeAPI
	agent  *fakeAgent
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{api: &fakeAPI{}, agent: &fakeAgent{}, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	a := newApp("test")
	a.out, a.errOut = h.out, h.errOut
	a.in = strings.NewReader("")
	a.cfg = config.Default()
	a.sessions = session.At(filepath.Join(t.TempDir(), "session.json"))
	a.newAPI = func(*app) (API, error) { return h.api, nil }
	a.newAgent = func(*app) (Agent, error) { return h.agent, nil }
	h.app = a
	return h
}

func (h *harness) run(args ...string) (int, error) {
	cmd := newRootCmd(h.app)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return h.app.exitCode(err), err
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd(newApp("dev"))
	for _, path := range [][]string{
		{"login"}, {"logout"}, {"whoami"}, {"tasks", "list"}, {"task", "create"},
		{"start"}, {"pause"}, {"resume"}, {"stop"},
		{"break", "start"}, {"break", "pause"}, {"break", "resume"}, {"break", "stop"},
		{"status"}, {"watch"}, {"queries", "list"}, {"q", "raise"}, {"queries", "replies"},
		{"queries", "reply"}, {"employees"}, {"stats"},
	} {
		found, _, err := root.Find(path)
		require.NoError(t, err, path)
		require.Equal(t, path[len(path)-1], found.Name(), path)
	}
}

func TestLogin_SavesSessionAndLoadsAgent(t *testing.T) {
	h := newHarness(t)
	h.app.in = strings.NewReader("secret\n")

	code, err := h.run("login", "--email", "ann@example.com")
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)
	require.Contains(t, h.out.String(), "Logged in as Ann")
	require.Equal(t, int64(42), h.agent.loaded)
	require.True(t, h.agent.closed)

	s, err := h.app.sessions.Load()
	require.NoError(t, err)
	require.Equal(t, "tok", s.Token)
	require.Equal(t, int64(42), s.UserID)
	require.Equal(t, h.app.cfg.Client.ServerURL, s.ServerURL)
}

func TestLogin_AgentDownIsNotFatal(t *testing.T) {
	h := newHarness(t)
	t.Setenv(PasswordEnv, "secret")
	h.agent.err = errs.ErrBreakInProgress

	code, err := h.run("login", "--email", "ann@example.com")
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)
	require.Contains(t, h.out.String(), "Timer agent not updated")
}

func TestLogin_Errors(t *testing.T) {
	h := newHarness(t)
	code, _ := h.run("login")
	require.Equal(t, ExitUsage, code)

	h.app.in = strings.NewReader("bad\n")
	h.api.loginErr = errs.ErrUnauthorized
	code, err := h.run("login", "--email", "ann@example.com")
	require.Equal(t, ExitFailure, code)
	require.ErrorContains(t, err, "invalid email or password")
}

func TestLogoutAndWhoami(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.app.sessions.Save(session.Session{
		Token: "tok", ExpiresAt: time.Now().Add(time.Hour), UserID: 42, Name: "Ann", Role: model.RoleEmployee,
	}))

	_, err := h.run("whoami")
	require.NoError(t, err)
	require.Contains(t, h.out.String(), "Ann (id 42, employee)")

	_, err = h.run("logout")
	require.NoError(t, err)

	code, err := h.run("whoami")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Equal(t, ExitFailure, code)
	require.Contains(t, h.errOut.String(), "login required")
}

func TestTimerCommands(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{"start", "#7"}, {"pause"}, {"resume"}, {"stop", "7"},
		{"break", "start"}, {"break", "pause"}, {"break", "resume"}, {"break", "stop"}, {"status"},
	} {
		_, err := h.run(args...)
		require.NoError(t, err, args)
	}
	require.Equal(t, []string{
		"status", "start:7", "events", "pause", "resume", "stop:7",
		"break-start", "break-pause", "break-resume", "break-stop", "status",
	}, h.agent.calls)

	code, _ := h.run("start", "abc")
	require.Equal(t, ExitUsage, code)
}

func TestStart_ReportsRegistration(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.agent.events = []timer.Event{
		{Kind: timer.EventAssignmentFailed, TaskID: 7, At: now.Add(-time.Hour), Message: "stale"},
		{Kind: timer.EventAssignmentFailed, TaskID: 3, At: now, Message: "other task"},
		{Kind: timer.EventAssignmentFailed, TaskID: 7, At: now, Message: "could not register task 7: status 500: internal"},
	}
	code, err := h.run("start", "7")
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)
	require.Equal(t, "warning: could not register task 7: status 500: internal; the timer keeps running\n",
		h.errOut.String())

	h.errOut.Reset()
	h.agent.events = []timer.Event{{Kind: timer.EventAssignmentRegistered, TaskID: 7, At: time.Now()}}
	_, err = h.run("start", "7")
	require.NoError(t, err)
	require.Empty(t, h.errOut.String())
}

func TestStart_AlreadyStartedSkipsRegistration(t *testing.T) {
	h := newHarness(t)
	h.agent.st = timer.Status{State: timer.State{StartedTasks: map[int64]struct{}{7: {}}}}
	h.agent.events = []timer.Event{{Kind: timer.EventAssignmentFailed, TaskID: 7, At: time.Now()}}
	_, err := h.run("start", "7")
	require.NoError(t, err)
	require.Equal(t, []string{"status", "start:7"}, h.agent.calls)
	require.Empty(t, h.errOut.String())
}

func TestTimerPreconditionMessage(t *testing.T) {
	h := newHarness(t)
	h.agent.err = errs.ErrBreakWindowClosed
	code, _ := h.run("break", "start")
	require.Equal(t, ExitFailure, code)
	require.Equal(t, "error: breaks are not allowed at this hour\n", h.errOut.String())

	h.errOut.Reset()
	h.agent.err = timer.ErrNotLoaded
	_, _ = h.run("status")
	require.Contains(t, h.errOut.String(), "no user loaded")
}

func TestStatusOutput(t *testing.T) {
	h := newHarness(t)
	active := int64(7)
	h.agent.st = timer.Status{
		State: timer.State{
			TaskElapsed:  map[int64]int64{7: 3725, 3: 60},
			ActiveTaskID: &active,
		},
		Progress: timer.Progress{WorkedSeconds: 3785, BreakSeconds: 300, TargetSeconds: 8 * 3600, Percent: 13.1},
	}
	_, err := h.run("status")
	require.NoError(t, err)
	out := h.out.String()
	require.Contains(t, out, "Task #7 running, 01:02:05")
	require.Contains(t, out, "Breaks today: 00:05:00")
	require.Contains(t, out, "Worked 01:03:05 of 08:00:00 (13.1%)")
	table := out[strings.Index(out, "TASK"):]
	require.Less(t, strings.Index(table, "#3"), strings.Index(table, "#7"))

	h.out.Reset()
	_, err = h.run("status", "--json")
	require.NoError(t, err)
	require.Contains(t, h.out.String(), `"activeTaskId": 7`)
}

func TestTaskAndQueryCommands(t *testing.T) {
	h := newHarness(t)
	h.api.tasks = []model.Task{{ID: 5, Title: "Write report", EstimatedHours: 2.5}}

	_, err := h.run("tasks", "list")
	require.NoError(t, err)
	require.Contains(t, h.out.String(), "Write report")
	require.Contains(t, h.out.String(), "2.5")

	h.api.tasks = []model.Task{{ID: 5, Title: "Write report"}, {ID: 6, Title: "Fix login page"}, {ID: 7, Title: "Report review"}}
	h.out.Reset()
	_, err = h.run("tasks", "list", "--search", "REPORT")
	require.NoError(t, err)
	require.Contains(t, h.out.String(), "Write report")
	require.Contains(t, h.out.String(), "Report review")
	require.NotContains(t, h.out.String(), "Fix login page")
	require.Len(t, h.api.tasks, 3)

	code, _ := h.run("tasks", "create")
	require.Equal(t, ExitUsage, code)
	_, err = h.run("tasks", "create", "--title", "Review", "--hours", "1.5")
	require.NoError(t, err)
	require.Equal(t, model.NewTask{Title: "Review", EstimatedHours: 1.5}, h.api.created)

	_, err = h.run("queries", "list", "--status", "Open")
	require.NoError(t, err)
	require.Equal(t, model.QueryOpen, h.api.status)
	code, _ = h.run("queries", "list", "--status", "closed")
	require.Equal(t, ExitUsage, code)

	_, err = h.run("queries", "raise", "--task", "5", "--subject", "help")
	require.NoError(t, err)
	require.Equal(t, int64(5), h.api.raised.TaskID)

	_, err = h.run("queries", "reply", "1", "-m", "done")
	require.NoError(t, err)
	require.Equal(t, model.NewReply{QueryID: 1, Message: "done"}, h.api.replied)

	_, err = h.run("queries", "replies", "1")
	require.NoError(t, err)
}

func TestRemoteErrorMessage(t *testing.T) {
	h := newHarness(t)
	h.api.err = &apiclient.RemoteError{Op: "stats", Status: 500, Msg: "internal"}
	code, _ := h.run("stats")
	require.Equal(t, ExitFailure, code)
	require.Equal(t, "error: internal\n", h.errOut.String())
}

func TestEmployeesAndStats(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("employees")
	require.NoError(t, err)
	require.Contains(t, h.out.String(), "ann@example.com")

	h.out.Reset()
	_, err = h.run("stats")
	require.NoError(t, err)
	require.Contains(t, h.out.String(), "3 (1 open, 2 resolved)")
}

func TestWriteTable_Alignment(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, writeTable(&b, []string{"ID", "NAME"}, [][]string{{"1", "Ann"}, {"22", "Bob"}}))
	require.Equal(t, "ID  NAME\n1   Ann\n22  Bob\n", b.String())
}
