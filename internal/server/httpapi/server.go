// Package httpapi exposes the task, query and user services over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
	"github.com/and161185/tasktime/internal/service"
)

const maxBodyBytes = 1 << 20

// Pinger reports storage readiness for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires services into HTTP handlers.
type Server struct {
	auth    service.AuthService
	tasks   service.TaskService
	queries service.QueryService
	users   service.UserService
	db      Pinger
	log     *zap.Logger
}

// New constructs the API server. db may be nil.
func New(auth service.AuthService, tasks service.TaskService, queries service.QueryService,
	users service.UserService, db Pinger, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, tasks: tasks, queries: queries, users: users, db: db, log: log}
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	authed := Authenticate(s.auth)
	superior := func(h http.HandlerFunc) http.Handler { return authed(RequireSuperior(h)) }
	user := func(h http.HandlerFunc) http.Handler { return authed(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("POST /auth/login", s.login)

	mux.Handle("GET /tasks", user(s.listTasks))
	mux.Handle("POST /tasks", user(s.createTask))
	mux.Handle("POST /task-assignments", user(s.assignTask))

	mux.Handle("GET /queries", user(s.listQueries))
	mux.Handle("POST /queries", user(s.raiseQuery))
	mux.Handle("GET /query-replies", user(s.listReplies))
	mux.Handle("POST /query-replies", superior(s.reply))

	mux.Handle("GET /users", superior(s.listUsers))
	mux.Handle("POST /users", superior(s.createUser))
	mux.Handle("GET /stats", superior(s.stats))

	return RequestID(Logging(s.log)(Recover(s.log)(mux)))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromCtx(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, err)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed json body: %w", errs.ErrValidation)
	}
	return nil
}

func principal(r *http.Request) model.Principal {
	p, _ := PrincipalFromCtx(r.Context())
	return p
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, errs.ErrValidation)
	}
	return v, nil
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in model.Credentials
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.auth.LoginWithIP(r.Context(), in.Email, in.Password, remoteIP(r))
	if err != nil {
		if errors.Is(err, errs.ErrRateLimited) {
			w.Header().Set("Retry-After", "60")
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	out, err := s.tasks.List(r.Context(), principal(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var in model.NewTask
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.tasks.Create(r.Context(), principal(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) assignTask(w http.ResponseWriter, r *http.Request) {
	var in struct {
		TaskID int64 `json:"taskId"`
		UserID int64 `json:"userId"`
	}
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	p := principal(r)
	if in.UserID == 0 {
		in.UserID = p.UserID
	}
	out, err := s.tasks.Assign(r.Context(), p, in.TaskID, in.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	out, err := s.queries.List(r.Context(), principal(r), r.URL.Query().Get("status"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (s *Server) raiseQuery(w http.ResponseWriter, r *http.Request) {
	var in model.NewQuery
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.queries.Raise(r.Context(), principal(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listReplies(w http.ResponseWriter, r *http.Request) {
	qid, err := queryInt(r, "queryId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.queries.Replies(r.Context(), principal(r), qid)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request) {
	var in model.NewReply
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.queries.Reply(r.Context(), principal(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	out, err := s.users.ListUsers(r.Context(), principal(r), model.Role(r.URL.Query().Get("role")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

// NewUser is the body of POST /users.
type NewUser struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var in NewUser
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if in.Role == "" {
		in.Role = model.RoleEmployee
	}
	out, err := s.auth.Register(r.Context(), in.Name, in.Email, in.Password, in.Role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	out, err := s.users.Stats(r.Context(), principal(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
