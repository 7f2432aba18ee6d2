// Package model defines domain entities used by services, repositories and clients.
package model

import "time"

// Role is the user's dashboard role.
type Role string

// Known roles.
const (
	RoleEmployee Role = "employee"
	RoleSuperior Role = "superior"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleEmployee || r == RoleSuperior }

// Query statuses.
const (
	QueryOpen     = "Open"
	QueryResolved = "Resolved"
)

// Tokens carries an issued access token.
type Tokens struct {
	AccessToken string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
	Role   Role
}

// IsSuperior reports whether p has the superior role.
func (p Principal) IsSuperior() bool { return p.Role == RoleSuperior }

// Credentials is a login request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Tokens
	User User `json:"user"`
}

// User is an account of either role. PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Task is a unit of work employees track time against.
type Task struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	EstimatedHours float64   `json:"estimatedHours"`
	AssignedBy     int64     `json:"assignedBy"`
	IsPublic       bool      `json:"isPublic"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewTask is a task creation intent.
type NewTask struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	EstimatedHours float64 `json:"estimatedHours"`
	AssignedBy     int64   `json:"assignedBy"`
}

// Assignment records the first start of a task by a user.
type Assignment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"taskId"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Query is a question an employee raises about a task.
type Query struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"taskId"`
	RaisedBy    int64     `json:"raisedBy"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewQuery is a query creation intent.
type NewQuery struct {
	TaskID      int64  `json:"taskId"`
	RaisedBy    int64  `json:"raisedBy"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// QueryReply is a superior's answer to a query.
type QueryReply struct {
	ID        int64     `json:"id"`
	QueryID   int64     `json:"queryId"`
	RepliedBy int64     `json:"repliedBy"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewReply is a reply creation intent.
type NewReply struct {
	QueryID   int64  `json:"queryId"`
	RepliedBy int64  `json:"repliedBy"`
	Message   string `json:"message"`
}

// Stats is the superior overview.
type Stats struct {
	TotalTasks       int `json:"totalTasks"`
	TotalQueries     int `json:"totalQueries"`
	OpenQueries      int `json:"openQueries"`
	ResolvedQueries  int `json:"resolvedQueries"`
	TotalEmployees   int `json:"totalEmployees"`
	AssignmentsToday int `json:"assignmentsToday"`
}
