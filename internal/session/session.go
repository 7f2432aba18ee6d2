// Package session keeps the logged-in user's token on disk.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
)

// fallbackTTL applies when a token carries no exp claim.
const fallbackTTL = 15 * time.Minute

// Session is the persisted login.
type Session struct {
	Token     string     `json:"access_token"`
	ExpiresAt time.Time  `json:"expires_at"`
	UserID    int64      `json:"user_id"`
	Name      string     `json:"name"`
	Role      model.Role `json:"role"`
	ServerURL string     `json:"server_url,omitempty"`
}

// Valid reports whether s holds an unexpired token at now.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && now.Before(s.ExpiresAt)
}

// FromLogin builds a Session from a login response. The expiry is taken from the token's
// exp claim when present, else from the response.
func FromLogin(res model.LoginResult, serverURL string, now time.Time) Session {
	exp := TokenExpiry(res.AccessToken)
	if exp.IsZero() {
		exp = res.ExpiresAt
	}
	if exp.IsZero() {
		exp = now.Add(fallbackTTL)
	}
	return Session{
		Token:     res.AccessToken,
		ExpiresAt: exp,
		UserID:    res.User.ID,
		Name:      res.User.Name,
		Role:      res.User.Role,
		ServerURL: serverURL,
	}
}

// TokenExpiry reads the exp claim without verifying the signature. Zero if absent.
func TokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// File is a session file on disk.
type File struct {
	Path string
	now  func() time.Time
}

// DefaultDir is $XDG_CONFIG_HOME/tasktime, falling back to ~/.config/tasktime.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "tasktime")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tasktime")
}

// Default returns the session file in DefaultDir.
func Default() *File { return At(filepath.Join(DefaultDir(), "session.json")) }

// At returns a session file at path.
func At(path string) *File { return &File{Path: path, now: time.Now} }

// Save writes s with owner-only permissions.
func (f *File) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, f.Path)
}

// Load returns the stored session. A missing, unreadable or expired session yields
// errs.ErrUnauthorized.
func (f *File) Load() (Session, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, fmt.Errorf("login required: %w", errs.ErrUnauthorized)
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("login required (corrupt session): %w", errs.ErrUnauthorized)
	}
	if !s.Valid(f.now()) {
		return Session{}, fmt.Errorf("login required (session expired): %w", errs.ErrUnauthorized)
	}
	return s, nil
}

// Token returns the stored token, or errs.ErrUnauthorized.
func (f *File) Token() (string, error) {
	s, err := f.Load()
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// Clear removes the session file. Missing is fine.
func (f *File) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
