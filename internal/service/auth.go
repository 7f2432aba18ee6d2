// Package service contains the application services behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/tasktime/internal/crypto"
	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/limiter"
	"github.com/and161185/tasktime/internal/model"
	"github.com/and161185/tasktime/internal/repository"
)

const minPasswordLen = 8

// AuthService defines account and token operations.
type AuthService interface {
	// Register creates an account with a hashed password.
	Register(ctx context.Context, name, email, password string, role model.Role) (model.User, error)
	// LoginWithIP applies rate limiting and authenticates by email.
	LoginWithIP(ctx context.Context, email, password, ip string) (model.LoginResult, error)
	// ParseToken verifies an access token and returns its principal.
	ParseToken(token string) (model.Principal, error)
}

// claims is the access token payload: sub is the user id.
type claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	accessTTL time.Duration
	lim       limiter.Limiter
	now       func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, accessTTL time.Duration, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, accessTTL: accessTTL, lim: lim, now: time.Now}
}

// Register validates input and stores a new user.
func (s *AuthServiceImpl) Register(ctx context.Context, name, email, password string, role model.Role) (model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case name == "":
		return model.User{}, fmt.Errorf("name is required: %w", errs.ErrValidation)
	case !validEmail(email):
		return model.User{}, fmt.Errorf("invalid email %q: %w", email, errs.ErrValidation)
	case len(password) < minPasswordLen:
		return model.User{}, fmt.Errorf("password shorter than %d: %w", minPasswordLen, errs.ErrValidation)
	case !role.Valid():
		return model.User{}, fmt.Errorf("unknown role %q: %w", role, errs.ErrValidation)
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}
	u := &model.User{Name: name, Email: email, Role: role, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		return model.User{}, err
	}
	return *u, nil
}

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}

// LoginWithIP authenticates with rate limiting by (email, ip).
func (s *AuthServiceImpl) LoginWithIP(ctx context.Context, email, password, ip string) (model.LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.LoginResult{}, fmt.Errorf("email and password are required: %w", errs.ErrValidation)
	}
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.LoginResult{}, err
	}
	if !allowed {
		return model.LoginResult{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.LoginResult{}, err
	}
	ok := false
	if err == nil {
		ok, _ = pkgcrypto.VerifyPassword(password, u.PasswordHash)
	}
	if !ok {
		if blocked, _, ferr := s.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.LoginResult{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.LoginResult{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, email, ipHash)

	tok, exp, err := s.issueAccessToken(u)
	if err != nil {
		return model.LoginResult{}, err
	}
	return model.LoginResult{Tokens: model.Tokens{AccessToken: tok, ExpiresAt: exp}, User: *u}, nil
}

// issueAccessToken creates a signed HS256 JWT for u.
func (s *AuthServiceImpl) issueAccessToken(u *model.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	c := claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.signKey)
	return signed, exp, err
}

// ParseToken verifies signature, algorithm and expiry.
func (s *AuthServiceImpl) ParseToken(token string) (model.Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return s.signKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 || !c.Role.Valid() {
		return model.Principal{}, fmt.Errorf("%w: bad claims", errs.ErrUnauthorized)
	}
	return model.Principal{UserID: id, Role: c.Role}, nil
}

// EnsureSuperior creates a superior account for email unless one already exists.
// It reports whether an account was created.
func (s *AuthServiceImpl) EnsureSuperior(ctx context.Context, name, email, password string) (bool, error) {
	_, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, errs.ErrNotFound):
		return false, err
	}
	if _, err := s.Register(ctx, name, email, password, model.RoleSuperior); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
