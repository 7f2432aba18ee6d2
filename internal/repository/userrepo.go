// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/tasktime/internal/model"
)

// UserRepository provides access to accounts.
type UserRepository interface {
	// Create inserts u and fills its ID and CreatedAt.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByEmail loads a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// List returns users, filtered by role unless role is empty.
	List(ctx context.Context, role model.Role) ([]model.User, error)
}
