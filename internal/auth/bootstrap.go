package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/wanwatch/wanwatch-server/internal/models"
	"github.com/wanwatch/wanwatch-server/internal/storage"
	"github.com/wanwatch/wanwatch-server/pkg/crypto"
)

// EnsureAdminUser seeds an administrator account when the user table is
// empty, so a fresh deployment can obtain a token through /auth/login.
// It reports whether a user was created.
func EnsureAdminUser(ctx context.Context, store storage.Store, email, password string) (bool, error) {
	_, total, err := store.ListUsers(ctx, 1, 0)
	if err != nil {
		return false, fmt.Errorf("list users: %w", err)
	}
	if total > 0 {
		return false, nil
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Username:     email,
		PasswordHash: hash,
		IsAdmin:      true,
		IsActive:     true,
		Settings:     make(models.Variables),
	}

	if err := store.CreateUser(ctx, user); err != nil {
		// Another instance won the race; the account exists either way.
		if errors.Is(err, storage.ErrDuplicateKey) {
			return false, nil
		}
		return false, fmt.Errorf("create admin user: %w", err)
	}

	return true, nil
}
