// Package users declares the repository contract for registered user records.
package users

import (
	"context"

	"github.com/dmaft/dmaft-server/internal/server/models"
)

// Repository defines operations over the registered_users table.
type Repository interface {
	// Create registers a new user from the SHA-512 thumbprint of their public
	// key, allocating a fresh UserID. The profile starts empty.
	Create(ctx context.Context, publicKeyHash []byte) (*models.User, error)

	// Exists reports whether a user with the given ID (case-insensitive) is
	// registered.
	Exists(ctx context.Context, userID string) (bool, error)

	// SearchByID returns the user with the exact (case-insensitive) ID, as a
	// slice for symmetry with SearchByName. Only UserID and UserName are
	// populated, to keep lookups privacy-preserving.
	SearchByID(ctx context.Context, userID string) ([]*models.User, error)

	// SearchByName returns users whose name contains the given term.
	SearchByName(ctx context.Context, term string) ([]*models.User, error)

	// UpdateProfile replaces the user-editable profile fields. A missing
	// user yields common.ErrNotFound.
	UpdateProfile(ctx context.Context, userID string, p *models.Profile) error
}
