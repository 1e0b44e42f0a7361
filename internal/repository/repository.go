package repository

import (
	"context"

	"github.com/mashpotato9/placefinder/internal/domain"
)

// UserRepository persists users. CreateUser returns ErrConflict when the
// username is already taken.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// PlaceRepository persists saved places.
type PlaceRepository interface {
	CreatePlace(ctx context.Context, place *domain.Place) error
	// ListPlacesByOwner returns the owner's places in insertion order.
	ListPlacesByOwner(ctx context.Context, ownerID string) ([]domain.Place, error)
	// DeletePlace removes the place only when both id and owner match,
	// returning ErrNotFound otherwise.
	DeletePlace(ctx context.Context, id, ownerID string) error
}
