package place

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/mashpotato9/placefinder/internal/domain"
	"github.com/mashpotato9/placefinder/internal/repository"
)

var (
	ErrUnauthenticated = errors.New("place: identity required")
	ErrNotFound        = errors.New("place: not found")
	ErrStorage         = errors.New("place: storage failure")
)

// SaveInput carries the place fields reported by the places provider.
type SaveInput struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	PlaceID string `json:"placeId"`
}

// Service manages the saved places of authenticated users.
type Service struct {
	places repository.PlaceRepository
	logger *slog.Logger
}

// New returns a place service.
func New(places repository.PlaceRepository, logger *slog.Logger) Service {
	return Service{places: places, logger: logger}
}

// Save stores a new place owned by the caller. Saving the same place twice
// yields two records.
func (s Service) Save(ctx context.Context, identity domain.Identity, input SaveInput) (*domain.Place, error) {
	if identity.UserID == "" {
		return nil, ErrUnauthenticated
	}
	place := &domain.Place{
		ID:        uuid.NewString(),
		OwnerID:   identity.UserID,
		Name:      input.Name,
		Address:   input.Address,
		PlaceID:   input.PlaceID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.places.CreatePlace(ctx, place); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.logger.Info("place saved", "user_id", identity.UserID, "place_id", place.ID)
	return place, nil
}

// List returns the caller's places in the order they were saved.
func (s Service) List(ctx context.Context, identity domain.Identity) ([]domain.Place, error) {
	if identity.UserID == "" {
		return nil, ErrUnauthenticated
	}
	places, err := s.places.ListPlacesByOwner(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if places == nil {
		places = []domain.Place{}
	}
	return places, nil
}

// Delete removes one of the caller's places. A place owned by someone else is
// reported exactly like a missing one.
func (s Service) Delete(ctx context.Context, identity domain.Identity, placeID string) error {
	if identity.UserID == "" {
		return ErrUnauthenticated
	}
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return ErrNotFound
	}
	if err := s.places.DeletePlace(ctx, placeID, identity.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.logger.Info("place deleted", "user_id", identity.UserID, "place_id", placeID)
	return nil
}
