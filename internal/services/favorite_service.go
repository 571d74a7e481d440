package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/anuntul/api/internal/domain"
	"github.com/anuntul/api/internal/repositories"
)

// DefaultFavoriteLimit bounds how many listings one user can save.
const DefaultFavoriteLimit = 200

var (
	// ErrFavoriteInvalidInput indicates validation failures for favorite operations.
	ErrFavoriteInvalidInput = errors.New("favorite: invalid input")
	// ErrFavoriteListingNotFound indicates the referenced listing does not exist.
	ErrFavoriteListingNotFound = errors.New("favorite: listing not found")
	// ErrFavoriteLimitReached indicates the user hit the favorite cap.
	ErrFavoriteLimitReached = errors.New("favorite: limit reached")
)

// FavoriteServiceDeps bundles collaborators for the favorite service.
type FavoriteServiceDeps struct {
	Favorites repositories.FavoriteRepository
	Listings  repositories.ListingRepository
	Clock     func() time.Time
	Limit     int
}

type favoriteService struct {
	favorites repositories.FavoriteRepository
	listings  repositories.ListingRepository
	clock     func() time.Time
	limit     int
}

// NewFavoriteService wires dependencies into a concrete FavoriteService implementation.
func NewFavoriteService(deps FavoriteServiceDeps) (FavoriteService, error) {
	if deps.Favorites == nil {
		return nil, errors.New("favorite service: favorite repository is required")
	}
	if deps.Listings == nil {
		return nil, errors.New("favorite service: listing repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	limit := deps.Limit
	if limit <= 0 {
		limit = DefaultFavoriteLimit
	}

	return &favoriteService{
		favorites: deps.Favorites,
		listings:  deps.Listings,
		clock: func() time.Time {
			return clock().UTC()
		},
		limit: limit,
	}, nil
}

func (s *favoriteService) List(ctx context.Context, userID string) ([]domain.FavoriteListing, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrFavoriteInvalidInput)
	}
	return s.favorites.List(ctx, userID)
}

// Add saves the listing for the user. The returned boolean reports whether a
// new favorite was created; re-adding an existing favorite is a no-op.
func (s *favoriteService) Add(ctx context.Context, userID, listingID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, fmt.Errorf("%w: user id is required", ErrFavoriteInvalidInput)
	}
	if strings.TrimSpace(listingID) == "" {
		return false, fmt.Errorf("%w: listing id is required", ErrFavoriteInvalidInput)
	}

	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return false, ErrFavoriteListingNotFound
		}
		return false, err
	}
	if listing.Status == domain.ListingStatusDeleted {
		return false, ErrFavoriteListingNotFound
	}

	created, err := s.favorites.Put(ctx, userID, listingID, s.clock(), s.limit)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsConflict() {
			return false, ErrFavoriteLimitReached
		}
		return false, err
	}
	return created, nil
}

func (s *favoriteService) Remove(ctx context.Context, userID, listingID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrFavoriteInvalidInput)
	}
	if strings.TrimSpace(listingID) == "" {
		return fmt.Errorf("%w: listing id is required", ErrFavoriteInvalidInput)
	}
	return s.favorites.Delete(ctx, userID, listingID)
}

var _ FavoriteService = (*favoriteService)(nil)
