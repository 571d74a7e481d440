package repositories

import (
	"context"
	"time"

	domain "github.com/anuntul/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ListingRepository persists classified ad documents.
type ListingRepository interface {
	Insert(ctx context.Context, listing domain.Listing) error
	FindByID(ctx context.Context, listingID string) (domain.Listing, error)
	// FetchBatch returns up to batchSize recent listings. Store-side filtering
	// is best-effort; callers re-apply every filter in-memory.
	FetchBatch(ctx context.Context, filter domain.ListingFilter, batchSize int) ([]domain.Listing, error)
	UpdateStatus(ctx context.Context, listingID string, status domain.ListingStatus, updatedAt time.Time) (domain.Listing, error)
	// IncrementViews bumps the view counter transactionally and returns the new count.
	IncrementViews(ctx context.Context, listingID string) (int64, error)
}

// LocationRepository reads the location reference collection.
type LocationRepository interface {
	FindByID(ctx context.Context, locationID string) (domain.Location, error)
	List(ctx context.Context) ([]domain.Location, error)
}

// FavoriteRepository tracks favorite listings per user.
type FavoriteRepository interface {
	List(ctx context.Context, userID string) ([]domain.FavoriteListing, error)
	Put(ctx context.Context, userID string, listingID string, addedAt time.Time, limit int) (bool, error)
	Delete(ctx context.Context, userID string, listingID string) error
}
