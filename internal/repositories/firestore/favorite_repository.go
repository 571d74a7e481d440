package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/anuntul/api/internal/domain"
	pfirestore "github.com/anuntul/api/internal/platform/firestore"
	"github.com/anuntul/api/internal/repositories"
)

const favoriteCollectionPattern = "users/%s/favorites"

// FavoriteRepository persists listing favorites per user.
type FavoriteRepository struct {
	provider *pfirestore.Provider
}

// NewFavoriteRepository constructs a Firestore-backed favorite repository.
func NewFavoriteRepository(provider *pfirestore.Provider) (*FavoriteRepository, error) {
	if provider == nil {
		return nil, errors.New("favorite repository requires firestore provider")
	}
	return &FavoriteRepository{provider: provider}, nil
}

// List returns favorites ordered by most recent addition.
func (r *FavoriteRepository) List(ctx context.Context, userID string) ([]domain.FavoriteListing, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := coll.OrderBy("addedAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	iter := query.Documents(ctx)
	defer iter.Stop()

	var favorites []domain.FavoriteListing
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("favorites.list", err)
		}
		favorite, err := decodeFavoriteDocument(snap)
		if err != nil {
			return nil, err
		}
		favorites = append(favorites, favorite)
	}
	return favorites, nil
}

// Put stores a favorite, preserving an existing one. The returned boolean
// reports whether a new document was created.
func (r *FavoriteRepository) Put(ctx context.Context, userID string, listingID string, addedAt time.Time, limit int) (bool, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return false, err
	}

	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return false, errors.New("favorite repository: listing id is required")
	}

	created := false
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(listingID)
		if _, err := tx.Get(docRef); err == nil {
			created = false
			return nil
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		if limit > 0 {
			countQuery := coll.Select("addedAt").Limit(limit)
			iter := tx.Documents(countQuery)
			snaps, err := iter.GetAll()
			if err != nil {
				return err
			}
			if len(snaps) >= limit {
				return status.Error(codes.FailedPrecondition, "favorite limit reached")
			}
		}

		doc := favoriteDocument{
			ListingRef: listingDocPath(listingID),
			AddedAt:    addedAt.UTC(),
		}
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, pfirestore.WrapError("favorites.put", err)
	}
	return created, nil
}

// Delete removes the favorite document.
func (r *FavoriteRepository) Delete(ctx context.Context, userID string, listingID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return errors.New("favorite repository: listing id is required")
	}
	if _, err := coll.Doc(listingID).Delete(ctx); err != nil {
		return pfirestore.WrapError("favorites.delete", err)
	}
	return nil
}

func (r *FavoriteRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("favorite repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("favorite repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf(favoriteCollectionPattern, uid)
	return client.Collection(path), nil
}

func decodeFavoriteDocument(snapshot *firestore.DocumentSnapshot) (domain.FavoriteListing, error) {
	var doc favoriteDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.FavoriteListing{}, fmt.Errorf("decode favorite %s: %w", snapshot.Ref.ID, err)
	}
	listingID := snapshot.Ref.ID
	if trimmed := extractListingID(doc.ListingRef); trimmed != "" {
		listingID = trimmed
	}
	return domain.FavoriteListing{
		ListingID: listingID,
		AddedAt:   doc.AddedAt,
	}, nil
}

type favoriteDocument struct {
	ListingRef string    `firestore:"listingRef"`
	AddedAt    time.Time `firestore:"addedAt"`
}

func listingDocPath(listingID string) string {
	trimmed := strings.TrimSpace(listingID)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "/listings/") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "listings/") {
		return "/" + trimmed
	}
	return "/listings/" + trimmed
}

func extractListingID(ref string) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return ""
	}
	trimmed = strings.TrimPrefix(trimmed, "/")
	const prefix = "listings/"
	if strings.HasPrefix(trimmed, prefix) {
		return trimmed[len(prefix):]
	}
	return trimmed
}

// Ensure interface compliance.
var _ repositories.FavoriteRepository = (*FavoriteRepository)(nil)
