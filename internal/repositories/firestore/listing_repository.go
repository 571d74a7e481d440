package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/anuntul/api/internal/domain"
	pfirestore "github.com/anuntul/api/internal/platform/firestore"
	"github.com/anuntul/api/internal/repositories"
)

const listingCollection = "listings"

// ListingRepository persists classified ad documents in Firestore.
type ListingRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[listingDocument]
}

// NewListingRepository constructs a Firestore-backed listing repository.
func NewListingRepository(provider *pfirestore.Provider) (*ListingRepository, error) {
	if provider == nil {
		return nil, errors.New("listing repository requires firestore provider")
	}
	return &ListingRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[listingDocument](provider, listingCollection, nil, nil),
	}, nil
}

// Insert stores a new listing document under its id.
func (r *ListingRepository) Insert(ctx context.Context, listing domain.Listing) error {
	id := strings.TrimSpace(listing.ID)
	if id == "" {
		return errors.New("listing repository: listing id is required")
	}

	docRef, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := docRef.Create(ctx, encodeListing(listing)); err != nil {
		return pfirestore.WrapError("listings.insert", err)
	}
	return nil
}

// FindByID loads a single listing.
func (r *ListingRepository) FindByID(ctx context.Context, listingID string) (domain.Listing, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(listingID))
	if err != nil {
		return domain.Listing{}, err
	}
	return decodeListing(doc.ID, doc.Data), nil
}

// FetchBatch returns the most recent listings up to batchSize. The store only
// orders and bounds the batch; the pipeline applies every filter in-memory, so
// no composite index is needed here.
func (r *ListingRepository) FetchBatch(ctx context.Context, _ domain.ListingFilter, batchSize int) ([]domain.Listing, error) {
	if batchSize <= 0 {
		return nil, errors.New("listing repository: batch size must be positive")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("createdAt", firestore.Desc).Limit(batchSize)
	})
	if err != nil {
		return nil, err
	}

	listings := make([]domain.Listing, 0, len(docs))
	for _, doc := range docs {
		listings = append(listings, decodeListing(doc.ID, doc.Data))
	}
	return listings, nil
}

// UpdateStatus transitions the listing status and returns the updated record.
func (r *ListingRepository) UpdateStatus(ctx context.Context, listingID string, status domain.ListingStatus, updatedAt time.Time) (domain.Listing, error) {
	docRef, err := r.base.DocumentRef(ctx, strings.TrimSpace(listingID))
	if err != nil {
		return domain.Listing{}, err
	}

	var updated domain.Listing
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc listingDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}

		doc.Status = string(status)
		doc.UpdatedAt = updatedAt.UTC()
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		updated = decodeListing(snap.Ref.ID, doc)
		return nil
	})
	if err != nil {
		return domain.Listing{}, pfirestore.WrapError("listings.update_status", err)
	}
	return updated, nil
}

// IncrementViews bumps the view counter inside a transaction so concurrent
// readers never lose an increment, and returns the new count.
func (r *ListingRepository) IncrementViews(ctx context.Context, listingID string) (int64, error) {
	docRef, err := r.base.DocumentRef(ctx, strings.TrimSpace(listingID))
	if err != nil {
		return 0, err
	}

	var views int64
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		current, err := snap.DataAt("views")
		if err != nil {
			return err
		}
		count, _ := current.(int64)
		views = count + 1
		return tx.Update(docRef, []firestore.Update{{Path: "views", Value: views}})
	})
	if err != nil {
		return 0, pfirestore.WrapError("listings.increment_views", err)
	}
	return views, nil
}

type listingDocument struct {
	Title         string            `firestore:"title"`
	Description   string            `firestore:"description"`
	Price         float64           `firestore:"price"`
	Images        []string          `firestore:"images"`
	CategoryID    string            `firestore:"categoryId"`
	SubcategoryID string            `firestore:"subcategoryId,omitempty"`
	LocationID    string            `firestore:"locationId"`
	UserID        string            `firestore:"userId"`
	Phone         string            `firestore:"phone"`
	Status        string            `firestore:"status"`
	CustomFields  map[string]string `firestore:"customFields,omitempty"`
	Views         int64             `firestore:"views"`
	Featured      bool              `firestore:"featured"`
	CreatedAt     time.Time         `firestore:"createdAt"`
	UpdatedAt     time.Time         `firestore:"updatedAt"`
	ExpiresAt     time.Time         `firestore:"expiresAt,omitempty"`
}

func encodeListing(listing domain.Listing) listingDocument {
	return listingDocument{
		Title:         listing.Title,
		Description:   listing.Description,
		Price:         listing.Price,
		Images:        listing.Images,
		CategoryID:    listing.CategoryID,
		SubcategoryID: listing.SubcategoryID,
		LocationID:    listing.LocationID,
		UserID:        listing.UserID,
		Phone:         listing.Phone,
		Status:        string(listing.Status),
		CustomFields:  listing.CustomFields,
		Views:         listing.Views,
		Featured:      listing.Featured,
		CreatedAt:     listing.CreatedAt.UTC(),
		UpdatedAt:     listing.UpdatedAt.UTC(),
		ExpiresAt:     listing.ExpiresAt.UTC(),
	}
}

func decodeListing(id string, doc listingDocument) domain.Listing {
	return domain.Listing{
		ID:            id,
		Title:         doc.Title,
		Description:   doc.Description,
		Price:         doc.Price,
		Images:        doc.Images,
		CategoryID:    doc.CategoryID,
		SubcategoryID: doc.SubcategoryID,
		LocationID:    doc.LocationID,
		UserID:        doc.UserID,
		Phone:         doc.Phone,
		Status:        domain.ListingStatus(doc.Status),
		CustomFields:  doc.CustomFields,
		Views:         doc.Views,
		Featured:      doc.Featured,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
		ExpiresAt:     doc.ExpiresAt,
	}
}

// Ensure interface compliance.
var _ repositories.ListingRepository = (*ListingRepository)(nil)
