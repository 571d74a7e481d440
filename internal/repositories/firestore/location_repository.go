package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/anuntul/api/internal/domain"
	pfirestore "github.com/anuntul/api/internal/platform/firestore"
	"github.com/anuntul/api/internal/repositories"
)

const locationCollection = "locations"

// LocationRepository reads the location reference collection.
type LocationRepository struct {
	base *pfirestore.BaseRepository[locationDocument]
}

// NewLocationRepository constructs a Firestore-backed location repository.
func NewLocationRepository(provider *pfirestore.Provider) (*LocationRepository, error) {
	if provider == nil {
		return nil, errors.New("location repository requires firestore provider")
	}
	return &LocationRepository{
		base: pfirestore.NewBaseRepository[locationDocument](provider, locationCollection, nil, nil),
	}, nil
}

// FindByID loads a single location record.
func (r *LocationRepository) FindByID(ctx context.Context, locationID string) (domain.Location, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(locationID))
	if err != nil {
		return domain.Location{}, err
	}
	return decodeLocation(doc.ID, doc.Data), nil
}

// List returns every location ordered by name.
func (r *LocationRepository) List(ctx context.Context) ([]domain.Location, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	locations := make([]domain.Location, 0, len(docs))
	for _, doc := range docs {
		locations = append(locations, decodeLocation(doc.ID, doc.Data))
	}
	return locations, nil
}

// ResolveLocation adapts FindByID to the enrichment contract: a missing
// location is a nil result, not an error.
func (r *LocationRepository) ResolveLocation(ctx context.Context, locationID string) (*domain.Location, error) {
	location, err := r.FindByID(ctx, locationID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil, nil
		}
		return nil, err
	}
	return &location, nil
}

type locationDocument struct {
	Name   string `firestore:"name"`
	Slug   string `firestore:"slug"`
	County string `firestore:"county,omitempty"`
}

func decodeLocation(id string, doc locationDocument) domain.Location {
	return domain.Location{
		ID:     id,
		Name:   doc.Name,
		Slug:   doc.Slug,
		County: doc.County,
	}
}

// Ensure interface compliance.
var _ repositories.LocationRepository = (*LocationRepository)(nil)
