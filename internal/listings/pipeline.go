package listings

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/anuntul/api/internal/catalog"
	"github.com/anuntul/api/internal/domain"
)

const (
	// DefaultBatchSize bounds the pre-filter fetch. The batch is sized
	// independently of the requested page so client-side filters have records
	// to work with even without a matching server-side index.
	DefaultBatchSize = 200
	// DefaultPageSize applies when the filter carries no page size.
	DefaultPageSize = 20
	// MaxPageSize caps a caller-requested page size.
	MaxPageSize = 50

	enrichConcurrency = 8
)

// ListingSource fetches a bounded batch of listing records from the backing
// store. The batch honors filter hints the store can serve cheaply; the
// pipeline re-applies every filter in-memory regardless.
type ListingSource interface {
	FetchBatch(ctx context.Context, filter domain.ListingFilter, batchSize int) ([]domain.Listing, error)
}

// LocationResolver resolves a location id during enrichment. A miss returns
// (nil, nil); only transport failures return an error.
type LocationResolver interface {
	ResolveLocation(ctx context.Context, locationID string) (*domain.Location, error)
}

// PipelineDeps bundles collaborators for the query pipeline.
type PipelineDeps struct {
	Listings  ListingSource
	Locations LocationResolver
	Tree      *catalog.Tree
	BatchSize int
}

// Pipeline turns a filter into one display-ready page of enriched listings.
//
// The stage order is fixed: fetch, status filter (default active), exact-match
// id filters, price range, stable createdAt-descending sort, case-folded
// free-text filter after sorting, page truncation, then concurrent
// category/location enrichment. hasMore is derived from the pre-filter batch
// size, not the post-filter count, so it can misreport once the filters remove
// a large share of the batch; that approximation is kept deliberately.
type Pipeline struct {
	listings  ListingSource
	locations LocationResolver
	tree      *catalog.Tree
	batchSize int
}

// NewPipeline wires dependencies into a Pipeline.
func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	if deps.Listings == nil {
		return nil, errors.New("listings: pipeline requires a listing source")
	}
	if deps.Locations == nil {
		return nil, errors.New("listings: pipeline requires a location resolver")
	}
	if deps.Tree == nil {
		return nil, errors.New("listings: pipeline requires a catalog tree")
	}

	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Pipeline{
		listings:  deps.Listings,
		locations: deps.Locations,
		tree:      deps.Tree,
		batchSize: batchSize,
	}, nil
}

// Search runs the pipeline for one page.
func (p *Pipeline) Search(ctx context.Context, filter domain.ListingFilter) (domain.ListingPage, error) {
	batch, err := p.listings.FetchBatch(ctx, filter, p.batchSize)
	if err != nil {
		return domain.ListingPage{}, err
	}

	pageSize := normalizePageSize(filter.PageSize)
	hasMore := len(batch) > pageSize

	filtered := applyRecordFilters(batch, filter)

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if query := strings.TrimSpace(filter.Query); query != "" {
		filtered = applyTextFilter(filtered, query)
	}

	total := len(filtered)
	if len(filtered) > pageSize {
		filtered = filtered[:pageSize]
	}

	items, err := p.enrichAll(ctx, filtered)
	if err != nil {
		return domain.ListingPage{}, err
	}

	return domain.ListingPage{
		Items:   items,
		HasMore: hasMore,
		Total:   total,
	}, nil
}

// Enrich joins a single listing with its category and location records.
func (p *Pipeline) Enrich(ctx context.Context, listing domain.Listing) (domain.EnrichedListing, error) {
	enriched := p.enrichStatic(listing)

	location, err := p.resolveLocation(ctx, listing.LocationID)
	if err != nil {
		return domain.EnrichedListing{}, err
	}
	enriched.Location = location

	return enriched, nil
}

// applyRecordFilters runs the status, id, and price stages in order.
func applyRecordFilters(batch []domain.Listing, filter domain.ListingFilter) []domain.Listing {
	status := filter.Status
	if status == "" {
		status = domain.ListingStatusActive
	}

	filtered := make([]domain.Listing, 0, len(batch))
	for _, listing := range batch {
		if listing.Status != status {
			continue
		}
		if filter.CategoryID != "" && listing.CategoryID != filter.CategoryID {
			continue
		}
		if filter.LocationID != "" && listing.LocationID != filter.LocationID {
			continue
		}
		if filter.UserID != "" && listing.UserID != filter.UserID {
			continue
		}
		if filter.MinPrice != nil && listing.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && listing.Price > *filter.MaxPrice {
			continue
		}
		filtered = append(filtered, listing)
	}
	return filtered
}

// applyTextFilter keeps listings whose title or description contains the
// query, compared under Unicode case folding so Romanian diacritics match.
func applyTextFilter(batch []domain.Listing, query string) []domain.Listing {
	folder := cases.Fold()
	needle := folder.String(query)

	filtered := batch[:0]
	for _, listing := range batch {
		if strings.Contains(folder.String(listing.Title), needle) ||
			strings.Contains(folder.String(listing.Description), needle) {
			filtered = append(filtered, listing)
		}
	}
	return filtered
}

func (p *Pipeline) enrichAll(ctx context.Context, batch []domain.Listing) ([]domain.EnrichedListing, error) {
	items := make([]domain.EnrichedListing, len(batch))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(enrichConcurrency)

	for i, listing := range batch {
		items[i] = p.enrichStatic(listing)

		index := i
		locationID := listing.LocationID
		group.Go(func() error {
			location, err := p.resolveLocation(groupCtx, locationID)
			if err != nil {
				return err
			}
			items[index].Location = location
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// enrichStatic fills everything derivable without I/O: the category join from
// the in-memory tree and the transport-safe timestamp strings.
func (p *Pipeline) enrichStatic(listing domain.Listing) domain.EnrichedListing {
	enriched := domain.EnrichedListing{
		ID:           listing.ID,
		Title:        listing.Title,
		Description:  listing.Description,
		Price:        listing.Price,
		Images:       listing.Images,
		UserID:       listing.UserID,
		Phone:        listing.Phone,
		Status:       listing.Status,
		CustomFields: listing.CustomFields,
		Views:        listing.Views,
		Featured:     listing.Featured,
		CreatedAt:    formatTimestamp(listing.CreatedAt),
		UpdatedAt:    formatTimestamp(listing.UpdatedAt),
		ExpiresAt:    formatTimestamp(listing.ExpiresAt),
	}

	if category := p.tree.Category(listing.CategoryID); category != nil {
		enriched.Category = &domain.CategoryRef{
			ID:   category.ID,
			Name: category.Name,
			Slug: category.Slug,
			Icon: category.Icon,
		}
	}

	return enriched
}

func (p *Pipeline) resolveLocation(ctx context.Context, locationID string) (*domain.LocationRef, error) {
	if locationID == "" {
		return nil, nil
	}

	location, err := p.locations.ResolveLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if location == nil {
		return nil, nil
	}

	return &domain.LocationRef{
		ID:   location.ID,
		Name: location.Name,
		Slug: location.Slug,
	}, nil
}

// formatTimestamp renders a timestamp as RFC 3339 or nil; a zero value means
// the field is absent and must cross the boundary as null, never as a raw
// zero date.
func formatTimestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

func normalizePageSize(requested int) int {
	if requested <= 0 {
		return DefaultPageSize
	}
	if requested > MaxPageSize {
		return MaxPageSize
	}
	return requested
}
