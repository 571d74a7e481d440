package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/anuntul/api/internal/catalog"
	"github.com/anuntul/api/internal/domain"
	"github.com/anuntul/api/internal/platform/httpx"
	"github.com/anuntul/api/internal/platform/pagination"
	"github.com/anuntul/api/internal/services"
)

// LocationLister supplies the location reference data served publicly.
type LocationLister interface {
	List(ctx context.Context) ([]domain.Location, error)
}

// PublicHandlers serves the unauthenticated catalog, location, and listing
// endpoints.
type PublicHandlers struct {
	tree      *catalog.Tree
	listings  services.ListingService
	locations LocationLister
	pager     pagination.Options
}

// PublicHandlersDeps bundles collaborators for PublicHandlers.
type PublicHandlersDeps struct {
	Tree      *catalog.Tree
	Listings  services.ListingService
	Locations LocationLister
	Pager     pagination.Options
}

// NewPublicHandlers constructs the public endpoint handlers.
func NewPublicHandlers(deps PublicHandlersDeps) (*PublicHandlers, error) {
	if deps.Tree == nil {
		return nil, errors.New("public handlers: catalog tree is required")
	}
	if deps.Listings == nil {
		return nil, errors.New("public handlers: listing service is required")
	}
	if deps.Locations == nil {
		return nil, errors.New("public handlers: location lister is required")
	}
	return &PublicHandlers{
		tree:      deps.Tree,
		listings:  deps.Listings,
		locations: deps.Locations,
		pager:     deps.Pager,
	}, nil
}

// Routes registers the public endpoints on the provided router.
func (h *PublicHandlers) Routes(r chi.Router) {
	r.Get("/catalog", h.getCatalog)
	r.Get("/catalog/{categoryID}", h.getCategory)
	r.Get("/locations", h.listLocations)
	r.Get("/listings", h.searchListings)
	r.Get("/listings/{listingID}", h.getListing)
}

func (h *PublicHandlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, catalogPayload{Categories: h.tree.Categories()})
}

func (h *PublicHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categoryID := strings.TrimSpace(chi.URLParam(r, "categoryID"))
	category := h.tree.Category(categoryID)
	if category == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, category)
}

func (h *PublicHandlers) listLocations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	locations, err := h.locations.List(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("location_error", "failed to load locations", http.StatusInternalServerError))
		return
	}

	items := make([]locationPayload, 0, len(locations))
	for _, location := range locations {
		items = append(items, locationPayload{
			ID:     location.ID,
			Name:   location.Name,
			Slug:   location.Slug,
			County: location.County,
		})
	}

	writeJSONResponse(w, http.StatusOK, locationListPayload{Items: items})
}

func (h *PublicHandlers) searchListings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := pagination.FromRequest(r, h.pager)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter, err := parseListingFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.PageSize = params.PageSize

	page, err := h.listings.Search(ctx, filter)
	if err != nil {
		writeListingError(ctx, w, err)
		return
	}

	items := make([]listingPayload, 0, len(page.Items))
	for _, listing := range page.Items {
		items = append(items, buildListingPayload(listing))
	}

	writeJSONResponse(w, http.StatusOK, listingPagePayload{
		Items:   items,
		HasMore: page.HasMore,
		Total:   page.Total,
	})
}

func (h *PublicHandlers) getListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listingID := strings.TrimSpace(chi.URLParam(r, "listingID"))
	if listingID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "listing id is required", http.StatusBadRequest))
		return
	}

	// A public fetch counts as one view unless explicitly suppressed.
	countView := !strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("countView")), "false")

	listing, err := h.listings.Get(ctx, services.GetListingCommand{
		ListingID: listingID,
		CountView: countView,
	})
	if err != nil {
		writeListingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildListingPayload(listing))
}

func parseListingFilter(r *http.Request) (domain.ListingFilter, error) {
	query := r.URL.Query()

	filter := domain.ListingFilter{
		CategoryID: strings.TrimSpace(query.Get("categoryId")),
		LocationID: strings.TrimSpace(query.Get("locationId")),
		UserID:     strings.TrimSpace(query.Get("userId")),
		Query:      strings.TrimSpace(query.Get("q")),
	}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := domain.ListingStatus(raw)
		if !domain.ValidListingStatus(status) {
			return domain.ListingFilter{}, errors.New("unknown listing status")
		}
		filter.Status = status
	}

	minPrice, err := parsePriceParam(query.Get("minPrice"))
	if err != nil {
		return domain.ListingFilter{}, errors.New("minPrice must be a number")
	}
	filter.MinPrice = minPrice

	maxPrice, err := parsePriceParam(query.Get("maxPrice"))
	if err != nil {
		return domain.ListingFilter{}, errors.New("maxPrice must be a number")
	}
	filter.MaxPrice = maxPrice

	return filter, nil
}

func parsePriceParam(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

type catalogPayload struct {
	Categories []catalog.CategoryConfig `json:"categories"`
}

type locationListPayload struct {
	Items []locationPayload `json:"items"`
}

type locationPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	County string `json:"county,omitempty"`
}

type listingPagePayload struct {
	Items   []listingPayload `json:"items"`
	HasMore bool             `json:"hasMore"`
	Total   int              `json:"total"`
}

type listingPayload struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Price        float64           `json:"price"`
	Images       []string          `json:"images"`
	UserID       string            `json:"userId"`
	Phone        string            `json:"phone,omitempty"`
	Status       string            `json:"status"`
	CustomFields map[string]string `json:"customFields,omitempty"`
	Views        int64             `json:"views"`
	Featured     bool              `json:"featured"`
	Category     *categoryRef      `json:"category"`
	Location     *locationRef      `json:"location"`
	CreatedAt    *string           `json:"createdAt"`
	UpdatedAt    *string           `json:"updatedAt"`
	ExpiresAt    *string           `json:"expiresAt"`
}

type categoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Icon string `json:"icon,omitempty"`
}

type locationRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func buildListingPayload(listing domain.EnrichedListing) listingPayload {
	payload := listingPayload{
		ID:           listing.ID,
		Title:        listing.Title,
		Description:  listing.Description,
		Price:        listing.Price,
		Images:       listing.Images,
		UserID:       listing.UserID,
		Phone:        listing.Phone,
		Status:       string(listing.Status),
		CustomFields: listing.CustomFields,
		Views:        listing.Views,
		Featured:     listing.Featured,
		CreatedAt:    listing.CreatedAt,
		UpdatedAt:    listing.UpdatedAt,
		ExpiresAt:    listing.ExpiresAt,
	}
	if payload.Images == nil {
		payload.Images = []string{}
	}
	if listing.Category != nil {
		payload.Category = &categoryRef{
			ID:   listing.Category.ID,
			Name: listing.Category.Name,
			Slug: listing.Category.Slug,
			Icon: listing.Category.Icon,
		}
	}
	if listing.Location != nil {
		payload.Location = &locationRef{
			ID:   listing.Location.ID,
			Name: listing.Location.Name,
			Slug: listing.Location.Slug,
		}
	}
	return payload
}

func writeListingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrListingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("listing_not_found", "listing not found", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrListingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrListingUnauthorized):
		httpx.WriteError(ctx, w, httpx.NewError("listing_forbidden", "not allowed to modify this listing", http.StatusForbidden))
		return
	case errors.Is(err, services.ErrListingInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status_transition", err.Error(), http.StatusConflict))
		return
	case errors.Is(err, services.ErrListingConflict):
		httpx.WriteError(ctx, w, httpx.NewError("listing_conflict", "listing was modified concurrently", http.StatusConflict))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("listing_error", "listing operation failed", http.StatusInternalServerError))
}
