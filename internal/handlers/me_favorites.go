package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/anuntul/api/internal/domain"
	"github.com/anuntul/api/internal/platform/httpx"
	"github.com/anuntul/api/internal/platform/pagination"
	"github.com/anuntul/api/internal/services"
)

// MeHandlers serves the authenticated user-scoped endpoints.
type MeHandlers struct {
	favorites services.FavoriteService
	listings  services.ListingService
	pager     pagination.Options
}

// MeHandlersDeps bundles collaborators for MeHandlers.
type MeHandlersDeps struct {
	Favorites services.FavoriteService
	Listings  services.ListingService
	Pager     pagination.Options
}

// NewMeHandlers constructs the user-scoped endpoint handlers.
func NewMeHandlers(deps MeHandlersDeps) (*MeHandlers, error) {
	if deps.Favorites == nil {
		return nil, errors.New("me handlers: favorite service is required")
	}
	if deps.Listings == nil {
		return nil, errors.New("me handlers: listing service is required")
	}
	return &MeHandlers{
		favorites: deps.Favorites,
		listings:  deps.Listings,
		pager:     deps.Pager,
	}, nil
}

// Routes registers the user-scoped endpoints on the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	r.Get("/listings", h.myListings)
	r.Patch("/listings/{listingID}/status", h.updateMyListingStatus)
	r.Delete("/listings/{listingID}", h.deleteMyListing)
	r.Get("/favorites", h.listFavorites)
	r.Put("/favorites/{listingID}", h.addFavorite)
	r.Delete("/favorites/{listingID}", h.removeFavorite)
}

func (h *MeHandlers) myListings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, h.pager)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := domain.ListingFilter{
		UserID:   identity.UID,
		PageSize: params.PageSize,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := domain.ListingStatus(raw)
		if !domain.ValidListingStatus(status) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown listing status", http.StatusBadRequest))
			return
		}
		filter.Status = status
	}

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

func (h *MeHandlers) updateMyListingStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var body statusUpdateRequest
	if err := decodeJSONBody(r, &body); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	status := domain.ListingStatus(strings.TrimSpace(body.Status))
	if !domain.ValidListingStatus(status) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown listing status", http.StatusBadRequest))
		return
	}

	listing, err := h.listings.UpdateStatus(ctx, services.UpdateListingStatusCommand{
		ListingID: strings.TrimSpace(chi.URLParam(r, "listingID")),
		Status:    status,
		ActorID:   identity.UID,
		ActorRole: actorRole(identity),
	})
	if err != nil {
		writeListingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"id":     listing.ID,
		"status": string(listing.Status),
	})
}

func (h *MeHandlers) deleteMyListing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	err := h.listings.Delete(ctx, services.DeleteListingCommand{
		ListingID: strings.TrimSpace(chi.URLParam(r, "listingID")),
		ActorID:   identity.UID,
		ActorRole: actorRole(identity),
	})
	if err != nil {
		writeListingError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type favoritePayload struct {
	ListingID string `json:"listingId"`
	AddedAt   string `json:"addedAt"`
}

func (h *MeHandlers) listFavorites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	favorites, err := h.favorites.List(ctx, identity.UID)
	if err != nil {
		writeFavoriteError(ctx, w, err)
		return
	}

	items := make([]favoritePayload, 0, len(favorites))
	for _, favorite := range favorites {
		items = append(items, favoritePayload{
			ListingID: favorite.ListingID,
			AddedAt:   formatTime(favorite.AddedAt),
		})
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *MeHandlers) addFavorite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	listingID := strings.TrimSpace(chi.URLParam(r, "listingID"))
	created, err := h.favorites.Add(ctx, identity.UID, listingID)
	if err != nil {
		writeFavoriteError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, map[string]any{"listingId": listingID, "created": created})
}

func (h *MeHandlers) removeFavorite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	listingID := strings.TrimSpace(chi.URLParam(r, "listingID"))
	if err := h.favorites.Remove(ctx, identity.UID, listingID); err != nil {
		writeFavoriteError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeFavoriteError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrFavoriteInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrFavoriteListingNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("listing_not_found", "listing not found", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrFavoriteLimitReached):
		httpx.WriteError(ctx, w, httpx.NewError("favorite_limit_reached", "favorite limit reached", http.StatusConflict))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("favorite_error", "favorite operation failed", http.StatusInternalServerError))
}
