package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/anuntul/api/internal/domain"
	"github.com/anuntul/api/internal/platform/auth"
	"github.com/anuntul/api/internal/platform/httpx"
	"github.com/anuntul/api/internal/services"
)

// AdminHandlers serves the moderation endpoints. The router mounts these
// behind admin-only authentication.
type AdminHandlers struct {
	listings services.ListingService
}

// AdminHandlersDeps bundles collaborators for AdminHandlers.
type AdminHandlersDeps struct {
	Listings services.ListingService
}

// NewAdminHandlers constructs the admin endpoint handlers.
func NewAdminHandlers(deps AdminHandlersDeps) (*AdminHandlers, error) {
	if deps.Listings == nil {
		return nil, errors.New("admin handlers: listing service is required")
	}
	return &AdminHandlers{listings: deps.Listings}, nil
}

// Routes registers the admin endpoints on the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	r.Patch("/listings/{listingID}/status", h.updateListingStatus)
	r.Delete("/listings/{listingID}", h.deleteListing)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandlers) updateListingStatus(w http.ResponseWriter, r *http.Request) {
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

func (h *AdminHandlers) deleteListing(w http.ResponseWriter, r *http.Request) {
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

func actorRole(identity *auth.Identity) string {
	if identity != nil && identity.HasRole(auth.RoleAdmin) {
		return auth.RoleAdmin
	}
	return auth.RoleUser
}
