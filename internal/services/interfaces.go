package services

import (
	"context"

	domain "github.com/anuntul/api/internal/domain"
	"github.com/anuntul/api/internal/wizard"
)

// ListingService owns the listing lifecycle: creation from wizard payloads,
// pipeline-backed search, and owner/admin moderated status transitions.
type ListingService interface {
	// CreateListing satisfies wizard.ListingCreator; rejected payloads return
	// a *wizard.RejectionError carrying the per-field messages.
	CreateListing(ctx context.Context, payload wizard.Payload) (string, error)
	Search(ctx context.Context, filter domain.ListingFilter) (domain.ListingPage, error)
	Get(ctx context.Context, cmd GetListingCommand) (domain.EnrichedListing, error)
	UpdateStatus(ctx context.Context, cmd UpdateListingStatusCommand) (domain.Listing, error)
	Delete(ctx context.Context, cmd DeleteListingCommand) error
}

// GetListingCommand fetches one enriched listing, optionally counting the view.
type GetListingCommand struct {
	ListingID string
	CountView bool
}

// UpdateListingStatusCommand captures a status transition request.
type UpdateListingStatusCommand struct {
	ListingID string
	Status    domain.ListingStatus
	ActorID   string
	ActorRole string
}

// DeleteListingCommand captures a soft-delete request.
type DeleteListingCommand struct {
	ListingID string
	ActorID   string
	ActorRole string
}

// WizardService fronts the wizard session engine for the HTTP layer.
type WizardService interface {
	StartSession(ctx context.Context, userID string) (*wizard.Session, error)
	GetSession(ctx context.Context, sessionID, userID string) (*wizard.Session, error)
	UpdateForm(ctx context.Context, sessionID, userID string, patch wizard.FormPatch) (*wizard.Session, error)
	Advance(ctx context.Context, sessionID, userID string) (*wizard.Session, error)
	Back(ctx context.Context, sessionID, userID string) (*wizard.Session, error)
	GoTo(ctx context.Context, sessionID, userID string, step int) (*wizard.Session, error)
	Validate(ctx context.Context, sessionID, userID string) (*wizard.Session, bool, error)
	Submit(ctx context.Context, sessionID, userID string) (string, error)
	Discard(ctx context.Context, sessionID, userID string) error
}

// FavoriteService manages per-user saved listings.
type FavoriteService interface {
	List(ctx context.Context, userID string) ([]domain.FavoriteListing, error)
	Add(ctx context.Context, userID, listingID string) (bool, error)
	Remove(ctx context.Context, userID, listingID string) error
}
