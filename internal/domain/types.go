package domain

import (
	"time"
)

// ListingStatus enumerates valid lifecycle states for listings.
type ListingStatus string

const (
	// ListingStatusActive indicates the listing is published and visible in searches.
	ListingStatusActive ListingStatus = "active"
	// ListingStatusInactive indicates the listing is paused by its owner.
	ListingStatusInactive ListingStatus = "inactive"
	// ListingStatusSold indicates the advertised item was sold.
	ListingStatusSold ListingStatus = "sold"
	// ListingStatusHidden indicates the listing was hidden by moderation.
	ListingStatusHidden ListingStatus = "hidden"
	// ListingStatusDeleted indicates a soft delete; the record is retained but excluded from normal queries.
	ListingStatusDeleted ListingStatus = "deleted"
)

// ValidListingStatus reports whether the status is one of the known lifecycle states.
func ValidListingStatus(status ListingStatus) bool {
	switch status {
	case ListingStatusActive, ListingStatusInactive, ListingStatusSold, ListingStatusHidden, ListingStatusDeleted:
		return true
	}
	return false
}

// Listing is the classified ad record persisted in the document store.
// A listing is owned by exactly one user and mutated only by its owner or an
// admin actor; deletions are soft (status flips to deleted).
type Listing struct {
	ID            string
	Title         string
	Description   string
	Price         float64
	Images        []string
	CategoryID    string
	SubcategoryID string
	LocationID    string
	UserID        string
	Phone         string
	Status        ListingStatus
	CustomFields  map[string]string
	Views         int64
	Featured      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExpiresAt     time.Time
}

// Location is a reference record resolved during enrichment.
type Location struct {
	ID     string
	Name   string
	Slug   string
	County string
}

// ListingFilter captures the client-side filter set applied by the
// query/enrichment pipeline. Zero values mean "not filtered".
type ListingFilter struct {
	Status     ListingStatus
	CategoryID string
	LocationID string
	UserID     string
	MinPrice   *float64
	MaxPrice   *float64
	Query      string
	PageSize   int
}

// CategoryRef is the category slice of an enriched listing. Nil when the
// referenced id no longer resolves.
type CategoryRef struct {
	ID   string
	Name string
	Slug string
	Icon string
}

// LocationRef is the location slice of an enriched listing. Nil when the
// referenced id no longer resolves.
type LocationRef struct {
	ID   string
	Name string
	Slug string
}

// EnrichedListing joins a listing with its resolved category and location for
// display. Timestamps are pre-rendered to RFC 3339 strings (nil when absent
// or unparseable) so no raw native date object crosses the transport boundary.
type EnrichedListing struct {
	ID           string
	Title        string
	Description  string
	Price        float64
	Images       []string
	UserID       string
	Phone        string
	Status       ListingStatus
	CustomFields map[string]string
	Views        int64
	Featured     bool
	Category     *CategoryRef
	Location     *LocationRef
	CreatedAt    *string
	UpdatedAt    *string
	ExpiresAt    *string
}

// ListingPage is the pipeline output for one requested page.
type ListingPage struct {
	Items []EnrichedListing
	// HasMore is derived from the pre-filter batch size, not the post-filter
	// count, and can therefore misreport once filters remove a significant
	// fraction of the batch. Kept intentionally; see the pipeline docs.
	HasMore bool
	Total   int
}

// FavoriteListing records one listing saved by a user.
type FavoriteListing struct {
	ListingID string
	AddedAt   time.Time
}
