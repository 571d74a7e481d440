package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	domain "github.com/anuntul/api/internal/domain"
	"github.com/anuntul/api/internal/listings"
	"github.com/anuntul/api/internal/repositories"
	"github.com/anuntul/api/internal/wizard"
)

const (
	listingIDPrefix           = "lst_"
	listingEventCreated       = "listing.created"
	listingEventStatusChanged = "listing.status_changed"

	// DefaultListingLifetime is how long a freshly published listing stays up
	// before it expires.
	DefaultListingLifetime = 30 * 24 * time.Hour

	roleAdmin = "admin"
)

var (
	// ErrListingInvalidInput indicates validation failures for listing operations.
	ErrListingInvalidInput = errors.New("listing: invalid input")
	// ErrListingNotFound indicates a listing could not be located.
	ErrListingNotFound = errors.New("listing: not found")
	// ErrListingUnauthorized indicates the actor may not mutate the listing.
	ErrListingUnauthorized = errors.New("listing: unauthorized")
	// ErrListingConflict signals duplicate inserts or conflicting updates.
	ErrListingConflict = errors.New("listing: conflict")
	// ErrListingInvalidState is returned for a disallowed status transition.
	ErrListingInvalidState = errors.New("listing: invalid state transition")
)

// ListingEventPublisher emits listing lifecycle events to downstream consumers.
type ListingEventPublisher interface {
	PublishListingEvent(ctx context.Context, event ListingEvent) error
}

// ListingEvent captures metadata for listing lifecycle events.
type ListingEvent struct {
	Type       string               `json:"type"`
	ListingID  string               `json:"listingId"`
	UserID     string               `json:"userId"`
	ActorID    string               `json:"actorId,omitempty"`
	Status     domain.ListingStatus `json:"status"`
	OccurredAt time.Time            `json:"occurredAt"`
	Metadata   map[string]any       `json:"metadata,omitempty"`
}

// ListingServiceDeps bundles collaborators required to construct a ListingService.
type ListingServiceDeps struct {
	Listings    repositories.ListingRepository
	Pipeline    *listings.Pipeline
	Clock       func() time.Time
	IDGenerator func() string
	Events      ListingEventPublisher
	Lifetime    time.Duration
}

type listingService struct {
	listings repositories.ListingRepository
	pipeline *listings.Pipeline
	clock    func() time.Time
	newID    func() string
	events   ListingEventPublisher
	lifetime time.Duration

	ownerStatuses map[domain.ListingStatus]struct{}
	adminStatuses map[domain.ListingStatus]struct{}
}

// NewListingService wires dependencies into a concrete ListingService implementation.
func NewListingService(deps ListingServiceDeps) (ListingService, error) {
	if deps.Listings == nil {
		return nil, errors.New("listing service: listing repository is required")
	}
	if deps.Pipeline == nil {
		return nil, errors.New("listing service: pipeline is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return listingIDPrefix + ulid.Make().String()
		}
	}
	lifetime := deps.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultListingLifetime
	}

	return &listingService{
		listings: deps.Listings,
		pipeline: deps.Pipeline,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		events:   deps.Events,
		lifetime: lifetime,
		ownerStatuses: map[domain.ListingStatus]struct{}{
			domain.ListingStatusActive:   {},
			domain.ListingStatusInactive: {},
			domain.ListingStatusSold:     {},
			domain.ListingStatusDeleted:  {},
		},
		adminStatuses: map[domain.ListingStatus]struct{}{
			domain.ListingStatusActive:  {},
			domain.ListingStatusHidden:  {},
			domain.ListingStatusDeleted: {},
		},
	}, nil
}

// CreateListing persists a listing built from the wizard transport payload.
// Invalid payloads are rejected with a *wizard.RejectionError so the wizard
// can surface the per-field messages verbatim.
func (s *listingService) CreateListing(ctx context.Context, payload wizard.Payload) (string, error) {
	listing, rejection := s.decodePayload(payload)
	if !rejection.Empty() {
		return "", &wizard.RejectionError{Errors: rejection}
	}

	now := s.now()
	listing.ID = s.newID()
	listing.Status = domain.ListingStatusActive
	listing.CreatedAt = now
	listing.UpdatedAt = now
	listing.ExpiresAt = now.Add(s.lifetime)

	if err := s.listings.Insert(ctx, listing); err != nil {
		return "", s.mapListingError(err)
	}

	s.emitEvent(ctx, listingEventCreated, listing, listing.UserID)

	return listing.ID, nil
}

func (s *listingService) Search(ctx context.Context, filter domain.ListingFilter) (domain.ListingPage, error) {
	return s.pipeline.Search(ctx, filter)
}

func (s *listingService) Get(ctx context.Context, cmd GetListingCommand) (domain.EnrichedListing, error) {
	if strings.TrimSpace(cmd.ListingID) == "" {
		return domain.EnrichedListing{}, fmt.Errorf("%w: listing id is required", ErrListingInvalidInput)
	}

	listing, err := s.listings.FindByID(ctx, cmd.ListingID)
	if err != nil {
		return domain.EnrichedListing{}, s.mapListingError(err)
	}
	// Soft-deleted records stay out of normal reads.
	if listing.Status == domain.ListingStatusDeleted {
		return domain.EnrichedListing{}, ErrListingNotFound
	}

	if cmd.CountView {
		views, err := s.listings.IncrementViews(ctx, listing.ID)
		if err != nil {
			return domain.EnrichedListing{}, s.mapListingError(err)
		}
		listing.Views = views
	}

	return s.pipeline.Enrich(ctx, listing)
}

func (s *listingService) UpdateStatus(ctx context.Context, cmd UpdateListingStatusCommand) (domain.Listing, error) {
	if strings.TrimSpace(cmd.ListingID) == "" {
		return domain.Listing{}, fmt.Errorf("%w: listing id is required", ErrListingInvalidInput)
	}
	if strings.TrimSpace(cmd.ActorID) == "" {
		return domain.Listing{}, fmt.Errorf("%w: actor id is required", ErrListingInvalidInput)
	}
	if !domain.ValidListingStatus(cmd.Status) {
		return domain.Listing{}, fmt.Errorf("%w: unknown status %s", ErrListingInvalidInput, cmd.Status)
	}

	listing, err := s.listings.FindByID(ctx, cmd.ListingID)
	if err != nil {
		return domain.Listing{}, s.mapListingError(err)
	}

	isAdmin := cmd.ActorRole == roleAdmin
	if listing.UserID != cmd.ActorID && !isAdmin {
		return domain.Listing{}, ErrListingUnauthorized
	}

	allowed := s.ownerStatuses
	if isAdmin {
		allowed = s.adminStatuses
	}
	if _, ok := allowed[cmd.Status]; !ok {
		return domain.Listing{}, fmt.Errorf("%w: status %s not allowed for actor", ErrListingInvalidState, cmd.Status)
	}

	if listing.Status == cmd.Status {
		return listing, nil
	}
	// A soft-deleted listing is terminal for everyone but admins.
	if listing.Status == domain.ListingStatusDeleted && !isAdmin {
		return domain.Listing{}, fmt.Errorf("%w: listing is deleted", ErrListingInvalidState)
	}

	updated, err := s.listings.UpdateStatus(ctx, cmd.ListingID, cmd.Status, s.now())
	if err != nil {
		return domain.Listing{}, s.mapListingError(err)
	}

	s.emitEvent(ctx, listingEventStatusChanged, updated, cmd.ActorID)

	return updated, nil
}

func (s *listingService) Delete(ctx context.Context, cmd DeleteListingCommand) error {
	_, err := s.UpdateStatus(ctx, UpdateListingStatusCommand{
		ListingID: cmd.ListingID,
		Status:    domain.ListingStatusDeleted,
		ActorID:   cmd.ActorID,
		ActorRole: cmd.ActorRole,
	})
	return err
}

// decodePayload validates and converts the wizard transport payload. Every
// failing field yields one message, mirroring the wizard's own validators so a
// rejected create reads the same as a failed step validation.
func (s *listingService) decodePayload(payload wizard.Payload) (domain.Listing, wizard.ValidationErrors) {
	errs := make(wizard.ValidationErrors)

	title := payloadString(payload, "title")
	if utf8.RuneCountInString(title) < 5 {
		errs.Add("title", "title must be at least 5 characters")
	}
	description := payloadString(payload, "description")
	if utf8.RuneCountInString(description) < 20 {
		errs.Add("description", "description must be at least 20 characters")
	}
	price, ok := payloadNumber(payload, "price")
	if !ok || price <= 0 {
		errs.Add("price", "price must be greater than 0")
	}
	categoryID := payloadString(payload, "categoryId")
	if categoryID == "" {
		errs.Add("categoryId", "category is required")
	}
	locationID := payloadString(payload, "locationId")
	if locationID == "" {
		errs.Add("locationId", "location is required")
	}
	phone := payloadString(payload, "phone")
	if utf8.RuneCountInString(phone) < 10 {
		errs.Add("phone", "phone number must be at least 10 characters")
	}
	userID := payloadString(payload, "userId")
	if userID == "" {
		errs.Add(wizard.FormErrorKey, "must be authenticated to publish a listing")
	}

	images, err := decodeImages(payload["images"])
	if err != nil {
		errs.Add("images", "images must be a JSON-encoded list")
	}

	customFields := make(map[string]string)
	for key, value := range payload {
		if !strings.HasPrefix(key, wizard.CustomFieldKeyPrefix) {
			continue
		}
		fieldID := strings.TrimPrefix(key, wizard.CustomFieldKeyPrefix)
		customFields[fieldID] = stringifyPayloadValue(value)
	}
	if len(customFields) == 0 {
		customFields = nil
	}

	return domain.Listing{
		Title:         title,
		Description:   description,
		Price:         price,
		Images:        images,
		CategoryID:    categoryID,
		SubcategoryID: payloadString(payload, "subcategoryId"),
		LocationID:    locationID,
		UserID:        userID,
		Phone:         phone,
		CustomFields:  customFields,
	}, errs
}

func (s *listingService) emitEvent(ctx context.Context, eventType string, listing domain.Listing, actorID string) {
	if s.events == nil {
		return
	}
	event := ListingEvent{
		Type:       eventType,
		ListingID:  listing.ID,
		UserID:     listing.UserID,
		ActorID:    actorID,
		Status:     listing.Status,
		OccurredAt: s.now(),
		Metadata: map[string]any{
			"categoryId": listing.CategoryID,
		},
	}
	_ = s.events.PublishListingEvent(ctx, event)
}

func (s *listingService) now() time.Time {
	return s.clock()
}

func (s *listingService) mapListingError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrListingNotFound
		case repoErr.IsConflict():
			return ErrListingConflict
		}
	}
	return err
}

func payloadString(payload wizard.Payload, key string) string {
	value, _ := payload[key].(string)
	return strings.TrimSpace(value)
}

func payloadNumber(payload wizard.Payload, key string) (float64, bool) {
	switch value := payload[key].(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	}
	return 0, false
}

func decodeImages(value any) ([]string, error) {
	raw, ok := value.(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var images []string
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		return nil, err
	}
	return images, nil
}

func stringifyPayloadValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

var _ wizard.ListingCreator = (ListingService)(nil)
