package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// ErrSubmissionInFlight indicates another submission is already running
	// for the session; the wizard must never write twice concurrently.
	ErrSubmissionInFlight = errors.New("wizard: submission already in flight")
	// ErrSubmissionRejected indicates the form data failed the submit gate or
	// the external collaborator rejected the payload; details live on the
	// session error map under the whole-form sentinel key.
	ErrSubmissionRejected = errors.New("wizard: submission rejected")
)

// Payload is the transport representation handed to the listing creator.
// Field names are part of the external contract and must not change: title,
// description, price, categoryId, locationId, phone, userId, images
// (JSON-encoded list), and one custom_<descriptorId> entry per custom field
// whose value is the raw string/number/boolean or a JSON-encoded string for
// list values.
type Payload map[string]any

// CustomFieldKeyPrefix namespaces flattened custom field entries.
const CustomFieldKeyPrefix = "custom_"

// RejectionError carries collaborator-side validation errors to surface
// verbatim on the wizard error map.
type RejectionError struct {
	Errors ValidationErrors
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("listing creation rejected (%d field errors)", len(e.Errors))
}

// ListingCreator is the external collaborator that persists a new listing.
type ListingCreator interface {
	CreateListing(ctx context.Context, payload Payload) (string, error)
}

// SubmitterDeps bundles collaborators for the submission adapter.
type SubmitterDeps struct {
	Listings  ListingCreator
	Clock     func() time.Time
	Sanitizer func(string) string
}

// Submitter serializes accumulated wizard input into the transport payload
// and invokes the external create-listing action exactly once per attempt.
type Submitter struct {
	listings ListingCreator
	clock    func() time.Time
	sanitize func(string) string
}

// NewSubmitter wires dependencies into a Submitter.
func NewSubmitter(deps SubmitterDeps) (*Submitter, error) {
	if deps.Listings == nil {
		return nil, errors.New("wizard: submitter requires a listing creator")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	sanitize := deps.Sanitizer
	if sanitize == nil {
		policy := bluemonday.StrictPolicy()
		sanitize = func(input string) string {
			return strings.TrimSpace(policy.Sanitize(input))
		}
	}

	return &Submitter{
		listings: deps.Listings,
		clock:    clock,
		sanitize: sanitize,
	}, nil
}

// Submit runs the submit gate, builds the payload, and calls the collaborator.
// The gate re-runs the details-step validator so the step-advance check and
// the submit check are a single code path and cannot drift: a phone-less
// submission is rejected here before any external write. Every failure leaves
// the session on the review step, consistent and re-editable.
func (s *Submitter) Submit(ctx context.Context, session *Session) (string, error) {
	if session == nil {
		return "", errors.New("wizard: session is required")
	}

	if !session.beginSubmit() {
		return "", ErrSubmissionInFlight
	}

	form := session.FormData()

	if userID := trimID(session.UserID()); userID == "" {
		errs := make(ValidationErrors)
		errs.Add(FormErrorKey, "must be authenticated to publish a listing")
		session.endSubmit(errs)
		return "", ErrSubmissionRejected
	}

	if gateErrs := validateStep(2, form, nil); !gateErrs.Empty() {
		session.endSubmit(gateErrs)
		return "", ErrSubmissionRejected
	}

	payload, err := s.buildPayload(form, session.UserID())
	if err != nil {
		errs := make(ValidationErrors)
		errs.Add(FormErrorKey, err.Error())
		session.endSubmit(errs)
		return "", ErrSubmissionRejected
	}

	listingID, err := s.listings.CreateListing(ctx, payload)
	if err != nil {
		errs := make(ValidationErrors)
		var rejection *RejectionError
		if errors.As(err, &rejection) {
			for key, messages := range rejection.Errors {
				for _, message := range messages {
					errs.Add(key, message)
				}
			}
		} else {
			errs.Add(FormErrorKey, "listing could not be published, please try again")
		}
		session.endSubmit(errs)
		return "", ErrSubmissionRejected
	}

	session.endSubmit(nil)
	return listingID, nil
}

func (s *Submitter) buildPayload(form FormData, userID string) (Payload, error) {
	images := form.Images
	if images == nil {
		images = []string{}
	}
	encodedImages, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("encode images: %w", err)
	}

	var price float64
	if form.Price != nil {
		price = *form.Price
	}

	payload := Payload{
		"title":       s.sanitize(form.Title),
		"description": s.sanitize(form.Description),
		"price":       price,
		"categoryId":  form.CategoryID,
		"locationId":  form.LocationID,
		"phone":       strings.TrimSpace(form.Phone),
		"userId":      userID,
		"images":      string(encodedImages),
	}
	if form.SubcategoryID != "" {
		payload["subcategoryId"] = form.SubcategoryID
	}

	for key, value := range form.CustomFields {
		flattened, err := flattenFieldValue(value)
		if err != nil {
			return nil, fmt.Errorf("encode custom field %s: %w", key, err)
		}
		payload[CustomFieldKeyPrefix+key] = flattened
	}

	return payload, nil
}

// flattenFieldValue passes scalars through and JSON-encodes list or object
// values into a transportable text form.
func flattenFieldValue(value any) (any, error) {
	switch value.(type) {
	case string, bool, float64, int, int64:
		return value, nil
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(encoded), nil
	}
}
