package wizard

import (
	"strings"
	"sync"
	"time"

	"github.com/anuntul/api/internal/catalog"
)

// Session is the single source of truth for one wizard's progress and
// accumulated input. All mutations are serialized behind a mutex so each
// operation is atomic from the caller's perspective.
type Session struct {
	id      string
	userID  string
	tree    *catalog.Tree
	clock   func() time.Time

	mu         sync.Mutex
	steps      []Step
	current    int
	form       FormData
	errors     ValidationErrors
	submitting bool
	createdAt  time.Time
	touchedAt  time.Time
}

func newSession(id, userID string, tree *catalog.Tree, clock func() time.Time) *Session {
	now := clock()
	return &Session{
		id:        id,
		userID:    userID,
		tree:      tree,
		clock:     clock,
		steps:     newSteps(),
		form:      FormData{CustomFields: map[string]any{}},
		errors:    make(ValidationErrors),
		createdAt: now,
		touchedAt: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owner of the session.
func (s *Session) UserID() string { return s.userID }

// UpdateFormData merges the patch into the form data. The whole validation
// error map is cleared: errors are stale the instant input changes. Changing
// the category clears the subcategory selection and all custom field values;
// changing the subcategory clears the custom field values. Never fails.
func (s *Session) UpdateFormData(patch FormPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.CategoryID != nil && *patch.CategoryID != s.form.CategoryID {
		s.form.CategoryID = *patch.CategoryID
		s.form.CategoryName = ""
		s.form.SubcategoryID = ""
		s.form.SubcategoryName = ""
		s.form.CustomFields = map[string]any{}
		if cat := s.tree.Category(*patch.CategoryID); cat != nil {
			s.form.CategoryName = cat.Name
		}
	}
	if patch.SubcategoryID != nil && *patch.SubcategoryID != s.form.SubcategoryID {
		s.form.SubcategoryID = *patch.SubcategoryID
		s.form.SubcategoryName = ""
		s.form.CustomFields = map[string]any{}
		if sub := s.tree.Subcategory(*patch.SubcategoryID); sub != nil {
			s.form.SubcategoryName = sub.Name
		}
	}

	if patch.CategoryName != nil {
		s.form.CategoryName = *patch.CategoryName
	}
	if patch.SubcategoryName != nil {
		s.form.SubcategoryName = *patch.SubcategoryName
	}
	if patch.Title != nil {
		s.form.Title = *patch.Title
	}
	if patch.Description != nil {
		s.form.Description = *patch.Description
	}
	if patch.Price != nil {
		price := *patch.Price
		s.form.Price = &price
	}
	if patch.LocationID != nil {
		s.form.LocationID = *patch.LocationID
	}
	if patch.Phone != nil {
		s.form.Phone = *patch.Phone
	}
	if patch.Images != nil {
		s.form.Images = append([]string(nil), patch.Images...)
	}
	if patch.CustomFields != nil {
		// Full replacement; clients send the complete merged map per change.
		fields := make(map[string]any, len(patch.CustomFields))
		for key, value := range patch.CustomFields {
			fields[key] = cloneFieldValue(value)
		}
		s.form.CustomFields = fields
	}

	s.errors = make(ValidationErrors)
	s.touchedAt = s.clock()
}

// GoToStep jumps to the given step index, clamped into [0, StepCount-1].
// Steps before the target are marked completed, the target active, and all
// later steps neither. Always succeeds.
func (s *Session) GoToStep(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goToStepLocked(index)
}

// NextStep advances one step; no-op at the last step.
func (s *Session) NextStep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goToStepLocked(s.current + 1)
}

// PrevStep moves back one step; no-op at the first step.
func (s *Session) PrevStep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goToStepLocked(s.current - 1)
}

func (s *Session) goToStepLocked(index int) {
	if index < 0 {
		index = 0
	}
	if index > len(s.steps)-1 {
		index = len(s.steps) - 1
	}
	s.current = index
	for i := range s.steps {
		s.steps[i].Completed = i < index
		s.steps[i].Active = i == index
	}
	s.touchedAt = s.clock()
}

// Reset restores the initial step template and empties form data and errors.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.steps = newSteps()
	s.current = 0
	s.form = FormData{CustomFields: map[string]any{}}
	s.errors = make(ValidationErrors)
	s.submitting = false
	s.touchedAt = s.clock()
}

// CurrentStep returns the active step index.
func (s *Session) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Steps returns a copy of the step list with its navigation flags.
func (s *Session) Steps() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// FormData returns a copy of the accumulated input.
func (s *Session) FormData() FormData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.clone()
}

// Errors returns a copy of the current validation error map.
func (s *Session) Errors() ValidationErrors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors.clone()
}

// SelectedCategory resolves the configuration entry for the chosen category,
// nil on miss. Recomputed on read, never stored.
func (s *Session) SelectedCategory() *catalog.CategoryConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Category(s.form.CategoryID)
}

// SelectedSubcategory resolves the chosen subcategory, nil on miss (e.g. a
// stale subcategoryId after a category change).
func (s *Session) SelectedSubcategory() *catalog.SubcategoryConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Subcategory(s.form.SubcategoryID)
}

// CustomFields returns the field descriptors of the selected subcategory,
// empty when none resolves.
func (s *Session) CustomFields() []catalog.FieldDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.FieldsFor(s.form.SubcategoryID)
}

// CanGoNext reports whether the current step's requirements are satisfied.
// It shares its implementation with Validate, so the two always agree.
func (s *Session) CanGoNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return validateStep(s.current, s.form, s.tree).Empty()
}

// CanGoPrev reports whether a previous step exists.
func (s *Session) CanGoPrev() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current > 0
}

// Validate runs the current step's validator and stores the resulting error
// map for display. Returns true when the step passes.
func (s *Session) Validate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	errs := validateStep(s.current, s.form, s.tree)
	s.errors = errs
	return errs.Empty()
}

// beginSubmit marks the session as having a submission in flight. Returns
// false when one is already running, enforcing the single-submission rule.
func (s *Session) beginSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return false
	}
	s.submitting = true
	return true
}

// endSubmit clears the in-flight marker and records any whole-form errors,
// leaving the session consistent and re-editable.
func (s *Session) endSubmit(errs ValidationErrors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if len(errs) > 0 {
		s.errors = errs.clone()
	}
	s.touchedAt = s.clock()
}

// setFieldErrors replaces the error map, used when the submit gate fails
// validation before any external call.
func (s *Session) setFieldErrors(errs ValidationErrors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = errs.clone()
}

// touchedSince reports whether the session saw activity at or after the cutoff.
func (s *Session) touchedSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.touchedAt.Before(cutoff)
}

// trimID normalizes identifiers used for session lookups.
func trimID(id string) string {
	return strings.TrimSpace(id)
}
