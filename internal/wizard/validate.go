package wizard

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anuntul/api/internal/catalog"
)

// FormErrorKey is the sentinel error-map key for whole-form errors that are
// not attributable to a single field (submission rejections, missing auth).
const FormErrorKey = "_form"

const (
	minTitleLength       = 5
	minDescriptionLength = 20
	minPhoneLength       = 10
)

// ValidationErrors maps a field key (step field name, custom field descriptor
// id, or FormErrorKey) to an ordered list of human-readable messages.
type ValidationErrors map[string][]string

// Add appends a message under the given key.
func (v ValidationErrors) Add(key, message string) {
	v[key] = append(v[key], message)
}

// Empty reports whether no errors were collected.
func (v ValidationErrors) Empty() bool {
	return len(v) == 0
}

// clone returns an independent copy of the error map.
func (v ValidationErrors) clone() ValidationErrors {
	if v == nil {
		return nil
	}
	out := make(ValidationErrors, len(v))
	for key, messages := range v {
		out[key] = append([]string(nil), messages...)
	}
	return out
}

// validateStep runs the validator for the given step index over the
// accumulated form data. It is the single implementation backing both the
// cheap CanGoNext boolean and the message-producing Validate pass, so the two
// agree for every input by construction.
func validateStep(index int, form FormData, tree *catalog.Tree) ValidationErrors {
	errs := make(ValidationErrors)

	switch index {
	case 0:
		if strings.TrimSpace(form.CategoryID) == "" {
			errs.Add("categoryId", "category is required")
		}
	case 1:
		if strings.TrimSpace(form.SubcategoryID) == "" {
			errs.Add("subcategoryId", "subcategory is required")
		}
	case 2:
		validateDetails(form, errs)
	case 3:
		validateCustomFields(form, tree, errs)
	case 4:
		// Image attachment is optional; the step always passes.
	case 5:
		// Review gates nothing at navigation time; the submit gate runs separately.
	}

	return errs
}

// validateDetails measures minimum lengths in runes, not bytes, so titles and
// descriptions written with Romanian diacritics are held to the same minimums
// as plain ASCII text.
func validateDetails(form FormData, errs ValidationErrors) {
	if utf8.RuneCountInString(strings.TrimSpace(form.Title)) < minTitleLength {
		errs.Add("title", fmt.Sprintf("title must be at least %d characters", minTitleLength))
	}
	if utf8.RuneCountInString(strings.TrimSpace(form.Description)) < minDescriptionLength {
		errs.Add("description", fmt.Sprintf("description must be at least %d characters", minDescriptionLength))
	}
	if form.Price == nil || *form.Price <= 0 {
		errs.Add("price", "price must be greater than 0")
	}
	if strings.TrimSpace(form.LocationID) == "" {
		errs.Add("locationId", "location is required")
	}
	if utf8.RuneCountInString(strings.TrimSpace(form.Phone)) < minPhoneLength {
		errs.Add("phone", fmt.Sprintf("phone number must be at least %d characters", minPhoneLength))
	}
}

// validateCustomFields checks required descriptors of the selected
// subcategory. When no subcategory resolves there is nothing to check and the
// step is trivially valid.
func validateCustomFields(form FormData, tree *catalog.Tree, errs ValidationErrors) {
	fields := tree.FieldsFor(form.SubcategoryID)
	for _, field := range fields {
		if !field.Required {
			continue
		}
		value, ok := form.CustomFields[field.ID]
		if !ok || isBlankFieldValue(value) {
			errs.Add(field.ID, fmt.Sprintf("%s is required", field.Label))
		}
	}
}

func isBlankFieldValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	default:
		return false
	}
}
