package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// FieldType enumerates the supported custom field input kinds.
type FieldType string

const (
	// FieldTypeText is a single-line text input.
	FieldTypeText FieldType = "text"
	// FieldTypeNumber is a numeric input with optional min/max constraints.
	FieldTypeNumber FieldType = "number"
	// FieldTypeSelect is a single choice from the descriptor options.
	FieldTypeSelect FieldType = "select"
	// FieldTypeMultiselect is an independent checkbox per option; the value
	// keeps the order in which the user checked them.
	FieldTypeMultiselect FieldType = "multiselect"
	// FieldTypeTextarea is multi-line text with the same semantics as text.
	FieldTypeTextarea FieldType = "textarea"
	// FieldTypeCheckbox is a boolean; an absent key is equivalent to false.
	FieldTypeCheckbox FieldType = "checkbox"
	// FieldTypeDate is an ISO-8601 date string without a time component.
	FieldTypeDate FieldType = "date"
)

var validFieldTypes = map[FieldType]struct{}{
	FieldTypeText:        {},
	FieldTypeNumber:      {},
	FieldTypeSelect:      {},
	FieldTypeMultiselect: {},
	FieldTypeTextarea:    {},
	FieldTypeCheckbox:    {},
	FieldTypeDate:        {},
}

// FieldOption is one selectable {value, label} pair for select/multiselect fields.
type FieldOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldConstraints carries the optional validation bounds declared on a field.
type FieldConstraints struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Message string   `json:"message,omitempty"`
}

// FieldDescriptor is the schema for one dynamic form field. IDs are unique
// within their subcategory.
type FieldDescriptor struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Type        FieldType         `json:"type"`
	Required    bool              `json:"required"`
	Placeholder string            `json:"placeholder,omitempty"`
	Options     []FieldOption     `json:"options,omitempty"`
	Validation  *FieldConstraints `json:"validation,omitempty"`
}

// SubcategoryConfig groups an ordered list of field descriptors under a category.
type SubcategoryConfig struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Slug             string            `json:"slug"`
	Icon             string            `json:"icon,omitempty"`
	ParentCategoryID string            `json:"parentCategoryId"`
	Fields           []FieldDescriptor `json:"fields"`
}

// CategoryConfig is one top-level category with its ordered subcategories.
type CategoryConfig struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Icon          string              `json:"icon,omitempty"`
	Subcategories []SubcategoryConfig `json:"subcategories"`
}

// Tree is the immutable category/field configuration shared by reference
// across wizard sessions. It is loaded and validated once at startup and must
// not be mutated afterwards.
type Tree struct {
	categories    []CategoryConfig
	categoryIndex map[string]*CategoryConfig
	subcatIndex   map[string]*SubcategoryConfig
}

type treeDocument struct {
	Categories []CategoryConfig `json:"categories"`
}

// Load parses and validates a catalog document from raw JSON.
func Load(data []byte) (*Tree, error) {
	if len(data) == 0 {
		return nil, errors.New("catalog: document is empty")
	}

	var doc treeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode document: %w", err)
	}
	return build(doc.Categories)
}

// LoadFile reads and validates the catalog document at path.
func LoadFile(path string) (*Tree, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Load(contents)
}

// LoadDefault parses the embedded default catalog. It panics on failure since
// a broken embedded document is a build defect, not a runtime condition.
func LoadDefault() *Tree {
	tree, err := Load(defaultCatalogJSON)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return tree
}

func build(categories []CategoryConfig) (*Tree, error) {
	if len(categories) == 0 {
		return nil, errors.New("catalog: no categories defined")
	}

	tree := &Tree{
		categories:    categories,
		categoryIndex: make(map[string]*CategoryConfig, len(categories)),
		subcatIndex:   make(map[string]*SubcategoryConfig),
	}

	for i := range categories {
		cat := &tree.categories[i]
		if err := validateCategory(cat); err != nil {
			return nil, err
		}
		if _, exists := tree.categoryIndex[cat.ID]; exists {
			return nil, fmt.Errorf("catalog: duplicate category id %q", cat.ID)
		}
		tree.categoryIndex[cat.ID] = cat

		for j := range cat.Subcategories {
			sub := &cat.Subcategories[j]
			if err := validateSubcategory(cat, sub); err != nil {
				return nil, err
			}
			if _, exists := tree.subcatIndex[sub.ID]; exists {
				return nil, fmt.Errorf("catalog: duplicate subcategory id %q", sub.ID)
			}
			tree.subcatIndex[sub.ID] = sub
		}
	}

	return tree, nil
}

func validateCategory(cat *CategoryConfig) error {
	if strings.TrimSpace(cat.ID) == "" {
		return errors.New("catalog: category id is required")
	}
	if strings.TrimSpace(cat.Name) == "" {
		return fmt.Errorf("catalog: category %q: name is required", cat.ID)
	}
	if len(cat.Subcategories) == 0 {
		return fmt.Errorf("catalog: category %q: at least one subcategory is required", cat.ID)
	}
	return nil
}

func validateSubcategory(cat *CategoryConfig, sub *SubcategoryConfig) error {
	if strings.TrimSpace(sub.ID) == "" {
		return fmt.Errorf("catalog: category %q: subcategory id is required", cat.ID)
	}
	if strings.TrimSpace(sub.Name) == "" {
		return fmt.Errorf("catalog: subcategory %q: name is required", sub.ID)
	}
	if sub.ParentCategoryID != cat.ID {
		return fmt.Errorf("catalog: subcategory %q: parentCategoryId %q does not match category %q", sub.ID, sub.ParentCategoryID, cat.ID)
	}

	seen := make(map[string]struct{}, len(sub.Fields))
	for i := range sub.Fields {
		field := &sub.Fields[i]
		if err := validateField(sub, field); err != nil {
			return err
		}
		if _, exists := seen[field.ID]; exists {
			return fmt.Errorf("catalog: subcategory %q: duplicate field id %q", sub.ID, field.ID)
		}
		seen[field.ID] = struct{}{}
	}
	return nil
}

func validateField(sub *SubcategoryConfig, field *FieldDescriptor) error {
	if strings.TrimSpace(field.ID) == "" {
		return fmt.Errorf("catalog: subcategory %q: field id is required", sub.ID)
	}
	if strings.TrimSpace(field.Label) == "" {
		return fmt.Errorf("catalog: field %q: label is required", field.ID)
	}
	if _, ok := validFieldTypes[field.Type]; !ok {
		return fmt.Errorf("catalog: field %q: unknown type %q", field.ID, field.Type)
	}

	switch field.Type {
	case FieldTypeSelect, FieldTypeMultiselect:
		if len(field.Options) == 0 {
			return fmt.Errorf("catalog: field %q: %s fields require at least one option", field.ID, field.Type)
		}
		for _, opt := range field.Options {
			if strings.TrimSpace(opt.Value) == "" {
				return fmt.Errorf("catalog: field %q: option value is required", field.ID)
			}
		}
	case FieldTypeNumber:
		if field.Validation != nil && field.Validation.Min != nil && field.Validation.Max != nil {
			if *field.Validation.Min > *field.Validation.Max {
				return fmt.Errorf("catalog: field %q: min %v exceeds max %v", field.ID, *field.Validation.Min, *field.Validation.Max)
			}
		}
	}
	return nil
}

// Categories returns the top-level categories in declaration order.
func (t *Tree) Categories() []CategoryConfig {
	if t == nil {
		return nil
	}
	return t.categories
}

// Category looks up a category by id, returning nil on miss.
func (t *Tree) Category(id string) *CategoryConfig {
	if t == nil {
		return nil
	}
	return t.categoryIndex[strings.TrimSpace(id)]
}

// Subcategory looks up a subcategory by id across all categories, returning
// nil on miss (e.g. a stale subcategoryId after a category change).
func (t *Tree) Subcategory(id string) *SubcategoryConfig {
	if t == nil {
		return nil
	}
	return t.subcatIndex[strings.TrimSpace(id)]
}

// FieldsFor returns the ordered field descriptors of a subcategory, or an
// empty list when the id does not resolve.
func (t *Tree) FieldsFor(subcategoryID string) []FieldDescriptor {
	sub := t.Subcategory(subcategoryID)
	if sub == nil {
		return nil
	}
	return sub.Fields
}

// Field resolves a single descriptor within a subcategory, returning nil on miss.
func (t *Tree) Field(subcategoryID, fieldID string) *FieldDescriptor {
	sub := t.Subcategory(subcategoryID)
	if sub == nil {
		return nil
	}
	for i := range sub.Fields {
		if sub.Fields[i].ID == fieldID {
			return &sub.Fields[i]
		}
	}
	return nil
}
