package wizard

// FormData is the accumulated wizard input. Custom field values are typed per
// descriptor: string, float64, bool, ISO date string, or []string for
// multiselect fields. CustomFields keys only ever belong to the currently
// selected subcategory; changing category or subcategory clears them.
type FormData struct {
	CategoryID      string
	CategoryName    string
	SubcategoryID   string
	SubcategoryName string
	Title           string
	Description     string
	Price           *float64
	LocationID      string
	Phone           string
	Images          []string
	CustomFields    map[string]any
}

// FormPatch is a partial update applied by UpdateFormData. Nil fields are
// left untouched; a non-nil CustomFields replaces the whole map (clients send
// the full merged map on every field change).
type FormPatch struct {
	CategoryID      *string
	CategoryName    *string
	SubcategoryID   *string
	SubcategoryName *string
	Title           *string
	Description     *string
	Price           *float64
	LocationID      *string
	Phone           *string
	Images          []string
	CustomFields    map[string]any
}

// clone returns a deep copy safe to hand out while the session keeps mutating.
func (f FormData) clone() FormData {
	out := f
	if f.Price != nil {
		price := *f.Price
		out.Price = &price
	}
	if f.Images != nil {
		out.Images = append([]string(nil), f.Images...)
	}
	if f.CustomFields != nil {
		fields := make(map[string]any, len(f.CustomFields))
		for key, value := range f.CustomFields {
			fields[key] = cloneFieldValue(value)
		}
		out.CustomFields = fields
	}
	return out
}

func cloneFieldValue(value any) any {
	if list, ok := value.([]string); ok {
		return append([]string(nil), list...)
	}
	return value
}
