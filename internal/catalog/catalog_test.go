package catalog

import (
	"strings"
	"testing"
)

func TestLoadDefaultResolvesKnownTree(t *testing.T) {
	tree := LoadDefault()

	cat := tree.Category("vehicule")
	if cat == nil {
		t.Fatal("expected vehicule category in default catalog")
	}
	if cat.Name != "Vehicule" {
		t.Fatalf("expected category name Vehicule, got %s", cat.Name)
	}

	sub := tree.Subcategory("masini")
	if sub == nil {
		t.Fatal("expected masini subcategory in default catalog")
	}
	if sub.ParentCategoryID != "vehicule" {
		t.Fatalf("expected parent vehicule, got %s", sub.ParentCategoryID)
	}

	fields := tree.FieldsFor("masini")
	want := []string{"marca", "model", "an_fabricatie", "kilometraj", "combustibil", "transmisie", "motiv_vanzare"}
	if len(fields) != len(want) {
		t.Fatalf("expected %d masini fields, got %d", len(want), len(fields))
	}
	for i, id := range want {
		if fields[i].ID != id {
			t.Fatalf("expected field %d to be %s, got %s", i, id, fields[i].ID)
		}
	}
}

func TestLoadDefaultCoversAllFieldTypes(t *testing.T) {
	tree := LoadDefault()

	seen := make(map[FieldType]bool)
	for _, cat := range tree.Categories() {
		for _, sub := range cat.Subcategories {
			for _, field := range sub.Fields {
				seen[field.Type] = true
			}
		}
	}

	for ft := range validFieldTypes {
		if !seen[ft] {
			t.Fatalf("default catalog exercises no %s field", ft)
		}
	}
}

func TestLookupMissesReturnNil(t *testing.T) {
	tree := LoadDefault()

	if tree.Category("nope") != nil {
		t.Fatal("expected nil for unknown category")
	}
	if tree.Subcategory("nope") != nil {
		t.Fatal("expected nil for unknown subcategory")
	}
	if fields := tree.FieldsFor("nope"); fields != nil {
		t.Fatalf("expected nil field list for unknown subcategory, got %d entries", len(fields))
	}
	if tree.Field("masini", "nope") != nil {
		t.Fatal("expected nil for unknown field id")
	}
}

func TestLoadRejectsSelectWithoutOptions(t *testing.T) {
	doc := `{"categories":[{"id":"c","name":"C","slug":"c","subcategories":[
		{"id":"s","name":"S","slug":"s","parentCategoryId":"c","fields":[
			{"id":"f","label":"F","type":"select","required":true}
		]}
	]}]}`

	_, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("expected error for select field without options")
	}
	if !strings.Contains(err.Error(), "require at least one option") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsInvertedNumberBounds(t *testing.T) {
	doc := `{"categories":[{"id":"c","name":"C","slug":"c","subcategories":[
		{"id":"s","name":"S","slug":"s","parentCategoryId":"c","fields":[
			{"id":"f","label":"F","type":"number","validation":{"min":10,"max":5}}
		]}
	]}]}`

	_, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("expected error for min > max")
	}
}

func TestLoadRejectsMismatchedParent(t *testing.T) {
	doc := `{"categories":[{"id":"c","name":"C","slug":"c","subcategories":[
		{"id":"s","name":"S","slug":"s","parentCategoryId":"other","fields":[]}
	]}]}`

	_, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("expected error for mismatched parentCategoryId")
	}
}

func TestLoadRejectsDuplicateFieldIDs(t *testing.T) {
	doc := `{"categories":[{"id":"c","name":"C","slug":"c","subcategories":[
		{"id":"s","name":"S","slug":"s","parentCategoryId":"c","fields":[
			{"id":"f","label":"F","type":"text"},
			{"id":"f","label":"F2","type":"text"}
		]}
	]}]}`

	_, err := Load([]byte(doc))
	if err == nil {
		t.Fatal("expected error for duplicate field ids")
	}
}
