package db

import "testing"

func TestIndexBuilder_Build(t *testing.T) {
	def, err := NewIndex("ticketlens:case:idx").
		Prefix("ticketlens:case:").
		Tag("tenant_id").
		TagList("tags", ",").
		SortableNumeric("created_at").
		Text("__content").
		VectorHNSW("symptom_vector", 4, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(def.Fields) != 5 {
		t.Fatalf("expected 5 fields, got %d", len(def.Fields))
	}
	if !def.Fields[2].Sortable {
		t.Error("created_at should be sortable")
	}
	if def.Fields[1].TagSeparator != "," {
		t.Errorf("unexpected separator %q", def.Fields[1].TagSeparator)
	}
}

func TestIndexDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		b    *IndexBuilder
	}{
		{"empty name", NewIndex("").Tag("a")},
		{"bad name", NewIndex("bad name").Tag("a")},
		{"no fields", NewIndex("idx")},
		{"duplicate", NewIndex("idx").Tag("a").Text("a")},
		{"zero dim", NewIndex("idx").VectorHNSW("v", 0, DistanceCosine, 0, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.b.Build(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	if !IsValidIdentifier("ticketlens:procedure:idx-v2") {
		t.Error("expected valid identifier")
	}
	if IsValidIdentifier("a b") || IsValidIdentifier("") {
		t.Error("expected invalid identifier")
	}
}
