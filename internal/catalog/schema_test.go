package catalog

import "testing"

func TestResolveColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []string
		field   Field
		want    int
	}{
		{"exact alias", []string{"ProductName", "Brand"}, FieldProduct, 0},
		{"case insensitive", []string{"id", "MANUFACTURER"}, FieldBrand, 1},
		{"trimmed header", []string{"  price  "}, FieldPrice, 0},
		{"first header wins", []string{"name", "title", "model"}, FieldProduct, 0},
		{"header order not alias order", []string{"model", "productname"}, FieldProduct, 0},
		{"no match", []string{"sku", "weight"}, FieldRating, Unresolved},
		{"stars alias", []string{"Stars"}, FieldRating, 0},
		{"specs alias", []string{"a", "b", "Specs"}, FieldDescription, 2},
		{"type alias", []string{"Type"}, FieldCategory, 0},
		{"partial names do not match", []string{"product name"}, FieldProduct, Unresolved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ResolveColumns(tt.headers).Column(tt.field)
			if got.Index != tt.want {
				t.Errorf("Column(%s).Index = %d, want %d", tt.field, got.Index, tt.want)
			}
			if got.Resolved() != (tt.want != Unresolved) {
				t.Errorf("Resolved() = %v for index %d", got.Resolved(), got.Index)
			}
		})
	}
}

func TestResolveColumns_AmbiguousHeaderFeedsSeveralFields(t *testing.T) {
	t.Parallel()

	// "review" is a rating alias; a second rating-like header is ignored.
	s := ResolveColumns([]string{"Name", "Review", "Rating"})
	if got := s.Column(FieldRating).Header; got != "Review" {
		t.Errorf("rating header = %q, want %q", got, "Review")
	}
}

func TestSchema_Unresolved(t *testing.T) {
	t.Parallel()

	s := ResolveColumns([]string{"Name", "Price"})
	got := s.Unresolved()
	want := []Field{FieldBrand, FieldCategory, FieldRating, FieldDescription}
	if len(got) != len(want) {
		t.Fatalf("Unresolved() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Unresolved()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	cols := s.Columns()
	if cols["product"] != "Name" || cols["price"] != "Price" || len(cols) != 2 {
		t.Errorf("Columns() = %v", cols)
	}
}
