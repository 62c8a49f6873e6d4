// Package catalog loads the tabular product catalog and resolves its
// heterogeneous column headers onto the six semantic fields the assistant
// understands.
package catalog

import "strings"

// Field is one semantic catalog attribute.
type Field int

const (
	// FieldProduct is the product or model name.
	FieldProduct Field = iota
	// FieldBrand is the manufacturer.
	FieldBrand
	// FieldCategory is the product category.
	FieldCategory
	// FieldPrice is the listed price, kept as text.
	FieldPrice
	// FieldRating is the customer rating, kept as text.
	FieldRating
	// FieldDescription is the free-text description.
	FieldDescription
)

// Fields lists every semantic field in document order.
var Fields = []Field{
	FieldProduct,
	FieldBrand,
	FieldCategory,
	FieldPrice,
	FieldRating,
	FieldDescription,
}

// String returns the lowercase field name.
func (f Field) String() string {
	switch f {
	case FieldProduct:
		return "product"
	case FieldBrand:
		return "brand"
	case FieldCategory:
		return "category"
	case FieldPrice:
		return "price"
	case FieldRating:
		return "rating"
	case FieldDescription:
		return "description"
	default:
		return "unknown"
	}
}

// aliases maps each field to the lowercase header names accepted for it.
var aliases = map[Field][]string{
	FieldProduct:     {"productname", "product_name", "name", "title", "model"},
	FieldBrand:       {"brand", "company", "manufacturer"},
	FieldCategory:    {"category", "type"},
	FieldPrice:       {"price", "cost", "amount"},
	FieldRating:      {"rating", "stars", "review"},
	FieldDescription: {"description", "details", "specs"},
}

// Unresolved is the column index of a field no header matched.
const Unresolved = -1

// Column records where a field was found in the header row.
type Column struct {
	// Index is the zero-based column position, or Unresolved.
	Index int
	// Header is the trimmed header text that matched. Empty when unresolved.
	Header string
}

// Resolved reports whether a header matched the field.
func (c Column) Resolved() bool {
	return c.Index != Unresolved
}

// Schema maps every semantic field to its source column.
type Schema struct {
	columns map[Field]Column
}

// ResolveColumns matches headers against the alias table. Matching is
// case-insensitive on the whitespace-trimmed header, and for each field the
// first header in header order that equals any alias wins. Fields with no
// match resolve to Unresolved. Ambiguous headers are not an error.
func ResolveColumns(headers []string) Schema {
	s := Schema{columns: make(map[Field]Column, len(Fields))}
	for _, f := range Fields {
		s.columns[f] = Column{Index: Unresolved}
	}

	for _, f := range Fields {
	headerLoop:
		for i, h := range headers {
			norm := strings.ToLower(strings.TrimSpace(h))
			for _, alias := range aliases[f] {
				if norm == alias {
					s.columns[f] = Column{Index: i, Header: strings.TrimSpace(h)}
					break headerLoop
				}
			}
		}
	}
	return s
}

// Column returns the source column of f.
func (s Schema) Column(f Field) Column {
	if c, ok := s.columns[f]; ok {
		return c
	}
	return Column{Index: Unresolved}
}

// Columns returns the resolved header for each matched field, keyed by field
// name. Used for start-up logging.
func (s Schema) Columns() map[string]string {
	out := make(map[string]string, len(s.columns))
	for f, c := range s.columns {
		if c.Resolved() {
			out[f.String()] = c.Header
		}
	}
	return out
}

// Unresolved returns the fields no header matched, in document order.
func (s Schema) Unresolved() []Field {
	var out []Field
	for _, f := range Fields {
		if !s.Column(f).Resolved() {
			out = append(out, f)
		}
	}
	return out
}
