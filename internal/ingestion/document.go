package ingestion

import (
	"fmt"
	"strings"

	"github.com/54b3r/shopai-go/internal/catalog"
	"github.com/54b3r/shopai-go/internal/rag"
)

// Missing is written for a field whose column was not found in the header.
// It is deliberately different from catalog.NotAvailable, which marks an
// empty cell in a column that does exist.
const Missing = "N/A"

// contentLabels is the label of each field in document content, in order.
var contentLabels = []struct {
	field catalog.Field
	label string
}{
	{catalog.FieldProduct, "Product"},
	{catalog.FieldBrand, "Brand"},
	{catalog.FieldCategory, "Category"},
	{catalog.FieldPrice, "Price"},
	{catalog.FieldRating, "Rating"},
	{catalog.FieldDescription, "Description"},
}

// metadataFields are the fields copied into document metadata.
var metadataFields = map[catalog.Field]string{
	catalog.FieldProduct: rag.MetaProduct,
	catalog.FieldBrand:   rag.MetaBrand,
	catalog.FieldPrice:   rag.MetaPrice,
	catalog.FieldRating:  rag.MetaRating,
}

// BuildDocument renders rec as an indexable document:
//
//	Product: <v>
//	Brand: <v>
//	Category: <v>
//	Price: <v>
//	Rating: <v>
//	Description: <v>
//
// Metadata carries product, brand, price and rating only.
func BuildDocument(rec catalog.Record) rag.Document {
	var b strings.Builder
	meta := make(map[string]string, len(metadataFields))
	for i, cl := range contentLabels {
		v := fieldValue(rec, cl.field)
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", cl.label, v)
		if key, ok := metadataFields[cl.field]; ok {
			meta[key] = v
		}
	}
	return rag.Document{
		Content:  strings.TrimSpace(b.String()),
		Metadata: meta,
	}
}

func fieldValue(rec catalog.Record, f catalog.Field) string {
	if v, ok := rec.Value(f); ok {
		return v
	}
	return Missing
}

// ParseContent reads the labelled lines of a document built by
// BuildDocument back into a map keyed by lowercase field name. Labels are
// matched by position: a line opens a field only when it starts with the
// label that follows the current one, so a multi-line value that happens to
// contain "Price: ..." or any other label stays inside its own field.
func ParseContent(content string) map[string]string {
	out := make(map[string]string, len(contentLabels))
	next := 0
	current := ""
	for _, line := range strings.Split(content, "\n") {
		if next < len(contentLabels) {
			cl := contentLabels[next]
			if prefix := cl.label + ":"; strings.HasPrefix(line, prefix) {
				current = cl.field.String()
				out[current] = strings.TrimPrefix(strings.TrimPrefix(line, prefix), " ")
				next++
				continue
			}
		}
		if current != "" {
			out[current] += "\n" + line
		}
	}
	return out
}
