package catalog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// NotAvailable replaces empty or missing cells of a resolved column.
const NotAvailable = "Not available"

var (
	// ErrDatasetNotFound is returned when the catalog file is missing or unreadable.
	ErrDatasetNotFound = errors.New("catalog: dataset not found")

	// ErrEmptyCatalog is returned when the catalog has no header row.
	ErrEmptyCatalog = errors.New("catalog: no header row")
)

// Record is one catalog row projected onto the semantic fields.
// Records are immutable after Load returns.
type Record struct {
	values map[Field]string
}

// NewRecord builds a record from explicit field values. Fields absent from
// values are treated as unresolved.
func NewRecord(values map[Field]string) Record {
	cp := make(map[Field]string, len(values))
	for f, v := range values {
		cp[f] = v
	}
	return Record{values: cp}
}

// Value returns the cell for f. ok is false when f's column was not resolved
// from the header, which is distinct from a present-but-empty cell (those
// hold NotAvailable).
func (r Record) Value(f Field) (v string, ok bool) {
	v, ok = r.values[f]
	return v, ok
}

// Options controls how the catalog file is parsed.
type Options struct {
	// Comma is the field delimiter. Zero selects tab for .tsv files and
	// comma otherwise.
	Comma rune
}

// ParseDelimiter converts a configured delimiter ("", ",", ";", "\t", "tab")
// to a rune. The empty string yields zero (auto-detect by extension).
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case "tab", `\t`, "\t":
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("catalog: invalid delimiter %q", s)
	}
	return r[0], nil
}

// Load reads the delimited catalog at path. The header row is trimmed and
// resolved with ResolveColumns; every data row becomes a Record in source
// order. Empty cells and cells missing from short rows become NotAvailable.
func Load(path string, opts Options) ([]Record, Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Schema{}, fmt.Errorf("%w: %s: %w", ErrDatasetNotFound, path, err)
	}
	defer f.Close()

	comma := opts.Comma
	if comma == 0 {
		comma = ','
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			comma = '\t'
		}
	}

	records, schema, err := Read(f, comma)
	if err != nil {
		return nil, Schema{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return records, schema, nil
}

// Read parses a delimited catalog from r. Input without a header row yields
// ErrEmptyCatalog; a header with no data rows yields zero records.
func Read(r io.Reader, comma rune) ([]Record, Schema, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && string(bom) == "\ufeff" {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, Schema{}, ErrEmptyCatalog
	}
	if err != nil {
		return nil, Schema{}, fmt.Errorf("header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	schema := ResolveColumns(header)

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Schema{}, fmt.Errorf("row %d: %w", len(records)+1, err)
		}
		records = append(records, project(row, schema))
	}
	return records, schema, nil
}

func project(row []string, schema Schema) Record {
	values := make(map[Field]string, len(Fields))
	for _, f := range Fields {
		col := schema.Column(f)
		if !col.Resolved() {
			continue
		}
		v := ""
		if col.Index < len(row) {
			v = row[col.Index]
		}
		if strings.TrimSpace(v) == "" {
			v = NotAvailable
		}
		values[f] = v
	}
	return Record{values: values}
}
