package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRead_MissingCellsBecomeNotAvailable(t *testing.T) {
	t.Parallel()

	in := "ProductName,Brand,Category,Price,Rating,Description\n" +
		"Canon EOS 80D,Canon,DSLR,,4.6,24MP APS-C\n" +
		"Sony A7 III,Sony\n"

	records, _, err := Read(strings.NewReader(in), ',')
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	if v, ok := records[0].Value(FieldPrice); !ok || v != NotAvailable {
		t.Errorf("empty price = %q (ok=%v), want %q", v, ok, NotAvailable)
	}
	if v, _ := records[0].Value(FieldRating); v != "4.6" {
		t.Errorf("rating = %q, want 4.6", v)
	}
	for _, f := range []Field{FieldCategory, FieldPrice, FieldRating, FieldDescription} {
		if v, ok := records[1].Value(f); !ok || v != NotAvailable {
			t.Errorf("ragged row %s = %q (ok=%v), want %q", f, v, ok, NotAvailable)
		}
	}
}

func TestRead_UnresolvedFieldIsAbsent(t *testing.T) {
	t.Parallel()

	in := "Title,Company,Cost\nLumix G9,Panasonic,1199\n"
	records, schema, err := Read(strings.NewReader(in), ',')
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if schema.Column(FieldRating).Resolved() {
		t.Fatal("rating should be unresolved")
	}
	if _, ok := records[0].Value(FieldRating); ok {
		t.Error("unresolved field should be absent from the record")
	}
	if v, _ := records[0].Value(FieldPrice); v != "1199" {
		t.Errorf("price = %q, want 1199", v)
	}
}

func TestRead_HeaderTrimmedAndBOMDropped(t *testing.T) {
	t.Parallel()

	in := "\ufeff ProductName , Brand \nX-T5,Fujifilm\n"
	records, schema, err := Read(strings.NewReader(in), ',')
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := schema.Column(FieldProduct).Header; got != "ProductName" {
		t.Errorf("product header = %q", got)
	}
	if v, _ := records[0].Value(FieldBrand); v != "Fujifilm" {
		t.Errorf("brand = %q", v)
	}
}

func TestRead_PreservesRowOrder(t *testing.T) {
	t.Parallel()

	in := "name\nA\nB\nC\n"
	records, _, err := Read(strings.NewReader(in), ',')
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var got []string
	for _, r := range records {
		v, _ := r.Value(FieldProduct)
		got = append(got, v)
	}
	if strings.Join(got, "") != "ABC" {
		t.Errorf("order = %v", got)
	}
}

func TestRead_EmptyInput(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "\n\n", "\ufeff"} {
		if _, _, err := Read(strings.NewReader(in), ','); !errors.Is(err, ErrEmptyCatalog) {
			t.Errorf("Read(%q): want ErrEmptyCatalog, got %v", in, err)
		}
	}
}

func TestRead_HeaderOnly(t *testing.T) {
	t.Parallel()

	records, schema, err := Read(strings.NewReader("name,brand,price\n"), ',')
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records", len(records))
	}
	if !schema.Column(FieldProduct).Resolved() {
		t.Error("product column should resolve from the header")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cameras.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path, Options{}); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("want ErrEmptyCatalog, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := Load(filepath.Join(t.TempDir(), "absent.csv"), Options{})
	if !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
}

func TestLoad_TSVByExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.tsv")
	if err := os.WriteFile(path, []byte("name\tprice\nZ6 II\t1996.95\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	records, _, err := Load(path, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v, _ := records[0].Value(FieldPrice); v != "1996.95" {
		t.Errorf("price = %q", v)
	}
}

func TestParseDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", 0, false},
		{",", ',', false},
		{";", ';', false},
		{"tab", '\t', false},
		{`\t`, '\t', false},
		{"\"", 0, true},
		{"ab", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDelimiter(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDelimiter(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDelimiter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
