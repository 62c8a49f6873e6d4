package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/54b3r/shopai-go/internal/rag"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T, collection string, opts Options) *SQLiteStore {
	t.Helper()
	s, err := OpenFile(":memory:", collection, opts)
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func doc(content, product string) rag.Document {
	return rag.Document{
		Content:  content,
		Metadata: map[string]string{rag.MetaProduct: product},
	}
}

func Test_Store_AddCountSearch(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "camera_products", Options{})
	ctx := context.Background()

	if n, err := s.Count(ctx); err != nil || n != 0 {
		t.Fatalf("empty count = %d, %v", n, err)
	}

	docs := []rag.Document{
		doc("Product: Canon EOS 80D", "Canon EOS 80D"),
		doc("Product: Nikon Z6", "Nikon Z6"),
		doc("Product: Sony A7", "Sony A7"),
	}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0.7, 0.7, 0}}
	if err := s.Add(ctx, docs, vecs); err != nil {
		t.Fatalf("add: %v", err)
	}

	if n, _ := s.Count(ctx); n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("want 2 hits, got %d", len(hits))
	}
	if hits[0].Metadata[rag.MetaProduct] != "Canon EOS 80D" {
		t.Errorf("top hit = %+v", hits[0])
	}
	if hits[1].Metadata[rag.MetaProduct] != "Sony A7" {
		t.Errorf("second hit = %+v", hits[1])
	}
	if hits[0].ID == "" {
		t.Error("store should assign an id")
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("scores not descending: %v < %v", hits[0].Score, hits[1].Score)
	}
}

func Test_Store_TiesKeepInsertionOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "c", Options{})
	ctx := context.Background()

	docs := []rag.Document{doc("a", "a"), doc("b", "b"), doc("c", "c")}
	vecs := [][]float32{{1, 1}, {1, 1}, {1, 1}}
	if err := s.Add(ctx, docs, vecs); err != nil {
		t.Fatalf("add: %v", err)
	}

	hits, err := s.Search(ctx, []float32{1, 1}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if hits[i].Content != want {
			t.Errorf("hit[%d] = %q, want %q", i, hits[i].Content, want)
		}
	}
}

func Test_Store_CollectionIsolationAndReset(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	a, err := Open(dir, "cameras", Options{})
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	defer a.Close()
	if err := a.Add(ctx, []rag.Document{doc("x", "x")}, [][]float32{{1}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := Open(dir, "lenses", Options{})
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	defer b.Close()
	if n, _ := b.Count(ctx); n != 0 {
		t.Errorf("other collection count = %d, want 0", n)
	}

	a, err = Open(dir, "cameras", Options{})
	if err != nil {
		t.Fatalf("reopen a: %v", err)
	}
	defer a.Close()
	if n, _ := a.Count(ctx); n != 1 {
		t.Errorf("persisted count = %d, want 1", n)
	}
	if err := a.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := a.Count(ctx); n != 0 {
		t.Errorf("count after reset = %d, want 0", n)
	}
	if _, err := os.Stat(filepath.Join(dir, DBFileName)); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

// Test_Store_SecondInitialiserFails opens two handles on one database file.
// Both observe an empty collection, both insert the same stable ids, and
// the unique (collection, id) key rejects the second insert as a whole.
func Test_Store_SecondInitialiserFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	a, err := Open(dir, "camera_products", Options{})
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	defer a.Close()
	b, err := Open(dir, "camera_products", Options{})
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	defer b.Close()

	for name, s := range map[string]*SQLiteStore{"a": a, "b": b} {
		if n, err := s.Count(ctx); err != nil || n != 0 {
			t.Fatalf("%s count = %d, %v", name, n, err)
		}
	}

	docs := idDocs("Canon EOS 80D", "Nikon Z6", "Sony A7")
	vecs := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	if err := a.Add(ctx, docs, vecs); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := b.Add(ctx, docs, vecs); err == nil {
		t.Fatal("second insert of the same ids should fail")
	}

	if n, _ := b.Count(ctx); n != len(docs) {
		t.Errorf("count = %d, want %d", n, len(docs))
	}
}

// Test_Index_SecondInitialiserFails runs the same interleaving through
// rag.Index: the second initialiser counted before the first one inserted.
func Test_Index_SecondInitialiserFails(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	a, err := Open(dir, "camera_products", Options{})
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	defer a.Close()
	b, err := Open(dir, "camera_products", Options{})
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	defer b.Close()

	ixA, err := rag.NewIndex(a, constEmbedder{}, rag.IndexOptions{})
	if err != nil {
		t.Fatal(err)
	}
	ixB, err := rag.NewIndex(emptyCount{b}, constEmbedder{}, rag.IndexOptions{})
	if err != nil {
		t.Fatal(err)
	}

	docs := idDocs("Canon EOS 80D", "Nikon Z6", "Sony A7")
	res, err := ixA.IngestIfEmpty(ctx, docs)
	if err != nil || res.Inserted != len(docs) {
		t.Fatalf("first ingest = %+v, %v", res, err)
	}
	if _, err := ixB.IngestIfEmpty(ctx, docs); !errors.Is(err, rag.ErrStorageFailure) {
		t.Fatalf("second ingest: want ErrStorageFailure, got %v", err)
	}
	if n, _ := ixA.Count(ctx); n != len(docs) {
		t.Errorf("count = %d, want %d", n, len(docs))
	}
}

// idDocs builds documents with the stable ids the ingestion pipeline assigns.
func idDocs(products ...string) []rag.Document {
	out := make([]rag.Document, len(products))
	for i, p := range products {
		d := doc("Product: "+p, p)
		d.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("cameras.csv#"+p)).String()
		out[i] = d
	}
	return out
}

// emptyCount reports the count observed before the other initialiser wrote.
type emptyCount struct{ *SQLiteStore }

func (emptyCount) Count(context.Context) (int, error) { return 0, nil }

type constEmbedder struct{}

func (constEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func Test_Store_ScoreThreshold(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "c", Options{ScoreThreshold: 0.5})
	ctx := context.Background()

	docs := []rag.Document{doc("near", "near"), doc("far", "far")}
	if err := s.Add(ctx, docs, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	hits, err := s.Search(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Content != "near" {
		t.Errorf("hits = %+v", hits)
	}
}

func Test_Store_EmptySearch(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "c", Options{})

	hits, err := s.Search(context.Background(), []float32{1, 2}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits == nil || len(hits) != 0 {
		t.Errorf("want empty non-nil slice, got %#v", hits)
	}
}

func Test_Store_DimensionMismatch(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "c", Options{})
	ctx := context.Background()

	if err := s.Add(ctx, []rag.Document{doc("a", "a")}, [][]float32{{1, 2, 3}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := s.Search(ctx, []float32{1, 2}, 5); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func Test_Store_AddLengthMismatch(t *testing.T) {
	t.Parallel()
	s := openTestStore(t, "c", Options{})

	err := s.Add(context.Background(), []rag.Document{doc("a", "a")}, nil)
	if err == nil {
		t.Error("expected error for mismatched embeddings")
	}
}

func Test_Store_OpenUnwritableDir(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(filepath.Join(blocker, "db"), "c", Options{})
	if !errors.Is(err, rag.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}

func Test_Store_EmptyCollectionName(t *testing.T) {
	t.Parallel()
	if _, err := OpenFile(":memory:", "", Options{}); !errors.Is(err, rag.ErrStorageUnavailable) {
		t.Fatalf("want ErrStorageUnavailable, got %v", err)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	t.Parallel()
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
