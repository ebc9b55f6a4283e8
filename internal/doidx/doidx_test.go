package doidx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/scholium/zotero-go/zotero"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "doi.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestPutAndLookupNormalizes(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	err := ix.Put(ctx, Entry{
		DOI: "https://doi.org/10.1234/Example", ItemKey: "ABCD2345", Version: 3, Title: "Chthonic Bells",
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// lookups hit regardless of how the DOI is spelled
	for _, doi := range []string{"10.1234/example", "DOI:10.1234/EXAMPLE", "https://doi.org/10.1234/example"} {
		key, err := ix.Lookup(ctx, doi)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", doi, err)
		}
		if key != "ABCD2345" {
			t.Errorf("Lookup(%q) = %q", doi, key)
		}
	}

	key, err := ix.Lookup(ctx, "10.9999/unknown")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if key != "" {
		t.Errorf("unknown DOI returned %q", key)
	}
}

func TestPutReplacesExisting(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	if err := ix.Put(ctx, Entry{DOI: "10.1/a", ItemKey: "OLD00001", Version: 1}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Put(ctx, Entry{DOI: "10.1/a", ItemKey: "NEW00001", Version: 2}); err != nil {
		t.Fatal(err)
	}
	key, err := ix.Lookup(ctx, "10.1/a")
	if err != nil {
		t.Fatal(err)
	}
	if key != "NEW00001" {
		t.Errorf("key = %q, want the replacement", key)
	}
	n, err := ix.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d", n)
	}
}

func TestBuildIndexesLibrary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
		  {"key": "AAAA1111", "version": 5, "library": {}, "links": {}, "meta": {},
		   "data": {"key": "AAAA1111", "version": 5, "title": "With DOI", "DOI": "10.1234/one"}},
		  {"key": "BBBB2222", "version": 6, "library": {}, "links": {}, "meta": {},
		   "data": {"key": "BBBB2222", "version": 6, "title": "No DOI"}},
		  {"key": "CCCC3333", "version": 7, "library": {}, "links": {}, "meta": {},
		   "data": {"key": "CCCC3333", "version": 7, "title": "Another", "DOI": "doi:10.1234/TWO"}}
		]`))
	}))
	defer srv.Close()

	client, err := zotero.New("12345", zotero.UserLibrary,
		zotero.WithAPIKey("xyzzy"), zotero.WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("zotero.New: %v", err)
	}

	ix := openTestIndex(t)
	ctx := context.Background()
	n, err := ix.Build(ctx, client)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n != 2 {
		t.Errorf("indexed %d items, want 2", n)
	}

	key, err := ix.Lookup(ctx, "10.1234/two")
	if err != nil {
		t.Fatal(err)
	}
	if key != "CCCC3333" {
		t.Errorf("lookup = %q", key)
	}

	built, err := ix.LastBuilt(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if built.IsZero() {
		t.Error("LastBuilt not recorded")
	}

	entries, err := ix.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].DOI != "10.1234/one" {
		t.Errorf("entries = %+v", entries)
	}
}
