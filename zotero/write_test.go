package zotero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newWriteServer serves the field schema plus a recording handler for
// everything else.
func newWriteServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/itemFields", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fieldsJSON))
	})
	mux.HandleFunc("/", handler)
	return httptest.NewServer(mux)
}

func TestCleanupStripsBookkeeping(t *testing.T) {
	c := &Client{}
	item := Item{
		"title":    "Chthonic Bells",
		"key":      "ABCD2345",
		"etag":     "abc",
		"group_id": "9",
		"updated":  "yesterday",
	}
	got := c.cleanup(item)
	if _, ok := got["etag"]; ok {
		t.Error("etag survived cleanup")
	}
	if _, ok := got["key"]; ok {
		t.Error("key survived cleanup without an allowance")
	}
	if got["title"] != "Chthonic Bells" {
		t.Errorf("title = %v", got["title"])
	}

	got = c.cleanup(item, "key")
	if got["key"] != "ABCD2345" {
		t.Error("allowed key should survive cleanup")
	}
	if _, ok := got["updated"]; ok {
		t.Error("updated survived cleanup")
	}
}

func TestCleanupUnwrapsEnvelopes(t *testing.T) {
	c := &Client{}
	envelope := Item{
		"key": "ABCD2345", "version": 3, "library": Item{}, "links": Item{},
		"meta": Item{},
		"data": map[string]any{"title": "On Bells", "etag": "zzz"},
	}
	got := c.cleanup(envelope)
	if got["title"] != "On Bells" {
		t.Errorf("data payload not unwrapped: %v", got)
	}
	if _, ok := got["etag"]; ok {
		t.Error("etag survived cleanup")
	}
}

func TestCheckItemsReportsOffendingFields(t *testing.T) {
	srv := newWriteServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s %s", r.Method, r.URL)
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	items := []Item{
		{"title": "Fine", "date": "2020"},
		{"title": "Broken", "bogusField": 1, "alsoBogus": 2},
	}
	_, err := c.CheckItems(context.Background(), items)
	if !errors.Is(err, ErrInvalidItemFields) {
		t.Fatalf("got %v, want ErrInvalidItemFields", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "2") {
		t.Errorf("error should name the record position: %q", msg)
	}
	if !strings.Contains(msg, "bogusField") || !strings.Contains(msg, "alsoBogus") {
		t.Errorf("error should name every offending field: %q", msg)
	}
}

func TestCheckItemsAcceptsStructuralFields(t *testing.T) {
	srv := newWriteServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request: %s %s", r.Method, r.URL)
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	items := []Item{{
		"itemType": "journalArticle",
		"title":    "On Bells",
		"creators": []any{},
		"tags":     []any{},
		"version":  9,
		"key":      "ABCD2345",
	}}
	got, err := c.CheckItems(context.Background(), items)
	if err != nil {
		t.Fatalf("CheckItems: %v", err)
	}
	if len(got) != 1 || got[0]["title"] != "On Bells" {
		t.Errorf("got %v", got)
	}
}

func TestCreateItemsEnforcesBatchCap(t *testing.T) {
	var gotCount int
	srv := newWriteServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body []Item
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("request body: %v", err)
		}
		gotCount = len(body)
		w.Header().Set("Last-Modified-Version", "7")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": {}, "unchanged": {}, "failed": {}}`))
	})
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	items := make([]Item, MaxBatchItems+1)
	for i := range items {
		items[i] = Item{"title": "x"}
	}
	_, err := c.CreateItems(context.Background(), items)
	if !errors.Is(err, ErrTooManyItems) {
		t.Errorf("got %v, want ErrTooManyItems", err)
	}

	// a full batch is still one call
	if _, err := c.CreateItems(context.Background(), items[:MaxBatchItems]); err != nil {
		t.Fatalf("CreateItems with %d items: %v", MaxBatchItems, err)
	}
	if gotCount != MaxBatchItems {
		t.Errorf("sent %d records, want %d", gotCount, MaxBatchItems)
	}
}

func TestCreateItems(t *testing.T) {
	var gotToken string
	var gotBody []Item
	srv := newWriteServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/users/12345/items" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
		}
		gotToken = r.Header.Get("Zotero-Write-Token")
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &gotBody); err != nil {
			t.Fatalf("request body: %v", err)
		}
		w.Header().Set("Last-Modified-Version", "42")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": {"0": "NEWKEY01"}, "unchanged": {}, "failed": {}}`))
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	result, err := c.CreateItems(context.Background(), []Item{
		{"title": "On Bells", "etag": "zzz", "key": "LOCALKEY"},
	})
	if err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	if len(gotToken) != 32 {
		t.Errorf("write token = %q, want 32 hex chars", gotToken)
	}
	if len(gotBody) != 1 {
		t.Fatalf("sent %d records", len(gotBody))
	}
	if _, ok := gotBody[0]["etag"]; ok {
		t.Error("etag was transmitted")
	}
	if gotBody[0]["key"] != "LOCALKEY" {
		t.Error("key should survive creation payloads")
	}
	if result.Success["0"] != "NEWKEY01" {
		t.Errorf("result = %+v", result)
	}
}

func TestCreateItemsLinksParent(t *testing.T) {
	type patch struct {
		path, version string
		body          Item
	}
	var patches []patch
	srv := newWriteServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.Header().Set("Last-Modified-Version", "77")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"success": {"0": "CHILD001", "1": "CHILD002"}, "unchanged": {}, "failed": {}}`))
		case http.MethodPatch:
			raw, _ := io.ReadAll(r.Body)
			var body Item
			json.Unmarshal(raw, &body)
			patches = append(patches, patch{
				path:    r.URL.Path,
				version: r.Header.Get("If-Unmodified-Since-Version"),
				body:    body,
			})
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
		}
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateItems(context.Background(),
		[]Item{{"title": "a"}, {"title": "b"}},
		WithParent("PARENT01"))
	if err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	if len(patches) != 2 {
		t.Fatalf("got %d linking updates, want 2", len(patches))
	}
	if patches[0].path != "/users/12345/items/CHILD001" ||
		patches[1].path != "/users/12345/items/CHILD002" {
		t.Errorf("patch paths = %q, %q", patches[0].path, patches[1].path)
	}
	for _, p := range patches {
		if p.version != "77" {
			t.Errorf("linking update version = %q, want 77", p.version)
		}
		if p.body["parentItem"] != "PARENT01" {
			t.Errorf("linking body = %v", p.body)
		}
	}
}

func TestCreateCollectionsRequiresName(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid")
	_, err := c.CreateCollections(context.Background(), []Collection{{"parentCollection": "X"}})
	if !errors.Is(err, ErrParamNotPassed) {
		t.Errorf("got %v, want ErrParamNotPassed", err)
	}
}

func TestUpdateItemSendsPrecondition(t *testing.T) {
	var gotVersion, gotPath, gotMethod string
	srv := newWriteServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotVersion = r.Header.Get("If-Unmodified-Since-Version")
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.UpdateItem(context.Background(), Item{
		"key": "ABCD2345", "version": 31, "title": "Renamed",
	})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/users/12345/items/ABCD2345" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotVersion != "31" {
		t.Errorf("If-Unmodified-Since-Version = %q", gotVersion)
	}
}

func TestDeleteItemsJoinsKeys(t *testing.T) {
	var gotQuery, gotVersion string
	srv := newWriteServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/users/12345/items" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
		}
		gotQuery = r.URL.Query().Get("itemKey")
		gotVersion = r.Header.Get("If-Unmodified-Since-Version")
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.DeleteItems(context.Background(), []Item{
		{"key": "AAAA1111", "version": 12},
		{"key": "BBBB2222", "version": 99},
	})
	if err != nil {
		t.Fatalf("DeleteItems: %v", err)
	}
	if gotQuery != "AAAA1111,BBBB2222" {
		t.Errorf("itemKey = %q", gotQuery)
	}
	if gotVersion != "12" {
		t.Errorf("version should come from the first record, got %q", gotVersion)
	}
}

func TestDeleteTags(t *testing.T) {
	var gotTag, gotVersion string
	srv := newWriteServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			// the version probe
			w.Header().Set("Last-Modified-Version", "88")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"tag": "existing"}]`))
		case http.MethodDelete:
			gotTag = r.URL.Query().Get("tag")
			gotVersion = r.Header.Get("If-Unmodified-Since-Version")
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL)
		}
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.DeleteTags(context.Background(), "alpha", "beta || gamma"); err != nil {
		t.Fatalf("DeleteTags: %v", err)
	}
	if gotTag != "alpha || beta || gamma" {
		t.Errorf("tag parameter = %q", gotTag)
	}
	if gotVersion != "88" {
		t.Errorf("version = %q, want the probe's header", gotVersion)
	}
}

func TestAddToCollection(t *testing.T) {
	var body Item
	srv := newWriteServer(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	item := Item{
		"key": "ABCD2345", "version": 5, "library": Item{}, "links": Item{}, "meta": Item{},
		"data": map[string]any{"key": "ABCD2345", "collections": []any{"OLD00001"}},
	}
	if err := c.AddToCollection(context.Background(), "NEW00001", item); err != nil {
		t.Fatalf("AddToCollection: %v", err)
	}
	memberships, _ := body["collections"].([]any)
	if fmt.Sprint(memberships) != "[OLD00001 NEW00001]" {
		t.Errorf("collections = %v", memberships)
	}
}

func TestRemoveFromCollection(t *testing.T) {
	var body Item
	srv := newWriteServer(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	item := Item{
		"key": "ABCD2345", "version": 5, "library": Item{}, "links": Item{}, "meta": Item{},
		"data": map[string]any{"key": "ABCD2345", "collections": []any{"OLD00001", "OLD00002"}},
	}
	if err := c.RemoveFromCollection(context.Background(), "OLD00001", item); err != nil {
		t.Fatalf("RemoveFromCollection: %v", err)
	}
	memberships, _ := body["collections"].([]any)
	if fmt.Sprint(memberships) != "[OLD00002]" {
		t.Errorf("collections = %v", memberships)
	}
}
