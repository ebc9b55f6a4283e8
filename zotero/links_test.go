package zotero

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestExtractLinks(t *testing.T) {
	reqURL, _ := url.Parse("https://api.zotero.org/users/12345/items?format=json&limit=2&locale=en-US")
	resp := &response{
		url: reqURL,
		header: http.Header{"Link": []string{
			`<https://api.zotero.org/users/12345/items?limit=2&start=2>; rel="next", ` +
				`<https://api.zotero.org/users/12345/items?limit=2&start=98>; rel="last", ` +
				`<https://www.zotero.org/users/12345/items>; rel="alternate"`,
		}},
	}
	links := extractLinks(resp)
	if links["next"] != "/users/12345/items?limit=2&start=2" {
		t.Errorf("next = %q", links["next"])
	}
	if links["last"] != "/users/12345/items?limit=2&start=98" {
		t.Errorf("last = %q", links["last"])
	}
	// the derived self link keeps every query parameter except format
	self, err := parseQuery(links["self"][len("/users/12345/items?"):])
	if err != nil {
		t.Fatal(err)
	}
	if self.Get("format") != "" {
		t.Errorf("self link retained format: %q", links["self"])
	}
	if self.Get("limit") != "2" || self.Get("locale") != "en-US" {
		t.Errorf("self link dropped parameters: %q", links["self"])
	}
}

func TestExtractLinksAbsentHeader(t *testing.T) {
	reqURL, _ := url.Parse("https://api.zotero.org/users/12345/items/ABCD2345")
	if links := extractLinks(&response{url: reqURL, header: http.Header{}}); links != nil {
		t.Errorf("single-object response should yield no links, got %v", links)
	}
}

func TestStripLocal(t *testing.T) {
	tests := []struct {
		name     string
		local    bool
		prefix   int
		fragment string
		want     string
	}{
		{"remote untouched", false, 1, "/api/users/0/items?start=25", "/api/users/0/items?start=25"},
		{"local strips one segment", true, 1, "/api/users/0/items?start=25", "/users/0/items?start=25"},
		{"local strips two segments", true, 2, "/proxy/api/users/0/items", "/users/0/items"},
		{"query preserved", true, 1, "/api/users/0/items?limit=5&start=10", "/users/0/items?limit=5&start=10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{local: tt.local, localPrefix: tt.prefix}
			if got := c.stripLocal(tt.fragment); got != tt.want {
				t.Errorf("stripLocal(%q) = %q, want %q", tt.fragment, got, tt.want)
			}
		})
	}
}

func TestEverythingDrainsAllPages(t *testing.T) {
	page := func(start int) string {
		return fmt.Sprintf(`[
		  {"key": "KEY%d", "version": 1, "library": {}, "links": {}, "meta": {},
		   "data": {"key": "KEY%d", "version": 1, "title": "Paper %d"}},
		  {"key": "KEY%d", "version": 1, "library": {}, "links": {}, "meta": {},
		   "data": {"key": "KEY%d", "version": 1, "title": "Paper %d"}}
		]`, start, start, start, start+1, start+1, start+1)
	}
	var paths []string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.String())
		start := 0
		fmt.Sscanf(r.URL.Query().Get("start"), "%d", &start)
		if start < 4 {
			w.Header().Set("Link", fmt.Sprintf(
				`<%s/users/12345/items?limit=2&start=%d>; rel="next"`, srv.URL, start+2))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(page(start)))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()
	first, err := c.Items(ctx, Params{"limit": 2})
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	all, err := c.Everything(ctx, first)
	if err != nil {
		t.Fatalf("Everything: %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("got %d items, want 6 across 3 pages", len(all))
	}
	if all[0].Key() != "KEY0" || all[5].Key() != "KEY5" {
		t.Errorf("item order wrong: first %q last %q", all[0].Key(), all[5].Key())
	}
	if len(paths) != 3 {
		t.Fatalf("made %d requests, want 3", len(paths))
	}
	// follow-up requests must reuse the link's own paging parameters
	u, _ := url.Parse(paths[1])
	if u.Query().Get("start") != "2" || u.Query().Get("limit") != "2" {
		t.Errorf("second request = %q", paths[1])
	}
}

func TestFollowWithoutNextPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()
	if _, err := c.Items(ctx); err != nil {
		t.Fatalf("Items: %v", err)
	}
	items, err := c.Follow(ctx)
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if items != nil {
		t.Errorf("Follow with no next page should return nil, got %v", items)
	}
}
