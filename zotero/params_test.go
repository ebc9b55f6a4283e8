package zotero

import (
	"net/url"
	"testing"
)

func parseQuery(raw string) (url.Values, error) {
	return url.ParseQuery(raw)
}

func TestNormalizeParams(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want map[string]string
		omit []string
	}{
		{
			name: "defaults seeded",
			in:   Params{},
			want: map[string]string{"format": "json", "limit": "100"},
		},
		{
			name: "explicit limit kept",
			in:   Params{"limit": 25},
			want: map[string]string{"format": "json", "limit": "25"},
		},
		{
			name: "no-limit omits the parameter",
			in:   Params{"limit": NoLimit},
			want: map[string]string{"format": "json"},
			omit: []string{"limit"},
		},
		{
			name: "nil limit omits the parameter",
			in:   Params{"limit": nil},
			want: map[string]string{"format": "json"},
			omit: []string{"limit"},
		},
		{
			name: "content forces atom",
			in:   Params{"content": "bib"},
			want: map[string]string{"format": "atom", "content": "bib", "limit": "100"},
		},
		{
			name: "bib format never carries a limit",
			in:   Params{"format": "bib", "limit": 50},
			want: map[string]string{"format": "bib"},
			omit: []string{"limit"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeParams(tt.in)
			for k, want := range tt.want {
				if paramString(got[k]) != want {
					t.Errorf("%s = %v, want %s", k, got[k], want)
				}
			}
			for _, k := range tt.omit {
				if _, ok := got[k]; ok {
					t.Errorf("%s should be omitted, got %v", k, got[k])
				}
			}
		})
	}
}

func TestNormalizeParamsDoesNotMutateInput(t *testing.T) {
	in := Params{"limit": NoLimit}
	normalizeParams(in)
	if in["limit"] != NoLimit {
		t.Errorf("input map mutated: %v", in)
	}
}

func TestSplitURLParams(t *testing.T) {
	// a followed pagination link carries its own query string; explicit
	// parameters override per key, everything else survives
	finalURL, values, err := splitURLParams(
		"https://api.zotero.org/users/12345/items?start=100&limit=25&format=json",
		Params{"limit": 50},
	)
	if err != nil {
		t.Fatalf("splitURLParams: %v", err)
	}
	if finalURL != "https://api.zotero.org/users/12345/items" {
		t.Errorf("url = %q", finalURL)
	}
	if values.Get("start") != "100" {
		t.Errorf("start = %q, want the link's value preserved", values.Get("start"))
	}
	if values.Get("limit") != "50" {
		t.Errorf("limit = %q, want the override", values.Get("limit"))
	}
	if values.Get("format") != "json" {
		t.Errorf("format = %q", values.Get("format"))
	}
}

func TestSplitURLParamsNilValueDeletes(t *testing.T) {
	_, values, err := splitURLParams(
		"https://api.zotero.org/users/12345/items?limit=25",
		Params{"limit": nil},
	)
	if err != nil {
		t.Fatalf("splitURLParams: %v", err)
	}
	if _, ok := values["limit"]; ok {
		t.Errorf("limit should be deleted, got %q", values.Get("limit"))
	}
}

func TestExpandPath(t *testing.T) {
	c, err := New("12345", UserLibrary, WithAPIKey("xyzzy"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	path, err := c.expandPath("/{t}/{u}/items")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if path != "/users/12345/items" {
		t.Errorf("path = %q", path)
	}
	if _, err := c.expandPath("/{t}/{u}/items/{key}"); err == nil {
		t.Error("unresolved placeholder should be an error")
	}
}

func TestHasQueryParam(t *testing.T) {
	tests := []struct {
		fragment string
		key      string
		want     bool
	}{
		{"/users/12345/items?locale=de&start=100", "locale", true},
		{"/users/12345/items?start=100", "locale", false},
		{"/users/12345/items", "locale", false},
	}
	for _, tt := range tests {
		if got := hasQueryParam(tt.fragment, tt.key); got != tt.want {
			t.Errorf("hasQueryParam(%q, %q) = %v", tt.fragment, tt.key, got)
		}
	}
}
