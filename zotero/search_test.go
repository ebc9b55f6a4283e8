package zotero

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func newSearchServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/itemFields", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fieldsJSON))
	})
	if handler != nil {
		mux.HandleFunc("/users/12345/searches", handler)
	}
	return httptest.NewServer(mux)
}

func TestSavedSearchValidation(t *testing.T) {
	srv := newSearchServer(t, nil)
	defer srv.Close()
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	tests := []struct {
		name      string
		condition SearchCondition
		wantErr   bool
	}{
		{
			name:      "valid substring condition",
			condition: SearchCondition{Condition: "fulltextContent", Operator: "contains", Value: "bells"},
		},
		{
			name:      "valid boolean condition",
			condition: SearchCondition{Condition: "deleted", Operator: "true", Value: ""},
		},
		{
			name:      "schema field joins the vocabulary",
			condition: SearchCondition{Condition: "abstractNote", Operator: "doesNotContain", Value: "x"},
		},
		{
			name:      "numeric alias",
			condition: SearchCondition{Condition: "numPages", Operator: "isGreaterThan", Value: "100"},
		},
		{
			name:      "date alias keeps its own operators",
			condition: SearchCondition{Condition: "date", Operator: "isBefore", Value: "2020"},
		},
		{
			name:      "unknown operator",
			condition: SearchCondition{Condition: "tag", Operator: "resembles", Value: "x"},
			wantErr:   true,
		},
		{
			name:      "unknown condition",
			condition: SearchCondition{Condition: "chthonicity", Operator: "is", Value: "x"},
			wantErr:   true,
		},
		{
			name:      "operator not permitted for condition",
			condition: SearchCondition{Condition: "deleted", Operator: "contains", Value: "x"},
			wantErr:   true,
		},
		{
			name:      "missing operator",
			condition: SearchCondition{Condition: "tag", Value: "x"},
			wantErr:   true,
		},
	}
	ss, err := c.savedSearch(ctx)
	if err != nil {
		t.Fatalf("savedSearch: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ss.validate([]SearchCondition{tt.condition})
			if tt.wantErr && !errors.Is(err, ErrParamNotPassed) {
				t.Errorf("got %v, want ErrParamNotPassed", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateSavedSearch(t *testing.T) {
	var gotBody []map[string]any
	var gotToken string
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		gotToken = r.Header.Get("Zotero-Write-Token")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": {"0": "SEARCH01"}, "unchanged": {}, "failed": {}}`))
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	result, err := c.CreateSavedSearch(context.Background(), "recent bells", []SearchCondition{
		{Condition: "quicksearch-everything", Operator: "contains", Value: "bells"},
	})
	if err != nil {
		t.Fatalf("CreateSavedSearch: %v", err)
	}
	if len(gotToken) != 32 {
		t.Errorf("write token = %q", gotToken)
	}
	if len(gotBody) != 1 || gotBody[0]["name"] != "recent bells" {
		t.Errorf("body = %v", gotBody)
	}
	if result.Success["0"] != "SEARCH01" {
		t.Errorf("result = %+v", result)
	}
}

func TestCreateSavedSearchRejectsBadConditions(t *testing.T) {
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("invalid conditions must not reach the server")
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.CreateSavedSearch(context.Background(), "broken", []SearchCondition{
		{Condition: "deleted", Operator: "contains", Value: "x"},
	})
	if !errors.Is(err, ErrParamNotPassed) {
		t.Errorf("got %v, want ErrParamNotPassed", err)
	}
}

func TestDeleteSavedSearches(t *testing.T) {
	var gotKeys string
	srv := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		gotKeys = r.URL.Query().Get("searchKey")
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.DeleteSavedSearches(context.Background(), "SEARCH01", "SEARCH02"); err != nil {
		t.Fatalf("DeleteSavedSearches: %v", err)
	}
	if gotKeys != "SEARCH01,SEARCH02" {
		t.Errorf("searchKey = %q", gotKeys)
	}
}

func TestShowConditionOperators(t *testing.T) {
	srv := newSearchServer(t, nil)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ops, err := c.ShowConditionOperators(context.Background(), "key")
	if err != nil {
		t.Fatalf("ShowConditionOperators: %v", err)
	}
	want := []string{"is", "isNot", "beginsWith"}
	if !slices.Equal(ops, want) {
		t.Errorf("ops = %v, want %v", ops, want)
	}
	if _, err := c.ShowConditionOperators(context.Background(), "nope"); !errors.Is(err, ErrParamNotPassed) {
		t.Errorf("unknown condition: got %v", err)
	}
}
