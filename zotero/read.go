package zotero

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// mergeCall flattens variadic per-call parameter maps; later maps win.
func mergeCall(params []Params) Params {
	if len(params) == 0 {
		return nil
	}
	merged := Params{}
	for _, p := range params {
		for k, v := range p {
			merged[k] = v
		}
	}
	return merged
}

// getDecoded is the read pipeline: expand the path template, stage per-call
// parameters, retrieve, classify and decode.
func (c *Client) getDecoded(ctx context.Context, template string, params Params, seedDefaults bool) (*decoded, error) {
	path, err := c.expandPath(template)
	if err != nil {
		return nil, err
	}
	if params != nil {
		c.AddParameters(params)
	}
	resp, err := c.retrieveData(ctx, path, nil, seedDefaults)
	if err != nil {
		return nil, err
	}
	return c.decode(resp)
}

func (c *Client) getItems(ctx context.Context, template string, params []Params) ([]Item, error) {
	d, err := c.getDecoded(ctx, template, mergeCall(params), true)
	if err != nil {
		return nil, err
	}
	return d.Items, nil
}

func (c *Client) getItem(ctx context.Context, template string, params []Params) (Item, error) {
	d, err := c.getDecoded(ctx, template, mergeCall(params), true)
	if err != nil {
		return nil, err
	}
	if m, ok := d.Value.(map[string]any); ok {
		return Item(m), nil
	}
	return nil, fmt.Errorf("%w: expected a single object response", ErrHTTP)
}

func (c *Client) getStrings(ctx context.Context, template string, params []Params) ([]string, error) {
	d, err := c.getDecoded(ctx, template, mergeCall(params), true)
	if err != nil {
		return nil, err
	}
	return d.Strings, nil
}

// Items returns the library's items.
func (c *Client) Items(ctx context.Context, params ...Params) ([]Item, error) {
	return c.getItems(ctx, "/{t}/{u}/items", params)
}

// Top returns the library's top-level items.
func (c *Client) Top(ctx context.Context, params ...Params) ([]Item, error) {
	return c.getItems(ctx, "/{t}/{u}/items/top", params)
}

// Trash returns the items in the trash.
func (c *Client) Trash(ctx context.Context, params ...Params) ([]Item, error) {
	return c.getItems(ctx, "/{t}/{u}/items/trash", params)
}

// Publications returns the contents of My Publications. Only user
// libraries have publications.
func (c *Client) Publications(ctx context.Context, params ...Params) ([]Item, error) {
	if c.libraryType != "users" {
		return nil, fmt.Errorf("%w: publications", ErrCallDoesNotExist)
	}
	return c.getItems(ctx, "/{t}/{u}/publications/items", params)
}

// Item returns a specific item.
func (c *Client) Item(ctx context.Context, key string, params ...Params) (Item, error) {
	return c.getItem(ctx, "/{t}/{u}/items/"+strings.ToUpper(key), params)
}

// Children returns an item's child items.
func (c *Client) Children(ctx context.Context, key string, params ...Params) ([]Item, error) {
	return c.getItems(ctx, "/{t}/{u}/items/"+strings.ToUpper(key)+"/children", params)
}

// Searches returns the library's saved searches.
func (c *Client) Searches(ctx context.Context, params ...Params) ([]Item, error) {
	return c.getItems(ctx, "/{t}/{u}/searches", params)
}

// Deleted returns deleted content newer than the since parameter. The
// deleted endpoint does not respect a limit, so none is sent by default.
func (c *Client) Deleted(ctx context.Context, params ...Params) (Item, error) {
	merged := mergeCall(params)
	if merged == nil {
		merged = Params{}
	}
	if _, ok := merged["limit"]; !ok {
		merged["limit"] = NoLimit
	}
	return c.getItem(ctx, "/{t}/{u}/deleted", []Params{merged})
}

// Groups returns the groups the API key's user belongs to.
func (c *Client) Groups(ctx context.Context, params ...Params) ([]Group, error) {
	return c.getItems(ctx, "/users/{u}/groups", params)
}

// KeyInfo returns the permissions associated with the configured API key.
func (c *Client) KeyInfo(ctx context.Context, params ...Params) (Item, error) {
	return c.getItem(ctx, "/keys/"+c.apiKey, params)
}

// Settings returns the library's synced settings.
func (c *Client) Settings(ctx context.Context, params ...Params) (Item, error) {
	return c.getItem(ctx, "/{t}/{u}/settings", params)
}

// Collections returns the library's collections.
func (c *Client) Collections(ctx context.Context, params ...Params) ([]Collection, error) {
	return c.getItems(ctx, "/{t}/{u}/collections", params)
}

// CollectionsTop returns the library's top-level collections.
func (c *Client) CollectionsTop(ctx context.Context, params ...Params) ([]Collection, error) {
	return c.getItems(ctx, "/{t}/{u}/collections/top", params)
}

// Collection returns a specific collection.
func (c *Client) Collection(ctx context.Context, key string, params ...Params) (Collection, error) {
	return c.getItem(ctx, "/{t}/{u}/collections/"+strings.ToUpper(key), params)
}

// CollectionsSub returns a collection's subcollections.
func (c *Client) CollectionsSub(ctx context.Context, key string, params ...Params) ([]Collection, error) {
	return c.getItems(ctx, "/{t}/{u}/collections/"+strings.ToUpper(key)+"/collections", params)
}

// CollectionItems returns a collection's items.
func (c *Client) CollectionItems(ctx context.Context, key string, params ...Params) ([]Item, error) {
	return c.getItems(ctx, "/{t}/{u}/collections/"+strings.ToUpper(key)+"/items", params)
}

// CollectionItemsTop returns a collection's top-level items.
func (c *Client) CollectionItemsTop(ctx context.Context, key string, params ...Params) ([]Item, error) {
	return c.getItems(ctx, "/{t}/{u}/collections/"+strings.ToUpper(key)+"/items/top", params)
}

// CollectionTags returns a collection's tags.
func (c *Client) CollectionTags(ctx context.Context, key string, params ...Params) ([]string, error) {
	return c.getStrings(ctx, "/{t}/{u}/collections/"+strings.ToUpper(key)+"/tags", params)
}

// AllCollections retrieves all collections and subcollections at every
// depth, flattened. With a collection key, it starts from that collection.
func (c *Client) AllCollections(ctx context.Context, key string) ([]Collection, error) {
	var all []Collection

	var descend func(coll Collection) error
	descend = func(coll Collection) error {
		all = append(all, coll)
		meta, _ := coll["meta"].(map[string]any)
		if n, _ := meta["numCollections"].(float64); n <= 0 {
			return nil
		}
		first, err := c.CollectionsSub(ctx, coll.Key())
		if err != nil {
			return err
		}
		children, err := c.Everything(ctx, first)
		if err != nil {
			return err
		}
		for _, child := range children {
			if err := descend(child); err != nil {
				return err
			}
		}
		return nil
	}

	var toplevel []Collection
	if key != "" {
		coll, err := c.Collection(ctx, key)
		if err != nil {
			return nil, err
		}
		toplevel = []Collection{coll}
	} else {
		first, err := c.CollectionsTop(ctx)
		if err != nil {
			return nil, err
		}
		toplevel, err = c.Everything(ctx, first)
		if err != nil {
			return nil, err
		}
	}
	for _, coll := range toplevel {
		if err := descend(coll); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// Tags returns the library's tags as strings.
func (c *Client) Tags(ctx context.Context, params ...Params) ([]string, error) {
	return c.getStrings(ctx, "/{t}/{u}/tags", params)
}

// ItemTags returns an item's tags as strings.
func (c *Client) ItemTags(ctx context.Context, key string, params ...Params) ([]string, error) {
	return c.getStrings(ctx, "/{t}/{u}/items/"+strings.ToUpper(key)+"/tags", params)
}

// Bibliography returns formatted bibliography entries for the library's
// items. The content parameter defaults to "bib"; pass
// Params{"content": "citation"} for citation blocks.
func (c *Client) Bibliography(ctx context.Context, params ...Params) ([]string, error) {
	merged := mergeCall(params)
	if merged == nil {
		merged = Params{}
	}
	if _, ok := merged["content"]; !ok {
		merged["content"] = "bib"
	}
	return c.getStrings(ctx, "/{t}/{u}/items", []Params{merged})
}

// AllTop retrieves every top-level item, draining all pages.
func (c *Client) AllTop(ctx context.Context, params ...Params) ([]Item, error) {
	first, err := c.Top(ctx, params...)
	if err != nil {
		return nil, err
	}
	return c.Everything(ctx, first)
}

// GetSubset retrieves up to MaxBatchItems specific items by key, preserving
// any stored parameters across the single-item fetches.
func (c *Client) GetSubset(ctx context.Context, keys []string) ([]Item, error) {
	if len(keys) > MaxBatchItems {
		return nil, fmt.Errorf("%w: you may only retrieve %d items per call", ErrTooManyItems, MaxBatchItems)
	}
	c.mu.Lock()
	saved := c.urlParams.clone()
	c.mu.Unlock()

	items := make([]Item, 0, len(keys))
	for _, key := range keys {
		item, err := c.Item(ctx, key)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		c.mu.Lock()
		c.urlParams = saved.clone()
		c.mu.Unlock()
	}
	c.clearParams()
	return items, nil
}

// totals issues a limit-1 request and reads the Total-Results header.
func (c *Client) totals(ctx context.Context, template string) (int, error) {
	if _, err := c.getDecoded(ctx, template, Params{"limit": 1}, true); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return headerInt(c.lastResponse.header, "Total-Results"), nil
}

// NumItems returns the total number of top-level items in the library.
func (c *Client) NumItems(ctx context.Context) (int, error) {
	return c.totals(ctx, "/{t}/{u}/items/top")
}

// CountItems returns the count of all items in the library.
func (c *Client) CountItems(ctx context.Context) (int, error) {
	return c.totals(ctx, "/{t}/{u}/items")
}

// NumCollectionItems returns the total number of items in a collection.
func (c *Client) NumCollectionItems(ctx context.Context, collection string) (int, error) {
	return c.totals(ctx, "/{t}/{u}/collections/"+strings.ToUpper(collection)+"/items")
}

// versions retrieves a key-to-version map via format=versions.
func (c *Client) versions(ctx context.Context, template string, params []Params) (map[string]int, error) {
	merged := mergeCall(params)
	if merged == nil {
		merged = Params{}
	}
	if _, ok := merged["limit"]; !ok {
		merged["limit"] = NoLimit
	}
	merged["format"] = "versions"
	d, err := c.getDecoded(ctx, template, merged, true)
	if err != nil {
		return nil, err
	}
	m, ok := d.Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a version map response", ErrHTTP)
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		if f, ok := v.(float64); ok {
			out[k] = int(f)
		}
	}
	return out, nil
}

// ItemVersions returns a map of item keys to versions. A since parameter
// limits the result to items updated since that library version.
func (c *Client) ItemVersions(ctx context.Context, params ...Params) (map[string]int, error) {
	return c.versions(ctx, "/{t}/{u}/items", params)
}

// CollectionVersions returns a map of collection keys to versions.
func (c *Client) CollectionVersions(ctx context.Context, params ...Params) (map[string]int, error) {
	return c.versions(ctx, "/{t}/{u}/collections", params)
}

// LastModifiedVersion returns the library's last modified version.
func (c *Client) LastModifiedVersion(ctx context.Context) (int, error) {
	// must be a multi-object request for the header to be present
	if _, err := c.Items(ctx, Params{"limit": 1}); err != nil {
		return 0, err
	}
	return c.lastModifiedVersionHeader(), nil
}

// File returns the raw bytes of an item's file attachment. Plain-text
// snapshots arrive zipped; Dump accounts for that when writing to disk.
func (c *Client) File(ctx context.Context, key string, params ...Params) ([]byte, error) {
	c.mu.Lock()
	c.snapshot = false
	c.mu.Unlock()
	d, err := c.getDecoded(ctx, "/{t}/{u}/items/"+strings.ToUpper(key)+"/file", mergeCall(params), false)
	if err != nil {
		return nil, err
	}
	return d.Bytes, nil
}

// Dump writes an item's file attachment to disk. filename defaults to the
// attachment's own filename; dir defaults to the working directory.
// Snapshots are written with a .zip suffix.
func (c *Client) Dump(ctx context.Context, key, filename, dir string) error {
	if filename == "" {
		item, err := c.Item(ctx, key)
		if err != nil {
			return err
		}
		filename, _ = item.Data()["filename"].(string)
		if filename == "" {
			return fmt.Errorf("%w: item %s has no filename", ErrParamNotPassed, key)
		}
	}
	contents, err := c.File(ctx, key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.snapshot {
		c.snapshot = false
		filename += ".zip"
	}
	c.mu.Unlock()
	path := filename
	if dir != "" {
		path = filepath.Join(dir, filename)
	}
	return os.WriteFile(path, contents, 0o644)
}

// FulltextItem returns the full-text content of an attachment item.
func (c *Client) FulltextItem(ctx context.Context, key string, params ...Params) (*Fulltext, error) {
	d, err := c.getDecoded(ctx, "/{t}/{u}/items/"+strings.ToUpper(key)+"/fulltext", mergeCall(params), true)
	if err != nil {
		return nil, err
	}
	m, ok := d.Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a fulltext object", ErrHTTP)
	}
	ft := &Fulltext{}
	if s, ok := m["content"].(string); ok {
		ft.Content = s
	}
	ft.IndexedChars = intField(m, "indexedChars")
	ft.TotalChars = intField(m, "totalChars")
	ft.IndexedPages = intField(m, "indexedPages")
	ft.TotalPages = intField(m, "totalPages")
	return ft, nil
}

func intField(m map[string]any, key string) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return 0
}

// NewFulltext returns item keys with full-text content newer than the given
// library version, mapped to their versions.
func (c *Client) NewFulltext(ctx context.Context, since int) (map[string]int, error) {
	path, err := c.expandPath("/{t}/{u}/fulltext")
	if err != nil {
		return nil, err
	}
	resp, err := c.retrieveData(ctx, path, Params{"since": since}, false)
	if err != nil {
		return nil, err
	}
	d, err := c.decode(resp)
	if err != nil {
		return nil, err
	}
	m, ok := d.Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a version map response", ErrHTTP)
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		if f, ok := v.(float64); ok {
			out[k] = int(f)
		}
	}
	return out, nil
}
