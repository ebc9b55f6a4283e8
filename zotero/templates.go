package zotero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// templateEntry is a cached server template or schema document.
type templateEntry struct {
	body     []byte
	fetched  time.Time
	modified time.Time // server-reported modification time for conditional checks
}

// cacheKey derives the cache key from the canonical request path and query.
func cacheKey(path string, params Params) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, paramString(v))
	}
	return path + "_" + values.Encode()
}

// template returns the cached body for the given template endpoint,
// fetching and caching it when absent or stale. The returned bytes are the
// stored copy; callers unmarshal them fresh, so the cache cannot be mutated
// through a returned value.
func (c *Client) template(ctx context.Context, path string, params Params) ([]byte, error) {
	key := cacheKey(path, params)
	c.mu.Lock()
	entry := c.templates[key]
	c.mu.Unlock()
	if entry != nil {
		fresh, err := c.stillFresh(ctx, path, params, entry)
		if err != nil {
			return nil, err
		}
		if fresh {
			return entry.body, nil
		}
	}
	resp, err := c.retrieveData(ctx, path, params, false)
	if err != nil {
		return nil, err
	}
	modified := c.now()
	if t, err := http.ParseTime(resp.header.Get("Last-Modified")); err == nil {
		modified = t
	}
	c.mu.Lock()
	c.templates[key] = &templateEntry{body: resp.body, fetched: c.now(), modified: modified}
	c.mu.Unlock()
	return resp.body, nil
}

// stillFresh reports whether a cached entry can be reused. Entries younger
// than an hour are trusted without a network call; older ones are
// revalidated with a conditional GET, where a 304 confirms freshness.
func (c *Client) stillFresh(ctx context.Context, path string, params Params, entry *templateEntry) (bool, error) {
	if c.now().Sub(entry.fetched) <= templateFreshness {
		return true, nil
	}
	full := buildURL(c.endpoint, path)
	finalURL, values, err := splitURLParams(full, params)
	if err != nil {
		return false, err
	}
	headers := map[string]string{
		"If-Modified-Since": entry.modified.UTC().Format(http.TimeFormat),
	}
	resp, err := c.do(ctx, http.MethodGet, finalURL, values, headers, nil)
	if err != nil {
		return false, err
	}
	if resp.status == http.StatusNotModified {
		c.mu.Lock()
		entry.fetched = c.now()
		c.mu.Unlock()
		return true, nil
	}
	return false, nil
}

// schemaList fetches a template endpoint and unmarshals it into out.
func (c *Client) schemaList(ctx context.Context, path string, params Params, out any) error {
	body, err := c.template(ctx, path, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// ItemTypes returns all available item types, localised.
func (c *Client) ItemTypes(ctx context.Context) ([]ItemType, error) {
	var out []ItemType
	err := c.schemaList(ctx, "/itemTypes", Params{"locale": c.locale}, &out)
	return out, err
}

// ItemFields returns all available item fields, localised.
func (c *Client) ItemFields(ctx context.Context) ([]Field, error) {
	var out []Field
	err := c.schemaList(ctx, "/itemFields", Params{"locale": c.locale}, &out)
	return out, err
}

// CreatorFields returns the localised creator fields.
func (c *Client) CreatorFields(ctx context.Context) ([]Field, error) {
	var out []Field
	err := c.schemaList(ctx, "/creatorFields", Params{"locale": c.locale}, &out)
	return out, err
}

// ItemTypeFields returns the valid fields for an item type.
func (c *Client) ItemTypeFields(ctx context.Context, itemType string) ([]Field, error) {
	var out []Field
	err := c.schemaList(ctx, "/itemTypeFields", Params{"itemType": itemType, "locale": c.locale}, &out)
	return out, err
}

// ItemCreatorTypes returns the valid creator types for an item type.
func (c *Client) ItemCreatorTypes(ctx context.Context, itemType string) ([]CreatorType, error) {
	var out []CreatorType
	err := c.schemaList(ctx, "/itemTypeCreatorTypes", Params{"itemType": itemType, "locale": c.locale}, &out)
	return out, err
}

// ItemTemplate returns a template for a new item of the given type.
// linkMode selects the attachment variant and is only sent for attachments.
func (c *Client) ItemTemplate(ctx context.Context, itemType, linkMode string) (Item, error) {
	params := Params{"itemType": itemType, "locale": c.locale}
	if itemType == "attachment" {
		params["linkMode"] = linkMode
	}
	body, err := c.template(ctx, "/items/new", params)
	if err != nil {
		return nil, err
	}
	var out Item
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ItemAttachmentLinkModes returns the available attachment link modes.
// There is no REST route for these; the list follows the web API docs.
func ItemAttachmentLinkModes() []string {
	return []string{"imported_file", "imported_url", "linked_file", "linked_url"}
}
