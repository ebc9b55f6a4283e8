package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// tempKeys are client-only bookkeeping fields that must never be sent back
// to the server, except key when explicitly allowed.
var tempKeys = map[string]bool{
	"key":      true,
	"etag":     true,
	"group_id": true,
	"updated":  true,
}

// alwaysValidFields are structural fields accepted on any item regardless of
// the type-specific schema.
var alwaysValidFields = []string{
	"path", "tags", "notes", "itemType", "creators", "mimeType", "linkMode",
	"note", "charset", "dateAdded", "version", "collections", "dateModified",
	"relations",
	// attachment items
	"parentItem", "mtime", "contentType", "md5", "filename", "inPublications",
	// annotation fields
	"annotationText", "annotationColor", "annotationType",
	"annotationPageLabel", "annotationPosition", "annotationSortIndex",
	"annotationComment", "annotationAuthorName",
}

// writeToken returns a fresh 32-character idempotency token for the
// Zotero-Write-Token header.
func writeToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// WriteOption configures a mutating call.
type WriteOption func(*writeConfig)

type writeConfig struct {
	parentID     string
	lastModified int
	hasModified  bool
}

// WithParent sets a parent item: each created record is linked to it with a
// follow-up partial update after creation.
func WithParent(key string) WriteOption {
	return func(cfg *writeConfig) { cfg.parentID = key }
}

// WithLastModified supplies an explicit library version for the
// If-Unmodified-Since-Version precondition, overriding the version carried
// by the payload.
func WithLastModified(version int) WriteOption {
	return func(cfg *writeConfig) {
		cfg.lastModified = version
		cfg.hasModified = true
	}
}

func applyWriteOptions(opts []WriteOption) writeConfig {
	var cfg writeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// cleanup strips the client bookkeeping fields from a record before
// transmission. Envelopes are reduced to their data payload first. Fields
// named in allow pass through.
func (c *Client) cleanup(item Item, allow ...string) Item {
	data := item
	if item.isEnvelope() {
		data = item.Data()
	}
	allowed := make(map[string]bool, len(allow))
	for _, a := range allow {
		allowed[a] = true
	}
	out := make(Item, len(data))
	for k, v := range data {
		if tempKeys[k] && !allowed[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// write performs a mutating call through the shared pipeline: backoff wait,
// dispatch, rate-limit recording and error classification.
func (c *Client) write(ctx context.Context, method, template string, query Params, headers map[string]string, body any) (*response, error) {
	path, err := c.expandPath(template)
	if err != nil {
		return nil, err
	}
	var values url.Values
	if query != nil {
		values = url.Values{}
		for k, v := range query {
			values.Set(k, paramString(v))
		}
	}
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding payload: %v", ErrUnsupportedParams, err)
		}
		reader = bytes.NewReader(payload)
		if headers == nil {
			headers = map[string]string{}
		}
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}
	full := buildURL(c.endpoint, path)
	if reader == nil {
		return c.do(ctx, method, full, values, headers, nil)
	}
	return c.do(ctx, method, full, values, headers, reader)
}

// CheckItems validates records against the authoritative field schema
// before a write. It returns the unwrapped data payloads, or an error
// naming every unrecognized field and the 1-based position of the offending
// record.
func (c *Client) CheckItems(ctx context.Context, items []Item) ([]Item, error) {
	fields, err := c.ItemFields(ctx)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(fields)+len(alwaysValidFields)+len(tempKeys))
	for _, f := range fields {
		allowed[f.Field] = true
	}
	for _, f := range alwaysValidFields {
		allowed[f] = true
	}
	for k := range tempKeys {
		allowed[k] = true
	}

	processed := make([]Item, 0, len(items))
	for pos, item := range items {
		data := item
		if item.isEnvelope() {
			data = item.Data()
		}
		var bad []string
		for k := range data {
			if !allowed[k] {
				bad = append(bad, k)
			}
		}
		if len(bad) > 0 {
			sort.Strings(bad)
			return nil, fmt.Errorf("%w %d: %s", ErrInvalidItemFields, pos+1, strings.Join(bad, " "))
		}
		processed = append(processed, data)
	}
	return processed, nil
}

// decodeWriteResult parses the per-record outcome of a batched write.
func decodeWriteResult(body []byte) (*WriteResult, error) {
	var result WriteResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("zotero: parsing write response: %w", err)
	}
	return &result, nil
}

// CreateItems creates up to MaxBatchItems new items. Records may carry a
// key for upsert-style calls; all other bookkeeping fields are stripped
// before transmission.
//
// With WithParent, each created record is linked to the parent by a
// follow-up partial update carrying the fresh library version. That second
// step can fail independently of the creation: the created items stand, and
// the linking error propagates. Callers must treat the sequence as
// at-least-once, not atomic.
func (c *Client) CreateItems(ctx context.Context, items []Item, opts ...WriteOption) (*WriteResult, error) {
	cfg := applyWriteOptions(opts)
	if len(items) > MaxBatchItems {
		return nil, fmt.Errorf("%w: you may only create up to %d items per call", ErrTooManyItems, MaxBatchItems)
	}
	toSend := make([]Item, 0, len(items))
	for _, item := range items {
		toSend = append(toSend, c.cleanup(item, "key"))
	}
	headers := map[string]string{
		"Zotero-Write-Token": writeToken(),
		"Content-Type":       "application/json",
	}
	if cfg.hasModified {
		headers["If-Unmodified-Since-Version"] = strconv.Itoa(cfg.lastModified)
	}
	resp, err := c.write(ctx, http.MethodPost, "/{t}/{u}/items", nil, headers, toSend)
	if err != nil {
		return nil, err
	}
	result, err := decodeWriteResult(resp.body)
	if err != nil {
		return nil, err
	}
	if cfg.parentID != "" {
		version := resp.header.Get("Last-Modified-Version")
		// deterministic order over the success map
		indexes := make([]string, 0, len(result.Success))
		for idx := range result.Success {
			indexes = append(indexes, idx)
		}
		sort.Strings(indexes)
		for _, idx := range indexes {
			key := result.Success[idx]
			patchHeaders := map[string]string{"If-Unmodified-Since-Version": version}
			if _, err := c.write(ctx, http.MethodPatch, "/{t}/{u}/items/"+key, nil, patchHeaders,
				Item{"parentItem": cfg.parentID}); err != nil {
				// creation has already taken effect; the linking failure
				// propagates on its own
				return result, err
			}
		}
	}
	return result, nil
}

// CreateCollections creates new collections. Each record must carry a name;
// a missing parentCollection defaults to blank (top level).
func (c *Client) CreateCollections(ctx context.Context, collections []Collection, opts ...WriteOption) (*WriteResult, error) {
	cfg := applyWriteOptions(opts)
	if len(collections) > MaxBatchItems {
		return nil, fmt.Errorf("%w: you may only create up to %d collections per call", ErrTooManyItems, MaxBatchItems)
	}
	for _, coll := range collections {
		if _, ok := coll["name"]; !ok {
			return nil, fmt.Errorf("%w: collection payloads must include a name", ErrParamNotPassed)
		}
		if _, ok := coll["parentCollection"]; !ok {
			coll["parentCollection"] = ""
		}
	}
	headers := map[string]string{"Zotero-Write-Token": writeToken()}
	if cfg.hasModified {
		headers["If-Unmodified-Since-Version"] = strconv.Itoa(cfg.lastModified)
	}
	resp, err := c.write(ctx, http.MethodPost, "/{t}/{u}/collections", nil, headers, collections)
	if err != nil {
		return nil, err
	}
	return decodeWriteResult(resp.body)
}

// UpdateItem updates an existing item in place. The payload's version (or
// an explicit WithLastModified) gates the write.
func (c *Client) UpdateItem(ctx context.Context, item Item, opts ...WriteOption) error {
	cfg := applyWriteOptions(opts)
	checked, err := c.CheckItems(ctx, []Item{item})
	if err != nil {
		return err
	}
	version := item.Version()
	if cfg.hasModified {
		version = cfg.lastModified
	}
	key := item.Key()
	if key == "" {
		return fmt.Errorf("%w: item has no key", ErrParamNotPassed)
	}
	headers := map[string]string{"If-Unmodified-Since-Version": strconv.Itoa(version)}
	_, err = c.write(ctx, http.MethodPatch, "/{t}/{u}/items/"+key, nil, headers, checked[0])
	return err
}

// UpdateItems updates existing items, split into batches of MaxBatchItems.
func (c *Client) UpdateItems(ctx context.Context, items []Item) error {
	toSend := make([]Item, 0, len(items))
	for _, item := range items {
		checked, err := c.CheckItems(ctx, []Item{item})
		if err != nil {
			return err
		}
		toSend = append(toSend, checked[0])
	}
	for chunk := range slices.Chunk(toSend, MaxBatchItems) {
		if _, err := c.write(ctx, http.MethodPost, "/{t}/{u}/items", nil, nil, chunk); err != nil {
			return err
		}
	}
	return nil
}

// UpdateCollection updates a collection property such as its name.
func (c *Client) UpdateCollection(ctx context.Context, collection Collection, opts ...WriteOption) error {
	cfg := applyWriteOptions(opts)
	version := collection.Version()
	if cfg.hasModified {
		version = cfg.lastModified
	}
	key := collection.Key()
	if key == "" {
		return fmt.Errorf("%w: collection has no key", ErrParamNotPassed)
	}
	headers := map[string]string{
		"If-Unmodified-Since-Version": strconv.Itoa(version),
		"Content-Type":                "application/json",
	}
	_, err := c.write(ctx, http.MethodPut, "/{t}/{u}/collections/"+key, nil, headers, collection)
	return err
}

// UpdateCollections updates existing collections, split into batches of
// MaxBatchItems.
func (c *Client) UpdateCollections(ctx context.Context, collections []Collection) error {
	toSend := make([]Item, 0, len(collections))
	for _, coll := range collections {
		checked, err := c.CheckItems(ctx, []Item{coll})
		if err != nil {
			return err
		}
		toSend = append(toSend, checked[0])
	}
	for chunk := range slices.Chunk(toSend, MaxBatchItems) {
		if _, err := c.write(ctx, http.MethodPost, "/{t}/{u}/collections", nil, nil, chunk); err != nil {
			return err
		}
	}
	return nil
}

// AddToCollection adds an item to a collection by rewriting the item's
// collections field, gated by the item's current version.
func (c *Client) AddToCollection(ctx context.Context, collection string, item Item) error {
	return c.patchCollections(ctx, item, func(memberships []any) []any {
		return append(memberships, collection)
	})
}

// RemoveFromCollection removes an item from a collection by rewriting the
// item's collections field, gated by the item's current version.
func (c *Client) RemoveFromCollection(ctx context.Context, collection string, item Item) error {
	return c.patchCollections(ctx, item, func(memberships []any) []any {
		out := make([]any, 0, len(memberships))
		for _, m := range memberships {
			if m != collection {
				out = append(out, m)
			}
		}
		return out
	})
}

func (c *Client) patchCollections(ctx context.Context, item Item, modify func([]any) []any) error {
	key := item.Key()
	if key == "" {
		return fmt.Errorf("%w: item has no key", ErrParamNotPassed)
	}
	memberships, _ := item.Data()["collections"].([]any)
	headers := map[string]string{"If-Unmodified-Since-Version": strconv.Itoa(item.Version())}
	_, err := c.write(ctx, http.MethodPatch, "/{t}/{u}/items/"+key, nil, headers,
		Item{"collections": modify(memberships)})
	return err
}

// DeleteItem deletes a single item, gated by its version or an explicit
// WithLastModified.
func (c *Client) DeleteItem(ctx context.Context, item Item, opts ...WriteOption) error {
	return c.deleteSingle(ctx, "items", item, opts)
}

// DeleteItems deletes a batch of items with one call; the keys travel as a
// comma-joined query parameter and the version comes from the first record
// unless overridden.
func (c *Client) DeleteItems(ctx context.Context, items []Item, opts ...WriteOption) error {
	return c.deleteBatch(ctx, "items", "itemKey", items, opts)
}

// DeleteCollection deletes a single collection.
func (c *Client) DeleteCollection(ctx context.Context, collection Collection, opts ...WriteOption) error {
	return c.deleteSingle(ctx, "collections", collection, opts)
}

// DeleteCollections deletes a batch of collections with one call.
func (c *Client) DeleteCollections(ctx context.Context, collections []Collection, opts ...WriteOption) error {
	return c.deleteBatch(ctx, "collections", "collectionKey", collections, opts)
}

func (c *Client) deleteSingle(ctx context.Context, resource string, record Item, opts []WriteOption) error {
	cfg := applyWriteOptions(opts)
	key := record.Key()
	if key == "" {
		return fmt.Errorf("%w: record has no key", ErrParamNotPassed)
	}
	version := record.Version()
	if cfg.hasModified {
		version = cfg.lastModified
	}
	headers := map[string]string{"If-Unmodified-Since-Version": strconv.Itoa(version)}
	_, err := c.write(ctx, http.MethodDelete, "/{t}/{u}/"+resource+"/"+key, nil, headers, nil)
	return err
}

func (c *Client) deleteBatch(ctx context.Context, resource, keyParam string, records []Item, opts []WriteOption) error {
	cfg := applyWriteOptions(opts)
	if len(records) == 0 {
		return fmt.Errorf("%w: no records to delete", ErrParamNotPassed)
	}
	if len(records) > MaxBatchItems {
		return fmt.Errorf("%w: you may only delete up to %d records per call", ErrTooManyItems, MaxBatchItems)
	}
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key()
	}
	version := records[0].Version()
	if cfg.hasModified {
		version = cfg.lastModified
	}
	headers := map[string]string{"If-Unmodified-Since-Version": strconv.Itoa(version)}
	query := Params{keyParam: strings.Join(keys, ",")}
	_, err := c.write(ctx, http.MethodDelete, "/{t}/{u}/"+resource, query, headers, nil)
	return err
}

// DeleteTags deletes up to MaxBatchItems tags. The version precondition is
// taken from a limit-1 tags probe.
func (c *Client) DeleteTags(ctx context.Context, tags ...string) error {
	if len(tags) > MaxBatchItems {
		return fmt.Errorf("%w: only %d tags or fewer may be deleted", ErrTooManyItems, MaxBatchItems)
	}
	// fetch current version data from a single tag
	if _, err := c.Tags(ctx, Params{"limit": 1}); err != nil {
		return err
	}
	version := c.lastModifiedVersionHeader()
	headers := map[string]string{"If-Unmodified-Since-Version": strconv.Itoa(version)}
	query := Params{"tag": strings.Join(tags, " || ")}
	_, err := c.write(ctx, http.MethodDelete, "/{t}/{u}/tags", query, headers, nil)
	return err
}

// AddTags appends tags to a retrieved item and updates it on the server.
func (c *Client) AddTags(ctx context.Context, item Item, tags ...string) error {
	data := item.Data()
	existing, _ := data["tags"].([]any)
	for _, tag := range tags {
		existing = append(existing, map[string]any{"tag": tag})
	}
	data["tags"] = existing
	if _, err := c.CheckItems(ctx, []Item{item}); err != nil {
		return err
	}
	return c.UpdateItem(ctx, item)
}

// SetFulltext sets the full-text content for an attachment item.
func (c *Client) SetFulltext(ctx context.Context, key string, payload *Fulltext) error {
	headers := map[string]string{"Content-Type": "application/json"}
	_, err := c.write(ctx, http.MethodPut, "/{t}/{u}/items/"+key+"/fulltext", nil, headers, payload)
	return err
}
